package cloid

import (
	"errors"
	"math/big"
	"strings"
	"testing"
)

func TestParseCanonicalForm(t *testing.T) {
	tests := []struct {
		input string
		desc  string
	}{
		{"123456", "decimal integer"},
		{"0x1e240", "hex with 0x prefix"},
		{"0X1E240", "hex with 0X prefix and uppercase digits"},
		{"0xabcdef123456", "large hex value"},
		{"999999999", "large decimal"},
		{"0xffffffffffffffffffffffffffffffff", "max 16-byte value"},
		{"340282366920938463463374607431768211455", "max decimal (2^128-1)"},
	}

	for _, tt := range tests {
		c, err := Parse(tt.input)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.desc, err)
		}
		s := c.String()
		if !strings.HasPrefix(s, "0x") || len(s) != 34 {
			t.Fatalf("%s: canonical form must be 0x + 32 hex digits, got %q", tt.desc, s)
		}
		if s != strings.ToLower(s) {
			t.Fatalf("%s: canonical form must be lowercase, got %q", tt.desc, s)
		}

		// Round trip: reparsing the canonical form yields the same value.
		again, err := Parse(s)
		if err != nil {
			t.Fatalf("%s: reparse of %q failed: %v", tt.desc, s, err)
		}
		if again.BigInt().Cmp(c.BigInt()) != 0 {
			t.Fatalf("%s: round trip changed value: %s != %s", tt.desc, again.BigInt(), c.BigInt())
		}
	}
}

func TestParseZero(t *testing.T) {
	want := "0x" + strings.Repeat("0", 32)
	for _, input := range []string{"0", "0x0"} {
		c, err := Parse(input)
		if err != nil {
			t.Fatalf("Parse(%q): unexpected error: %v", input, err)
		}
		if c.String() != want {
			t.Fatalf("Parse(%q) = %q, want %q", input, c.String(), want)
		}
	}
}

func TestParseDecimalAndHexAgree(t *testing.T) {
	dec, err := Parse("123456")
	if err != nil {
		t.Fatalf("decimal parse failed: %v", err)
	}
	hex, err := Parse("0x1e240")
	if err != nil {
		t.Fatalf("hex parse failed: %v", err)
	}
	if dec.String() != hex.String() {
		t.Fatalf("123456 and 0x1e240 should render identically, got %q and %q", dec.String(), hex.String())
	}
}

func TestParseOutOfRange(t *testing.T) {
	for _, input := range []string{
		"0x100000000000000000000000000000000",
		"340282366920938463463374607431768211456",
	} {
		_, err := Parse(input)
		if !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("Parse(%q): want ErrOutOfRange, got %v", input, err)
		}
	}
}

func TestParseInvalidFormat(t *testing.T) {
	for _, input := range []string{
		"",
		"1e240",
		"invalid",
		"0xGHI",
		"123abc",
		"abc123",
		"0x",
		"-5",
		"0x+5",
		"0x-5",
		"+5",
		"0x 5",
	} {
		_, err := Parse(input)
		if !errors.Is(err, ErrInvalidFormat) {
			t.Fatalf("Parse(%q): want ErrInvalidFormat, got %v", input, err)
		}
	}
}

func TestFromBigIntRejectsNegative(t *testing.T) {
	if _, err := FromBigInt(big.NewInt(-1)); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("want ErrOutOfRange for negative value, got %v", err)
	}
}

func TestNewRandomIsCanonical(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 8; i++ {
		c := NewRandom()
		s := c.String()
		if len(s) != 34 || !strings.HasPrefix(s, "0x") {
			t.Fatalf("random id not canonical: %q", s)
		}
		if seen[s] {
			t.Fatalf("random id repeated: %q", s)
		}
		seen[s] = true
	}
}

func TestIsAllDigits(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"123", true},
		{"0", true},
		{"", false},
		{"12a", false},
		{"0x12", false},
		{" 12", false},
	}
	for _, tt := range tests {
		if got := IsAllDigits(tt.input); got != tt.want {
			t.Fatalf("IsAllDigits(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
