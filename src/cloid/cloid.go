package cloid

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrInvalidFormat is returned for input that is neither a decimal
	// numeral nor a 0x-prefixed hex numeral.
	ErrInvalidFormat = errors.New("invalid client order id format")
	// ErrOutOfRange is returned for values outside [0, 2^128-1].
	ErrOutOfRange = errors.New("client order id out of range")
)

// maxValue is 2^128 - 1, the largest id the ledger accepts.
var maxValue = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Cloid is a client-assigned 128-bit order identifier. The zero value is the
// id 0; construct through Parse, FromBigInt or NewRandom.
type Cloid struct {
	value [16]byte
}

// Parse converts a textual identifier into a Cloid. Accepted forms are a bare
// decimal numeral or a 0x/0X-prefixed hexadecimal numeral. Anything else is
// rejected with ErrInvalidFormat; values above 2^128-1 with ErrOutOfRange.
func Parse(text string) (Cloid, error) {
	if text == "" {
		return Cloid{}, fmt.Errorf("%w: empty string", ErrInvalidFormat)
	}

	var (
		v  = new(big.Int)
		ok bool
	)
	if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
		// SetString tolerates a leading sign, so the digits are vetted first:
		// anything after the prefix that is not a hex digit is a format error.
		digits := text[2:]
		if isHexDigits(digits) {
			_, ok = v.SetString(digits, 16)
		}
	} else if IsAllDigits(text) {
		_, ok = v.SetString(text, 10)
	}
	if !ok {
		return Cloid{}, fmt.Errorf("%w: %q is not a decimal or 0x-hex numeral", ErrInvalidFormat, text)
	}

	return FromBigInt(v)
}

// FromBigInt builds a Cloid from an integer value in [0, 2^128-1].
func FromBigInt(v *big.Int) (Cloid, error) {
	if v.Sign() < 0 || v.Cmp(maxValue) > 0 {
		return Cloid{}, fmt.Errorf("%w: %s does not fit in 128 bits", ErrOutOfRange, v.String())
	}
	var c Cloid
	v.FillBytes(c.value[:])
	return c, nil
}

// NewRandom returns a random 128-bit Cloid.
func NewRandom() Cloid {
	return Cloid{value: [16]byte(uuid.New())}
}

// String renders the canonical form: "0x" followed by exactly 32 lowercase
// hex digits, zero-padded, regardless of the input form.
func (c Cloid) String() string {
	return fmt.Sprintf("0x%032x", c.value[:])
}

// BigInt returns the id's integer value.
func (c Cloid) BigInt() *big.Int {
	return new(big.Int).SetBytes(c.value[:])
}

// isHexDigits reports whether s is a non-empty run of hex digits, with no
// sign, whitespace or separators.
func isHexDigits(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return s != ""
}

// IsAllDigits reports whether s is a non-empty run of decimal digits. The
// identity resolver uses it to classify identifiers before touching the codec.
func IsAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
