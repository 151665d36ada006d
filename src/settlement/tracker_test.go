package settlement

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"hlexecutor/src/connectors"
	"hlexecutor/src/credentials"
	"hlexecutor/src/model"
)

type fakeChain struct {
	native    decimal.Decimal
	nativeErr error
	token     decimal.Decimal

	transfers   int
	transferErr error
}

func (f *fakeChain) NativeBalance(_ context.Context, _ common.Address) (decimal.Decimal, error) {
	return f.native, f.nativeErr
}

func (f *fakeChain) TokenBalance(_ context.Context, _, _ common.Address) (decimal.Decimal, error) {
	return f.token, nil
}

func (f *fakeChain) TransferToken(_ context.Context, _, _ common.Address, _ decimal.Decimal) (*connectors.TransferReceipt, error) {
	f.transfers++
	if f.transferErr != nil {
		return nil, f.transferErr
	}
	return &connectors.TransferReceipt{TxHash: "0xabc", BlockNumber: 42}, nil
}

// fakeLedger serves a scripted sequence of withdrawable readings, one per
// AccountState call; the last entry repeats once the script runs out. An
// Unknown entry simulates a failed read.
type fakeLedger struct {
	script     []model.BalanceReading
	stateCalls int

	usdTransfers int
	withdrawals  int
	withdrawErr  error
}

func (f *fakeLedger) AccountState(_ context.Context, _ common.Address) (*model.AccountState, error) {
	idx := f.stateCalls
	f.stateCalls++
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	if idx < 0 || !f.script[idx].Known {
		return nil, fmt.Errorf("%w: simulated read failure", model.ErrAPI)
	}
	return &model.AccountState{Withdrawable: f.script[idx].Value}, nil
}

func (f *fakeLedger) UsdTransfer(_ context.Context, _ decimal.Decimal, _ common.Address) (*connectors.LedgerResponse, error) {
	f.usdTransfers++
	return &connectors.LedgerResponse{Status: "ok"}, nil
}

func (f *fakeLedger) Withdraw(_ context.Context, _ decimal.Decimal, _ common.Address) (*connectors.LedgerResponse, error) {
	f.withdrawals++
	if f.withdrawErr != nil {
		return nil, f.withdrawErr
	}
	return &connectors.LedgerResponse{Status: "ok"}, nil
}

func known(s string) model.BalanceReading {
	return model.KnownBalance(decimal.RequireFromString(s))
}

func newTestTracker(chain *fakeChain, ledger *fakeLedger, sameAccount bool) *Tracker {
	signer := common.HexToAddress("0x1baAbB04529D43a73232B713C0FE471f7c7334d5")
	account := signer
	if !sameAccount {
		account = common.HexToAddress("0x742d35cc6634c0532925a3b844bc9e7595f0beb7")
	}
	tr := NewTracker(chain, ledger, &credentials.Credentials{Signer: signer, Account: account},
		common.Address{1}, common.Address{2})
	noSleep := func(context.Context, time.Duration) error { return nil }
	tr.poller.Sleep = noSleep
	tr.sleep = noSleep
	tr.now = func() time.Time { return time.Unix(1700000000, 0) }
	return tr
}

func TestPollerStopsAtFirstSuccess(t *testing.T) {
	readings := []model.BalanceReading{known("0"), known("0"), known("10")}
	reads := 0
	p := Poller{Attempts: 60, Sleep: func(context.Context, time.Duration) error { return nil }}

	last, attempts, err := p.Run(context.Background(),
		func(context.Context) model.BalanceReading {
			r := readings[reads]
			reads++
			return r
		},
		func(r model.BalanceReading) bool { return r.Known && r.Value.IsPositive() },
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 || reads != 3 {
		t.Fatalf("attempts = %d, reads = %d, want 3 each", attempts, reads)
	}
	if !last.Value.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("last reading = %s", last.Value)
	}
}

func TestPollerExhaustsExactBudget(t *testing.T) {
	reads := 0
	p := Poller{Attempts: 60, Sleep: func(context.Context, time.Duration) error { return nil }}

	_, attempts, err := p.Run(context.Background(),
		func(context.Context) model.BalanceReading {
			reads++
			return known("0")
		},
		func(model.BalanceReading) bool { return false },
	)
	if !errors.Is(err, model.ErrConfirmationTimeout) {
		t.Fatalf("want ErrConfirmationTimeout, got %v", err)
	}
	if attempts != 60 || reads != 60 {
		t.Fatalf("attempts = %d, reads = %d, want exactly 60 each", attempts, reads)
	}
}

func TestPollerTreatsUnknownAsNotDone(t *testing.T) {
	readings := []model.BalanceReading{model.UnknownBalance(), known("10")}
	reads := 0
	p := Poller{Attempts: 5, Sleep: func(context.Context, time.Duration) error { return nil }}

	_, attempts, err := p.Run(context.Background(),
		func(context.Context) model.BalanceReading {
			r := readings[reads]
			reads++
			return r
		},
		func(r model.BalanceReading) bool { return r.Known && r.Value.IsPositive() },
	)
	if err != nil {
		t.Fatalf("a single failed read must not abort the loop: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
}

func TestDepositBelowMinimumIsLocal(t *testing.T) {
	chain := &fakeChain{}
	ledger := &fakeLedger{}
	tr := newTestTracker(chain, ledger, true)

	_, err := tr.Deposit(context.Background(), decimal.RequireFromString("4.99"))
	if !errors.Is(err, model.ErrInvalidParameter) {
		t.Fatalf("want ErrInvalidParameter, got %v", err)
	}
	if chain.transfers != 0 || ledger.stateCalls != 0 {
		t.Fatalf("below-minimum deposit must issue zero network calls")
	}
}

func TestDepositInsufficientTokenBalance(t *testing.T) {
	chain := &fakeChain{native: decimal.NewFromInt(1), token: decimal.NewFromInt(3)}
	ledger := &fakeLedger{}
	tr := newTestTracker(chain, ledger, true)

	_, err := tr.Deposit(context.Background(), decimal.NewFromInt(10))
	if !errors.Is(err, model.ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}
	if chain.transfers != 0 {
		t.Fatalf("insufficient balance must not submit a transfer")
	}
}

func TestDepositCreditConfirmedWithinThreeReads(t *testing.T) {
	chain := &fakeChain{native: decimal.NewFromInt(1), token: decimal.NewFromInt(500)}
	// First read is the initial balance; the credit lands on the third poll.
	ledger := &fakeLedger{script: []model.BalanceReading{
		known("100"), known("100"), known("100"), known("200"),
	}}
	tr := newTestTracker(chain, ledger, true)

	op, err := tr.Deposit(context.Background(), decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if op.Outcome != model.OutcomeSuccess {
		t.Fatalf("outcome = %s, note = %s", op.Outcome, op.Note)
	}
	if op.PollAttempts != 3 {
		t.Fatalf("poll attempts = %d, want 3", op.PollAttempts)
	}
	if !op.Credited.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("credited = %s", op.Credited)
	}
	if op.TxHash != "0xabc" || op.BlockNumber != 42 {
		t.Fatalf("receipt not recorded: %+v", op)
	}
	if chain.transfers != 1 {
		t.Fatalf("expected exactly one bridge transfer, got %d", chain.transfers)
	}
}

func TestDepositNeverCreditedTimesOut(t *testing.T) {
	chain := &fakeChain{native: decimal.NewFromInt(1), token: decimal.NewFromInt(500)}
	ledger := &fakeLedger{script: []model.BalanceReading{known("100")}}
	tr := newTestTracker(chain, ledger, true)

	op, err := tr.Deposit(context.Background(), decimal.NewFromInt(100))
	if !errors.Is(err, model.ErrConfirmationTimeout) {
		t.Fatalf("want ErrConfirmationTimeout, got %v", err)
	}
	if op.PollAttempts != 60 {
		t.Fatalf("poll attempts = %d, want exactly 60", op.PollAttempts)
	}
	if op.Outcome != model.OutcomeError {
		t.Fatalf("outcome = %s", op.Outcome)
	}
}

func TestDepositRebalancesToTargetAccount(t *testing.T) {
	chain := &fakeChain{native: decimal.NewFromInt(1), token: decimal.NewFromInt(500)}
	// initial signer read, one poll read with the credit, then the target's
	// before/after readings around the internal transfer.
	ledger := &fakeLedger{script: []model.BalanceReading{
		known("0"), known("100"), known("0"), known("100"),
	}}
	tr := newTestTracker(chain, ledger, false)

	op, err := tr.Deposit(context.Background(), decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ledger.usdTransfers != 1 {
		t.Fatalf("expected one internal transfer, got %d", ledger.usdTransfers)
	}
	if op.Outcome != model.OutcomeSuccess {
		t.Fatalf("outcome = %s, note = %s", op.Outcome, op.Note)
	}
	if !op.Fee.IsZero() {
		t.Fatalf("fee = %s, want 0", op.Fee)
	}
}

func TestDepositSameAccountSkipsRebalance(t *testing.T) {
	chain := &fakeChain{native: decimal.NewFromInt(1), token: decimal.NewFromInt(500)}
	ledger := &fakeLedger{script: []model.BalanceReading{known("0"), known("100")}}
	tr := newTestTracker(chain, ledger, true)

	if _, err := tr.Deposit(context.Background(), decimal.NewFromInt(100)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ledger.usdTransfers != 0 {
		t.Fatalf("same-account deposit must not rebalance")
	}
}

func TestWithdrawBelowMinimumIssuesNoNetworkCalls(t *testing.T) {
	ledger := &fakeLedger{}
	tr := newTestTracker(&fakeChain{}, ledger, true)

	_, err := tr.Withdraw(context.Background(), decimal.RequireFromString("1.50"), common.Address{9})
	if !errors.Is(err, model.ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds-class rejection, got %v", err)
	}
	if ledger.stateCalls != 0 || ledger.withdrawals != 0 {
		t.Fatalf("below-minimum withdrawal must issue zero network calls, got %d state + %d withdraw",
			ledger.stateCalls, ledger.withdrawals)
	}
}

func TestWithdrawInsufficientWithdrawable(t *testing.T) {
	ledger := &fakeLedger{script: []model.BalanceReading{known("5")}}
	tr := newTestTracker(&fakeChain{}, ledger, true)

	_, err := tr.Withdraw(context.Background(), decimal.NewFromInt(10), common.Address{9})
	if !errors.Is(err, model.ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}
	if ledger.withdrawals != 0 {
		t.Fatalf("insufficient balance must not submit a withdrawal")
	}
}

func TestWithdrawOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		final   model.BalanceReading
		want    model.SettlementOutcome
		stale   bool
	}{
		{"full debit is success", known("40"), model.OutcomeSuccess, false},
		{"partial debit is processing", known("45"), model.OutcomeProcessing, false},
		{"no debit is error", known("50"), model.OutcomeError, false},
		{"failed final read flags stale", model.UnknownBalance(), model.OutcomeProcessing, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := &fakeLedger{script: []model.BalanceReading{known("50"), tt.final}}
			tr := newTestTracker(&fakeChain{}, ledger, true)

			op, err := tr.Withdraw(context.Background(), decimal.NewFromInt(10), common.Address{9})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if op.Outcome != tt.want {
				t.Fatalf("outcome = %s, want %s (note: %s)", op.Outcome, tt.want, op.Note)
			}
			if op.StaleReads != tt.stale {
				t.Fatalf("stale = %v, want %v", op.StaleReads, tt.stale)
			}
			if !op.Net.Equal(decimal.NewFromInt(9)) || !op.Fee.Equal(decimal.NewFromInt(1)) {
				t.Fatalf("net/fee = %s/%s, want 9/1", op.Net, op.Fee)
			}
			if ledger.withdrawals != 1 {
				t.Fatalf("expected exactly one withdrawal submission")
			}
		})
	}
}

func TestWithdrawSubmitFailureIsFatal(t *testing.T) {
	ledger := &fakeLedger{
		script:      []model.BalanceReading{known("50")},
		withdrawErr: fmt.Errorf("%w: boom", model.ErrAPI),
	}
	tr := newTestTracker(&fakeChain{}, ledger, true)

	op, err := tr.Withdraw(context.Background(), decimal.NewFromInt(10), common.Address{9})
	if !errors.Is(err, model.ErrAPI) {
		t.Fatalf("want wrapped ErrAPI, got %v", err)
	}
	if op.Outcome != model.OutcomeError {
		t.Fatalf("outcome = %s", op.Outcome)
	}
}
