package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettlementDirection distinguishes the two bridge flows.
type SettlementDirection string

const (
	DirectionDeposit  SettlementDirection = "deposit"
	DirectionWithdraw SettlementDirection = "withdraw"
)

// SettlementOutcome is the terminal classification of one settlement run.
type SettlementOutcome string

const (
	OutcomeSuccess    SettlementOutcome = "success"
	OutcomePartial    SettlementOutcome = "partial"
	OutcomeProcessing SettlementOutcome = "processing"
	OutcomeError      SettlementOutcome = "error"
)

// BalanceReading distinguishes a confirmed balance from a failed read. The
// read paths degrade gracefully: a failed read yields an Unknown reading
// instead of an error, and reconciliation treats it as zero while flagging
// the report as possibly stale.
type BalanceReading struct {
	Value decimal.Decimal
	Known bool
}

// KnownBalance wraps a successful read.
func KnownBalance(v decimal.Decimal) BalanceReading {
	return BalanceReading{Value: v, Known: true}
}

// UnknownBalance represents a failed read.
func UnknownBalance() BalanceReading {
	return BalanceReading{}
}

// OrZero returns the read value, or zero when the read failed.
func (b BalanceReading) OrZero() decimal.Decimal {
	if !b.Known {
		return decimal.Zero
	}
	return b.Value
}

// SettlementOperation captures one deposit or withdrawal run from validation
// through final reconciliation. It is created at the start of the run,
// mutated only by its tracker and discarded when the run ends.
type SettlementOperation struct {
	Direction SettlementDirection
	Requested decimal.Decimal
	Net       decimal.Decimal // requested minus fees
	Fee       decimal.Decimal

	Source      string
	Destination string

	InitialBalance BalanceReading
	FinalBalance   BalanceReading
	Credited       decimal.Decimal
	PollAttempts   int

	TxHash      string
	BlockNumber uint64

	Outcome SettlementOutcome
	// StaleReads is set when any balance read failed during the run, so the
	// report can flag that zeros may mean "unknown" rather than "empty".
	StaleReads bool
	Note       string

	StartedAt  time.Time
	FinishedAt time.Time
}
