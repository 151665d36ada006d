package settlement

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"hlexecutor/src/model"
)

// Withdraw moves amount USD from the trading ledger back to a chain address.
// The ledger deducts the full amount and keeps a fixed fee, so the minimum
// sits above the fee and the destination receives amount minus fee. The
// final classification compares the observed ledger debit to the request.
func (t *Tracker) Withdraw(ctx context.Context, amount decimal.Decimal, destination common.Address) (*model.SettlementOperation, error) {
	if amount.LessThan(withdrawMinimum) {
		return nil, fmt.Errorf("%w: withdrawal amount %s below minimum %s (fixed fee %s)",
			model.ErrInsufficientFunds, amount, withdrawMinimum, withdrawFee)
	}

	op := &model.SettlementOperation{
		Direction:   model.DirectionWithdraw,
		Requested:   amount,
		Net:         amount.Sub(withdrawFee),
		Fee:         withdrawFee,
		Source:      t.creds.Account.Hex(),
		Destination: destination.Hex(),
		StartedAt:   t.now(),
	}

	// Validating: the ledger must cover the full requested amount. A failed
	// read counts as zero here: rejecting moves no funds, so erring on the
	// refusal side is safe.
	op.InitialBalance = t.withdrawableBalance(ctx, t.creds.Account)
	if !op.InitialBalance.Known {
		op.StaleReads = true
	}
	if op.InitialBalance.OrZero().LessThan(amount) {
		if !op.InitialBalance.Known {
			return nil, fmt.Errorf("%w: withdrawable balance could not be read, refusing to submit",
				model.ErrInsufficientFunds)
		}
		return nil, fmt.Errorf("%w: withdrawable %s below requested %s",
			model.ErrInsufficientFunds, op.InitialBalance.Value, amount)
	}

	logger.WithFields(logger.Fields{
		"amount":      amount.String(),
		"net":         op.Net.String(),
		"destination": destination.Hex(),
	}).Info("Submitting withdrawal")

	if _, err := t.ledger.Withdraw(ctx, amount, destination); err != nil {
		op.Outcome = model.OutcomeError
		op.FinishedAt = t.now()
		return op, err
	}

	if err := t.sleep(ctx, settleDelay); err != nil {
		op.StaleReads = true
	}

	op.FinalBalance = t.withdrawableBalance(ctx, t.creds.Account)
	if !op.FinalBalance.Known {
		op.StaleReads = true
	}

	netChange := op.InitialBalance.OrZero().Sub(op.FinalBalance.OrZero())
	switch {
	case netChange.Sub(amount).Abs().LessThan(reportToleranceAbs):
		op.Outcome = model.OutcomeSuccess
	case netChange.IsPositive():
		op.Outcome = model.OutcomeProcessing
		op.Note = fmt.Sprintf("ledger debited %s of %s so far", netChange, amount)
	default:
		op.Outcome = model.OutcomeError
		op.Note = fmt.Sprintf("no ledger debit observed for requested %s", amount)
	}

	logger.WithFields(logger.Fields{
		"netChange": netChange.String(),
		"outcome":   op.Outcome,
		"stale":     op.StaleReads,
	}).Info("Withdrawal reconciled")

	op.FinishedAt = t.now()
	return op, nil
}
