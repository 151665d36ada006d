package settlement

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"hlexecutor/src/model"
)

// Deposit bridges amount USDC from the signer's chain address to the
// operator's trading-ledger account: validate, submit one ERC-20 transfer to
// the bridge, poll the ledger until the credit lands, and rebalance to the
// target account when the signer differs from it. Validation failures abort
// before any network submission.
func (t *Tracker) Deposit(ctx context.Context, amount decimal.Decimal) (*model.SettlementOperation, error) {
	if amount.LessThan(depositMinimum) {
		return nil, fmt.Errorf("%w: deposit amount %s below minimum %s",
			model.ErrInvalidParameter, amount, depositMinimum)
	}

	op := &model.SettlementOperation{
		Direction:   model.DirectionDeposit,
		Requested:   amount,
		Net:         amount,
		Source:      t.creds.Signer.Hex(),
		Destination: t.creds.Account.Hex(),
		StartedAt:   t.now(),
	}

	// Validating: gas and token balances on the chain side.
	if gas, err := t.chain.NativeBalance(ctx, t.creds.Signer); err != nil {
		logger.WithError(err).Warn("Native balance read failed, skipping gas check")
		op.StaleReads = true
	} else if gas.LessThan(lowGasThreshold) {
		logger.WithField("balance", gas.String()).Warn("Native balance very low, transaction may fail")
	}

	tokenBal, err := t.chain.TokenBalance(ctx, t.usdcToken, t.creds.Signer)
	if err != nil {
		return nil, fmt.Errorf("read token balance: %w", err)
	}
	if tokenBal.LessThan(amount) {
		return nil, fmt.Errorf("%w: token balance %s below requested %s",
			model.ErrInsufficientFunds, tokenBal, amount)
	}

	op.InitialBalance = t.withdrawableBalance(ctx, t.creds.Signer)
	if !op.InitialBalance.Known {
		op.StaleReads = true
	}

	// Submitting: exactly one bridge transfer, never retried.
	receipt, err := t.chain.TransferToken(ctx, t.usdcToken, t.bridge, amount)
	if err != nil {
		op.Outcome = model.OutcomeError
		op.FinishedAt = t.now()
		return op, err
	}
	op.TxHash = receipt.TxHash
	op.BlockNumber = receipt.BlockNumber

	// Confirming: poll the signer's ledger balance for the credit.
	initial := op.InitialBalance.OrZero()
	wantCredited := amount.Mul(creditDetectRatio)
	reading, attempts, err := t.poller.Run(ctx,
		func(ctx context.Context) model.BalanceReading {
			return t.withdrawableBalance(ctx, t.creds.Signer)
		},
		func(r model.BalanceReading) bool {
			if !r.Known {
				return false
			}
			return r.Value.Sub(initial).GreaterThanOrEqual(wantCredited)
		},
	)
	op.PollAttempts = attempts
	op.FinalBalance = reading
	if reading.Known {
		op.Credited = reading.Value.Sub(initial)
	} else {
		op.StaleReads = true
	}
	if err != nil {
		op.Outcome = model.OutcomeError
		op.Note = "bridge credit not observed within the polling window"
		op.FinishedAt = t.now()
		return op, err
	}

	logger.WithFields(logger.Fields{
		"credited": op.Credited.String(),
		"attempts": attempts,
	}).Info("Bridge credit confirmed")

	// Rebalancing: move the credit from signer to target when they differ.
	if t.creds.Signer != t.creds.Account {
		t.rebalance(ctx, op, amount)
	}

	if op.Credited.GreaterThanOrEqual(amount.Mul(depositVerdictRatio)) {
		op.Outcome = model.OutcomeSuccess
	} else {
		op.Outcome = model.OutcomePartial
		op.Note = fmt.Sprintf("credited %s of requested %s", op.Credited, amount)
	}
	op.FinishedAt = t.now()
	return op, nil
}

// rebalance transfers the deposit from the signer's ledger account to the
// operator's target account and reconciles the transfer fee. The funds have
// already moved, so every failure here is advisory rather than fatal.
func (t *Tracker) rebalance(ctx context.Context, op *model.SettlementOperation, amount decimal.Decimal) {
	before := t.withdrawableBalance(ctx, t.creds.Account)
	if !before.Known {
		op.StaleReads = true
	}

	if _, err := t.ledger.UsdTransfer(ctx, amount, t.creds.Account); err != nil {
		logger.WithError(err).Warn("Internal transfer to target account failed, funds remain on signer account")
		op.Note = "rebalance transfer failed, funds remain on signer account"
		return
	}

	if err := t.sleep(ctx, settleDelay); err != nil {
		op.StaleReads = true
		return
	}

	after := t.withdrawableBalance(ctx, t.creds.Account)
	if !after.Known {
		op.StaleReads = true
		return
	}

	transferred := after.Value.Sub(before.OrZero())
	op.Fee = amount.Sub(transferred)
	if transferred.GreaterThan(amount.Mul(depositVerdictRatio)) {
		logger.WithFields(logger.Fields{
			"transferred": transferred.String(),
			"fee":         op.Fee.String(),
		}).Info("Rebalance transfer settled")
		return
	}
	logger.WithFields(logger.Fields{
		"transferred": transferred.String(),
		"requested":   amount.String(),
	}).Warn("Rebalance transfer outside tolerance")
	op.Note = fmt.Sprintf("rebalance moved %s of %s", transferred, amount)
}
