// Best-effort audit journaling. Every write happens after the ledgers have
// already moved, so a journal failure is logged and swallowed, never allowed
// to fail the operation it describes.
package journal

import (
	"context"

	logger "github.com/sirupsen/logrus"

	"hlexecutor/src/model"
	"hlexecutor/src/repository"
)

// Recorder converts finished operations into journal records for one
// account. A Recorder over a disabled repository is a no-op.
type Recorder struct {
	repo    *repository.JournalRepository
	account string
}

func NewRecorder(repo *repository.JournalRepository, account string) *Recorder {
	return &Recorder{repo: repo, account: account}
}

// Settlement journals one finished deposit or withdrawal run.
func (r *Recorder) Settlement(ctx context.Context, op *model.SettlementOperation) {
	if !r.repo.Enabled() || op == nil {
		return
	}
	if err := r.repo.CreateSettlement(ctx, toSettlementRecord(op)); err != nil {
		logger.WithError(err).Warn("Journal write failed for settlement run")
	}
}

// OrderPlacement journals every outcome of a create submission.
func (r *Recorder) OrderPlacement(ctx context.Context, spec model.OrderSpec, result *model.PlaceOrderResult) {
	r.recordOutcomes(ctx, model.ActionCreate, spec.Coin, orderSpecFields(spec), result)
}

// OrderModification journals every outcome of a modify submission. Field
// detail comes from the post-mutation snapshot when the echo query succeeded.
func (r *Recorder) OrderModification(ctx context.Context, result *model.PlaceOrderResult) {
	var coin string
	var fields specFields
	if result != nil && result.Snapshot != nil {
		snap := result.Snapshot
		coin = snap.Coin
		fields = specFields{
			side:  snap.Side,
			size:  snap.Size.String(),
			price: snap.LimitPrice.String(),
			tif:   snap.Tif,
		}
	}
	r.recordOutcomes(ctx, model.ActionModify, coin, fields, result)
}

// OrderCancellation journals one cancel result.
func (r *Recorder) OrderCancellation(ctx context.Context, result *model.CancelOrderResult) {
	if !r.repo.Enabled() || result == nil {
		return
	}
	record := &model.OrderActionRecord{
		Action:  model.ActionCancel,
		Coin:    result.Coin,
		Oid:     result.Oid,
		Status:  result.Status,
		Error:   result.Err,
		Account: r.account,
	}
	if err := r.repo.CreateOrderAction(ctx, record); err != nil {
		logger.WithError(err).Warn("Journal write failed for order cancellation")
	}
}

type specFields struct {
	side  string
	size  string
	price string
	tif   string
}

func orderSpecFields(spec model.OrderSpec) specFields {
	side := model.SideAsk
	if spec.IsBuy {
		side = model.SideBid
	}
	return specFields{
		side:  side,
		size:  spec.Size.String(),
		price: spec.Price.String(),
		tif:   spec.Tif,
	}
}

func (r *Recorder) recordOutcomes(ctx context.Context, action, coin string, fields specFields, result *model.PlaceOrderResult) {
	if !r.repo.Enabled() || result == nil {
		return
	}
	for _, outcome := range result.Outcomes {
		record := &model.OrderActionRecord{
			Action:  action,
			Coin:    coin,
			Oid:     outcome.Oid,
			Cloid:   outcome.Cloid,
			Side:    fields.side,
			Size:    fields.size,
			Price:   fields.price,
			Tif:     fields.tif,
			Status:  outcome.Status,
			Error:   outcome.Err,
			Account: r.account,
		}
		if err := r.repo.CreateOrderAction(ctx, record); err != nil {
			logger.WithError(err).Warn("Journal write failed for order action")
		}
	}
}

func toSettlementRecord(op *model.SettlementOperation) *model.SettlementRecord {
	return &model.SettlementRecord{
		Direction:   string(op.Direction),
		Requested:   op.Requested.String(),
		Net:         op.Net.String(),
		Fee:         op.Fee.String(),
		Source:      op.Source,
		Destination: op.Destination,
		TxHash:      op.TxHash,
		Credited:    op.Credited.String(),
		Outcome:     string(op.Outcome),
		StaleReads:  op.StaleReads,
		Note:        op.Note,
		StartedAt:   op.StartedAt,
		FinishedAt:  op.FinishedAt,
	}
}
