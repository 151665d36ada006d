package controller

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"hlexecutor/src/cloid"
	"hlexecutor/src/connectors"
	"hlexecutor/src/model"
)

// LedgerGateway is the full ledger surface the order controller drives.
type LedgerGateway interface {
	OrderQuerier
	PlaceOrder(ctx context.Context, spec model.OrderSpec) (*connectors.LedgerResponse, error)
	ModifyOrder(ctx context.Context, target any, spec model.OrderSpec) (*connectors.LedgerResponse, error)
	CancelOrder(ctx context.Context, coin string, oid uint64) (*connectors.LedgerResponse, error)
}

// OrderController validates, resolves and submits order mutations against one
// ledger account.
type OrderController struct {
	ledger  LedgerGateway
	account common.Address
}

func NewOrderController(ledger LedgerGateway, account common.Address) *OrderController {
	return &OrderController{ledger: ledger, account: account}
}

// PlaceOrder validates the spec locally, submits it, and best-effort echoes
// the ledger's post-create view of the order.
func (c *OrderController) PlaceOrder(ctx context.Context, spec model.OrderSpec) (*model.PlaceOrderResult, error) {
	if err := validateOrderEconomics(spec.Price, spec.Size); err != nil {
		return nil, err
	}

	fields := logger.Fields{
		"coin":  spec.Coin,
		"buy":   spec.IsBuy,
		"size":  spec.Size.String(),
		"price": spec.Price.String(),
		"tif":   spec.Tif,
	}
	if spec.Cloid != nil {
		fields["cloid"] = spec.Cloid.String()
	}
	logger.WithFields(fields).Info("Placing order")

	resp, err := c.ledger.PlaceOrder(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}

	result := &model.PlaceOrderResult{Outcomes: ParseOrderResponse(resp)}
	c.attachSnapshot(ctx, result)
	return result, nil
}

// ModifyOrder resolves the target order, merges the partial request onto the
// fetched snapshot, and submits the full replacement. An empty request is
// rejected before any ledger traffic.
func (c *OrderController) ModifyOrder(ctx context.Context, req model.OrderMutationRequest) (*model.PlaceOrderResult, error) {
	if req.Empty() {
		return nil, fmt.Errorf("%w: modify request carries no change", model.ErrNoChangeSpecified)
	}

	snap, ident, err := ResolveOrder(ctx, c.ledger, c.account, req.Identifier)
	if err != nil {
		return nil, err
	}
	if snap.Status != model.OrderStatusOpen {
		return nil, fmt.Errorf("%w: order %s is %s", model.ErrNotModifiable, req.Identifier, snap.Status)
	}

	spec := mergeMutation(*snap, req)
	if err := validateOrderEconomics(spec.Price, spec.Size); err != nil {
		return nil, err
	}

	var target any
	if ident.Kind == model.IdentifierNumeric {
		target = ident.Oid
	} else {
		target = ident.Cloid.String()
	}

	logger.WithFields(logger.Fields{
		"identifier": req.Identifier,
		"coin":       spec.Coin,
		"size":       spec.Size.String(),
		"price":      spec.Price.String(),
	}).Info("Modifying order")

	resp, err := c.ledger.ModifyOrder(ctx, target, spec)
	if err != nil {
		return nil, fmt.Errorf("modify order: %w", err)
	}

	result := &model.PlaceOrderResult{Outcomes: ParseOrderResponse(resp)}
	c.attachSnapshot(ctx, result)
	return result, nil
}

// CancelOrder resolves the target and cancels it by the ledger-native
// (coin, oid) pair.
func (c *OrderController) CancelOrder(ctx context.Context, identifier string) (*model.CancelOrderResult, error) {
	snap, _, err := ResolveOrder(ctx, c.ledger, c.account, identifier)
	if err != nil {
		return nil, err
	}

	logger.WithFields(logger.Fields{
		"identifier": identifier,
		"coin":       snap.Coin,
		"oid":        snap.Oid,
	}).Info("Cancelling order")

	resp, err := c.ledger.CancelOrder(ctx, snap.Coin, snap.Oid)
	if err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}

	result := &model.CancelOrderResult{Coin: snap.Coin, Oid: snap.Oid}
	outcomes := ParseOrderResponse(resp)
	if len(outcomes) > 0 {
		result.Status = outcomes[0].Status
		result.Err = outcomes[0].Err
	}
	return result, nil
}

func validateOrderEconomics(price, size decimal.Decimal) error {
	if !price.IsPositive() {
		return fmt.Errorf("%w: price must be positive, got %s", model.ErrInvalidParameter, price)
	}
	if !size.IsPositive() {
		return fmt.Errorf("%w: size must be positive, got %s", model.ErrInvalidParameter, size)
	}
	return nil
}

// mergeMutation builds the full replacement order: every field the request
// leaves nil keeps the resting order's current value. The resting cloid
// carries over unless overridden; one the ledger reports in a shape we cannot
// parse is dropped from the replacement rather than sent back verbatim.
func mergeMutation(snap model.OrderSnapshot, req model.OrderMutationRequest) model.OrderSpec {
	spec := model.OrderSpec{
		Coin:       snap.Coin,
		IsBuy:      snap.IsBuy(),
		Size:       snap.Size,
		Price:      snap.LimitPrice,
		Tif:        snap.Tif,
		ReduceOnly: snap.ReduceOnly,
	}

	if req.Coin != nil {
		spec.Coin = *req.Coin
	}
	if req.Size != nil {
		spec.Size = *req.Size
	}
	if req.Price != nil {
		spec.Price = *req.Price
	}
	if req.Tif != nil {
		spec.Tif = *req.Tif
	}
	if req.ReduceOnly != nil {
		spec.ReduceOnly = *req.ReduceOnly
	}

	switch {
	case req.Cloid != nil:
		spec.Cloid = req.Cloid
	case snap.Cloid != "":
		if cl, err := cloid.Parse(snap.Cloid); err == nil {
			spec.Cloid = &cl
		} else {
			logger.WithField("cloid", snap.Cloid).Warn("Dropping unparseable resting cloid from replacement order")
		}
	}
	return spec
}

// attachSnapshot fetches the ledger's view of a just-placed order when the
// first outcome carries an oid. Failures only log: the mutation already
// succeeded.
func (c *OrderController) attachSnapshot(ctx context.Context, result *model.PlaceOrderResult) {
	if len(result.Outcomes) == 0 || !result.Outcomes[0].OK() || result.Outcomes[0].Oid == 0 {
		return
	}
	snap, err := c.ledger.OrderByOid(ctx, c.account, result.Outcomes[0].Oid)
	if err != nil {
		logger.WithError(err).WithField("oid", result.Outcomes[0].Oid).Warn("Post-mutation snapshot fetch failed")
		return
	}
	result.Snapshot = snap
}
