package model

import (
	"time"

	"github.com/shopspring/decimal"

	"hlexecutor/src/cloid"
)

// Ledger-native side encoding: "B" for bids, "A" for asks.
const (
	SideBid = "B"
	SideAsk = "A"
)

// Time-in-force policies accepted by the trading ledger.
const (
	TifGtc = "Gtc" // good till cancelled
	TifIoc = "Ioc" // immediate or cancel
	TifAlo = "Alo" // add liquidity only (post only)
)

// OrderStatus is the ledger's view of a resting order.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "canceled"
	OrderStatusUnknown   OrderStatus = "unknown"
)

// IdentifierKind tags how the operator referenced an order.
type IdentifierKind int

const (
	IdentifierNumeric IdentifierKind = iota
	IdentifierClient
)

// OrderIdentifier is the classified form of a textual order reference. The
// classification happens exactly once at the boundary; everything downstream
// switches on Kind instead of re-inspecting the raw string.
type OrderIdentifier struct {
	Kind  IdentifierKind
	Oid   uint64
	Cloid cloid.Cloid
}

// OrderSnapshot is the ledger-side view of a resting order. It is read-only
// to this process; the trading ledger owns every field.
type OrderSnapshot struct {
	Coin       string
	Side       string // SideBid or SideAsk
	Size       decimal.Decimal
	LimitPrice decimal.Decimal
	OrderType  string
	Tif        string
	ReduceOnly bool
	Cloid      string // canonical form, empty if the order has none
	Oid        uint64
	Status     OrderStatus
	CreatedAt  time.Time
}

// IsBuy reports whether the snapshot rests on the bid side.
func (s OrderSnapshot) IsBuy() bool {
	return s.Side == SideBid
}

// OrderSpec describes a new order to place.
type OrderSpec struct {
	Coin       string
	IsBuy      bool
	Size       decimal.Decimal
	Price      decimal.Decimal
	Tif        string
	PostOnly   bool
	ReduceOnly bool
	Cloid      *cloid.Cloid
}

// OrderMutationRequest is a partial update against an existing order. Nil
// fields fall back to the fetched snapshot's current values when the full
// replacement order is built.
type OrderMutationRequest struct {
	Identifier string // raw oid-or-cloid text supplied by the operator
	Coin       *string
	Size       *decimal.Decimal
	Price      *decimal.Decimal
	Tif        *string
	ReduceOnly *bool
	Cloid      *cloid.Cloid
}

// Empty reports whether the request carries no override at all.
func (r OrderMutationRequest) Empty() bool {
	return r.Coin == nil && r.Size == nil && r.Price == nil &&
		r.Tif == nil && r.ReduceOnly == nil && r.Cloid == nil
}

// OrderOutcome is one normalized per-item result from a ledger mutation
// response, either a success carrying ids or a failure carrying a reason.
type OrderOutcome struct {
	Oid    uint64
	Cloid  string
	Status string // ledger wording: "resting", "filled", "success", ...
	Err    string
}

// OK reports whether the item succeeded.
func (o OrderOutcome) OK() bool {
	return o.Err == ""
}

// PlaceOrderResult is the structured result the CLI layer renders after a
// create or modify.
type PlaceOrderResult struct {
	Outcomes []OrderOutcome
	// Snapshot echoes the ledger's view of the order after placement when
	// the follow-up query succeeds; nil otherwise.
	Snapshot *OrderSnapshot
}

// CancelOrderResult is the structured result of a cancellation.
type CancelOrderResult struct {
	Coin   string
	Oid    uint64
	Status string
	Err    string
}

// OK reports whether the cancellation was accepted.
func (c CancelOrderResult) OK() bool {
	return c.Err == ""
}

// Position is the ledger's view of an open perp position, kept mostly as
// reported for display.
type Position struct {
	Coin             string
	Size             decimal.Decimal
	Leverage         string
	EntryPrice       string
	PositionValue    string
	UnrealizedPnl    decimal.Decimal
	ReturnOnEquity   decimal.Decimal
	LiquidationPrice string
	MarginUsed       string
}

// AccountState aggregates the trading ledger's asynchronous view of the
// account.
type AccountState struct {
	AccountValue decimal.Decimal
	Withdrawable decimal.Decimal
	Positions    []Position
	OpenOrders   []OrderSnapshot
}
