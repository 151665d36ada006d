// REST client for the HyperCore trading ledger.
// Resty only, internal retry for reads, no retry for value-moving actions.
package connectors

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"hlexecutor/src/credentials"
	"hlexecutor/src/model"
)

const (
	infoPath     = "/info"
	exchangePath = "/exchange"

	ledgerTimeout          = 15 * time.Second
	ledgerRetryAttempts    = 3
	ledgerRetryBaseDelay   = 500 * time.Millisecond
	ledgerRetryMaxBackoff  = 4 * time.Second
	ledgerStatusOK         = "ok"
	orderLookupStatusFound = "order"
)

// LedgerResponse is the ledger's uniform action envelope. Status must be
// "ok" for the payload to be meaningful; anything else is an API-level
// failure for the whole request.
type LedgerResponse struct {
	Status   string                 `json:"status"`
	Response *LedgerResponseContent `json:"response,omitempty"`
}

// LedgerResponseContent carries the action payload. Data's shape varies per
// action; the controller normalizes it.
type LedgerResponseContent struct {
	Type   string          `json:"type,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
	TxHash string          `json:"txHash,omitempty"`
}

// wireOrder is the ledger's order description, complete on every mutation:
// the ledger takes full replacements, never deltas.
type wireOrder struct {
	Coin       string          `json:"coin"`
	Side       string          `json:"side"`
	LimitPx    string          `json:"limitPx"`
	Sz         string          `json:"sz"`
	ReduceOnly bool            `json:"reduceOnly"`
	OrderType  json.RawMessage `json:"orderType"`
	Cloid      string          `json:"cloid,omitempty"`
}

type orderStatusEnvelope struct {
	Status string `json:"status"`
	Order  *struct {
		Status string          `json:"status"`
		Order  json.RawMessage `json:"order"`
	} `json:"order,omitempty"`
}

type wireOrderFields struct {
	Coin       string          `json:"coin"`
	Side       string          `json:"side"`
	LimitPx    string          `json:"limitPx"`
	Sz         string          `json:"sz"`
	OrigSz     string          `json:"origSz"`
	Oid        uint64          `json:"oid"`
	Cloid      string          `json:"cloid"`
	OrderType  json.RawMessage `json:"orderType"`
	Tif        string          `json:"tif"`
	ReduceOnly bool            `json:"reduceOnly"`
	Timestamp  int64           `json:"timestamp"`
}

type clearinghouseState struct {
	MarginSummary struct {
		AccountValue string `json:"accountValue"`
	} `json:"marginSummary"`
	Withdrawable   string            `json:"withdrawable"`
	AssetPositions []json.RawMessage `json:"assetPositions"`
}

type wirePosition struct {
	Coin     string `json:"coin"`
	Szi      string `json:"szi"`
	Sz       string `json:"sz"`
	Leverage *struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	} `json:"leverage"`
	EntryPx        string `json:"entryPx"`
	PositionValue  string `json:"positionValue"`
	UnrealizedPnl  string `json:"unrealizedPnl"`
	ReturnOnEquity string `json:"returnOnEquity"`
	LiquidationPx  string `json:"liquidationPx"`
	MarginUsed     string `json:"marginUsed"`
}

// HyperCoreConnector talks to the trading ledger: unauthenticated info
// queries plus signed exchange actions. One connector instance is a single
// logical connection, reused read-only across an operation's phases.
type HyperCoreConnector struct {
	// info reads are idempotent and retry; exchange actions move value and
	// never retry (a replay risks double execution).
	info     *resty.Client
	exchange *resty.Client
	creds    *credentials.Credentials
	// nowMillis feeds action nonces; overridable in tests.
	nowMillis func() int64
}

func isRetryableLedgerResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	// Only idempotent info reads opt into retry (see postInfo).
	code := r.StatusCode()
	return (code >= 500 && code <= 599) || code == 429 || code == 408
}

func NewHyperCoreConnector(baseURL string, creds *credentials.Credentials) *HyperCoreConnector {
	infoClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(ledgerTimeout).
		SetRetryCount(ledgerRetryAttempts - 1).
		SetRetryWaitTime(ledgerRetryBaseDelay).
		SetRetryMaxWaitTime(ledgerRetryMaxBackoff).
		AddRetryCondition(isRetryableLedgerResp)

	exchangeClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(ledgerTimeout)

	return &HyperCoreConnector{
		info:      infoClient,
		exchange:  exchangeClient,
		creds:     creds,
		nowMillis: func() int64 { return time.Now().UnixMilli() },
	}
}

// ---------------------------------------------------------------------
// INFO QUERIES
// ---------------------------------------------------------------------

func (h *HyperCoreConnector) postInfo(ctx context.Context, body map[string]any, out any) error {
	resp, err := h.info.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(out).
		Post(infoPath)
	if err != nil {
		logger.WithError(err).WithField("type", body["type"]).Error("Ledger info request failed")
		return fmt.Errorf("ledger info request: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		logger.WithFields(logger.Fields{
			"status": resp.StatusCode(),
			"body":   resp.String(),
			"type":   body["type"],
		}).Error("Ledger info non-2xx status")
		return fmt.Errorf("%w: info status %d: %s", model.ErrAPI, resp.StatusCode(), resp.String())
	}

	logger.WithFields(logger.Fields{
		"type": body["type"],
		"body": resp.String(),
	}).Debug("Ledger info response")

	return nil
}

// AccountState fetches the ledger's current view of the account: equity,
// withdrawable margin, open positions and resting orders.
func (h *HyperCoreConnector) AccountState(ctx context.Context, account common.Address) (*model.AccountState, error) {
	var raw clearinghouseState
	err := h.postInfo(ctx, map[string]any{
		"type": "clearinghouseState",
		"user": account.Hex(),
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("fetch account state: %w", err)
	}

	state := &model.AccountState{
		AccountValue: parseDecimalOrZero(raw.MarginSummary.AccountValue),
		Withdrawable: parseDecimalOrZero(raw.Withdrawable),
		Positions:    normalizePositions(raw.AssetPositions),
	}

	orders, err := h.OpenOrders(ctx, account)
	if err != nil {
		// Open orders are advisory for status output; equity still renders.
		logger.WithError(err).Warn("Failed to fetch open orders, continuing with empty list")
		orders = nil
	}
	state.OpenOrders = orders

	return state, nil
}

// OpenOrders lists the account's resting orders.
func (h *HyperCoreConnector) OpenOrders(ctx context.Context, account common.Address) ([]model.OrderSnapshot, error) {
	var raw []json.RawMessage
	err := h.postInfo(ctx, map[string]any{
		"type": "openOrders",
		"user": account.Hex(),
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("fetch open orders: %w", err)
	}

	snapshots := make([]model.OrderSnapshot, 0, len(raw))
	for _, item := range raw {
		snap, err := parseOrderSnapshot(item, model.OrderStatusOpen)
		if err != nil {
			logger.WithError(err).Warn("Skipping unparseable open order")
			continue
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}

// OrderByOid fetches one order by its ledger-assigned numeric id. A miss is
// model.ErrNotFound, never reinterpreted.
func (h *HyperCoreConnector) OrderByOid(ctx context.Context, account common.Address, oid uint64) (*model.OrderSnapshot, error) {
	return h.orderStatus(ctx, account, oid)
}

// OrderByCloid fetches one order by its client-assigned id.
func (h *HyperCoreConnector) OrderByCloid(ctx context.Context, account common.Address, cl string) (*model.OrderSnapshot, error) {
	return h.orderStatus(ctx, account, cl)
}

func (h *HyperCoreConnector) orderStatus(ctx context.Context, account common.Address, oid any) (*model.OrderSnapshot, error) {
	var raw orderStatusEnvelope
	err := h.postInfo(ctx, map[string]any{
		"type": "orderStatus",
		"user": account.Hex(),
		"oid":  oid,
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("fetch order status: %w", err)
	}

	if raw.Status != orderLookupStatusFound || raw.Order == nil {
		return nil, fmt.Errorf("%w: no order for id %v", model.ErrNotFound, oid)
	}

	snap, err := parseOrderSnapshot(raw.Order.Order, model.OrderStatus(raw.Order.Status))
	if err != nil {
		return nil, fmt.Errorf("parse order status: %w", err)
	}
	return &snap, nil
}

// ---------------------------------------------------------------------
// SIGNED EXCHANGE ACTIONS
// ---------------------------------------------------------------------

// postExchange signs and submits one action. Never retried: replaying a
// value-moving action risks double execution (the caller re-invokes
// explicitly if needed).
func (h *HyperCoreConnector) postExchange(ctx context.Context, action map[string]any) (*LedgerResponse, error) {
	nonce := h.nowMillis()

	actionJSON, err := json.Marshal(action)
	if err != nil {
		return nil, fmt.Errorf("marshal action: %w", err)
	}

	sig, err := h.signAction(actionJSON, nonce)
	if err != nil {
		return nil, fmt.Errorf("sign action: %w", err)
	}

	body := map[string]any{
		"action":    json.RawMessage(actionJSON),
		"nonce":     nonce,
		"signature": sig,
	}

	logger.WithFields(logger.Fields{
		"type":  action["type"],
		"nonce": nonce,
	}).Info("Submitting ledger action")
	logger.WithField("action", string(actionJSON)).Debug("Ledger action payload")

	var out LedgerResponse
	resp, err := h.exchange.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&out).
		SetError(&out).
		Post(exchangePath)
	if err != nil {
		logger.WithError(err).WithField("type", action["type"]).Error("Ledger action request failed")
		return nil, fmt.Errorf("ledger action request: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		logger.WithFields(logger.Fields{
			"status": resp.StatusCode(),
			"body":   resp.String(),
			"type":   action["type"],
		}).Error("Ledger action non-2xx status")
		return nil, classifyLedgerError(resp.String())
	}

	logger.WithFields(logger.Fields{
		"type":   action["type"],
		"status": out.Status,
	}).Debug("Ledger action response")

	return &out, nil
}

// signAction hashes the canonical action bytes together with the nonce and
// produces a recoverable secp256k1 signature.
func (h *HyperCoreConnector) signAction(actionJSON []byte, nonce int64) (map[string]any, error) {
	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], uint64(nonce))

	digest := crypto.Keccak256(actionJSON, nonceBytes[:])
	sig, err := crypto.Sign(digest, h.creds.PrivateKey)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"r": hexutil.Encode(sig[:32]),
		"s": hexutil.Encode(sig[32:64]),
		"v": int(sig[64]) + 27,
	}, nil
}

// PlaceOrder submits one new resting order.
func (h *HyperCoreConnector) PlaceOrder(ctx context.Context, spec model.OrderSpec) (*LedgerResponse, error) {
	order, err := specToWire(spec)
	if err != nil {
		return nil, err
	}
	return h.postExchange(ctx, map[string]any{
		"type":     "order",
		"orders":   []wireOrder{order},
		"grouping": "na",
	})
}

// ModifyOrder replaces the full description of an existing order. The target
// id is whatever the resolver classified: a numeric oid or a canonical cloid
// string.
func (h *HyperCoreConnector) ModifyOrder(ctx context.Context, target any, spec model.OrderSpec) (*LedgerResponse, error) {
	order, err := specToWire(spec)
	if err != nil {
		return nil, err
	}
	return h.postExchange(ctx, map[string]any{
		"type":  "modify",
		"oid":   target,
		"order": order,
	})
}

// CancelOrder cancels by the ledger-native (coin, oid) pair.
func (h *HyperCoreConnector) CancelOrder(ctx context.Context, coin string, oid uint64) (*LedgerResponse, error) {
	return h.postExchange(ctx, map[string]any{
		"type": "cancel",
		"cancels": []map[string]any{
			{"coin": coin, "oid": oid},
		},
	})
}

// UsdTransfer moves ledger USD between accounts (the deposit rebalance leg).
func (h *HyperCoreConnector) UsdTransfer(ctx context.Context, amount decimal.Decimal, destination common.Address) (*LedgerResponse, error) {
	return h.postExchange(ctx, map[string]any{
		"type":        "usdSend",
		"destination": destination.Hex(),
		"amount":      amount.String(),
		"time":        h.nowMillis(),
	})
}

// Withdraw requests a bridge withdrawal from the ledger to the chain.
func (h *HyperCoreConnector) Withdraw(ctx context.Context, amount decimal.Decimal, destination common.Address) (*LedgerResponse, error) {
	return h.postExchange(ctx, map[string]any{
		"type":        "withdraw3",
		"destination": destination.Hex(),
		"amount":      amount.String(),
		"time":        h.nowMillis(),
	})
}

// ---------------------------------------------------------------------
// WIRE PARSING HELPERS
// ---------------------------------------------------------------------

func specToWire(spec model.OrderSpec) (wireOrder, error) {
	tif := spec.Tif
	if spec.PostOnly {
		tif = model.TifAlo
	}
	limit := map[string]any{"tif": tif}
	orderType, err := json.Marshal(map[string]any{"limit": limit})
	if err != nil {
		return wireOrder{}, fmt.Errorf("marshal order type: %w", err)
	}

	side := model.SideAsk
	if spec.IsBuy {
		side = model.SideBid
	}

	order := wireOrder{
		Coin:       spec.Coin,
		Side:       side,
		LimitPx:    spec.Price.String(),
		Sz:         spec.Size.String(),
		ReduceOnly: spec.ReduceOnly,
		OrderType:  orderType,
	}
	if spec.Cloid != nil {
		order.Cloid = spec.Cloid.String()
	}
	return order, nil
}

func parseOrderSnapshot(raw json.RawMessage, status model.OrderStatus) (model.OrderSnapshot, error) {
	var w wireOrderFields
	if err := json.Unmarshal(raw, &w); err != nil {
		return model.OrderSnapshot{}, fmt.Errorf("unmarshal order: %w", err)
	}

	size := w.Sz
	if size == "" {
		size = w.OrigSz
	}

	tif := w.Tif
	var orderTypeName string
	if len(w.OrderType) > 0 {
		// orderType arrives either as a plain string or {"limit":{"tif":...}}.
		var name string
		if err := json.Unmarshal(w.OrderType, &name); err == nil {
			orderTypeName = name
		} else {
			var nested map[string]struct {
				Tif string `json:"tif"`
			}
			if err := json.Unmarshal(w.OrderType, &nested); err == nil {
				for k, v := range nested {
					orderTypeName = k
					if tif == "" {
						tif = v.Tif
					}
				}
			}
		}
	}

	snap := model.OrderSnapshot{
		Coin:       w.Coin,
		Side:       w.Side,
		Size:       parseDecimalOrZero(size),
		LimitPrice: parseDecimalOrZero(w.LimitPx),
		OrderType:  orderTypeName,
		Tif:        tif,
		ReduceOnly: w.ReduceOnly,
		Cloid:      w.Cloid,
		Oid:        w.Oid,
		Status:     status,
	}
	if snap.Status == "" {
		snap.Status = model.OrderStatusUnknown
	}
	if w.Timestamp > 0 {
		snap.CreatedAt = time.UnixMilli(w.Timestamp)
	}
	return snap, nil
}

// normalizePositions flattens both wrapper shapes the ledger emits:
// {"position":{...},"type":"oneWay"} and bare position objects.
func normalizePositions(items []json.RawMessage) []model.Position {
	positions := make([]model.Position, 0, len(items))
	for _, item := range items {
		var wrapper struct {
			Position json.RawMessage `json:"position"`
		}
		raw := item
		if err := json.Unmarshal(item, &wrapper); err == nil && len(wrapper.Position) > 0 {
			raw = wrapper.Position
		}

		var w wirePosition
		if err := json.Unmarshal(raw, &w); err != nil {
			logger.WithError(err).Warn("Skipping unparseable position")
			continue
		}
		if w.Coin == "" {
			continue
		}

		size := w.Szi
		if size == "" {
			size = w.Sz
		}

		pos := model.Position{
			Coin:             w.Coin,
			Size:             parseDecimalOrZero(size),
			EntryPrice:       w.EntryPx,
			PositionValue:    w.PositionValue,
			UnrealizedPnl:    parseDecimalOrZero(w.UnrealizedPnl),
			ReturnOnEquity:   parseDecimalOrZero(w.ReturnOnEquity),
			LiquidationPrice: w.LiquidationPx,
			MarginUsed:       w.MarginUsed,
		}
		if w.Leverage != nil {
			pos.Leverage = string(w.Leverage.Value) + "x"
		}
		positions = append(positions, pos)
	}
	return positions
}

func parseDecimalOrZero(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
