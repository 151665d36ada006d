package controller

import (
	"encoding/json"
	"fmt"

	"hlexecutor/src/connectors"
	"hlexecutor/src/model"
)

// statusItem covers every per-order shape the ledger emits inside a statuses
// list: {"resting":{...}}, {"filled":{...}}, {"error":"..."} or a flat
// {"oid":..,"cloid":..} object.
type statusItem struct {
	Resting *statusIDs `json:"resting"`
	Filled  *statusIDs `json:"filled"`
	Error   string     `json:"error"`
	Oid     uint64     `json:"oid"`
	Cloid   string     `json:"cloid"`
	Status  string     `json:"status"`
}

type statusIDs struct {
	Oid   uint64 `json:"oid"`
	Cloid string `json:"cloid"`
}

// ParseOrderResponse flattens a ledger mutation envelope into per-order
// outcomes, preserving the ledger's item order. A non-ok envelope is a single
// failure for the whole action regardless of payload.
func ParseOrderResponse(resp *connectors.LedgerResponse) []model.OrderOutcome {
	if resp == nil {
		return []model.OrderOutcome{{Err: "empty ledger response"}}
	}
	if resp.Status != "ok" {
		return []model.OrderOutcome{{Err: fmt.Sprintf("ledger rejected action: status %q", resp.Status)}}
	}
	if resp.Response == nil || len(resp.Response.Data) == 0 {
		// An ok envelope with no payload still means the action was accepted.
		return []model.OrderOutcome{{Status: "ok"}}
	}

	var wrapper struct {
		Statuses []json.RawMessage `json:"statuses"`
	}
	items := []json.RawMessage{resp.Response.Data}
	if err := json.Unmarshal(resp.Response.Data, &wrapper); err == nil && wrapper.Statuses != nil {
		items = wrapper.Statuses
	}

	outcomes := make([]model.OrderOutcome, 0, len(items))
	for _, item := range items {
		outcomes = append(outcomes, parseStatusItem(item))
	}
	return outcomes
}

func parseStatusItem(raw json.RawMessage) model.OrderOutcome {
	// Cancel acknowledgements arrive as bare strings ("success").
	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return model.OrderOutcome{Status: plain}
	}

	var item statusItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return model.OrderOutcome{Err: fmt.Sprintf("unparseable status item: %s", raw)}
	}

	switch {
	case item.Error != "":
		return model.OrderOutcome{Err: item.Error}
	case item.Resting != nil:
		return model.OrderOutcome{Oid: item.Resting.Oid, Cloid: item.Resting.Cloid, Status: "resting"}
	case item.Filled != nil:
		return model.OrderOutcome{Oid: item.Filled.Oid, Cloid: item.Filled.Cloid, Status: "filled"}
	default:
		status := item.Status
		if status == "" {
			status = "ok"
		}
		return model.OrderOutcome{Oid: item.Oid, Cloid: item.Cloid, Status: status}
	}
}
