package model

import "time"

// SettlementRecord is the persisted audit trail of a finished settlement
// run. Amounts are stored as strings to keep the decimal representation
// exact across database engines.
type SettlementRecord struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Direction   string `gorm:"size:10;index;not null" json:"direction"`
	Requested   string `gorm:"size:64;not null" json:"requested"`
	Net         string `gorm:"size:64" json:"net"`
	Fee         string `gorm:"size:64" json:"fee"`
	Source      string `gorm:"size:64;index" json:"source"`
	Destination string `gorm:"size:64;index" json:"destination"`
	TxHash      string `gorm:"size:80" json:"tx_hash,omitempty"`
	Credited    string `gorm:"size:64" json:"credited"`
	Outcome     string `gorm:"size:20;index;not null" json:"outcome"`
	StaleReads  bool   `json:"stale_reads"`
	Note        string `gorm:"size:512" json:"note,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	CreatedAt  time.Time `json:"created_at"`
}

func (SettlementRecord) TableName() string {
	return "settlement_records"
}

// Order action verbs recorded in the journal.
const (
	ActionCreate = "create"
	ActionModify = "modify"
	ActionCancel = "cancel"
)

// OrderActionRecord is the persisted audit trail of one order mutation
// issued against the trading ledger.
type OrderActionRecord struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Action  string `gorm:"size:10;index;not null" json:"action"`
	Coin    string `gorm:"size:20;index" json:"coin"`
	Oid     uint64 `gorm:"index" json:"oid,omitempty"`
	Cloid   string `gorm:"size:40" json:"cloid,omitempty"`
	Side    string `gorm:"size:4" json:"side,omitempty"`
	Size    string `gorm:"size:64" json:"size,omitempty"`
	Price   string `gorm:"size:64" json:"price,omitempty"`
	Tif     string `gorm:"size:8" json:"tif,omitempty"`
	Status  string `gorm:"size:40" json:"status"`
	Error   string `gorm:"size:512" json:"error,omitempty"`
	Account string `gorm:"size:64;index" json:"account"`

	CreatedAt time.Time `json:"created_at"`
}

func (OrderActionRecord) TableName() string {
	return "order_action_records"
}
