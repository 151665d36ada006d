package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"hlexecutor/src/database"
	"hlexecutor/src/model"
)

// JournalRepository persists the audit trail of settlement runs and order
// mutations. All writes are best-effort from the caller's point of view: the
// operation being journaled has already happened on the ledgers.
type JournalRepository struct {
	db *gorm.DB
}

// NewJournalRepository creates a repository over the shared journal handle.
// The handle is nil when the journal is disabled; callers check Enabled()
// before writing.
func NewJournalRepository() *JournalRepository {
	return &JournalRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *JournalRepository) WithDB(db *gorm.DB) *JournalRepository {
	return &JournalRepository{db: db}
}

// Enabled reports whether a journal connection is available.
func (r *JournalRepository) Enabled() bool {
	return r != nil && r.db != nil
}

// CreateSettlement inserts one finished settlement run.
func (r *JournalRepository) CreateSettlement(
	ctx context.Context,
	record *model.SettlementRecord,
) error {

	logger.WithFields(logger.Fields{
		"repo":      "JournalRepository",
		"op":        "CreateSettlement",
		"direction": record.Direction,
		"outcome":   record.Outcome,
	}).Debug("Persisting settlement record")

	err := r.db.WithContext(ctx).Create(record).Error
	if err != nil {
		logger.WithFields(logger.Fields{
			"repo": "JournalRepository",
			"op":   "CreateSettlement",
		}).WithError(err).Error("Failed to persist settlement record")

		return err
	}

	logger.WithFields(logger.Fields{
		"repo":      "JournalRepository",
		"op":        "CreateSettlement",
		"record_id": record.ID,
	}).Info("Settlement record persisted")

	return nil
}

// CreateOrderAction inserts one order mutation record.
func (r *JournalRepository) CreateOrderAction(
	ctx context.Context,
	record *model.OrderActionRecord,
) error {

	logger.WithFields(logger.Fields{
		"repo":   "JournalRepository",
		"op":     "CreateOrderAction",
		"action": record.Action,
		"coin":   record.Coin,
	}).Debug("Persisting order action record")

	err := r.db.WithContext(ctx).Create(record).Error
	if err != nil {
		logger.WithFields(logger.Fields{
			"repo": "JournalRepository",
			"op":   "CreateOrderAction",
		}).WithError(err).Error("Failed to persist order action record")

		return err
	}

	return nil
}

// RecentSettlements returns the latest settlement runs, newest first.
func (r *JournalRepository) RecentSettlements(
	ctx context.Context,
	limit int,
) ([]model.SettlementRecord, error) {

	if limit <= 0 {
		limit = 20
	}

	logger.WithFields(logger.Fields{
		"repo":  "JournalRepository",
		"op":    "RecentSettlements",
		"limit": limit,
	}).Debug("Fetching recent settlement records")

	var records []model.SettlementRecord

	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&records).Error

	if err != nil {
		logger.WithFields(logger.Fields{
			"repo":  "JournalRepository",
			"op":    "RecentSettlements",
			"limit": limit,
		}).WithError(err).Error("Failed to fetch settlement records")

		return nil, err
	}

	return records, nil
}
