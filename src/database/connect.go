package database

import (
	"fmt"
	"strings"

	logger "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"hlexecutor/src/model"
)

// MainDB holds the journal connection once InitJournal succeeds; it stays nil
// when the journal is disabled or unavailable, and repositories treat a nil
// handle as "journal off".
var MainDB *gorm.DB

// InitJournal opens the audit journal and migrates its schema. The journal is
// advisory: callers log the returned error and continue without persistence.
func InitJournal(cfg Config) error {
	if !cfg.EnableJournal {
		logger.Info("Journal disabled, operations will not be persisted")
		return nil
	}

	db, err := open(cfg)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}

	if err := db.AutoMigrate(
		&model.SettlementRecord{},
		&model.OrderActionRecord{},
	); err != nil {
		return fmt.Errorf("migrate journal schema: %w", err)
	}

	MainDB = db
	logger.WithField("dsn", cfg.JournalDSN).Info("Journal initialized")
	return nil
}

func open(cfg Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.LogLevel(cfg.GormLogLevel)),
	}

	if isPostgresDSN(cfg.JournalDSN) {
		return gorm.Open(postgres.Open(cfg.JournalDSN), gormCfg)
	}
	return gorm.Open(sqlite.Open(cfg.JournalDSN), gormCfg)
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.HasPrefix(dsn, "host=")
}
