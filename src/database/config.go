package database

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	EnableJournal bool `envconfig:"ENABLE_JOURNAL" default:"true"`
	// JournalDSN is either a sqlite file path (default) or a postgres DSN
	// ("postgres://..." or "host=..." form).
	JournalDSN   string `envconfig:"JOURNAL_DSN" default:"hlexecutor-journal.db"`
	GormLogLevel int    `envconfig:"GORM_LOG_LEVEL" default:"1"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
