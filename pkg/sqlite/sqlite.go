package sqlite

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type Config struct {
	DataDir string `yaml:"SQLITE_DATA_DIR" env:"SQLITE_DATA_DIR" env-default:"data"`
	// BusyTimeoutMs is how long sqlite waits on a locked database before
	// reporting SQLITE_BUSY.
	BusyTimeoutMs int `yaml:"SQLITE_BUSY_TIMEOUT_MS" env:"SQLITE_BUSY_TIMEOUT_MS" env-default:"5000"`
}

// New opens the ledger database in DataDir. An empty DataDir opens a private
// in-memory database bound to a single connection, useful for testing.
func New(config Config) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
		TranslateError:         true,
	}
	if config.DataDir == "" {
		db, err := gorm.Open(sqlite.Open(":memory:"), gormConfig)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// every connection to :memory: is a separate database
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	}
	if _, err := os.Stat(config.DataDir); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read data dir: %w", err)
		}
		if err := os.MkdirAll(config.DataDir, fs.ModePerm); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
	}
	path := filepath.Join(config.DataDir, "ledger.sqlite")
	opts := fmt.Sprintf("_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)", config.BusyTimeoutMs)
	return gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?%s", path, opts)), gormConfig)
}
