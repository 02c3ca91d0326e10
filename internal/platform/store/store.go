// Package store opens and migrates the SQLite persistence layer using GORM.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/JCampos05/Backend-Taskeer/internal/platform/config"
)

// Open opens the database described by cfg and returns a handle.
// The data directory is created if missing.
func Open(cfg *config.StorageConfig) (*gorm.DB, error) {
	if cfg.Driver != "sqlite" {
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "taskeer.db")
	// Foreign keys are off by default in SQLite; the grant/resource
	// relations rely on them.
	dsn := dbPath + "?_foreign_keys=on"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		// Duplicate-key violations must be recognizable; the share-key
		// issue loop recovers from them by retrying.
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// memorySeq distinguishes in-memory databases so tests never share state.
var memorySeq atomic.Int64

// OpenMemory opens a fresh in-memory database. Intended for tests.
func OpenMemory() (*gorm.DB, error) {
	name := fmt.Sprintf("file:taskeer-mem-%d?mode=memory&cache=shared&_foreign_keys=on", memorySeq.Add(1))
	db, err := gorm.Open(sqlite.Open(name), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open in-memory database: %w", err)
	}
	return db, nil
}

// Migrate runs AutoMigrate for the given models.
func Migrate(db *gorm.DB, models ...any) error {
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
