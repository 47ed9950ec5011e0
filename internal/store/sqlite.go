// sqlite.go: SQLite-specific store implementation.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stylr/migrate/internal/conf"
	"github.com/stylr/migrate/internal/errors"
	"github.com/stylr/migrate/internal/logger"
)

// SQLiteStore implements Interface on a SQLite database file.
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

func validateSQLiteConfig(settings *conf.Settings) error {
	path := settings.Database.SQLite.Path
	if path == "" {
		return fmt.Errorf("SQLite database path is empty")
	}
	return nil
}

// Open initializes the SQLite database connection and migrates the schema.
func (s *SQLiteStore) Open() error {
	if err := validateSQLiteConfig(s.Settings); err != nil {
		return errors.New(err).
			Component("store").
			Category(errors.CategoryConfiguration).
			Build()
	}

	path := s.Settings.Database.SQLite.Path
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.New(err).
				Component("store").
				Category(errors.CategoryFileIO).
				Context("path", dir).
				Build()
		}
	}

	db, err := gorm.Open(sqlite.Open(path), newGormConfig(s.log))
	if err != nil {
		return errors.Newf("opening SQLite database: %w", err).
			Component("store").
			Category(errors.CategoryDatabase).
			Context("path", path).
			Build()
	}

	// Single-writer workload; avoids SQLITE_BUSY during batch inserts.
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA busy_timeout=5000;")

	if err := performAutoMigration(db); err != nil {
		return errors.Newf("migrating SQLite schema: %w", err).
			Component("store").
			Category(errors.CategoryDatabase).
			Build()
	}

	s.db = db
	s.log.Info("SQLite store opened", logger.String("path", path))
	return nil
}

// Close closes the underlying connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
