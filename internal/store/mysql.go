// mysql.go: MySQL-specific store implementation.
package store

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/stylr/migrate/internal/conf"
	"github.com/stylr/migrate/internal/errors"
	"github.com/stylr/migrate/internal/logger"
)

// MySQLStore implements Interface on a MySQL database.
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

func validateMySQLConfig(settings *conf.Settings) error {
	m := &settings.Database.MySQL
	if m.Username == "" || m.Database == "" || m.Host == "" || m.Port == "" {
		return fmt.Errorf("MySQL configuration incomplete: username, database, host and port are required")
	}
	return nil
}

// Open initializes the MySQL database connection and migrates the schema.
func (m *MySQLStore) Open() error {
	if err := validateMySQLConfig(m.Settings); err != nil {
		return errors.New(err).
			Component("store").
			Category(errors.CategoryConfiguration).
			Build()
	}

	dsn := m.Settings.Database.MySQL.DSN()
	db, err := gorm.Open(mysql.Open(dsn), newGormConfig(m.log))
	if err != nil {
		return errors.Newf("opening MySQL database: %w", err).
			Component("store").
			Category(errors.CategoryDatabase).
			Context("host", m.Settings.Database.MySQL.Host).
			Build()
	}

	if err := performAutoMigration(db); err != nil {
		return errors.Newf("migrating MySQL schema: %w", err).
			Component("store").
			Category(errors.CategoryDatabase).
			Build()
	}

	m.db = db
	m.log.Info("MySQL store opened",
		logger.String("host", m.Settings.Database.MySQL.Host),
		logger.String("database", m.Settings.Database.MySQL.Database))
	return nil
}

// Close closes the underlying connection.
func (m *MySQLStore) Close() error {
	if m.db == nil {
		return nil
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
