// interfaces.go: the interface for target database operations.
package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/stylr/migrate/internal/conf"
	"github.com/stylr/migrate/internal/logger"
)

// Interface abstracts the target database implementation.
type Interface interface {
	Open() error
	Close() error
	// DB exposes the underlying GORM handle for the generic batch writers.
	DB() *gorm.DB
	// Ping verifies connectivity as a preflight check.
	Ping(ctx context.Context) error

	CountUsers(ctx context.Context) (int64, error)
	CountMediaRecords(ctx context.Context, mediaType string) (int64, error)
	UserExistsByEmail(ctx context.Context, email string) (bool, error)
	// ServicePreviewCounts returns, per service id, how many preview-flagged
	// service images exist. Used by the business-logic compliance check.
	ServicePreviewCounts(ctx context.Context) (map[string]int, error)
	// MediaStoragePaths returns up to limit storage paths for accessibility
	// sampling.
	MediaStoragePaths(ctx context.Context, limit int) ([]string, error)
	// UpdateUserByID applies a partial update to one user row.
	UpdateUserByID(ctx context.Context, id string, updates map[string]any) error
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	db  *gorm.DB
	log logger.Logger
}

// New selects the store implementation from settings.
func New(settings *conf.Settings, log logger.Logger) Interface {
	if log == nil {
		log = logger.NewSlogLogger(nil, logger.LogLevelInfo, nil)
	}
	switch {
	case settings.Database.SQLite.Enabled:
		return &SQLiteStore{
			DataStore: DataStore{log: log},
			Settings:  settings,
		}
	case settings.Database.MySQL.Enabled:
		return &MySQLStore{
			DataStore: DataStore{log: log},
			Settings:  settings,
		}
	default:
		return nil
	}
}

// DB returns the GORM handle. Nil until Open succeeds.
func (ds *DataStore) DB() *gorm.DB {
	return ds.db
}

// Ping verifies the connection is usable.
func (ds *DataStore) Ping(ctx context.Context) error {
	sqlDB, err := ds.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// CountUsers returns the number of migrated users.
func (ds *DataStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := ds.db.WithContext(ctx).Model(&User{}).Count(&count).Error
	return count, err
}

// CountMediaRecords returns the number of media records, optionally filtered
// by media type.
func (ds *DataStore) CountMediaRecords(ctx context.Context, mediaType string) (int64, error) {
	var count int64
	q := ds.db.WithContext(ctx).Model(&MediaRecord{})
	if mediaType != "" {
		q = q.Where("media_type = ?", mediaType)
	}
	err := q.Count(&count).Error
	return count, err
}

// UserExistsByEmail reports whether a user with the email already exists.
func (ds *DataStore) UserExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := ds.db.WithContext(ctx).Model(&User{}).
		Where("email = ?", email).
		Count(&count).Error
	return count > 0, err
}

// ServicePreviewCounts implements Interface.
func (ds *DataStore) ServicePreviewCounts(ctx context.Context) (map[string]int, error) {
	type row struct {
		ServiceID string
		N         int
	}
	var rows []row
	err := ds.db.WithContext(ctx).Model(&MediaRecord{}).
		Select("service_id, count(*) as n").
		Where("media_type = ? AND is_preview = ?", MediaTypeServiceImage, true).
		Group("service_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(rows))
	for i := range rows {
		counts[rows[i].ServiceID] = rows[i].N
	}
	return counts, nil
}

// MediaStoragePaths implements Interface.
func (ds *DataStore) MediaStoragePaths(ctx context.Context, limit int) ([]string, error) {
	var paths []string
	err := ds.db.WithContext(ctx).Model(&MediaRecord{}).
		Order("created_at").
		Limit(limit).
		Pluck("storage_path", &paths).Error
	return paths, err
}

// UpdateUserByID implements Interface.
func (ds *DataStore) UpdateUserByID(ctx context.Context, id string, updates map[string]any) error {
	return ds.db.WithContext(ctx).Model(&User{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// performAutoMigration creates or migrates the target schema.
func performAutoMigration(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&StylistDetail{},
		&Address{},
		&Service{},
		&Booking{},
		&ChatMessage{},
		&MediaRecord{},
	)
}

// newGormConfig builds the shared GORM config with the injected logger.
func newGormConfig(log logger.Logger) *gorm.Config {
	return &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(log.Module("gorm"), 200*time.Millisecond),
	}
}
