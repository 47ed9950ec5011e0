// batch_writer.go: generic batched inserts into the target database with
// batch-to-individual fallback.
package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/stylr/migrate/internal/batch"
	"github.com/stylr/migrate/internal/logger"
)

// BatchWriter inserts entities of one type in windows. A failed multi-row
// insert falls back to item-by-item inserts so one bad row cannot sink its
// whole window.
type BatchWriter[T any] struct {
	db   *gorm.DB
	opts batch.GroupedOptions
	log  logger.Logger
}

// NewBatchWriter creates a writer for entity type T.
func NewBatchWriter[T any](db *gorm.DB, opts batch.GroupedOptions, log logger.Logger) *BatchWriter[T] {
	if log == nil {
		log = logger.NewSlogLogger(nil, logger.LogLevelInfo, nil)
	}
	return &BatchWriter[T]{
		db:   db,
		opts: opts,
		log:  log.Module("batchwriter"),
	}
}

// Write inserts all items and returns the per-item outcome. Window failures
// are retried item-by-item when the fallback option is set.
func (w *BatchWriter[T]) Write(ctx context.Context, items []T) batch.Result[T, T] {
	result := batch.ProcessGrouped(ctx, items,
		func(ctx context.Context, window []T) ([]T, error) {
			if err := w.db.WithContext(ctx).Create(&window).Error; err != nil {
				return nil, err
			}
			return window, nil
		},
		func(ctx context.Context, item T) (T, error) {
			if err := w.db.WithContext(ctx).Create(&item).Error; err != nil {
				var zero T
				return zero, err
			}
			return item, nil
		},
		w.opts)

	if result.ErrorCount > 0 {
		w.log.Warn("batch write finished with failures",
			logger.Int("succeeded", result.SuccessCount),
			logger.Int("failed", result.ErrorCount))
	} else {
		w.log.Debug("batch write complete",
			logger.Int("succeeded", result.SuccessCount))
	}
	return result
}
