package media

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/stylr/migrate/internal/batch"
	"github.com/stylr/migrate/internal/logger"
	"github.com/stylr/migrate/internal/storage"
	"github.com/stylr/migrate/internal/store"
)

// UploadResult is the structured outcome of one asset's pipeline run.
// Produced for every migratable asset, success or not.
type UploadResult struct {
	Asset       Asset            `json:"asset"`
	Success     bool             `json:"success"`
	StoragePath string           `json:"storage_path,omitempty"`
	Compression CompressionStats `json:"compression"`
	UploadTime  time.Duration    `json:"upload_time"`
	Error       string           `json:"error,omitempty"`
}

// Report aggregates one media migration run for the scorer and the stats
// payload.
type Report struct {
	Attempted      int            `json:"attempted"`
	Skipped        []Asset        `json:"skipped,omitempty"`
	Uploads        []UploadResult `json:"uploads"`
	UploadedCount  int            `json:"uploaded_count"`
	RecordsCreated int            `json:"records_created"`
	RecordFailures int            `json:"record_failures"`
}

// Migrator runs the per-asset pipeline with bounded fan-out and creates
// media records for successful uploads only.
type Migrator struct {
	objects    storage.ObjectStore
	compressor *Compressor
	writer     *store.BatchWriter[store.MediaRecord]
	fanOut     int
	retry      batch.RetryOptions
	log        logger.Logger
}

// NewMigrator creates a media Migrator. writer may be nil for upload-only
// dry runs; no records are created in that case.
func NewMigrator(
	objects storage.ObjectStore,
	compressor *Compressor,
	writer *store.BatchWriter[store.MediaRecord],
	fanOut int,
	retry batch.RetryOptions,
	log logger.Logger,
) *Migrator {
	if log == nil {
		log = logger.NewSlogLogger(nil, logger.LogLevelInfo, nil)
	}
	return &Migrator{
		objects:    objects,
		compressor: compressor,
		writer:     writer,
		fanOut:     fanOut,
		retry:      retry,
		log:        log.Module("media"),
	}
}

// migrateOne runs compress → upload for one asset. The compressed temp file
// is removed on every exit path.
func (m *Migrator) migrateOne(ctx context.Context, asset Asset) UploadResult {
	result := UploadResult{Asset: asset}

	tmpPath, stats, err := m.compressor.Compress(ctx, asset.OriginalPath, asset.MIMEType)
	result.Compression = stats
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer os.Remove(tmpPath)

	remotePath := asset.StoragePath()
	start := time.Now()
	_, err = batch.RetryWithBackoff(ctx, func(ctx context.Context) (struct{}, error) {
		f, openErr := os.Open(tmpPath)
		if openErr != nil {
			return struct{}{}, openErr
		}
		defer f.Close()
		return struct{}{}, m.objects.Upload(ctx, f, remotePath)
	}, m.retry)
	result.UploadTime = time.Since(start)

	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Success = true
	result.StoragePath = remotePath
	return result
}

// MigrateAll runs the pipeline for every migratable asset in bounded waves,
// then writes media records for the successful uploads. A failed upload
// never produces a record, so the record count is always at most the
// successful-upload count.
func (m *Migrator) MigrateAll(ctx context.Context, assets []Asset) *Report {
	report := &Report{}

	var migratable []Asset
	for i := range assets {
		if assets[i].CanMigrate {
			migratable = append(migratable, assets[i])
		} else {
			report.Skipped = append(report.Skipped, assets[i])
		}
	}
	report.Attempted = len(migratable)

	settled := batch.MapWaves(ctx, migratable, m.fanOut, func(ctx context.Context, asset Asset) (UploadResult, error) {
		return m.migrateOne(ctx, asset), nil
	})

	var records []store.MediaRecord
	for i := range settled {
		result := settled[i].Value
		if settled[i].Err != nil {
			result = UploadResult{Asset: migratable[i], Error: settled[i].Err.Error()}
		}
		report.Uploads = append(report.Uploads, result)
		if !result.Success {
			continue
		}
		report.UploadedCount++
		records = append(records, m.recordFor(&result))
	}

	if m.writer != nil && len(records) > 0 {
		writeResult := m.writer.Write(ctx, records)
		report.RecordsCreated = writeResult.SuccessCount
		report.RecordFailures = writeResult.ErrorCount
	}

	m.log.Info("media migration complete",
		logger.Int("attempted", report.Attempted),
		logger.Int("skipped", len(report.Skipped)),
		logger.Int("uploaded", report.UploadedCount),
		logger.Int("records_created", report.RecordsCreated),
		logger.Int("record_failures", report.RecordFailures))

	return report
}

// recordFor builds the media record for a successful upload.
func (m *Migrator) recordFor(result *UploadResult) store.MediaRecord {
	asset := &result.Asset
	return store.MediaRecord{
		ID:             uuid.NewString(),
		MediaType:      asset.MediaType(),
		StoragePath:    result.StoragePath,
		UserID:         asset.UserID,
		ServiceID:      asset.ServiceID,
		StylistID:      asset.StylistID,
		ChatID:         asset.ChatID,
		MessageID:      asset.MessageID,
		IsPreview:      asset.IsPreview,
		OriginalSize:   result.Compression.OriginalSize,
		CompressedSize: result.Compression.CompressedSize,
		CreatedAt:      time.Now(),
	}
}
