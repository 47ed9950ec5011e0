package phase

import (
	"context"
	"os"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/stylr/migrate/internal/conf"
	"github.com/stylr/migrate/internal/errors"
	"github.com/stylr/migrate/internal/logger"
)

// minFreeDiskBytes is the free-space floor for the checkpoint and temp
// directories before a run is allowed to start.
const minFreeDiskBytes = 500 * 1024 * 1024

// Preflight verifies the environment before any batch work starts: settings,
// dump file, target database connectivity, storage reachability and free
// disk space. Any failure here is fatal and aborts the run immediately.
func (o *Orchestrator) Preflight(ctx context.Context) error {
	if err := conf.ValidateSettings(o.settings); err != nil {
		return errors.New(err).
			Component("phase").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := o.store.Open(); err != nil {
		return err
	}
	if err := o.store.Ping(ctx); err != nil {
		return errors.Newf("database connectivity check failed: %w", err).
			Component("phase").
			Category(errors.CategoryDatabase).
			Build()
	}

	if err := o.objects.Validate(ctx); err != nil {
		return errors.Newf("storage validation failed: %w", err).
			Component("phase").
			Category(errors.CategoryStorageUpload).
			Build()
	}

	for _, dir := range []string{o.settings.Checkpoint.Dir, o.settings.Media.TempDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.New(err).
				Component("phase").
				Category(errors.CategoryFileIO).
				Context("path", dir).
				Build()
		}
		usage, err := disk.Usage(dir)
		if err != nil {
			o.log.Warn("disk usage check failed",
				logger.String("path", dir),
				logger.Error(err))
			continue
		}
		if usage.Free < minFreeDiskBytes {
			return errors.Newf("insufficient disk space in %s: %d bytes free", dir, usage.Free).
				Component("phase").
				Category(errors.CategoryConfiguration).
				Build()
		}
	}

	o.log.Info("preflight checks passed",
		logger.String("storage", o.objects.Name()),
		logger.String("dump", o.settings.Source.DumpPath))
	return nil
}
