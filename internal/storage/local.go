package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/stylr/migrate/internal/errors"
	"github.com/stylr/migrate/internal/logger"
)

const (
	dirPermissions  = 0o755
	filePermissions = 0o644
)

// LocalTarget stores objects under a base directory on the local filesystem.
// Used for dry runs and tests; uploads are atomic via temp file and rename.
type LocalTarget struct {
	basePath string
	log      logger.Logger
}

// NewLocalTarget creates a local filesystem target rooted at basePath.
func NewLocalTarget(basePath string, log logger.Logger) *LocalTarget {
	if log == nil {
		log = logger.NewSlogLogger(nil, logger.LogLevelInfo, nil)
	}
	return &LocalTarget{
		basePath: basePath,
		log:      log.Module("storage.local"),
	}
}

// Name implements ObjectStore.
func (t *LocalTarget) Name() string { return "local" }

// fullPath resolves a remote path inside the base directory, rejecting
// traversal outside it.
func (t *LocalTarget) fullPath(remotePath string) (string, error) {
	full := filepath.Join(t.basePath, filepath.FromSlash(remotePath))
	rel, err := filepath.Rel(t.basePath, full)
	if err != nil || rel == ".." || len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator) {
		return "", errors.Newf("path %q escapes storage base directory", remotePath).
			Component("storage").
			Category(errors.CategoryValidation).
			Build()
	}
	return full, nil
}

// Upload implements ObjectStore.
func (t *LocalTarget) Upload(ctx context.Context, reader io.Reader, remotePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	full, err := t.fullPath(remotePath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), dirPermissions); err != nil {
		return errors.New(err).
			Component("storage").
			Category(errors.CategoryFileIO).
			Context("path", filepath.Dir(full)).
			Build()
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return errors.New(err).
			Component("storage").
			Category(errors.CategoryFileIO).
			Build()
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if err := tmp.Chmod(filePermissions); err != nil {
		return err
	}
	if _, err := io.Copy(tmp, reader); err != nil {
		return errors.New(err).
			Component("storage").
			Category(errors.CategoryStorageUpload).
			Context("path", remotePath).
			Build()
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, full); err != nil {
		return errors.New(err).
			Component("storage").
			Category(errors.CategoryFileIO).
			Context("path", full).
			Build()
	}

	success = true
	t.log.Debug("stored object", logger.String("path", remotePath))
	return nil
}

// Exists implements ObjectStore.
func (t *LocalTarget) Exists(ctx context.Context, remotePath string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	full, err := t.fullPath(remotePath)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

// Delete implements ObjectStore.
func (t *LocalTarget) Delete(ctx context.Context, remotePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := t.fullPath(remotePath)
	if err != nil {
		return err
	}
	return os.Remove(full)
}

// Validate implements ObjectStore: the base directory must exist or be
// creatable, and must be writable.
func (t *LocalTarget) Validate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(t.basePath, dirPermissions); err != nil {
		return errors.Newf("storage base directory not creatable: %w", err).
			Component("storage").
			Category(errors.CategoryFileIO).
			Context("path", t.basePath).
			Build()
	}

	probe, err := os.CreateTemp(t.basePath, ".write_test-*")
	if err != nil {
		return errors.Newf("storage base directory not writable: %w", err).
			Component("storage").
			Category(errors.CategoryFileIO).
			Context("path", t.basePath).
			Build()
	}
	probe.Close()
	return os.Remove(probe.Name())
}
