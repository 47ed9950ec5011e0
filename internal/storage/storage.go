// Package storage provides the object storage targets media files are
// uploaded to: a hosted HTTP bucket API, SFTP, FTP and the local filesystem.
package storage

import (
	"context"
	"io"

	"github.com/stylr/migrate/internal/conf"
	"github.com/stylr/migrate/internal/errors"
	"github.com/stylr/migrate/internal/logger"
)

// ObjectStore is the interface all storage targets implement. Remote paths
// use forward slashes relative to the target's base location.
type ObjectStore interface {
	// Name returns the backend identifier ("http", "sftp", "ftp", "local").
	Name() string
	// Upload stores the object at remotePath, creating parent directories as
	// needed. An existing object at the same path is overwritten.
	Upload(ctx context.Context, reader io.Reader, remotePath string) error
	// Exists reports whether an object is present at remotePath.
	Exists(ctx context.Context, remotePath string) (bool, error)
	// Delete removes the object at remotePath.
	Delete(ctx context.Context, remotePath string) error
	// Validate verifies the target is reachable and writable. Run once as a
	// preflight check before any uploads.
	Validate(ctx context.Context) error
}

// New creates the object store selected by the storage settings.
func New(settings *conf.Settings, log logger.Logger) (ObjectStore, error) {
	switch settings.Storage.Backend {
	case "http":
		return NewHTTPTarget(&settings.Storage.HTTP, log), nil
	case "sftp":
		return NewSFTPTarget(&settings.Storage.SFTP, log)
	case "ftp":
		return NewFTPTarget(&settings.Storage.FTP, log), nil
	case "local":
		return NewLocalTarget(settings.Storage.Local.Path, log), nil
	default:
		return nil, errors.Newf("unknown storage backend %q", settings.Storage.Backend).
			Component("storage").
			Category(errors.CategoryConfiguration).
			Build()
	}
}
