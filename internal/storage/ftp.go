package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/stylr/migrate/internal/conf"
	"github.com/stylr/migrate/internal/logger"
)

const ftpConnectTimeout = 30 * time.Second

// FTPTarget stores objects on a plain FTP server. Connections are per
// operation; login state never leaks between operations.
type FTPTarget struct {
	host     string
	port     int
	username string
	password string
	basePath string
	log      logger.Logger
}

// NewFTPTarget creates an FTP target from settings.
func NewFTPTarget(settings *conf.FTPSettings, log logger.Logger) *FTPTarget {
	if log == nil {
		log = logger.NewSlogLogger(nil, logger.LogLevelInfo, nil)
	}
	port := settings.Port
	if port == 0 {
		port = 21
	}
	return &FTPTarget{
		host:     settings.Host,
		port:     port,
		username: settings.Username,
		password: settings.Password,
		basePath: strings.TrimRight(settings.BasePath, "/"),
		log:      log.Module("storage.ftp"),
	}
}

// Name implements ObjectStore.
func (t *FTPTarget) Name() string { return "ftp" }

// connect dials, logs in and returns a live connection.
func (t *FTPTarget) connect(ctx context.Context) (*ftp.ServerConn, error) {
	addr := fmt.Sprintf("%s:%d", t.host, t.port)
	conn, err := ftp.Dial(addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(ftpConnectTimeout))
	if err != nil {
		return nil, fmt.Errorf("ftp: failed to connect: %w", err)
	}
	if err := conn.Login(t.username, t.password); err != nil {
		_ = conn.Quit()
		return nil, fmt.Errorf("ftp: login failed: %w", err)
	}
	return conn, nil
}

func (t *FTPTarget) remotePath(p string) string {
	return path.Join(t.basePath, p)
}

// makeDirs creates each path segment, ignoring already-exists errors since
// FTP has no MkdirAll.
func (t *FTPTarget) makeDirs(conn *ftp.ServerConn, dir string) {
	parts := strings.Split(strings.Trim(dir, "/"), "/")
	current := ""
	for _, part := range parts {
		if part == "" {
			continue
		}
		current = current + "/" + part
		_ = conn.MakeDir(current)
	}
}

// Upload implements ObjectStore.
func (t *FTPTarget) Upload(ctx context.Context, reader io.Reader, remotePath string) error {
	conn, err := t.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Quit() }()

	full := t.remotePath(remotePath)
	t.makeDirs(conn, path.Dir(full))

	if err := conn.Stor(full, reader); err != nil {
		return fmt.Errorf("ftp: failed to store %s: %w", remotePath, err)
	}

	t.log.Debug("uploaded object", logger.String("path", remotePath))
	return nil
}

// Exists implements ObjectStore.
func (t *FTPTarget) Exists(ctx context.Context, remotePath string) (bool, error) {
	conn, err := t.connect(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = conn.Quit() }()

	_, err = conn.FileSize(t.remotePath(remotePath))
	if err != nil {
		// The server reports missing files through a 550 reply; treat any
		// size failure as absence rather than parsing reply codes.
		return false, nil
	}
	return true, nil
}

// Delete implements ObjectStore.
func (t *FTPTarget) Delete(ctx context.Context, remotePath string) error {
	conn, err := t.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Quit() }()

	if err := conn.Delete(t.remotePath(remotePath)); err != nil {
		return fmt.Errorf("ftp: failed to delete %s: %w", remotePath, err)
	}
	return nil
}

// Validate implements ObjectStore: log in and verify the base path exists
// and accepts a probe directory.
func (t *FTPTarget) Validate(ctx context.Context) error {
	conn, err := t.connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to validate FTP connection: %w", err)
	}
	defer func() { _ = conn.Quit() }()

	if t.basePath != "" {
		if err := conn.ChangeDir(t.basePath); err != nil {
			return fmt.Errorf("ftp: base path %s not accessible: %w", t.basePath, err)
		}
	}

	testDir := ".write_test"
	if err := conn.MakeDir(testDir); err != nil {
		return fmt.Errorf("ftp: base path not writable: %w", err)
	}
	if err := conn.RemoveDir(testDir); err != nil {
		t.log.Warn("failed to remove probe directory",
			logger.String("path", testDir),
			logger.Error(err))
	}
	return nil
}
