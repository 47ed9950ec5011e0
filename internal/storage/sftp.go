package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/stylr/migrate/internal/conf"
	"github.com/stylr/migrate/internal/errors"
	"github.com/stylr/migrate/internal/logger"
)

const sftpConnectTimeout = 30 * time.Second

// SFTPTarget stores objects on an SFTP server. Connections are established
// per operation; the migration uploads in bounded waves so connection churn
// stays low.
type SFTPTarget struct {
	host       string
	port       int
	username   string
	password   string
	knownHosts string
	basePath   string
	log        logger.Logger
}

// NewSFTPTarget creates an SFTP target from settings.
func NewSFTPTarget(settings *conf.SFTPSettings, log logger.Logger) (*SFTPTarget, error) {
	if settings.Host == "" {
		return nil, errors.Newf("sftp: host is required").
			Component("storage").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if log == nil {
		log = logger.NewSlogLogger(nil, logger.LogLevelInfo, nil)
	}

	port := settings.Port
	if port == 0 {
		port = 22
	}

	return &SFTPTarget{
		host:       settings.Host,
		port:       port,
		username:   settings.Username,
		password:   settings.Password,
		knownHosts: settings.KnownHosts,
		basePath:   strings.TrimRight(settings.BasePath, "/"),
		log:        log.Module("storage.sftp"),
	}, nil
}

// Name implements ObjectStore.
func (t *SFTPTarget) Name() string { return "sftp" }

func (t *SFTPTarget) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if t.knownHosts == "" {
		// No known_hosts configured; accept any host key. Fine for a one-off
		// migration against a trusted network, logged so it is visible.
		t.log.Warn("no known_hosts file configured, skipping host key verification")
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // explicit opt-out
	}
	return knownhosts.New(t.knownHosts)
}

// connect establishes an SFTP session, honoring context cancellation.
func (t *SFTPTarget) connect(ctx context.Context) (*sftp.Client, func(), error) {
	type connResult struct {
		client *sftp.Client
		conn   *ssh.Client
		err    error
	}
	resultChan := make(chan connResult, 1)

	go func() {
		hostKey, err := t.hostKeyCallback()
		if err != nil {
			resultChan <- connResult{err: fmt.Errorf("sftp: loading known_hosts: %w", err)}
			return
		}

		config := &ssh.ClientConfig{
			User:            t.username,
			Auth:            []ssh.AuthMethod{ssh.Password(t.password)},
			HostKeyCallback: hostKey,
			Timeout:         sftpConnectTimeout,
		}

		addr := fmt.Sprintf("%s:%d", t.host, t.port)
		sshConn, err := ssh.Dial("tcp", addr, config)
		if err != nil {
			resultChan <- connResult{err: fmt.Errorf("sftp: failed to connect: %w", err)}
			return
		}

		client, err := sftp.NewClient(sshConn)
		if err != nil {
			sshConn.Close()
			resultChan <- connResult{err: fmt.Errorf("sftp: failed to create client: %w", err)}
			return
		}

		resultChan <- connResult{client: client, conn: sshConn}
	}()

	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case result := <-resultChan:
		if result.err != nil {
			return nil, nil, result.err
		}
		closer := func() {
			result.client.Close()
			result.conn.Close()
		}
		return result.client, closer, nil
	}
}

func (t *SFTPTarget) remotePath(p string) string {
	return path.Join(t.basePath, p)
}

// Upload implements ObjectStore.
func (t *SFTPTarget) Upload(ctx context.Context, reader io.Reader, remotePath string) error {
	client, closer, err := t.connect(ctx)
	if err != nil {
		return err
	}
	defer closer()

	full := t.remotePath(remotePath)
	if err := client.MkdirAll(path.Dir(full)); err != nil {
		return fmt.Errorf("sftp: failed to create directory %s: %w", path.Dir(full), err)
	}

	dst, err := client.Create(full)
	if err != nil {
		return fmt.Errorf("sftp: failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, reader); err != nil {
		return fmt.Errorf("sftp: failed to write file: %w", err)
	}

	t.log.Debug("uploaded object", logger.String("path", remotePath))
	return nil
}

// Exists implements ObjectStore.
func (t *SFTPTarget) Exists(ctx context.Context, remotePath string) (bool, error) {
	client, closer, err := t.connect(ctx)
	if err != nil {
		return false, err
	}
	defer closer()

	_, err = client.Stat(t.remotePath(remotePath))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("sftp: failed to stat file: %w", err)
	}
	return true, nil
}

// Delete implements ObjectStore.
func (t *SFTPTarget) Delete(ctx context.Context, remotePath string) error {
	client, closer, err := t.connect(ctx)
	if err != nil {
		return err
	}
	defer closer()

	if err := client.Remove(t.remotePath(remotePath)); err != nil {
		return fmt.Errorf("sftp: failed to delete file: %w", err)
	}
	return nil
}

// Validate implements ObjectStore: connect and verify the base path is
// writable by creating and removing a probe directory.
func (t *SFTPTarget) Validate(ctx context.Context) error {
	client, closer, err := t.connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to validate SFTP connection: %w", err)
	}
	defer closer()

	testDir := path.Join(t.basePath, ".write_test")
	if err := client.MkdirAll(testDir); err != nil {
		return fmt.Errorf("sftp: base path not writable: %w", err)
	}
	if err := client.RemoveDirectory(testDir); err != nil {
		t.log.Warn("failed to remove probe directory",
			logger.String("path", testDir),
			logger.Error(err))
	}
	return nil
}
