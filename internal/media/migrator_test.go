package media

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stylr/migrate/internal/batch"
)

// fakeObjectStore records uploads and fails paths matched by failSubstring.
type fakeObjectStore struct {
	mu            sync.Mutex
	uploads       map[string][]byte
	failSubstring string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{uploads: make(map[string][]byte)}
}

func (f *fakeObjectStore) Name() string { return "fake" }

func (f *fakeObjectStore) Upload(_ context.Context, reader io.Reader, remotePath string) error {
	if f.failSubstring != "" && strings.Contains(remotePath, f.failSubstring) {
		return &batch.HTTPStatusError{StatusCode: 400, Message: "rejected"}
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads[remotePath] = data
	return nil
}

func (f *fakeObjectStore) Exists(_ context.Context, remotePath string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.uploads[remotePath]
	return ok, nil
}

func (f *fakeObjectStore) Delete(_ context.Context, remotePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.uploads, remotePath)
	return nil
}

func (f *fakeObjectStore) Validate(context.Context) error { return nil }

func testMigrator(objects *fakeObjectStore, tempDir string) *Migrator {
	compressor := NewCompressor(testCompressionSettings("/nonexistent/image-tool"), tempDir, nil)
	return NewMigrator(objects, compressor, nil, 2, batch.RetryOptions{
		MaxRetries: 1,
		BaseDelay:  time.Millisecond,
	}, nil)
}

func TestMigrateAllUploadsAndSkips(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	assets := []Asset{
		{
			OriginalPath: writeFile(t, dir, "a.jpg", jpegHeader),
			Category:     CategoryProfile,
			MIMEType:     "image/jpeg",
			UserID:       "u1",
			CanMigrate:   true,
		},
		{
			OriginalPath: writeFile(t, dir, "b.png", pngHeader),
			Category:     CategoryChat,
			MIMEType:     "image/png",
			ChatID:       "c1",
			MessageID:    "m1",
			CanMigrate:   true,
		},
		{
			OriginalPath: "/dump/bad.jpg",
			Category:     CategoryProfile,
			CanMigrate:   false,
			SkipReason:   "unsupported content type \"text/plain\"",
		},
	}

	objects := newFakeObjectStore()
	report := testMigrator(objects, dir).MigrateAll(context.Background(), assets)

	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, 2, report.UploadedCount)
	require.Len(t, report.Skipped, 1)
	assert.Contains(t, report.Skipped[0].SkipReason, "unsupported content type")

	assert.Contains(t, objects.uploads, "avatars/u1.jpg")
	assert.Contains(t, objects.uploads, "chat/c1/m1.png")
	assert.Equal(t, jpegHeader, objects.uploads["avatars/u1.jpg"], "fallback copy uploads the original bytes")
}

func TestMigrateAllIsolatesUploadFailures(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	assets := []Asset{
		{
			OriginalPath: writeFile(t, dir, "ok.jpg", jpegHeader),
			Category:     CategoryProfile,
			MIMEType:     "image/jpeg",
			UserID:       "u-ok",
			CanMigrate:   true,
		},
		{
			OriginalPath: writeFile(t, dir, "bad.jpg", jpegHeader),
			Category:     CategoryProfile,
			MIMEType:     "image/jpeg",
			UserID:       "u-fail",
			CanMigrate:   true,
		},
	}

	objects := newFakeObjectStore()
	objects.failSubstring = "u-fail"
	report := testMigrator(objects, dir).MigrateAll(context.Background(), assets)

	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, 1, report.UploadedCount)

	var failed *UploadResult
	for i := range report.Uploads {
		if !report.Uploads[i].Success {
			failed = &report.Uploads[i]
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, "u-fail", failed.Asset.UserID)
	assert.Contains(t, failed.Error, "rejected")
	assert.Empty(t, failed.StoragePath, "failed uploads carry no storage path")
}

func TestMigrateAllCleansUpTempFiles(t *testing.T) {
	t.Parallel()
	srcDir := t.TempDir()
	tempDir := t.TempDir()

	assets := []Asset{
		{
			OriginalPath: writeFile(t, srcDir, "a.jpg", jpegHeader),
			Category:     CategoryProfile,
			MIMEType:     "image/jpeg",
			UserID:       "u1",
			CanMigrate:   true,
		},
		{
			OriginalPath: writeFile(t, srcDir, "b.jpg", jpegHeader),
			Category:     CategoryProfile,
			MIMEType:     "image/jpeg",
			UserID:       "u-fail",
			CanMigrate:   true,
		},
	}

	objects := newFakeObjectStore()
	objects.failSubstring = "u-fail"
	testMigrator(objects, tempDir).MigrateAll(context.Background(), assets)

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "compressed temp files are removed on every exit path")
}
