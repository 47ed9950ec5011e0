package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stylr/migrate/internal/errors"
)

const sampleDump = `{
  "buyers": [
    {"id": "b1", "name": "Ada", "email": "ada@example.com"}
  ],
  "stylists": [
    {"id": "s1", "name": "Kim", "email": "kim@example.com", "bio": "colorist"}
  ],
  "addresses": [
    {"id": "a1", "user_id": "b1", "street": "Main St 1", "city": "Oslo"}
  ],
  "services": [
    {"id": "svc1", "stylist_id": "s1", "title": "Cut", "price_cents": 4500, "duration_minutes": 45}
  ],
  "bookings": [],
  "chat_messages": [
    {"id": "m1", "chat_id": "c1", "sender_id": "b1", "body": "hi"}
  ],
  "media_files": [
    {"path": "/dump/media/avatar.jpg", "category": "profile", "legacy_user_id": "b1"}
  ]
}`

func writeDump(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dump.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadParsesAllSections(t *testing.T) {
	t.Parallel()

	dump, err := Read(writeDump(t, sampleDump), nil)
	require.NoError(t, err)

	assert.Len(t, dump.Buyers, 1)
	assert.Len(t, dump.Stylists, 1)
	assert.Len(t, dump.Addresses, 1)
	assert.Len(t, dump.Services, 1)
	assert.Empty(t, dump.Bookings)
	assert.Len(t, dump.ChatMessages, 1)
	assert.Len(t, dump.MediaFiles, 1)

	assert.Equal(t, "ada@example.com", dump.Buyers[0].Email)
	assert.Equal(t, "colorist", dump.Stylists[0].Bio)
	assert.Equal(t, 4500, dump.Services[0].PriceCents)
}

func TestReadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Read("/nonexistent/dump.json", nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
}

func TestReadMalformedJSON(t *testing.T) {
	t.Parallel()

	_, err := Read(writeDump(t, `{"buyers": [`), nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryExtraction))
}
