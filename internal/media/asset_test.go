package media

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pngHeader  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}
	jpegHeader = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F'}
)

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func testKeys() *KeyMap {
	return &KeyMap{
		Users:    map[string]string{"legacy-u1": "u1"},
		Services: map[string]ServiceKey{"legacy-sv1": {ServiceID: "sv1", StylistID: "st1"}},
		Messages: map[string]MessageKey{"legacy-m1": {ChatID: "c1", MessageID: "m1"}},
	}
}

func TestDetectMIME(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	png := writeFile(t, dir, "a.bin", pngHeader)
	mime, err := DetectMIME(png)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime, "detection ignores the extension")

	text := writeFile(t, dir, "b.png", []byte("hello world, plainly text"))
	mime, err = DetectMIME(text)
	require.NoError(t, err)
	assert.Equal(t, "text/plain", mime)
}

func TestDeriveAssetProfile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeFile(t, dir, "avatar.jpg", jpegHeader)

	asset := DeriveAsset(&SourceFile{
		Path:         path,
		Category:     CategoryProfile,
		LegacyUserID: "legacy-u1",
	}, testKeys())

	require.True(t, asset.CanMigrate)
	assert.Equal(t, "u1", asset.UserID)
	assert.Equal(t, "image/jpeg", asset.MIMEType)
	assert.Equal(t, "avatars/u1.jpg", asset.StoragePath())
	assert.Equal(t, "avatar", asset.MediaType())
}

func TestDeriveAssetSkipReasons(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	keys := testKeys()

	tests := []struct {
		name string
		file SourceFile
		want string
	}{
		{
			name: "unmapped user key",
			file: SourceFile{Path: writeFile(t, dir, "x.jpg", jpegHeader), Category: CategoryProfile, LegacyUserID: "unknown"},
			want: "no target user",
		},
		{
			name: "unmapped service key",
			file: SourceFile{Path: writeFile(t, dir, "y.jpg", jpegHeader), Category: CategoryService, LegacyServiceID: "unknown"},
			want: "no target service",
		},
		{
			name: "unmapped message key",
			file: SourceFile{Path: writeFile(t, dir, "z.jpg", jpegHeader), Category: CategoryChat, LegacyMessageID: "unknown"},
			want: "no target message",
		},
		{
			name: "unsupported content type",
			file: SourceFile{Path: writeFile(t, dir, "doc.jpg", []byte("just some text content")), Category: CategoryProfile, LegacyUserID: "legacy-u1"},
			want: "unsupported content type",
		},
		{
			name: "missing file",
			file: SourceFile{Path: filepath.Join(dir, "missing.jpg"), Category: CategoryProfile, LegacyUserID: "legacy-u1"},
			want: "cannot read file",
		},
		{
			name: "unknown category",
			file: SourceFile{Path: writeFile(t, dir, "w.jpg", jpegHeader), Category: "video"},
			want: "unknown media category",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			asset := DeriveAsset(&tt.file, keys)
			assert.False(t, asset.CanMigrate)
			assert.Contains(t, asset.SkipReason, tt.want)
		})
	}
}

func TestStoragePaths(t *testing.T) {
	t.Parallel()

	service := Asset{
		OriginalPath: "/dump/media/photo-01.jpeg",
		Category:     CategoryService,
		MIMEType:     "image/jpeg",
		ServiceID:    "sv1",
		StylistID:    "st1",
	}
	assert.Equal(t, "services/st1/sv1/photo-01.jpg", service.StoragePath())

	chat := Asset{
		OriginalPath: "/dump/media/img.png",
		Category:     CategoryChat,
		MIMEType:     "image/png",
		ChatID:       "c1",
		MessageID:    "m1",
	}
	assert.Equal(t, "chat/c1/m1.png", chat.StoragePath())
}

func TestMarkPreviews(t *testing.T) {
	t.Parallel()

	assets := []Asset{
		{OriginalPath: "/m/b.jpg", Category: CategoryService, ServiceID: "sv1", CanMigrate: true},
		{OriginalPath: "/m/a.jpg", Category: CategoryService, ServiceID: "sv1", CanMigrate: true},
		{OriginalPath: "/m/c.jpg", Category: CategoryService, ServiceID: "sv1", CanMigrate: true},
		{OriginalPath: "/m/z.jpg", Category: CategoryService, ServiceID: "sv2", CanMigrate: true},
		{OriginalPath: "/m/skip.jpg", Category: CategoryService, ServiceID: "sv3", CanMigrate: false},
		{OriginalPath: "/m/avatar.jpg", Category: CategoryProfile, UserID: "u1", CanMigrate: true},
	}

	MarkPreviews(assets)

	previews := make(map[string][]string)
	for i := range assets {
		if assets[i].IsPreview {
			previews[assets[i].ServiceID] = append(previews[assets[i].ServiceID], assets[i].OriginalPath)
		}
	}

	require.Len(t, previews["sv1"], 1, "exactly one preview per service owner")
	assert.Equal(t, "/m/a.jpg", previews["sv1"][0], "lexicographically first path wins")
	assert.Equal(t, []string{"/m/z.jpg"}, previews["sv2"])
	assert.Empty(t, previews["sv3"], "unmigratable assets never become previews")
	assert.Empty(t, previews[""], "non-service assets never become previews")
}
