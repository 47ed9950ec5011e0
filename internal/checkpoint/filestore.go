package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore persists checkpoints as JSON files in a single directory. Writes
// go to a temp file first and are renamed into place so a crash mid-write
// never leaves a truncated checkpoint behind.
type FileStore struct {
	dir string
}

// NewFileStore creates the checkpoint directory if needed and returns a store
// rooted at it.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("checkpoint directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating checkpoint directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// path maps a checkpoint key to its file path. Keys are flat names like
// "users_consolidated"; path separators are rejected by cleaning.
func (fs *FileStore) path(key string) string {
	name := strings.ReplaceAll(filepath.Clean(key), string(filepath.Separator), "_")
	return filepath.Join(fs.dir, name+".json")
}

// LoadRaw implements Store.
func (fs *FileStore) LoadRaw(key string) ([]byte, error) {
	data, err := os.ReadFile(fs.path(key))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint %s: %w", key, err)
	}
	return data, nil
}

// SaveRaw implements Store using an atomic temp write + rename.
func (fs *FileStore) SaveRaw(key string, data []byte) error {
	targetPath := fs.path(key)
	tempPath := targetPath + ".tmp"

	if err := os.WriteFile(tempPath, data, 0o600); err != nil {
		return fmt.Errorf("writing temp checkpoint: %w", err)
	}
	if err := os.Rename(tempPath, targetPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming checkpoint into place: %w", err)
	}
	return nil
}

// Exists implements Store.
func (fs *FileStore) Exists(key string) bool {
	_, err := os.Stat(fs.path(key))
	return err == nil
}

// Delete implements Store.
func (fs *FileStore) Delete(key string) error {
	if err := os.Remove(fs.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting checkpoint %s: %w", key, err)
	}
	return nil
}
