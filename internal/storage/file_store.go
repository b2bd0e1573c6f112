package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore persists each key as its own file under a data directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the data directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	// Keys are internal constants, but keep path traversal out anyway.
	safe := strings.ReplaceAll(key, string(os.PathSeparator), "_")
	return filepath.Join(s.dir, safe+".dat")
}

// Get reads a key. A missing file is absence, not an error.
func (s *FileStore) Get(key string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Set writes a key atomically via a temp file rename.
func (s *FileStore) Set(key string, value []byte) error {
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, value, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(key))
}

// Delete removes a key. Deleting an absent key is a no-op.
func (s *FileStore) Delete(key string) error {
	err := os.Remove(s.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

var _ KV = (*FileStore)(nil)
