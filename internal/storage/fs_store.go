package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/polski-lektor/lektor-tts/internal/xfs"
)

const filePermissions = 0o644

// FSStore stores objects as flat files under a root directory.
type FSStore struct {
	root string
}

// NewFSStore creates the root directory if needed and returns a store over it.
func NewFSStore(root string) (*FSStore, error) {
	if err := xfs.EnsureDir(root); err != nil {
		return nil, err
	}

	return &FSStore{root: root}, nil
}

// Root returns the directory objects are written to.
func (s *FSStore) Root() string {
	return s.root
}

// Upload writes data to root/key, replacing any previous content.
func (s *FSStore) Upload(_ context.Context, key string, data []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, filePermissions); err != nil {
		return fmt.Errorf("failed to write object '%s': %w", key, err)
	}

	return nil
}

// Download reads root/key.
func (s *FSStore) Download(_ context.Context, key string) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read object '%s': %w", key, err)
	}

	return data, nil
}

// Location returns the file path of key.
func (s *FSStore) Location(key string) string {
	return filepath.Join(s.root, key)
}

func (s *FSStore) path(key string) (string, error) {
	if !ValidKey(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	return filepath.Join(s.root, key), nil
}

// ValidKey reports whether key is a single, non-special path element.
func ValidKey(key string) bool {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return false
	}

	return filepath.Base(key) == key
}
