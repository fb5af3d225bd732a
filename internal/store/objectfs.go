package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	dserrors "github.com/docsift/docsift/internal/errors"
)

// FSObjectStore implements ObjectStore on the local filesystem. Object paths
// are slash-separated and mapped directly under the root directory; the
// contentType hint is ignored since the filesystem carries no metadata.
type FSObjectStore struct {
	root string
}

// NewFSObjectStore creates an object store rooted at dir.
func NewFSObjectStore(dir string) (*FSObjectStore, error) {
	if dir == "" {
		return nil, dserrors.ValidationError(dserrors.ErrCodeInvalidInput, "object store root must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, dserrors.Wrap(dserrors.ErrCodeStorageWrite, fmt.Errorf("create object store root: %w", err))
	}
	return &FSObjectStore{root: dir}, nil
}

// resolve maps an object path to a filesystem path, rejecting escapes from
// the root.
func (s *FSObjectStore) resolve(path string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(path))
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", dserrors.ValidationError(dserrors.ErrCodeInvalidInput, fmt.Sprintf("invalid object path: %q", path))
	}
	return filepath.Join(s.root, cleaned), nil
}

// Put writes data at path, creating parent directories as needed.
func (s *FSObjectStore) Put(ctx context.Context, path string, data []byte, contentType string) error {
	target, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return dserrors.Wrap(dserrors.ErrCodeStorageWrite, fmt.Errorf("create object directory: %w", err))
	}

	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return dserrors.Wrap(dserrors.ErrCodeStorageWrite, fmt.Errorf("write object %q: %w", path, err))
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return dserrors.Wrap(dserrors.ErrCodeStorageWrite, fmt.Errorf("finalize object %q: %w", path, err))
	}
	return nil
}

// Get reads the object at path.
func (s *FSObjectStore) Get(ctx context.Context, path string) ([]byte, error) {
	target, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return nil, dserrors.Wrap(dserrors.ErrCodeStorageRead, fmt.Errorf("read object %q: %w", path, err))
	}
	return data, nil
}

// DeletePrefix removes every object whose path starts with prefix. A prefix
// with no objects is a no-op, which keeps rollback idempotent.
func (s *FSObjectStore) DeletePrefix(ctx context.Context, prefix string) error {
	target, err := s.resolve(prefix)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(target); err != nil {
		return dserrors.Wrap(dserrors.ErrCodeStorageDelete, fmt.Errorf("delete object prefix %q: %w", prefix, err))
	}
	return nil
}
