// Package fs provides a local filesystem blob store, used when no cloud
// storage account is configured.
package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shokudev/kura/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.BlobStore = (*Store)(nil)

// Store keeps blobs as files under a root directory.
type Store struct {
	root string
}

// NewStore creates a filesystem blob store rooted at dir, creating it
// if needed. If dir is empty, defaults to ~/.kura/blobs.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, ".kura", "blobs")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating blob directory: %w", err)
	}
	return &Store{root: dir}, nil
}

// Upload stores content under name, overwriting any previous blob.
func (s *Store) Upload(_ context.Context, name string, content []byte) (string, error) {
	path, err := s.path(name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, content, 0600); err != nil {
		return "", fmt.Errorf("writing blob: %w", err)
	}
	return "file://" + path, nil
}

// Download retrieves a blob's content.
func (s *Store) Download(_ context.Context, name string) ([]byte, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading blob: %w", err)
	}
	return content, nil
}

// Delete removes a blob. A missing blob is treated as success.
func (s *Store) Delete(_ context.Context, name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing blob: %w", err)
	}
	return nil
}

// SignedURL returns the blob's file URL. Local files need no signing;
// the TTL is ignored.
func (s *Store) SignedURL(_ context.Context, name string, _ time.Duration) (string, error) {
	path, err := s.path(name)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("stat blob: %w", err)
	}
	return "file://" + path, nil
}

// path resolves a blob name inside the root, rejecting traversal.
func (s *Store) path(name string) (string, error) {
	clean := filepath.Clean(name)
	if clean == "." || strings.Contains(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid blob name %q", name)
	}
	return filepath.Join(s.root, clean), nil
}
