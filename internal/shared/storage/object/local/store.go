package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"cropguard/internal/shared/storage/object"
)

// Store implements object.ImageStore on the local filesystem.
type Store struct {
	baseDir string
	now     func() time.Time
}

// New creates a new local image store rooted at baseDir.
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now}
}

// Put writes the image under a freshly generated key.
func (s *Store) Put(ctx context.Context, img object.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key, err := object.NewKey(img, s.now())
	if err != nil {
		return "", err
	}

	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(img.Data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write body: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return "", fmt.Errorf("rename: %w", err)
	}
	return key, nil
}

// Open opens a stored image for reading.
func (s *Store) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !object.ValidKey(storageKey) {
		return nil, fmt.Errorf("invalid storage key")
	}
	f, err := os.Open(filepath.Join(s.baseDir, filepath.FromSlash(path.Clean(storageKey))))
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Delete removes a stored image.
func (s *Store) Delete(ctx context.Context, storageKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !object.ValidKey(storageKey) {
		return fmt.Errorf("invalid storage key")
	}
	err := os.Remove(filepath.Join(s.baseDir, filepath.FromSlash(path.Clean(storageKey))))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

var _ object.ImageStore = (*Store)(nil)
