package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemBackend stores objects under a local directory. It backs local
// development where the API server itself serves the directory.
type FilesystemBackend struct {
	basePath string
	baseURL  string
}

// NewFilesystemBackend creates a backend rooted at basePath whose objects are
// reachable under baseURL.
func NewFilesystemBackend(basePath, baseURL string) (*FilesystemBackend, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, err
	}
	return &FilesystemBackend{basePath: basePath, baseURL: baseURL}, nil
}

// Root returns the directory objects are written to.
func (b *FilesystemBackend) Root() string {
	return b.basePath
}

func (b *FilesystemBackend) objectPath(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == "." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || clean == ".." {
		return "", fmt.Errorf("filesystem backend: invalid key %q", key)
	}
	return filepath.Join(b.basePath, clean), nil
}

// Put writes data to a .partial file and renames it into place.
func (b *FilesystemBackend) Put(ctx context.Context, key, contentType string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := b.objectPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	tmpPath := target + ".partial"
	file, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := file.Write(data); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// MakePublic sets world-readable permissions on the stored file.
func (b *FilesystemBackend) MakePublic(_ context.Context, key string) error {
	target, err := b.objectPath(key)
	if err != nil {
		return err
	}
	return os.Chmod(target, 0o644)
}

func (b *FilesystemBackend) PublicURL(key string) string {
	return joinURL(b.baseURL, key)
}

func (b *FilesystemBackend) Delete(_ context.Context, key string) error {
	target, err := b.objectPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
