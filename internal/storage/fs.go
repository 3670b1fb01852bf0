package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FS stores blobs on the local filesystem under a base directory. It is the
// default store for development and tests.
type FS struct {
	baseDir string
}

func NewFS(baseDir string) *FS {
	return &FS{baseDir: baseDir}
}

func (s *FS) Put(_ context.Context, key string, blob []byte) (string, error) {
	cleaned := filepath.Clean("/" + key)
	path := filepath.Join(s.baseDir, cleaned)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create storage dir: %w", err)
	}
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		return "", fmt.Errorf("write blob %q: %w", key, err)
	}
	return path, nil
}

func (s *FS) Get(_ context.Context, path string) ([]byte, error) {
	cleaned := filepath.Clean(path)
	if !strings.HasPrefix(cleaned, filepath.Clean(s.baseDir)) {
		return nil, fmt.Errorf("path %q outside storage dir", path)
	}
	data, err := os.ReadFile(cleaned)
	if err != nil {
		return nil, fmt.Errorf("read blob %q: %w", path, err)
	}
	return data, nil
}
