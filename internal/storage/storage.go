// Package storage abstracts blob storage for uploaded templates and
// generated export archives.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// BlobStorage stores opaque blobs under slash-separated paths and returns
// publicly retrievable URLs.
type BlobStorage interface {
	Put(ctx context.Context, path string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
}

// FileStorage is a filesystem-backed BlobStorage serving files from a base
// directory under a public base URL.
type FileStorage struct {
	basePath      string
	publicBaseURL string
}

func NewFileStorage(basePath, publicBaseURL string) *FileStorage {
	return &FileStorage{
		basePath:      basePath,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// Put writes the blob and returns its public URL. The content type is
// unused by the filesystem backend; object-store backends need it.
func (s *FileStorage) Put(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create storage directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	return s.publicBaseURL + "/" + path, nil
}

func (s *FileStorage) Get(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.basePath, filepath.FromSlash(path)))
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return data, nil
}

func (s *FileStorage) Delete(ctx context.Context, path string) error {
	return os.Remove(filepath.Join(s.basePath, filepath.FromSlash(path)))
}

// BasePath returns the directory the storage serves from, for wiring the
// static file route.
func (s *FileStorage) BasePath() string {
	return s.basePath
}
