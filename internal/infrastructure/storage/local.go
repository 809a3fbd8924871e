package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalDocumentStore writes documents to a directory. It is meant for
// development when no bucket is available; links never expire.
type LocalDocumentStore struct {
	dir     string
	baseURL string
}

// NewLocalDocumentStore creates the directory if needed
func NewLocalDocumentStore(dir, baseURL string) (*LocalDocumentStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create document directory: %w", err)
	}
	if baseURL == "" {
		baseURL = "file://" + filepath.ToSlash(dir)
	}
	return &LocalDocumentStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Put writes data under key
func (s *LocalDocumentStore) Put(ctx context.Context, key, contentType string, data []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create document directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

// DownloadURL returns a link under the configured base URL
func (s *LocalDocumentStore) DownloadURL(ctx context.Context, key string, expiresIn time.Duration) (string, time.Time, error) {
	if _, err := s.path(key); err != nil {
		return "", time.Time{}, err
	}
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/" + strings.Join(segments, "/"), time.Time{}, nil
}

func (s *LocalDocumentStore) path(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", ErrEmptyKey
	}
	clean := filepath.Clean("/" + key)
	return filepath.Join(s.dir, clean), nil
}
