package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// LocalScheme prefixes locators issued by FileStore.
const LocalScheme = "local://"

// FileStore persists assets onto the local filesystem. It is intended for
// development and test environments where an object storage service is not
// available.
type FileStore struct {
	basePath string
	baseURL  string
}

// NewFileStore initializes a FileStore rooted at basePath. baseURL is where
// the API serves that directory.
func NewFileStore(basePath, baseURL string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{basePath: basePath, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// Write persists the provided bytes at the given relative key and returns the
// canonicalized storage key. Keys are cleaned to prevent directory traversal.
func (s *FileStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	return cleanKey, nil
}

func (s *FileStore) UploadBytes(ctx context.Context, data []byte, filename, _ string, folder string) (string, error) {
	key, err := s.Write(ctx, NewKey(folder, filename), data)
	if err != nil {
		return "", err
	}
	return LocalScheme + key, nil
}

func (s *FileStore) Download(ctx context.Context, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fullPath, ok, err := s.resolve(locator)
	if !ok || err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read file: %w", err)
	}
	return data, nil
}

func (s *FileStore) Delete(ctx context.Context, locator string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fullPath, ok, err := s.resolve(locator)
	if !ok || err != nil {
		return false, err
	}
	err = os.Remove(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage: remove file: %w", err)
	}
	return true, nil
}

// SignedURL points at the static file route. The expiry is advisory; the
// development file server does not enforce it.
func (s *FileStore) SignedURL(_ context.Context, locator string, ttl time.Duration) (string, error) {
	if !strings.HasPrefix(locator, LocalScheme) {
		return "", fmt.Errorf("storage: foreign locator %q", locator)
	}
	key, err := sanitizeKey(strings.TrimPrefix(locator, LocalScheme))
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))
	return s.baseURL + "/" + key + "?" + q.Encode(), nil
}

func (s *FileStore) resolve(locator string) (string, bool, error) {
	if !strings.HasPrefix(locator, LocalScheme) {
		return "", false, nil
	}
	key, err := sanitizeKey(strings.TrimPrefix(locator, LocalScheme))
	if err != nil {
		return "", false, err
	}
	return filepath.Join(s.basePath, filepath.FromSlash(key)), true, nil
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.ToSlash(filepath.Clean(key))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}

var _ Storage = (*FileStore)(nil)
