package storage

import (
	"context"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Storage persists job assets and hands out opaque locators. Callers never
// interpret a locator beyond passing it back to the store that issued it.
type Storage interface {
	// UploadBytes stores data under folder and returns its locator.
	UploadBytes(ctx context.Context, data []byte, filename, contentType, folder string) (string, error)
	// Download returns nil, nil for locators this store did not issue.
	Download(ctx context.Context, locator string) ([]byte, error)
	// Delete reports whether an object was removed.
	Delete(ctx context.Context, locator string) (bool, error)
	// SignedURL returns a time-limited URL a browser can fetch.
	SignedURL(ctx context.Context, locator string, ttl time.Duration) (string, error)
}

// Folders used by the pipeline.
const (
	FolderUploads    = "uploads"
	FolderResults    = "results"
	FolderThumbnails = "thumbnails"
)

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// NewKey builds "<folder>/<uuid>/<filename>" with a sanitised filename.
func NewKey(folder, filename string) string {
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	if folder == "" {
		folder = "misc"
	}
	return path.Join(folder, uuid.NewString(), SanitizeFilename(filename))
}

// SanitizeFilename keeps the base name and replaces anything outside
// [A-Za-z0-9._-].
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	name = path.Base(name)
	name = unsafeFilename.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "file"
	}
	return name
}
