package storage

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir(), "http://localhost:8080/static/")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	locator, err := store.UploadBytes(ctx, []byte("png-bytes"), "My Product (1).png", "image/png", FolderResults)
	if err != nil {
		t.Fatalf("UploadBytes: %v", err)
	}
	if !strings.HasPrefix(locator, "local://results/") || !strings.HasSuffix(locator, "/My_Product_1_.png") {
		t.Fatalf("unexpected locator %q", locator)
	}

	data, err := store.Download(ctx, locator)
	if err != nil || string(data) != "png-bytes" {
		t.Fatalf("Download = %q, %v", data, err)
	}

	signed, err := store.SignedURL(ctx, locator, time.Hour)
	if err != nil {
		t.Fatalf("SignedURL: %v", err)
	}
	u, err := url.Parse(signed)
	if err != nil || !strings.HasPrefix(signed, "http://localhost:8080/static/results/") || u.Query().Get("expires") == "" {
		t.Fatalf("unexpected signed url %q", signed)
	}

	removed, err := store.Delete(ctx, locator)
	if err != nil || !removed {
		t.Fatalf("Delete = %t, %v", removed, err)
	}
	removed, err = store.Delete(ctx, locator)
	if err != nil || removed {
		t.Fatalf("second Delete = %t, %v", removed, err)
	}
	data, err = store.Download(ctx, locator)
	if err != nil || data != nil {
		t.Fatalf("Download after delete = %q, %v", data, err)
	}
}

func TestFileStoreForeignLocator(t *testing.T) {
	ctx := context.Background()
	store, _ := NewFileStore(t.TempDir(), "")

	data, err := store.Download(ctx, "s3://bucket/results/x.png")
	if err != nil || data != nil {
		t.Fatalf("foreign Download = %q, %v", data, err)
	}
	if removed, err := store.Delete(ctx, "s3://bucket/results/x.png"); err != nil || removed {
		t.Fatalf("foreign Delete = %t, %v", removed, err)
	}
	if _, err := store.SignedURL(ctx, "s3://bucket/x", time.Minute); err == nil {
		t.Fatal("expected error for foreign SignedURL")
	}
}

func TestSanitizeKey(t *testing.T) {
	valid := map[string]string{
		"results/a.png":   "results/a.png",
		"/results//a.png": "results/a.png",
		"./thumbs\\b.png": "thumbs/b.png",
		"a/../b/c.png":    "b/c.png",
	}
	for in, want := range valid {
		got, err := sanitizeKey(in)
		if err != nil || got != want {
			t.Fatalf("sanitizeKey(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, in := range []string{"", "  ", "..", "../etc/passwd", "a/../../b"} {
		if _, err := sanitizeKey(in); err == nil {
			t.Fatalf("sanitizeKey(%q) should fail", in)
		}
	}
}

func TestNewKey(t *testing.T) {
	key := NewKey("/uploads/", "../../evil.png")
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] != "uploads" || parts[2] != "evil.png" || len(parts[1]) != 36 {
		t.Fatalf("unexpected key %q", key)
	}
	if SanitizeFilename("   ") != "file" {
		t.Fatal("blank filename should fall back to file")
	}
}
