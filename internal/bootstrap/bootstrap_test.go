package bootstrap

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"productsnap/internal/infra"
	"productsnap/internal/notify"
	"productsnap/internal/providers/generation"
	"productsnap/internal/storage"
)

func TestStorageDefaultsToLocal(t *testing.T) {
	dir := t.TempDir()
	store, static, err := Storage(context.Background(), &infra.Config{StorageDriver: "local", StoragePath: dir, StorageBaseURL: "http://x/static"})
	if err != nil {
		t.Fatalf("Storage: %v", err)
	}
	if _, ok := store.(*storage.FileStore); !ok || static != dir {
		t.Fatalf("store = %T, static = %q", store, static)
	}
}

func TestGeneratorAndNotifierSelection(t *testing.T) {
	cfg := &infra.Config{GenerationMode: "mock"}
	gen, err := Generator(cfg, nil, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("Generator: %v", err)
	}
	if _, ok := gen.(*generation.MockClient); !ok {
		t.Fatalf("generator = %T", gen)
	}

	cfg = &infra.Config{GenerationMode: "live", GenerationAPIURL: "https://gen.test"}
	gen, err = Generator(cfg, nil, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("Generator live: %v", err)
	}
	if _, ok := gen.(*generation.LiveClient); !ok {
		t.Fatalf("generator = %T", gen)
	}

	if _, ok := Notifier(&infra.Config{}, zerolog.Nop()).(*notify.LogNotifier); !ok {
		t.Fatal("expected log notifier without SMTP host")
	}
	if _, ok := Notifier(&infra.Config{SMTPHost: "mail.test"}, zerolog.Nop()).(*notify.SMTPNotifier); !ok {
		t.Fatal("expected smtp notifier")
	}
}
