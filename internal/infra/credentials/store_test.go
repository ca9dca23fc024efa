package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type stubExecutor struct {
	token   string
	err     error
	lookups int
	exec    struct {
		query string
		args  []any
	}
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.exec.query = query
	s.exec.args = args
	return pgconn.CommandTag{}, s.err
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.lookups++
	return stubRow{token: s.token, err: s.err}
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type stubRow struct {
	token string
	err   error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) == 0 {
		return errors.New("no dest")
	}
	ptr, ok := dest[0].(*string)
	if !ok {
		return errors.New("invalid dest")
	}
	*ptr = r.token
	return nil
}

func TestGenerationAPIKey(t *testing.T) {
	store := NewStore(&stubExecutor{token: " nb-123 "})
	key, err := store.GenerationAPIKey(context.Background())
	if err != nil {
		t.Fatalf("GenerationAPIKey error: %v", err)
	}
	if key != "nb-123" {
		t.Fatalf("expected nb-123, got %q", key)
	}
}

func TestGenerationAPIKey_NoRows(t *testing.T) {
	store := NewStore(&stubExecutor{err: pgx.ErrNoRows})
	key, err := store.GenerationAPIKey(context.Background())
	if err != nil {
		t.Fatalf("GenerationAPIKey error: %v", err)
	}
	if key != "" {
		t.Fatalf("expected empty key, got %q", key)
	}
}

func TestSetGenerationAPIKey(t *testing.T) {
	exec := &stubExecutor{}
	store := NewStore(exec)
	if err := store.SetGenerationAPIKey(context.Background(), " secret "); err != nil {
		t.Fatalf("SetGenerationAPIKey error: %v", err)
	}
	if len(exec.exec.args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(exec.exec.args))
	}
	if v, ok := exec.exec.args[0].(string); !ok || v != ProviderGeneration {
		t.Fatalf("expected provider argument, got %T %v", exec.exec.args[0], exec.exec.args[0])
	}
	if v, ok := exec.exec.args[1].(string); !ok || v != "secret" {
		t.Fatalf("expected secret argument, got %T %v", exec.exec.args[1], exec.exec.args[1])
	}
}

func TestSetGenerationAPIKeyEmpty(t *testing.T) {
	store := NewStore(&stubExecutor{})
	if err := store.SetGenerationAPIKey(context.Background(), " "); !errors.Is(err, ErrEmptyToken) {
		t.Fatalf("expected ErrEmptyToken, got %v", err)
	}
}

func TestKeyFuncPrefersFallback(t *testing.T) {
	exec := &stubExecutor{token: "stored"}
	store := NewStore(exec)

	key, err := store.KeyFunc("from-env")(context.Background())
	if err != nil || key != "from-env" {
		t.Fatalf("expected env key, got %q, %v", key, err)
	}
	if exec.lookups != 0 {
		t.Fatal("store should not be queried when fallback is set")
	}

	key, err = store.KeyFunc("")(context.Background())
	if err != nil || key != "stored" {
		t.Fatalf("expected stored key, got %q, %v", key, err)
	}
}
