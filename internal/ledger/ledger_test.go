package ledger

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"productsnap/internal/domain"
)

func newTestLedger(t *testing.T) (*Ledger, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb), mr
}

func TestUsageKey(t *testing.T) {
	at := time.Date(2025, 2, 7, 23, 30, 0, 0, time.FixedZone("WIB", 7*3600))
	if got := UsageKey("u1", domain.PeriodDay, at); got != "usage:u1:2025-02-07" {
		t.Fatalf("day key = %q", got)
	}
	if got := UsageKey("u1", domain.PeriodMonth, at); got != "usage:u1:2025-02" {
		t.Fatalf("month key = %q", got)
	}
	if got := ConcurrentKey("u1"); got != "concurrent:u1" {
		t.Fatalf("concurrent key = %q", got)
	}
}

func TestIncrementUsageSetsExpiry(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestLedger(t)
	at := time.Date(2025, 2, 7, 10, 0, 0, 0, time.UTC)

	for i := 1; i <= 3; i++ {
		n, err := l.IncrementUsage(ctx, "u1", domain.PeriodDay, at)
		if err != nil || n != i {
			t.Fatalf("IncrementUsage #%d = %d, %v", i, n, err)
		}
	}
	if ttl := mr.TTL("usage:u1:2025-02-07"); ttl != 24*time.Hour {
		t.Fatalf("day ttl = %s", ttl)
	}

	if _, err := l.IncrementUsage(ctx, "u1", domain.PeriodMonth, at); err != nil {
		t.Fatalf("IncrementUsage month: %v", err)
	}
	if ttl := mr.TTL("usage:u1:2025-02"); ttl != 30*24*time.Hour {
		t.Fatalf("month ttl = %s", ttl)
	}

	n, err := l.Usage(ctx, "u1", domain.PeriodDay, at)
	if err != nil || n != 3 {
		t.Fatalf("Usage = %d, %v", n, err)
	}
	mr.FastForward(25 * time.Hour)
	n, err = l.Usage(ctx, "u1", domain.PeriodDay, at)
	if err != nil || n != 0 {
		t.Fatalf("expired Usage = %d, %v", n, err)
	}
}

func TestDecrementWithoutIncrementNeverNegative(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestLedger(t)

	n, err := l.DecrementConcurrent(ctx, "u1")
	if err != nil || n != 0 {
		t.Fatalf("DecrementConcurrent on missing key = %d, %v", n, err)
	}
	if mr.Exists("concurrent:u1") {
		t.Fatal("decrement must not create the key")
	}

	mr.Set("concurrent:u1", "-3")
	n, err = l.DecrementConcurrent(ctx, "u1")
	if err != nil || n != 0 {
		t.Fatalf("DecrementConcurrent on negative = %d, %v", n, err)
	}
	if v, _ := mr.Get("concurrent:u1"); v != "0" {
		t.Fatalf("negative value not clamped: %q", v)
	}
}

func TestConcurrentRandomSequenceNeverNegative(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	rng := rand.New(rand.NewSource(7))

	expected := 0
	for i := 0; i < 300; i++ {
		var (
			n   int
			err error
		)
		if rng.Intn(2) == 0 {
			n, err = l.IncrementConcurrent(ctx, "u1")
			expected++
		} else {
			n, err = l.DecrementConcurrent(ctx, "u1")
			if expected > 0 {
				expected--
			}
		}
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if n < 0 || n != expected {
			t.Fatalf("step %d: counter = %d, want %d", i, n, expected)
		}
	}
	got, err := l.Concurrent(ctx, "u1")
	if err != nil || got != expected {
		t.Fatalf("Concurrent = %d, %v; want %d", got, err, expected)
	}
}

func TestSetConcurrent(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	l.IncrementConcurrent(ctx, "u1")
	l.IncrementConcurrent(ctx, "u1")

	if err := l.SetConcurrent(ctx, "u1", -1); err != nil {
		t.Fatalf("SetConcurrent: %v", err)
	}
	if n, _ := l.Concurrent(ctx, "u1"); n != 0 {
		t.Fatalf("Concurrent = %d after negative set", n)
	}
	l.SetConcurrent(ctx, "u1", 2)
	if n, _ := l.Concurrent(ctx, "u1"); n != 2 {
		t.Fatalf("Concurrent = %d after set", n)
	}
}
