// Package ledger keeps the per-user usage and concurrency counters in Redis.
// Counters are plain integers updated with single atomic commands; there is
// no cross-counter transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"productsnap/internal/domain"
)

const (
	dayTTL   = 24 * time.Hour
	monthTTL = 30 * 24 * time.Hour
)

// decrClamp decrements KEYS[1] but never below zero. A missing key stays
// missing.
var decrClamp = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return 0
end
local v = tonumber(raw)
if v == nil or v <= 1 then
  redis.call('SET', KEYS[1], '0')
  return 0
end
return redis.call('DECR', KEYS[1])
`)

// Ledger reads and writes counters. It holds no state besides the client.
type Ledger struct {
	rdb redis.Cmdable
}

func New(rdb redis.Cmdable) *Ledger {
	return &Ledger{rdb: rdb}
}

// UsageKey returns the period-scoped usage key for userID at t (UTC).
func UsageKey(userID string, period domain.Period, t time.Time) string {
	t = t.UTC()
	if period == domain.PeriodMonth {
		return fmt.Sprintf("usage:%s:%s", userID, t.Format("2006-01"))
	}
	return fmt.Sprintf("usage:%s:%s", userID, t.Format("2006-01-02"))
}

// ConcurrentKey returns the per-user concurrency key.
func ConcurrentKey(userID string) string {
	return "concurrent:" + userID
}

// UsageTTL is the expiry applied when a usage key is incremented. Monthly
// keys roll 30 days from their latest increment rather than at the calendar
// boundary; the month in the key name keeps periods apart.
func UsageTTL(period domain.Period) time.Duration {
	if period == domain.PeriodMonth {
		return monthTTL
	}
	return dayTTL
}

// Usage returns the current usage count, zero when the key is absent.
func (l *Ledger) Usage(ctx context.Context, userID string, period domain.Period, at time.Time) (int, error) {
	return l.get(ctx, UsageKey(userID, period, at))
}

// IncrementUsage advances the usage counter and refreshes its expiry.
func (l *Ledger) IncrementUsage(ctx context.Context, userID string, period domain.Period, at time.Time) (int, error) {
	key := UsageKey(userID, period, at)
	var incr *redis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, UsageTTL(period))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("ledger: increment usage %s: %w", key, err)
	}
	return int(incr.Val()), nil
}

// Concurrent returns the live processing count for userID.
func (l *Ledger) Concurrent(ctx context.Context, userID string) (int, error) {
	return l.get(ctx, ConcurrentKey(userID))
}

func (l *Ledger) IncrementConcurrent(ctx context.Context, userID string) (int, error) {
	n, err := l.rdb.Incr(ctx, ConcurrentKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("ledger: increment concurrent: %w", err)
	}
	return int(n), nil
}

// DecrementConcurrent releases one slot, clamping at zero.
func (l *Ledger) DecrementConcurrent(ctx context.Context, userID string) (int, error) {
	n, err := decrClamp.Run(ctx, l.rdb, []string{ConcurrentKey(userID)}).Int()
	if err != nil {
		return 0, fmt.Errorf("ledger: decrement concurrent: %w", err)
	}
	return n, nil
}

// SetConcurrent overwrites the concurrency counter, e.g. from a recount of
// processing rows. Negative values are stored as zero.
func (l *Ledger) SetConcurrent(ctx context.Context, userID string, n int) error {
	if n < 0 {
		n = 0
	}
	if err := l.rdb.Set(ctx, ConcurrentKey(userID), n, 0).Err(); err != nil {
		return fmt.Errorf("ledger: set concurrent: %w", err)
	}
	return nil
}

func (l *Ledger) get(ctx context.Context, key string) (int, error) {
	n, err := l.rdb.Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ledger: get %s: %w", key, err)
	}
	if n < 0 {
		return 0, nil
	}
	return n, nil
}
