// Package admission gates job creation on the user's plan limits.
package admission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"productsnap/internal/domain"
)

// Counters is the slice of the ledger admission needs.
type Counters interface {
	Usage(ctx context.Context, userID string, period domain.Period, at time.Time) (int, error)
	IncrementUsage(ctx context.Context, userID string, period domain.Period, at time.Time) (int, error)
	Concurrent(ctx context.Context, userID string) (int, error)
}

// Controller checks and advances usage. It never touches the concurrency
// counter; the worker owns that.
type Controller struct {
	counters Counters
	limits   domain.PlanLimitTable
	now      func() time.Time
}

func NewController(counters Counters, limits domain.PlanLimitTable) *Controller {
	return &Controller{counters: counters, limits: limits, now: time.Now}
}

// Limits returns the limits applied to plan.
func (c *Controller) Limits(plan domain.Plan) domain.PlanLimits {
	return c.limits.For(plan)
}

// CheckJobLimit reports whether userID may create one more job. Usage is
// checked before concurrency. It has no side effects.
func (c *Controller) CheckJobLimit(ctx context.Context, userID string, plan domain.Plan) (bool, string, error) {
	limits := c.limits.For(plan)

	used, err := c.counters.Usage(ctx, userID, limits.Period, c.now())
	if err != nil {
		return false, "", fmt.Errorf("admission: read usage: %w", err)
	}
	if used >= limits.MaxJobs {
		return false, fmt.Sprintf("Usage limit exceeded (%d jobs per %s)", limits.MaxJobs, limits.Period), nil
	}

	active, err := c.counters.Concurrent(ctx, userID)
	if err != nil {
		return false, "", fmt.Errorf("admission: read concurrency: %w", err)
	}
	if active >= limits.MaxConcurrent {
		return false, fmt.Sprintf("Concurrent job limit exceeded (%d jobs)", limits.MaxConcurrent), nil
	}
	return true, "", nil
}

// IncrementUsage counts one accepted job. Call it only after the job record
// exists.
func (c *Controller) IncrementUsage(ctx context.Context, userID string, plan domain.Plan) (int, error) {
	limits := c.limits.For(plan)
	n, err := c.counters.IncrementUsage(ctx, userID, limits.Period, c.now())
	if err != nil {
		return 0, fmt.Errorf("admission: increment usage: %w", err)
	}
	return n, nil
}

// Stats is the usage summary shown to users.
type Stats struct {
	Plan          domain.Plan   `json:"plan"`
	Period        domain.Period `json:"period"`
	Used          int           `json:"used"`
	Limit         int           `json:"limit"`
	Remaining     int           `json:"remaining"`
	Concurrent    int           `json:"concurrent"`
	MaxConcurrent int           `json:"max_concurrent"`
}

func (c *Controller) UsageStats(ctx context.Context, userID string, plan domain.Plan) (Stats, error) {
	limits := c.limits.For(plan)
	used, err := c.counters.Usage(ctx, userID, limits.Period, c.now())
	if err != nil {
		return Stats{}, fmt.Errorf("admission: read usage: %w", err)
	}
	active, err := c.counters.Concurrent(ctx, userID)
	if err != nil {
		return Stats{}, fmt.Errorf("admission: read concurrency: %w", err)
	}
	return Stats{
		Plan:          plan,
		Period:        limits.Period,
		Used:          used,
		Limit:         limits.MaxJobs,
		Remaining:     max(0, limits.MaxJobs-used),
		Concurrent:    active,
		MaxConcurrent: limits.MaxConcurrent,
	}, nil
}

// ResolvePlan looks up the plan used for limiting userID. A user without a
// subscription row is on the free tier.
func ResolvePlan(ctx context.Context, subs domain.SubscriptionRepository, userID string) (domain.Plan, error) {
	sub, err := subs.GetByUserID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.PlanFree, nil
	}
	if err != nil {
		return "", fmt.Errorf("admission: load subscription: %w", err)
	}
	return sub.EffectivePlan(), nil
}
