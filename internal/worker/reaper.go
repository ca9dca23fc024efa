package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"productsnap/internal/domain"
)

// JobSink re-enqueues job ids. queue.Queue satisfies it.
type JobSink interface {
	Enqueue(ctx context.Context, jobID string) error
}

// ConcurrencySetter overwrites a user's concurrency counter.
type ConcurrencySetter interface {
	SetConcurrent(ctx context.Context, userID string, n int) error
}

type ReaperOptions struct {
	Interval   time.Duration
	StaleAfter time.Duration
	// ReconcileConcurrency recounts processing rows for users whose jobs
	// were reaped and overwrites their counters. Requires Counter.
	ReconcileConcurrency bool
}

// Reaper resets jobs stuck in processing back to queued and re-enqueues
// them. A worker that is merely slow can lose its job this way and the job
// may run twice.
type Reaper struct {
	jobs    domain.JobRepository
	sink    JobSink
	counter ConcurrencySetter
	logger  zerolog.Logger
	opts    ReaperOptions
	now     func() time.Time
}

func NewReaper(jobs domain.JobRepository, sink JobSink, counter ConcurrencySetter, logger zerolog.Logger, opts ReaperOptions) *Reaper {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 15 * time.Minute
	}
	return &Reaper{
		jobs:    jobs,
		sink:    sink,
		counter: counter,
		logger:  logger,
		opts:    opts,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps every Interval until ctx is cancelled. Sweep errors are logged.
func (r *Reaper) Run(ctx context.Context) error {
	r.logger.Info().Dur("interval", r.opts.Interval).Dur("stale_after", r.opts.StaleAfter).Msg("reaper: started")
	for {
		if !sleep(ctx, r.opts.Interval) {
			r.logger.Info().Msg("reaper: stopping")
			return nil
		}
		n, err := r.SweepOnce(ctx)
		if err != nil {
			r.logger.Error().Err(err).Int("requeued", n).Msg("reaper: sweep failed")
			continue
		}
		if n > 0 {
			r.logger.Warn().Int("requeued", n).Msg("reaper: requeued stale jobs")
		}
	}
}

// SweepOnce requeues every stale processing job and returns how many were
// requeued.
func (r *Reaper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-r.opts.StaleAfter)
	stale, err := r.jobs.ListStale(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list stale jobs: %w", err)
	}

	requeued := 0
	users := make(map[string]struct{})
	for _, job := range stale {
		ok, err := r.jobs.Requeue(ctx, job.ID)
		if err != nil {
			return requeued, fmt.Errorf("requeue job %s: %w", job.ID, err)
		}
		if !ok {
			continue
		}
		if err := r.sink.Enqueue(ctx, job.ID); err != nil {
			return requeued, fmt.Errorf("enqueue job %s: %w", job.ID, err)
		}
		requeued++
		users[job.UserID] = struct{}{}
		r.logger.Info().Str("job_id", job.ID).Str("user_id", job.UserID).Time("started_at", derefTime(job.StartedAt)).Msg("reaper: requeued stale job")
	}

	if r.opts.ReconcileConcurrency && r.counter != nil {
		for userID := range users {
			r.reconcile(ctx, userID)
		}
	}
	return requeued, nil
}

func (r *Reaper) reconcile(ctx context.Context, userID string) {
	n, err := r.jobs.CountProcessingByUser(ctx, userID)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Msg("reaper: count processing jobs failed")
		return
	}
	if err := r.counter.SetConcurrent(ctx, userID, n); err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Msg("reaper: reconcile concurrency failed")
		return
	}
	r.logger.Info().Str("user_id", userID).Int("concurrent", n).Msg("reaper: reconciled concurrency")
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
