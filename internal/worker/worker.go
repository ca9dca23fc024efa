// Package worker drives queued jobs through generation and reclaims jobs
// abandoned by crashed workers.
package worker

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"productsnap/internal/domain"
	"productsnap/internal/imaging"
	"productsnap/internal/notify"
	"productsnap/internal/providers/generation"
	"productsnap/internal/storage"
)

// JobSource yields job ids and takes back ids the worker could not start.
// queue.Queue satisfies it.
type JobSource interface {
	Dequeue(ctx context.Context) (string, bool, error)
	Enqueue(ctx context.Context, jobID string) error
}

// ConcurrencyCounter tracks in-flight jobs per user. ledger.Ledger satisfies it.
type ConcurrencyCounter interface {
	IncrementConcurrent(ctx context.Context, userID string) (int, error)
	DecrementConcurrent(ctx context.Context, userID string) (int, error)
}

// NoticeSink accepts completion notices without blocking.
type NoticeSink interface {
	Notify(n notify.Notice) bool
}

// Options tunes the loop.
type Options struct {
	IdleInterval     time.Duration
	ErrorBackoff     time.Duration
	PollInterval     time.Duration
	MaxWait          time.Duration
	ThumbnailMaxSize int
}

func (o Options) withDefaults() Options {
	if o.IdleInterval <= 0 {
		o.IdleInterval = time.Second
	}
	if o.ErrorBackoff <= 0 {
		o.ErrorBackoff = 5 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Second
	}
	if o.MaxWait <= 0 {
		o.MaxWait = 300 * time.Second
	}
	if o.ThumbnailMaxSize <= 0 {
		o.ThumbnailMaxSize = imaging.DefaultMaxSize
	}
	return o
}

// Deps are the collaborators a Worker needs. Notices may be nil.
type Deps struct {
	Source    JobSource
	Jobs      domain.JobRepository
	Users     domain.UserRepository
	Counter   ConcurrencyCounter
	Generator generation.Client
	Store     storage.Storage
	Notices   NoticeSink
	Logger    zerolog.Logger
}

// Worker processes one job at a time. Run several processes to scale out.
type Worker struct {
	Deps
	opts Options
	now  func() time.Time
}

func New(deps Deps, opts Options) *Worker {
	return &Worker{Deps: deps, opts: opts.withDefaults(), now: func() time.Time { return time.Now().UTC() }}
}

// Run polls the source until ctx is cancelled. Errors from an iteration are
// logged and followed by ErrorBackoff.
func (w *Worker) Run(ctx context.Context) error {
	w.Logger.Info().Dur("idle_interval", w.opts.IdleInterval).Msg("worker: started")
	for {
		processed, err := w.RunOnce(ctx)
		if ctx.Err() != nil {
			w.Logger.Info().Msg("worker: stopping")
			return nil
		}
		switch {
		case err != nil:
			w.Logger.Error().Err(err).Dur("backoff", w.opts.ErrorBackoff).Msg("worker: iteration failed")
			if !sleep(ctx, w.opts.ErrorBackoff) {
				return nil
			}
		case !processed:
			if !sleep(ctx, w.opts.IdleInterval) {
				return nil
			}
		}
	}
}

// RunOnce pops at most one job and handles it. processed is false when the
// queue was empty. Only infrastructure failures are returned, and the popped
// id is pushed back when one stops the job before it was claimed. A job that
// fails generation is recorded as failed and reported as processed.
func (w *Worker) RunOnce(ctx context.Context) (processed bool, err error) {
	jobID, ok, err := w.Source.Dequeue(ctx)
	if err != nil {
		return false, fmt.Errorf("dequeue: %w", err)
	}
	if !ok {
		return false, nil
	}
	if err := w.Process(ctx, jobID); err != nil {
		// The id already left the list and the row is still queued; put it back
		// so the next iteration after the backoff retries it.
		if qerr := w.Source.Enqueue(context.WithoutCancel(ctx), jobID); qerr != nil {
			return true, fmt.Errorf("%w (requeue %s: %v)", err, jobID, qerr)
		}
		return true, err
	}
	return true, nil
}

// Process runs a single job id through the lifecycle. Persistence uses a
// context detached from ctx so shutdown never strands a half-written row;
// generation still observes ctx.
func (w *Worker) Process(ctx context.Context, jobID string) error {
	logger := w.Logger.With().Str("job_id", jobID).Logger()
	store := context.WithoutCancel(ctx)

	job, err := w.Jobs.GetByID(store, jobID)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Warn().Msg("worker: job not found, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	user, err := w.Users.GetByID(store, job.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Warn().Str("user_id", job.UserID).Msg("worker: job owner not found, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load user %s: %w", job.UserID, err)
	}

	started := w.now()
	claimed, err := w.Jobs.MarkProcessing(store, job.ID, started)
	if err != nil {
		return fmt.Errorf("mark job %s processing: %w", job.ID, err)
	}
	if !claimed {
		logger.Info().Str("status", string(job.Status)).Msg("worker: job no longer runnable, skipping")
		return nil
	}
	logger.Info().Str("user_id", job.UserID).Str("mode", string(job.Mode)).Msg("worker: processing job")

	if _, err := w.Counter.IncrementConcurrent(store, job.UserID); err != nil {
		logger.Error().Err(err).Msg("worker: increment concurrency failed")
	} else {
		defer func() {
			if _, err := w.Counter.DecrementConcurrent(store, job.UserID); err != nil {
				logger.Error().Err(err).Msg("worker: decrement concurrency failed")
			}
		}()
	}

	result, err := w.execute(ctx, store, job, logger)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		logger.Warn().Msg("worker: interrupted by shutdown, leaving job for the reaper")
		return nil
	}
	if err != nil {
		logger.Error().Err(err).Msg("worker: job failed")
		failed, ferr := w.Jobs.Fail(store, job.ID, err.Error(), w.now())
		switch {
		case ferr != nil:
			logger.Error().Err(ferr).Msg("worker: persist failure failed")
		case !failed:
			logger.Warn().Msg("worker: job left processing before this attempt failed, keeping its state")
		}
		return nil
	}

	completed := w.now()
	result.CompletedAt = completed
	result.ProcessingTimeSeconds = int(completed.Sub(started).Seconds())
	done, err := w.Jobs.Complete(store, job.ID, result)
	if err != nil {
		logger.Error().Err(err).Msg("worker: persist completion failed")
		return nil
	}
	if !done {
		logger.Warn().Msg("worker: job left processing before this attempt completed, discarding its results")
		w.discard(store, result, logger)
		return nil
	}
	logger.Info().
		Int("results", len(result.ResultURLs)).
		Int("processing_seconds", result.ProcessingTimeSeconds).
		Msg("worker: job completed")

	w.notify(job, user, logger)
	return nil
}

// execute covers generation, result storage and the thumbnail. A panic in
// any of them is converted into a job failure.
func (w *Worker) execute(ctx, store context.Context, job *domain.Job, logger zerolog.Logger) (result domain.JobResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("worker: recovered panic")
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	opts, perr := domain.ParseSubOptions(job.Prompt)
	if perr != nil {
		logger.Warn().Err(perr).Msg("worker: ignoring malformed sub-options")
		opts = domain.SubOptions{}
	}

	images, err := w.generate(ctx, store, job, opts, logger)
	if err != nil {
		return domain.JobResult{}, err
	}

	var (
		locators []string
		first    []byte
	)
	for i, encoded := range images {
		data, err := decodeImage(encoded)
		if err != nil {
			logger.Warn().Err(err).Int("index", i).Msg("worker: skipping undecodable result")
			continue
		}
		locator, err := w.Store.UploadBytes(store, data, fmt.Sprintf("result_%s.png", uuid.NewString()), "image/png", storage.FolderResults)
		if err != nil {
			logger.Warn().Err(err).Int("index", i).Msg("worker: skipping result that failed to store")
			continue
		}
		if first == nil {
			first = data
		}
		locators = append(locators, locator)
	}
	if len(locators) == 0 {
		return domain.JobResult{}, domain.ErrNoResults
	}

	thumb, err := imaging.Thumbnail(first, w.opts.ThumbnailMaxSize)
	if err != nil {
		return domain.JobResult{}, fmt.Errorf("thumbnail: %w", err)
	}
	thumbLocator, err := w.Store.UploadBytes(store, thumb, fmt.Sprintf("thumb_%s.png", uuid.NewString()), "image/png", storage.FolderThumbnails)
	if err != nil {
		return domain.JobResult{}, fmt.Errorf("store thumbnail: %w", err)
	}
	return domain.JobResult{ResultURLs: locators, ThumbnailURL: thumbLocator}, nil
}

func (w *Worker) generate(ctx, store context.Context, job *domain.Job, opts domain.SubOptions, logger zerolog.Logger) ([]string, error) {
	res, err := w.Generator.CreateJob(ctx, generation.Request{
		JobID:          job.ID,
		InputLocator:   job.InputURL,
		Mode:           job.Mode,
		PromptOverride: job.PromptOverride,
		SubOptions:     opts,
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("%w: empty response", domain.ErrGenerationFailed)
	}
	if res.JobID != "" {
		if err := w.Jobs.SetBackendJobID(store, job.ID, res.JobID); err != nil {
			logger.Warn().Err(err).Msg("worker: persist backend job id failed")
		}
	}
	if len(res.GeneratedImages) > 0 {
		return res.GeneratedImages, nil
	}
	if res.Failed() {
		msg := res.Error
		if msg == "" {
			msg = "Unknown error"
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrGenerationFailed, msg)
	}
	if strings.TrimSpace(res.JobID) == "" {
		return nil, fmt.Errorf("%w: missing backend job id", domain.ErrGenerationFailed)
	}

	w.setProgress(store, job.ID, 10, logger)
	res, err = generation.PollUntilComplete(ctx, w.Generator, res.JobID, w.opts.MaxWait, w.opts.PollInterval)
	if err != nil {
		return nil, err
	}
	w.setProgress(store, job.ID, 90, logger)
	return res.GeneratedImages, nil
}

// discard removes assets stored by an attempt whose outcome was not recorded.
func (w *Worker) discard(ctx context.Context, result domain.JobResult, logger zerolog.Logger) {
	locators := append([]string(nil), result.ResultURLs...)
	if result.ThumbnailURL != "" {
		locators = append(locators, result.ThumbnailURL)
	}
	for _, locator := range locators {
		if _, err := w.Store.Delete(ctx, locator); err != nil {
			logger.Warn().Err(err).Str("locator", locator).Msg("worker: delete orphaned asset failed")
		}
	}
}

func (w *Worker) setProgress(ctx context.Context, jobID string, pct int, logger zerolog.Logger) {
	if err := w.Jobs.SetProgress(ctx, jobID, pct); err != nil {
		logger.Debug().Err(err).Int("progress", pct).Msg("worker: progress update failed")
	}
}

func (w *Worker) notify(job *domain.Job, user *domain.User, logger zerolog.Logger) {
	if w.Notices == nil || user.Email == "" {
		return
	}
	if !w.Notices.Notify(notify.Notice{JobID: job.ID, Mode: job.Mode, Email: user.Email, UserName: user.FullName}) {
		logger.Warn().Msg("worker: completion notice dropped")
	}
}

// decodeImage accepts raw base64 or a data URI.
func decodeImage(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if strings.HasPrefix(encoded, "data:") {
		if idx := strings.Index(encoded, ","); idx >= 0 {
			encoded = encoded[idx+1:]
		}
	}
	if encoded == "" {
		return nil, errors.New("empty image payload")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return data, nil
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
