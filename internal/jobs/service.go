// Package jobs is the API side of the pipeline: it admits, stores and
// enqueues new jobs and serves them back to their owners.
package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"productsnap/internal/admission"
	"productsnap/internal/domain"
	"productsnap/internal/infra/geoip"
	"productsnap/internal/storage"
	zipper "productsnap/pkg/zip"
)

const defaultURLTTL = time.Hour

var allowedContentTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// AdmissionError carries the user-facing reason a job was refused.
type AdmissionError struct {
	Reason string
}

func (e *AdmissionError) Error() string { return e.Reason }

func (e *AdmissionError) Unwrap() error { return domain.ErrQuotaExceeded }

// Enqueuer hands job ids to workers. queue.Queue satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobID string) error
}

// Actor identifies who performs an action, for the audit log.
type Actor struct {
	UserID    string
	IP        string
	UserAgent string
}

// CreateInput is one upload accepted by the API.
type CreateInput struct {
	Actor          Actor
	Filename       string
	Data           []byte
	Mode           string
	PromptOverride string
	SubOptions     domain.SubOptions
}

type Deps struct {
	Jobs          domain.JobRepository
	Subscriptions domain.SubscriptionRepository
	Audit         domain.AuditRepository
	Admission     *admission.Controller
	Queue         Enqueuer
	Store         storage.Storage
	GeoIP         geoip.CountryResolver
	Logger        zerolog.Logger
	URLTTL        time.Duration
}

type Service struct {
	Deps
	now func() time.Time
}

func NewService(deps Deps) *Service {
	if deps.URLTTL <= 0 {
		deps.URLTTL = defaultURLTTL
	}
	return &Service{Deps: deps, now: func() time.Time { return time.Now().UTC() }}
}

// Create admits, stores and enqueues a new job. A refused job returns an
// *AdmissionError.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Job, error) {
	mode, err := domain.ParseJobMode(in.Mode)
	if err != nil {
		return nil, err
	}
	if len(in.Data) == 0 {
		return nil, fmt.Errorf("%w: empty file", domain.ErrInvalidUpload)
	}
	contentType := http.DetectContentType(in.Data)
	ext, ok := allowedContentTypes[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported content type %s", domain.ErrInvalidUpload, contentType)
	}

	plan, err := admission.ResolvePlan(ctx, s.Subscriptions, in.Actor.UserID)
	if err != nil {
		return nil, err
	}
	allowed, reason, err := s.Admission.CheckJobLimit(ctx, in.Actor.UserID, plan)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, &AdmissionError{Reason: reason}
	}

	filename := strings.TrimSpace(in.Filename)
	if filename == "" {
		filename = "upload" + ext
	}
	locator, err := s.Store.UploadBytes(ctx, in.Data, filename, contentType, storage.FolderUploads)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	job := &domain.Job{
		ID:             uuid.NewString(),
		UserID:         in.Actor.UserID,
		Mode:           mode,
		Status:         domain.JobStatusQueued,
		InputURL:       locator,
		InputFilename:  filename,
		Prompt:         in.SubOptions.Encode(),
		PromptOverride: strings.TrimSpace(in.PromptOverride),
	}
	if err := s.Jobs.Create(ctx, job); err != nil {
		s.discard(ctx, locator)
		return nil, fmt.Errorf("create job: %w", err)
	}
	logger := s.Logger.With().Str("job_id", job.ID).Str("user_id", job.UserID).Logger()

	if _, err := s.Admission.IncrementUsage(ctx, job.UserID, plan); err != nil {
		logger.Error().Err(err).Msg("jobs: increment usage failed")
	}
	if err := s.Queue.Enqueue(ctx, job.ID); err != nil {
		// A queued row that is not on the list would never run. Usage stays counted.
		cleanup := context.WithoutCancel(ctx)
		if derr := s.Jobs.Delete(cleanup, job.ID, job.UserID); derr != nil {
			logger.Error().Err(derr).Msg("jobs: remove unqueued job failed")
		}
		s.discard(cleanup, locator)
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	s.record(ctx, in.Actor, "job.create", job.ID, map[string]any{"mode": string(mode), "plan": string(plan)})
	logger.Info().Str("mode", string(mode)).Msg("jobs: job queued")
	return job, nil
}

// Get returns the caller's job. Jobs owned by someone else are reported as
// not found.
func (s *Service) Get(ctx context.Context, userID, jobID string) (*domain.Job, error) {
	return s.Jobs.GetForUser(ctx, jobID, userID)
}

func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]domain.Job, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.Jobs.ListByUser(ctx, userID, limit, offset)
}

// Cancel stops a job that has not started processing.
func (s *Service) Cancel(ctx context.Context, actor Actor, jobID string) error {
	ok, err := s.Jobs.Cancel(ctx, jobID, actor.UserID)
	if err != nil {
		return err
	}
	if !ok {
		if _, err := s.Jobs.GetForUser(ctx, jobID, actor.UserID); err != nil {
			return err
		}
		return domain.ErrNotCancellable
	}
	s.record(ctx, actor, "job.cancel", jobID, nil)
	return nil
}

// Delete removes the job's assets and then its row. Asset removal is best
// effort.
func (s *Service) Delete(ctx context.Context, actor Actor, jobID string) error {
	job, err := s.Jobs.GetForUser(ctx, jobID, actor.UserID)
	if err != nil {
		return err
	}
	if job.Status == domain.JobStatusProcessing {
		return fmt.Errorf("%w: job is processing", domain.ErrNotCancellable)
	}
	locators := append([]string{job.InputURL, job.ThumbnailURL}, job.ResultURLs...)
	for _, locator := range locators {
		s.discard(ctx, locator)
	}
	if err := s.Jobs.Delete(ctx, jobID, actor.UserID); err != nil {
		return err
	}
	s.record(ctx, actor, "job.delete", jobID, nil)
	return nil
}

// Archive zips the results of a completed job.
func (s *Service) Archive(ctx context.Context, userID, jobID string) ([]byte, string, error) {
	job, err := s.Jobs.GetForUser(ctx, jobID, userID)
	if err != nil {
		return nil, "", err
	}
	if job.Status != domain.JobStatusCompleted {
		return nil, "", domain.ErrNotCompleted
	}
	assets := make([]zipper.Asset, 0, len(job.ResultURLs))
	for i, locator := range job.ResultURLs {
		data, err := s.Store.Download(ctx, locator)
		if err != nil {
			return nil, "", fmt.Errorf("download result %d: %w", i+1, err)
		}
		if data == nil {
			continue
		}
		ext := path.Ext(locator)
		if ext == "" {
			ext = ".png"
		}
		assets = append(assets, zipper.Asset{Filename: fmt.Sprintf("%s_%d%s", job.Mode, i+1, ext), Data: data})
	}
	if len(assets) == 0 {
		return nil, "", domain.ErrNoResults
	}
	var buf bytes.Buffer
	if err := zipper.Write(&buf, assets, derefTime(job.CompletedAt, s.now())); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), fmt.Sprintf("productsnap_%s.zip", job.ID), nil
}

// Usage reports the caller's plan limits and current counters.
func (s *Service) Usage(ctx context.Context, userID string) (admission.Stats, error) {
	plan, err := admission.ResolvePlan(ctx, s.Subscriptions, userID)
	if err != nil {
		return admission.Stats{}, err
	}
	return s.Admission.UsageStats(ctx, userID, plan)
}

// SignURL turns a stored locator into a short-lived client URL. Empty
// locators stay empty.
func (s *Service) SignURL(ctx context.Context, locator string) (string, error) {
	if locator == "" {
		return "", nil
	}
	return s.Store.SignedURL(ctx, locator, s.URLTTL)
}

func (s *Service) discard(ctx context.Context, locator string) {
	if locator == "" {
		return
	}
	if _, err := s.Store.Delete(ctx, locator); err != nil {
		s.Logger.Warn().Err(err).Str("locator", locator).Msg("jobs: delete asset failed")
	}
}

func (s *Service) record(ctx context.Context, actor Actor, action, jobID string, metadata map[string]any) {
	if s.Audit == nil {
		return
	}
	entry := domain.AuditEntry{
		UserID:       actor.UserID,
		Action:       action,
		ResourceType: "job",
		ResourceID:   jobID,
		IPAddress:    actor.IP,
		Country:      geoip.Country(s.GeoIP, actor.IP),
		UserAgent:    actor.UserAgent,
		Metadata:     metadata,
		CreatedAt:    s.now(),
	}
	if err := s.Audit.Record(ctx, entry); err != nil && !errors.Is(err, context.Canceled) {
		s.Logger.Warn().Err(err).Str("action", action).Msg("jobs: audit log failed")
	}
}

func derefTime(t *time.Time, fallback time.Time) time.Time {
	if t == nil {
		return fallback
	}
	return *t
}
