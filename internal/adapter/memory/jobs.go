package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"productsnap/internal/domain"
)

// JobRepo is an in-process domain.JobRepository with the same conditional
// update semantics as the PostgreSQL implementation.
type JobRepo struct {
	mu   sync.RWMutex
	jobs map[string]domain.Job
	now  func() time.Time
}

func NewJobRepo() *JobRepo {
	return &JobRepo{jobs: make(map[string]domain.Job), now: func() time.Time { return time.Now().UTC() }}
}

func (r *JobRepo) Create(ctx context.Context, job *domain.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = r.now()
	}
	job.UpdatedAt = job.CreatedAt
	r.jobs[job.ID] = cloneJob(*job)
	return nil
}

func (r *JobRepo) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := cloneJob(job)
	return &out, nil
}

func (r *JobRepo) GetForUser(ctx context.Context, jobID, userID string) (*domain.Job, error) {
	job, err := r.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

func (r *JobRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Job, 0)
	for _, job := range r.jobs {
		if job.UserID == userID {
			out = append(out, cloneJob(job))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return []domain.Job{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *JobRepo) MarkProcessing(ctx context.Context, jobID string, startedAt time.Time) (bool, error) {
	return r.update(ctx, jobID, func(job *domain.Job) bool {
		if job.Status != domain.JobStatusPending && job.Status != domain.JobStatusQueued {
			return false
		}
		job.Status = domain.JobStatusProcessing
		started := startedAt
		job.StartedAt = &started
		job.Progress = 0
		return true
	})
}

func (r *JobRepo) SetBackendJobID(ctx context.Context, jobID, backendJobID string) error {
	_, err := r.update(ctx, jobID, func(job *domain.Job) bool {
		job.BackendJobID = backendJobID
		return true
	})
	return err
}

func (r *JobRepo) SetProgress(ctx context.Context, jobID string, progress int) error {
	_, err := r.update(ctx, jobID, func(job *domain.Job) bool {
		if job.Status != domain.JobStatusProcessing {
			return false
		}
		job.Progress = max(0, min(100, progress))
		return true
	})
	return err
}

func (r *JobRepo) Complete(ctx context.Context, jobID string, result domain.JobResult) (bool, error) {
	if len(result.ResultURLs) == 0 {
		return false, domain.ErrNoResults
	}
	return r.update(ctx, jobID, func(job *domain.Job) bool {
		if job.Status != domain.JobStatusProcessing {
			return false
		}
		job.Status = domain.JobStatusCompleted
		job.ResultURLs = append([]string(nil), result.ResultURLs...)
		job.ThumbnailURL = result.ThumbnailURL
		job.Progress = 100
		job.ErrorMessage = ""
		done := result.CompletedAt
		job.CompletedAt = &done
		secs := result.ProcessingTimeSeconds
		job.ProcessingTimeSeconds = &secs
		return true
	})
}

func (r *JobRepo) Fail(ctx context.Context, jobID, message string, completedAt time.Time) (bool, error) {
	if message == "" {
		message = "unknown error"
	}
	return r.update(ctx, jobID, func(job *domain.Job) bool {
		if job.Status != domain.JobStatusProcessing {
			return false
		}
		job.Status = domain.JobStatusFailed
		job.ErrorMessage = message
		job.ResultURLs = nil
		job.ThumbnailURL = ""
		done := completedAt
		job.CompletedAt = &done
		return true
	})
}

func (r *JobRepo) Cancel(ctx context.Context, jobID, userID string) (bool, error) {
	return r.update(ctx, jobID, func(job *domain.Job) bool {
		if job.UserID != userID {
			return false
		}
		if job.Status != domain.JobStatusPending && job.Status != domain.JobStatusQueued {
			return false
		}
		job.Status = domain.JobStatusCancelled
		return true
	})
}

func (r *JobRepo) ListStale(ctx context.Context, startedBefore time.Time) ([]domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Job, 0)
	for _, job := range r.jobs {
		if job.Status == domain.JobStatusProcessing && job.StartedAt != nil && job.StartedAt.Before(startedBefore) {
			out = append(out, cloneJob(job))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(*out[j].StartedAt) })
	return out, nil
}

func (r *JobRepo) Requeue(ctx context.Context, jobID string) (bool, error) {
	return r.update(ctx, jobID, func(job *domain.Job) bool {
		if job.Status != domain.JobStatusProcessing {
			return false
		}
		job.Status = domain.JobStatusQueued
		job.Progress = 0
		return true
	})
}

func (r *JobRepo) CountProcessingByUser(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, job := range r.jobs {
		if job.UserID == userID && job.Status == domain.JobStatusProcessing {
			n++
		}
	}
	return n, nil
}

func (r *JobRepo) Delete(ctx context.Context, jobID, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.UserID != userID {
		return domain.ErrNotFound
	}
	delete(r.jobs, jobID)
	return nil
}

// Put stores job as-is, bypassing transitions. Useful for seeding state.
func (r *JobRepo) Put(job domain.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = cloneJob(job)
}

// update applies fn under the write lock and reports whether fn accepted the
// row. Missing jobs report false without error, like a zero-row UPDATE.
func (r *JobRepo) update(ctx context.Context, jobID string, fn func(*domain.Job) bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return false, nil
	}
	if !fn(&job) {
		return false, nil
	}
	job.UpdatedAt = r.now()
	r.jobs[jobID] = job
	return true, nil
}

func cloneJob(j domain.Job) domain.Job {
	if j.ResultURLs != nil {
		j.ResultURLs = append([]string(nil), j.ResultURLs...)
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		j.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		j.CompletedAt = &t
	}
	if j.ProcessingTimeSeconds != nil {
		n := *j.ProcessingTimeSeconds
		j.ProcessingTimeSeconds = &n
	}
	return j
}

var _ domain.JobRepository = (*JobRepo)(nil)
