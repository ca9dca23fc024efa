package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"productsnap/internal/domain"
	"productsnap/internal/infra"
	"productsnap/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository backed by PostgreSQL.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewJobRepository creates a new job repository.
func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

// Create inserts a new job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	job.UpdatedAt = job.CreatedAt
	_, err := r.sql.Exec(ctx, sqlinline.QInsertJob,
		job.ID,
		job.UserID,
		string(job.Mode),
		string(job.Status),
		job.InputURL,
		job.InputFilename,
		job.Prompt,
		job.PromptOverride,
		job.CreatedAt,
	)
	return err
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	return scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectJobByID, jobID))
}

// GetForUser fetches a job only when owned by userID.
func (r *JobRepositoryPG) GetForUser(ctx context.Context, jobID, userID string) (*domain.Job, error) {
	return scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectJobForUser, jobID, userID))
}

// ListByUser returns the user's jobs newest first.
func (r *JobRepositoryPG) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Job, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListJobsByUser, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectJobs(rows)
}

// MarkProcessing moves a pending or queued job to processing. It returns false
// when the job is in any other state, for example cancelled while queued.
func (r *JobRepositoryPG) MarkProcessing(ctx context.Context, jobID string, startedAt time.Time) (bool, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QMarkJobProcessing, jobID, startedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *JobRepositoryPG) SetBackendJobID(ctx context.Context, jobID, backendJobID string) error {
	_, err := r.sql.Exec(ctx, sqlinline.QSetJobBackendID, jobID, backendJobID)
	return err
}

func (r *JobRepositoryPG) SetProgress(ctx context.Context, jobID string, progress int) error {
	_, err := r.sql.Exec(ctx, sqlinline.QSetJobProgress, jobID, progress)
	return err
}

// Complete records a successful outcome. It reports false when the job is no
// longer processing.
func (r *JobRepositoryPG) Complete(ctx context.Context, jobID string, result domain.JobResult) (bool, error) {
	if len(result.ResultURLs) == 0 {
		return false, domain.ErrNoResults
	}
	raw, err := json.Marshal(result.ResultURLs)
	if err != nil {
		return false, fmt.Errorf("encode result urls: %w", err)
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QCompleteJob,
		jobID,
		string(raw),
		result.ThumbnailURL,
		result.CompletedAt,
		result.ProcessingTimeSeconds,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Fail records a failure message and clears any partial outputs. Like
// Complete it only applies to a processing job.
func (r *JobRepositoryPG) Fail(ctx context.Context, jobID, message string, completedAt time.Time) (bool, error) {
	if message == "" {
		message = "unknown error"
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QFailJob, jobID, message, completedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Cancel cancels a pending or queued job owned by userID.
func (r *JobRepositoryPG) Cancel(ctx context.Context, jobID, userID string) (bool, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QCancelJob, jobID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListStale returns processing jobs that started before the cutoff.
func (r *JobRepositoryPG) ListStale(ctx context.Context, startedBefore time.Time) ([]domain.Job, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListStaleJobs, startedBefore)
	if err != nil {
		return nil, err
	}
	return collectJobs(rows)
}

// Requeue moves a processing job back to queued. It returns false when the job
// finished in the meantime.
func (r *JobRepositoryPG) Requeue(ctx context.Context, jobID string) (bool, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QRequeueJob, jobID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *JobRepositoryPG) CountProcessingByUser(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.sql.QueryRow(ctx, sqlinline.QCountProcessingByUser, userID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Delete removes the record only. Stored objects are the caller's concern.
func (r *JobRepositoryPG) Delete(ctx context.Context, jobID, userID string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteJob, jobID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func collectJobs(rows pgx.Rows) ([]domain.Job, error) {
	defer rows.Close()
	jobs := make([]domain.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job       domain.Job
		mode      string
		status    string
		resultRaw []byte
	)
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&mode,
		&status,
		&job.InputURL,
		&job.InputFilename,
		&job.Prompt,
		&job.PromptOverride,
		&resultRaw,
		&job.ThumbnailURL,
		&job.BackendJobID,
		&job.Progress,
		&job.ErrorMessage,
		&job.ProcessingTimeSeconds,
		&job.CreatedAt,
		&job.StartedAt,
		&job.CompletedAt,
		&job.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	job.Mode = domain.JobMode(mode)
	job.Status = domain.JobStatus(status)
	if len(resultRaw) > 0 {
		if err := json.Unmarshal(resultRaw, &job.ResultURLs); err != nil {
			return nil, fmt.Errorf("decode result urls for job %s: %w", job.ID, err)
		}
		if len(job.ResultURLs) == 0 {
			job.ResultURLs = nil
		}
	}
	return &job, nil
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
