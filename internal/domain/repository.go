package domain

import (
	"context"
	"time"
)

// UserRepository defines access methods for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Upsert(ctx context.Context, email, fullName string) (*User, error)
}

// SubscriptionRepository exposes the billing state needed for admission.
type SubscriptionRepository interface {
	GetByUserID(ctx context.Context, userID string) (*Subscription, error)
	Upsert(ctx context.Context, sub *Subscription) error
}

// JobRepository defines persistence for job entities. Conditional transitions
// report whether the row was in the expected state.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
	GetForUser(ctx context.Context, jobID, userID string) (*Job, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Job, error)
	MarkProcessing(ctx context.Context, jobID string, startedAt time.Time) (bool, error)
	SetBackendJobID(ctx context.Context, jobID, backendJobID string) error
	SetProgress(ctx context.Context, jobID string, progress int) error
	Complete(ctx context.Context, jobID string, result JobResult) (bool, error)
	Fail(ctx context.Context, jobID, message string, completedAt time.Time) (bool, error)
	Cancel(ctx context.Context, jobID, userID string) (bool, error)
	ListStale(ctx context.Context, startedBefore time.Time) ([]Job, error)
	Requeue(ctx context.Context, jobID string) (bool, error)
	CountProcessingByUser(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, jobID, userID string) error
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Record(ctx context.Context, entry AuditEntry) error
}
