package domain

import (
	"fmt"
	"strings"
	"time"
)

// JobMode enumerates supported generation styles.
type JobMode string

const (
	JobModeStudioWhite    JobMode = "studio_white"
	JobModeModelTryOn     JobMode = "model_tryon"
	JobModeLifestyleScene JobMode = "lifestyle_scene"
)

// JobModes lists every mode in display order.
var JobModes = []JobMode{JobModeStudioWhite, JobModeModelTryOn, JobModeLifestyleScene}

// ParseJobMode validates free-form input against the closed mode set.
func ParseJobMode(raw string) (JobMode, error) {
	mode := JobMode(strings.ToLower(strings.TrimSpace(raw)))
	for _, m := range JobModes {
		if m == mode {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, raw)
}

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether no further transition is expected.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

var transitions = map[JobStatus][]JobStatus{
	JobStatusPending:    {JobStatusQueued, JobStatusCancelled},
	JobStatusQueued:     {JobStatusProcessing, JobStatusCancelled},
	JobStatusProcessing: {JobStatusCompleted, JobStatusFailed, JobStatusQueued},
}

// CanTransition reports whether the lifecycle allows moving from one status to
// another. processing -> queued is only taken by the stale-job reaper.
func CanTransition(from, to JobStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Job is one user-submitted generation request and its lifecycle record.
type Job struct {
	ID                    string
	UserID                string
	Mode                  JobMode
	Status                JobStatus
	InputURL              string
	InputFilename         string
	Prompt                string
	PromptOverride        string
	ResultURLs            []string
	ThumbnailURL          string
	BackendJobID          string
	Progress              int
	ErrorMessage          string
	ProcessingTimeSeconds *int
	CreatedAt             time.Time
	StartedAt             *time.Time
	CompletedAt           *time.Time
	UpdatedAt             time.Time
}

// JobResult carries the outcome persisted when a job completes.
type JobResult struct {
	ResultURLs            []string
	ThumbnailURL          string
	CompletedAt           time.Time
	ProcessingTimeSeconds int
}

// Validate checks the cross-field invariants tying outputs to status.
func (j Job) Validate() error {
	hasResults := len(j.ResultURLs) > 0
	completed := j.Status == JobStatusCompleted
	if hasResults != completed {
		return fmt.Errorf("job %s: result_urls present=%t with status %s", j.ID, hasResults, j.Status)
	}
	hasError := j.ErrorMessage != ""
	failed := j.Status == JobStatusFailed
	if hasError != failed {
		return fmt.Errorf("job %s: error_message present=%t with status %s", j.ID, hasError, j.Status)
	}
	switch j.Status {
	case JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		if j.StartedAt == nil {
			return fmt.Errorf("job %s: started_at missing with status %s", j.ID, j.Status)
		}
	case JobStatusPending:
		if j.StartedAt != nil {
			return fmt.Errorf("job %s: started_at set with status %s", j.ID, j.Status)
		}
	}
	if j.Progress < 0 || j.Progress > 100 {
		return fmt.Errorf("job %s: progress %d out of range", j.ID, j.Progress)
	}
	return nil
}
