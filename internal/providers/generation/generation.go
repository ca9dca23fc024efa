// Package generation talks to the image-generation backend. The worker uses
// the same Client contract for the mock and live backends.
package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"productsnap/internal/domain"
)

// Request is one generation call.
type Request struct {
	JobID          string
	InputLocator   string
	Mode           domain.JobMode
	PromptOverride string
	SubOptions     domain.SubOptions
}

// Result is the backend's view of a job. GeneratedImages holds base64
// encoded image bytes, possibly empty while the job is still running.
type Result struct {
	JobID           string   `json:"job_id"`
	Status          string   `json:"status"`
	GeneratedImages []string `json:"generated_images,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// Done reports whether the backend finished successfully.
func (r *Result) Done() bool {
	if r == nil {
		return false
	}
	switch strings.ToLower(r.Status) {
	case "completed", "succeeded", "success":
		return true
	}
	return false
}

// Failed reports whether the backend gave up on the job.
func (r *Result) Failed() bool {
	if r == nil {
		return false
	}
	switch strings.ToLower(r.Status) {
	case "failed", "error":
		return true
	}
	return false
}

// Client is a generation backend.
type Client interface {
	CreateJob(ctx context.Context, req Request) (*Result, error)
	GetJobStatus(ctx context.Context, jobID string) (*Result, error)
}

// PollUntilComplete checks jobID every interval until it is done, it fails or
// maxWait elapses. A cancelled ctx stops polling immediately.
func PollUntilComplete(ctx context.Context, c Client, jobID string, maxWait, interval time.Duration) (*Result, error) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	deadline := time.NewTimer(maxWait)
	defer deadline.Stop()
	tick := time.NewTimer(0)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("%w: job %s did not complete within %s", domain.ErrGenerationTimeout, jobID, maxWait)
		case <-tick.C:
		}

		res, err := c.GetJobStatus(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if res.Done() {
			return res, nil
		}
		if res.Failed() {
			msg := res.Error
			if msg == "" {
				msg = "Unknown error"
			}
			return nil, fmt.Errorf("%w: %s", domain.ErrGenerationFailed, msg)
		}
		tick.Reset(interval)
	}
}
