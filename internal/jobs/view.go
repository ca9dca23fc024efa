package jobs

import (
	"context"
	"time"

	"productsnap/internal/domain"
)

// View is the client representation of a job. Asset locators are replaced
// by signed URLs.
type View struct {
	ID                    string     `json:"id"`
	Mode                  string     `json:"mode"`
	Status                string     `json:"status"`
	InputFilename         string     `json:"input_filename,omitempty"`
	InputURL              string     `json:"input_url,omitempty"`
	PromptOverride        string     `json:"prompt_override,omitempty"`
	SubOptions            any        `json:"sub_options,omitempty"`
	ResultURLs            []string   `json:"result_urls"`
	ThumbnailURL          string     `json:"thumbnail_url,omitempty"`
	Progress              int        `json:"progress"`
	ErrorMessage          string     `json:"error_message,omitempty"`
	ProcessingTimeSeconds *int       `json:"processing_time_seconds,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	StartedAt             *time.Time `json:"started_at,omitempty"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
}

// Present builds the View of job. Locators that cannot be signed are left
// out rather than failing the request.
func (s *Service) Present(ctx context.Context, job domain.Job) View {
	v := View{
		ID:                    job.ID,
		Mode:                  string(job.Mode),
		Status:                string(job.Status),
		InputFilename:         job.InputFilename,
		PromptOverride:        job.PromptOverride,
		ResultURLs:            make([]string, 0, len(job.ResultURLs)),
		Progress:              job.Progress,
		ErrorMessage:          job.ErrorMessage,
		ProcessingTimeSeconds: job.ProcessingTimeSeconds,
		CreatedAt:             job.CreatedAt,
		StartedAt:             job.StartedAt,
		CompletedAt:           job.CompletedAt,
	}
	if opts, err := domain.ParseSubOptions(job.Prompt); err == nil && !opts.IsZero() {
		v.SubOptions = opts
	}
	v.InputURL = s.sign(ctx, job.InputURL)
	v.ThumbnailURL = s.sign(ctx, job.ThumbnailURL)
	for _, locator := range job.ResultURLs {
		if u := s.sign(ctx, locator); u != "" {
			v.ResultURLs = append(v.ResultURLs, u)
		}
	}
	return v
}

func (s *Service) sign(ctx context.Context, locator string) string {
	u, err := s.SignURL(ctx, locator)
	if err != nil {
		s.Logger.Debug().Err(err).Str("locator", locator).Msg("jobs: sign url failed")
		return ""
	}
	return u
}
