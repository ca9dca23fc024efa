package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier only logs. It is used when no mail server is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) JobCompleted(_ context.Context, n Notice) error {
	l.logger.Info().
		Str("job_id", n.JobID).
		Str("mode", string(n.Mode)).
		Str("email", n.Email).
		Msg("notify: job completed")
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
