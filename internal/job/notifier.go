package job

import (
	"context"
	"log/slog"
)

// Completion is published once a job reaches a terminal state.
type Completion struct {
	RequestID   string `json:"request_id,omitempty"`
	JobID       string `json:"job_id"`
	Status      Status `json:"status"`
	PlaybackURL string `json:"playback_url,omitempty"`
	Dropped     []int  `json:"dropped_scenes,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Notifier delivers completion callbacks.
type Notifier interface {
	NotifyComplete(ctx context.Context, c Completion) error
}

// LogNotifier writes completions to the log. It is used when no message
// broker is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// NotifyComplete implements Notifier.
func (n *LogNotifier) NotifyComplete(_ context.Context, c Completion) error {
	n.logger.Info("job finished",
		slog.String("job_id", c.JobID),
		slog.String("request_id", c.RequestID),
		slog.String("status", string(c.Status)),
		slog.String("playback_url", c.PlaybackURL),
		slog.String("error", c.Error),
	)
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
