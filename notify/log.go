package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes notifications to a structured logger instead of
// sending them. Meant for development and tests; codes are logged in
// the clear, do not use it anywhere real.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier wraps the given logger. A nil logger falls back to
// slog.Default.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(_ context.Context, template, recipient string, data map[string]string) error {
	attrs := []any{"template", template, "recipient", recipient}
	for k, v := range data {
		attrs = append(attrs, k, v)
	}
	n.logger.Info("notification", attrs...)
	return nil
}
