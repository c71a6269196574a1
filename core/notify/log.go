package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes payloads to a logger instead of delivering them.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{log: logger}
}

// Post implements Notifier.
func (n *LogNotifier) Post(ctx context.Context, channel string, payload string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.log.Info("Dry run, not posting", slog.String("channel", channel), slog.String("payload", payload))
	return nil
}
