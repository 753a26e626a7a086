package notify

import (
	"context"
	"log/slog"
)

// LogSender writes messages to the log instead of sending them. It is meant
// for development setups without a mail relay.
type LogSender struct {
	Log *slog.Logger
}

// Send logs msg at INFO.
func (s LogSender) Send(ctx context.Context, msg Message) error {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	log.InfoContext(ctx, "mail (not sent)",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}
