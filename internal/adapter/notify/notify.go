package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSink is a development NotificationSink that writes deliveries to the
// structured log instead of an email/SMS provider. Real providers sit behind
// the same port outside this module.
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink constructs a logging delivery sink.
func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log}
}

// Deliver writes the code delivery to the log. The code itself is not logged.
func (s *LogSink) Deliver(_ context.Context, destination string, code string) error {
	s.log.Info().
		Str("destination", destination).
		Int("code_length", len(code)).
		Msg("one-time code dispatched")
	return nil
}
