package server

import (
	"log/slog"

	"nhbvault/core/types"
)

// EventLogger is an EventSink that mirrors engine events into the structured
// log, one line per event with its attributes flattened.
type EventLogger struct {
	logger *slog.Logger
}

// NewEventLogger wraps the logger as an engine event sink.
func NewEventLogger(logger *slog.Logger) *EventLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventLogger{logger: logger}
}

// AppendEvent logs the event.
func (l *EventLogger) AppendEvent(evt *types.Event) {
	if l == nil || evt == nil {
		return
	}
	args := make([]any, 0, len(evt.Attributes)*2)
	for key, value := range evt.Attributes {
		args = append(args, key, value)
	}
	l.logger.Info(evt.Type, args...)
}
