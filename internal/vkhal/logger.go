package vkhal

import (
	"log/slog"

	"Trigon/internal/logging"
)

var logger logging.Slot

// SetLogger configures the logger for device setup and validation layer
// messages. Pass nil to silence it again.
func SetLogger(l *slog.Logger) {
	logger.Set(l)
}

func Logger() *slog.Logger {
	return logger.Load()
}
