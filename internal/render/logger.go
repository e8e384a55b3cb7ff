package render

import (
	"log/slog"

	"Trigon/internal/logging"
)

var logger logging.Slot

// SetLogger configures the logger used by the renderer. By default nothing
// is logged; pass nil to restore that.
//
// Levels:
//   - [slog.LevelDebug]: per-chain resource counts, pipeline rebuild decisions
//   - [slog.LevelInfo]: chain recreation, frame rate
//   - [slog.LevelWarn]: suboptimal presentation, surface closed while minimized
func SetLogger(l *slog.Logger) {
	logger.Set(l)
}

// Logger returns the current renderer logger.
func Logger() *slog.Logger {
	return logger.Load()
}
