// Package logging holds the package-level slog logger shared by the render
// and vkhal packages. Each of them keeps its own Slot so they can be pointed
// at different handlers; both default to a logger that discards everything.
package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards every record. Enabled returns false so callers skip
// attribute formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// Nop returns a logger that drops everything.
func Nop() *slog.Logger {
	return slog.New(nopHandler{})
}

// Slot is a logger that can be swapped concurrently with its use. The zero
// value is silent.
type Slot struct {
	p atomic.Pointer[slog.Logger]
}

// Set replaces the logger. nil restores the silent default.
func (s *Slot) Set(l *slog.Logger) {
	if l == nil {
		l = Nop()
	}
	s.p.Store(l)
}

// Load returns the current logger.
func (s *Slot) Load() *slog.Logger {
	if l := s.p.Load(); l != nil {
		return l
	}
	return Nop()
}
