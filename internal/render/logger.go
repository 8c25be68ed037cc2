package render

import (
	"context"
	"log/slog"
	"sync/atomic"
)

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger sets the logger used by the render core. The package is silent
// until SetLogger is called; passing nil silences it again.
//
// Levels:
//   - [slog.LevelDebug]: pipeline build times, per-resource lifetime events
//   - [slog.LevelInfo]: device selection, swapchain recreation, asset swaps
//   - [slog.LevelWarn]: validation warnings, discarded pipeline cache
//   - [slog.LevelError]: validation errors
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// Logger returns the logger used by the render core.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
