//go:build go1.21

// Package slog bridges depcache logging onto log/slog. Fields become slog
// attrs one-to-one; no context is threaded through, the engine logs from
// internal code paths that carry none.
package slog

import (
	"context"
	stdslog "log/slog"

	"github.com/unkn0wn-root/depcache"
)

var _ depcache.Logger = Logger{}

// Logger wraps an *slog.Logger. Wrap slog.Default() for the common case.
type Logger struct{ L *stdslog.Logger }

func (s Logger) Debug(msg string, f depcache.Fields) {
	s.L.LogAttrs(context.Background(), stdslog.LevelDebug, msg, attrs(f)...)
}
func (s Logger) Info(msg string, f depcache.Fields) {
	s.L.LogAttrs(context.Background(), stdslog.LevelInfo, msg, attrs(f)...)
}
func (s Logger) Warn(msg string, f depcache.Fields) {
	s.L.LogAttrs(context.Background(), stdslog.LevelWarn, msg, attrs(f)...)
}
func (s Logger) Error(msg string, f depcache.Fields) {
	s.L.LogAttrs(context.Background(), stdslog.LevelError, msg, attrs(f)...)
}

func attrs(f depcache.Fields) []stdslog.Attr {
	if len(f) == 0 {
		return nil
	}
	out := make([]stdslog.Attr, 0, len(f))
	for k, v := range f {
		out = append(out, stdslog.Any(k, v))
	}
	return out
}
