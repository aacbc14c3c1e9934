// Package logrus adapts a logrus entry to the depcache Logger interface.
// Fields convert directly; logrus.Fields and depcache.Fields share the same
// underlying map type.
package logrus

import (
	"github.com/sirupsen/logrus"
	"github.com/unkn0wn-root/depcache"
)

// LogrusLogger wraps a *logrus.Entry rather than a *logrus.Logger so callers
// can pre-bind fields (component, region) once.
type LogrusLogger struct{ E *logrus.Entry }

var _ depcache.Logger = LogrusLogger{}

func (l LogrusLogger) Debug(msg string, f depcache.Fields) {
	l.E.WithFields(logrus.Fields(f)).Debug(msg)
}
func (l LogrusLogger) Info(msg string, f depcache.Fields) { l.E.WithFields(logrus.Fields(f)).Info(msg) }
func (l LogrusLogger) Warn(msg string, f depcache.Fields) { l.E.WithFields(logrus.Fields(f)).Warn(msg) }
func (l LogrusLogger) Error(msg string, f depcache.Fields) {
	l.E.WithFields(logrus.Fields(f)).Error(msg)
}
