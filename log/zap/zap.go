// Package zap adapts a *zap.Logger to the depcache Logger interface.
package zap

import (
	"github.com/unkn0wn-root/depcache"
	"go.uber.org/zap"
)

// ZapLogger forwards each level to the wrapped logger, converting Fields
// with zap.Any. Pass a named child (logger.Named("depcache")) to keep cache
// noise filterable.
type ZapLogger struct{ L *zap.Logger }

var _ depcache.Logger = ZapLogger{}

func (z ZapLogger) Debug(msg string, f depcache.Fields) { z.L.Debug(msg, zf(f)...) }
func (z ZapLogger) Info(msg string, f depcache.Fields)  { z.L.Info(msg, zf(f)...) }
func (z ZapLogger) Warn(msg string, f depcache.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z ZapLogger) Error(msg string, f depcache.Fields) { z.L.Error(msg, zf(f)...) }

func zf(f depcache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		out = append(out, zap.Any(k, v))
	}
	return out
}
