package atomicslot

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var logger atomic.Pointer[zap.Logger]

// Logger returns the package logger used by slots created without
// WithLogger. It is a no-op logger by default.
func Logger() *zap.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

// SetLogger replaces the package logger. Slots pick the logger up when they
// are constructed, so call this before New.
func SetLogger(l *zap.Logger) {
	logger.Store(l)
}
