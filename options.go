package atomicslot

import (
	"time"

	"go.uber.org/zap"
)

type config struct {
	name            string
	logger          *zap.Logger
	observer        Observer
	coalesce        bool
	maxTeardowns    int64
	teardownTimeout time.Duration
}

// Option configures a Slot created by New.
type Option func(*config)

// WithName labels the slot in log entries and events.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithLogger sets the logger used to report teardown failures. It
// overrides the package logger from SetLogger.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithObserver attaches an Observer that receives create, discard, reset,
// dispose and teardown events for the lifetime of the slot.
func WithObserver(o Observer) Option {
	return func(c *config) {
		c.observer = o
	}
}

// WithCoalescedCreate makes concurrent GetOrCreate calls on an empty slot
// share one factory call. Callers on the slow path block until it returns;
// the fast path is unaffected.
func WithCoalescedCreate() Option {
	return func(c *config) {
		c.coalesce = true
	}
}

// WithMaxConcurrentTeardowns bounds how many teardowns of this slot may run
// at once. Zero means unbounded.
func WithMaxConcurrentTeardowns(n int) Option {
	return func(c *config) {
		c.maxTeardowns = int64(n)
	}
}

// WithTeardownTimeout gives every teardown a context that expires after d.
// Zero means no deadline.
func WithTeardownTimeout(d time.Duration) Option {
	return func(c *config) {
		c.teardownTimeout = d
	}
}

func (c *config) validate() error {
	if c.maxTeardowns < 0 {
		return &ConfigError{Field: "MaxConcurrentTeardowns", Cause: ErrInvalidOption}
	}
	if c.teardownTimeout < 0 {
		return &ConfigError{Field: "TeardownTimeout", Cause: ErrInvalidOption}
	}
	return nil
}
