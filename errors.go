package atomicslot

import (
	"errors"
	"strings"
)

var (
	// ErrNilFactory is returned by New when no factory is given.
	ErrNilFactory = errors.New("atomicslot: factory is nil")
	// ErrNilTeardown is returned by New when no teardown is given.
	ErrNilTeardown = errors.New("atomicslot: teardown is nil")
	// ErrInvalidOption is returned by New when an option carries a value
	// out of range.
	ErrInvalidOption = errors.New("atomicslot: invalid option")
	// ErrTeardownPanic wraps a value recovered from a panicking teardown.
	ErrTeardownPanic = errors.New("atomicslot: teardown panicked")
)

// ConfigError reports a slot that could not be constructed.
type ConfigError struct {
	Cause error
	Field string
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("invalid slot configuration")

	if e.Field != "" {
		b.WriteString(" (")
		b.WriteString(e.Field)
		b.WriteString(")")
	}

	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}

	return b.String()
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}
