package atomicslot

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Teardown releases an instance removed from a slot. It is called exactly
// once per instance. ctx carries the deadline from WithTeardownTimeout, if
// any. Returned errors and panics are logged and otherwise discarded.
type Teardown[T any] func(ctx context.Context, v T) error

// CloserTeardown returns a Teardown that calls Close on the instance.
func CloserTeardown[T io.Closer]() Teardown[T] {
	return func(_ context.Context, v T) error {
		return v.Close()
	}
}

// detach tears e down on a new goroutine. Nobody waits for it except Wait.
func (s *Slot[T]) detach(e *entry[T]) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		s.runTeardown(e)
	}()
}

// runTeardown tears e down on the calling goroutine and reports the
// outcome. It never returns an error and never panics.
func (s *Slot[T]) runTeardown(e *entry[T]) {
	if s.sem != nil {
		// Acquire cannot fail with a background context.
		_ = s.sem.Acquire(context.Background(), 1)
		defer s.sem.Release(1)
	}

	if err := s.callTeardown(e.value); err != nil {
		s.logger.Warn("teardown failed",
			zap.Uint64("generation", e.gen),
			zap.Error(err))
		s.emit(EventTeardownFailed, e.gen, err)
		return
	}
	s.emit(EventTeardown, e.gen, nil)
}

func (s *Slot[T]) callTeardown(v T) (err error) {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTeardownPanic, r)
		}
	}()
	return s.teardown(ctx, v)
}
