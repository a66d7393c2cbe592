package atomicslot

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// Factory builds a new instance. It may be called redundantly when
// goroutines race on an empty slot, so it must not have side effects
// beyond constructing the value, and it must not hand out a shared
// singleton.
type Factory[T any] func() (T, error)

// entry boxes a published value. Compare-and-swap works on the box
// pointer, so T needs no identity of its own.
type entry[T any] struct {
	value T
	gen   uint64
}

// Slot holds at most one live instance of T.
//
// All methods are safe for concurrent use. The zero value is not usable;
// create slots with New.
type Slot[T any] struct {
	current  atomic.Pointer[entry[T]]
	disposed atomic.Bool
	gens     atomic.Uint64

	factory  Factory[T]
	teardown Teardown[T]

	name     string
	logger   *zap.Logger
	observer Observer
	coalesce bool
	group    singleflight.Group
	sem      *semaphore.Weighted
	timeout  time.Duration

	// pending tracks detached teardowns so Wait can drain them.
	pending sync.WaitGroup
}

// createKey is the only singleflight key a slot uses.
const createKey = "create"

// New returns an empty slot that builds instances with factory and
// releases them with teardown.
func New[T any](factory Factory[T], teardown Teardown[T], opts ...Option) (*Slot[T], error) {
	if factory == nil {
		return nil, &ConfigError{Field: "Factory", Cause: ErrNilFactory}
	}
	if teardown == nil {
		return nil, &ConfigError{Field: "Teardown", Cause: ErrNilTeardown}
	}

	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	l := cfg.logger
	if l == nil {
		l = Logger()
	}
	if cfg.name != "" {
		l = l.With(zap.String("slot", cfg.name))
	}

	s := &Slot[T]{
		factory:  factory,
		teardown: teardown,
		name:     cfg.name,
		logger:   l,
		observer: cfg.observer,
		coalesce: cfg.coalesce,
		timeout:  cfg.teardownTimeout,
	}
	if cfg.maxTeardowns > 0 {
		s.sem = semaphore.NewWeighted(cfg.maxTeardowns)
	}
	return s, nil
}

// MustNew is like New but panics if the slot cannot be constructed.
func MustNew[T any](factory Factory[T], teardown Teardown[T], opts ...Option) *Slot[T] {
	s, err := New(factory, teardown, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// GetOrCreate returns the current instance, creating one if the slot is
// empty. The boolean is false once the slot has been disposed; that is not
// an error. A factory error is returned unchanged and leaves the slot as it
// was.
//
// When goroutines race to create the first instance, exactly one result is
// published and returned to all of them. The losing instances are torn down
// in the background.
func (s *Slot[T]) GetOrCreate() (T, bool, error) {
	var zero T
	for {
		if s.disposed.Load() {
			return zero, false, nil
		}

		// Fast path: already published.
		if e := s.current.Load(); e != nil {
			return e.value, true, nil
		}

		var (
			e   *entry[T]
			err error
		)
		if s.coalesce {
			e, err = s.createShared()
		} else {
			e, err = s.create()
		}
		if err != nil {
			return zero, false, err
		}
		if e != nil {
			return e.value, true, nil
		}
		// The slot was emptied by a concurrent disposal. Loop to observe it.
	}
}

// create runs the factory and tries to publish the result into an empty
// slot. It returns the entry now visible to callers, or nil if disposal
// won the race.
func (s *Slot[T]) create() (*entry[T], error) {
	v, err := s.factory()
	if err != nil {
		return nil, err
	}
	e := &entry[T]{value: v, gen: s.gens.Add(1)}

	if !s.current.CompareAndSwap(nil, e) {
		// Lost the race; tear down our extra.
		s.emit(EventDiscard, e.gen, nil)
		s.detach(e)
		return s.current.Load(), nil
	}

	if s.disposed.Load() {
		// Published into a slot that is being disposed. If Dispose already
		// swapped it out, the teardown is Dispose's job.
		if s.current.CompareAndSwap(e, nil) {
			s.emit(EventDiscard, e.gen, nil)
			s.detach(e)
		}
		return nil, nil
	}

	s.emit(EventCreate, e.gen, nil)
	return e, nil
}

func (s *Slot[T]) createShared() (*entry[T], error) {
	v, err, _ := s.group.Do(createKey, func() (any, error) {
		// Double-check: another call may have published while we waited.
		if e := s.current.Load(); e != nil {
			return e, nil
		}
		e, err := s.create()
		if err != nil {
			return nil, err
		}
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	e, _ := v.(*entry[T])
	return e, nil
}

// TryGet returns the current instance without creating one.
func (s *Slot[T]) TryGet() (T, bool) {
	if e := s.current.Load(); e != nil {
		return e.value, true
	}
	var zero T
	return zero, false
}

// Reset builds a fresh instance, swaps it in and tears down the previous
// one, returning once that teardown has finished. Teardown failures are
// logged and dropped. Reset is a no-op on a disposed slot and returns the
// factory's error, with the slot unchanged, if the factory fails.
func (s *Slot[T]) Reset() error {
	if s.disposed.Load() {
		return nil
	}

	v, err := s.factory()
	if err != nil {
		return err
	}
	fresh := &entry[T]{value: v, gen: s.gens.Add(1)}
	old := s.current.Swap(fresh)

	if s.disposed.Load() && s.current.CompareAndSwap(fresh, nil) {
		// Disposal slipped in between the check and the swap and missed
		// the fresh instance.
		s.emit(EventDiscard, fresh.gen, nil)
		s.runTeardown(fresh)
	} else {
		s.emit(EventReset, fresh.gen, nil)
	}

	if old != nil {
		s.runTeardown(old)
	}
	return nil
}

// DisposeAsync latches the slot disposed and removes the current instance
// before returning. The teardown runs in the background; the returned
// channel is closed once it has finished, or immediately when there was
// nothing to tear down.
func (s *Slot[T]) DisposeAsync() <-chan struct{} {
	done := make(chan struct{})

	old := s.dispose()
	if old == nil {
		close(done)
		return done
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer close(done)
		s.runTeardown(old)
	}()
	return done
}

// Dispose latches the slot disposed and tears down the current instance,
// blocking until the teardown returns. It is safe to call more than once
// and from several goroutines; the instance is torn down exactly once.
func (s *Slot[T]) Dispose() {
	if old := s.dispose(); old != nil {
		s.runTeardown(old)
	}
}

// Close disposes the slot. It always returns nil.
func (s *Slot[T]) Close() error {
	s.Dispose()
	return nil
}

func (s *Slot[T]) dispose() *entry[T] {
	if s.disposed.CompareAndSwap(false, true) {
		s.emit(EventDispose, 0, nil)
	}
	return s.current.Swap(nil)
}

// IsDisposed reports whether the slot has been disposed.
func (s *Slot[T]) IsDisposed() bool {
	return s.disposed.Load()
}

// Generation returns the sequence number of the published instance, or
// zero when the slot is empty. Every instance the factory builds gets the
// next number, including ones that are later discarded.
func (s *Slot[T]) Generation() uint64 {
	if e := s.current.Load(); e != nil {
		return e.gen
	}
	return 0
}

// Wait blocks until every background teardown started so far has
// returned. It must not race with calls that start new ones, so call it
// after the goroutines using the slot are done.
func (s *Slot[T]) Wait() {
	s.pending.Wait()
}

func (s *Slot[T]) emit(event Event, gen uint64, err error) {
	if s.observer == nil {
		return
	}
	s.observer.On(EventData{
		Event:      event,
		Name:       s.name,
		Generation: gen,
		Err:        err,
	})
}
