package atomicslot_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	atomicslot "github.com/probablyarth/atomicslot-go"
)

func Test_New_Rejects_Negative_Options(t *testing.T) {
	t.Parallel()

	tr := &tracker{}

	_, err := atomicslot.New(tr.factory, tr.teardown, atomicslot.WithMaxConcurrentTeardowns(-1))
	require.ErrorIs(t, err, atomicslot.ErrInvalidOption, "negative teardown limit should be rejected")

	_, err = atomicslot.New(tr.factory, tr.teardown, atomicslot.WithTeardownTimeout(-time.Second))
	require.ErrorIs(t, err, atomicslot.ErrInvalidOption, "negative teardown timeout should be rejected")

	_, err = atomicslot.New(tr.factory, tr.teardown,
		atomicslot.WithMaxConcurrentTeardowns(0),
		atomicslot.WithTeardownTimeout(0))
	require.NoError(t, err, "zero values mean unbounded")
}

func Test_CoalescedCreate_Calls_Factory_Once_When_Callers_Race(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	release := make(chan struct{})
	s := atomicslot.MustNew(
		func() (int32, error) {
			<-release
			return calls.Add(1), nil
		},
		func(context.Context, int32) error { return nil },
		atomicslot.WithCoalescedCreate(),
	)

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	results := make([]int32, n)
	for i := range n {
		go func(i int) {
			defer wg.Done()
			v, ok, err := s.GetOrCreate()
			assert.NoError(t, err)
			assert.True(t, ok)
			results[i] = v
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "factory should run once")
	for i := range n {
		assert.Equal(t, int32(1), results[i], "goroutine %d got a different instance", i)
	}
}

func Test_CoalescedCreate_Returns_Absent_When_Disposed(t *testing.T) {
	t.Parallel()

	s, tr := newTracked(t, atomicslot.WithCoalescedCreate())
	s.Dispose()

	_, ok, err := s.GetOrCreate()
	require.NoError(t, err)
	assert.False(t, ok, "disposed slot should report absent")
	assert.Zero(t, tr.calls(), "factory should not run after disposal")
}

func Test_MaxConcurrentTeardowns_Bounds_Running_Teardowns(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	var seq atomic.Int64
	s := atomicslot.MustNew(
		func() (int64, error) { return seq.Add(1), nil },
		func(context.Context, int64) error {
			cur := inFlight.Add(1)
			for {
				p := peak.Load()
				if cur <= p || peak.CompareAndSwap(p, cur) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inFlight.Add(-1)
			return nil
		},
		atomicslot.WithMaxConcurrentTeardowns(1),
	)

	_, _, err := s.GetOrCreate()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Reset())
		}()
	}
	wg.Wait()
	s.Dispose()
	s.Wait()

	assert.Equal(t, int32(1), peak.Load(), "at most one teardown should run at a time")
}

func Test_TeardownTimeout_Cancels_Slow_Teardown(t *testing.T) {
	t.Parallel()

	obs := &recorder{}
	s := atomicslot.MustNew(
		func() (string, error) { return "conn", nil },
		func(ctx context.Context, _ string) error {
			<-ctx.Done()
			return ctx.Err()
		},
		atomicslot.WithTeardownTimeout(10*time.Millisecond),
		atomicslot.WithObserver(obs),
	)

	_, _, err := s.GetOrCreate()
	require.NoError(t, err)

	start := time.Now()
	s.Dispose()
	assert.Less(t, time.Since(start), 5*time.Second, "Dispose should return once the deadline passes")

	failed := obs.filter(atomicslot.EventTeardownFailed)
	require.Len(t, failed, 1)
	assert.ErrorIs(t, failed[0].Err, context.DeadlineExceeded)
}
