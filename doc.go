// Package atomicslot provides a goroutine-safe holder for a single lazily
// created resource that can be hot-swapped and torn down.
//
// A [Slot] owns at most one live instance at a time. The first call to
// [Slot.GetOrCreate] builds it with the slot's factory; later calls return the
// same instance without locking. [Slot.Reset] builds a fresh instance, swaps
// it in atomically and tears the previous one down. [Slot.Dispose] (or
// [Slot.DisposeAsync]) latches the slot closed and tears down whatever it held:
//
//	clients := atomicslot.MustNew(
//		func() (*Client, error) { return Dial(addr) },
//		atomicslot.CloserTeardown[*Client](),
//	)
//	defer clients.Close()
//
//	c, ok, err := clients.GetOrCreate()
//	if err != nil {
//		return err
//	}
//	if !ok {
//		return errShuttingDown
//	}
//
// Concurrent first callers may each run the factory. Exactly one result is
// published and the others are torn down in the background. Enable
// [WithCoalescedCreate] to have concurrent creators share a single factory
// call instead.
//
// Teardown errors and panics never reach the caller. They are logged through
// zap (see [SetLogger] and [WithLogger]) and reported to an [Observer].
//
// After disposal every lookup reports absent rather than failing, so callers
// can treat it as "shutting down". Dispose blocks until the teardown returns;
// a teardown that needs the disposing goroutine to make progress will
// deadlock, and avoiding that is up to the caller.
package atomicslot
