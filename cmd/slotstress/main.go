// Command slotstress hammers a Slot with concurrent readers, resetters and
// a disposer, then checks that every instance built was torn down exactly
// once.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	atomicslot "github.com/probablyarth/atomicslot-go"
)

var errLeak = errors.New("teardown accounting mismatch")

type options struct {
	readers      int
	resetters    int
	duration     time.Duration
	coalesce     bool
	maxTeardowns int
	verbose      bool
}

// instance is the resource under test.
type instance struct {
	id   int64
	torn atomic.Int32
}

// ledger records every instance the factory produced.
type ledger struct {
	mu    sync.Mutex
	next  int64
	built []*instance
}

func (l *ledger) factory() (*instance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	inst := &instance{id: l.next}
	l.built = append(l.built, inst)
	return inst, nil
}

func (l *ledger) teardown(_ context.Context, inst *instance) error {
	inst.torn.Add(1)
	return nil
}

// check returns how many instances were built and the first instance not
// torn down exactly once, if any.
func (l *ledger) check() (int, *instance) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, inst := range l.built {
		if inst.torn.Load() != 1 {
			return len(l.built), inst
		}
	}
	return len(l.built), nil
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("slotstress", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.IntVarP(&opts.readers, "readers", "r", 8, "goroutines calling GetOrCreate and TryGet")
	fs.IntVar(&opts.resetters, "resetters", 2, "goroutines calling Reset")
	fs.DurationVarP(&opts.duration, "duration", "d", 2*time.Second, "how long to run before disposing")
	fs.BoolVar(&opts.coalesce, "coalesce", false, "share one factory call between racing creators")
	fs.IntVar(&opts.maxTeardowns, "max-teardowns", 0, "bound on concurrent teardowns (0 = unbounded)")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "log slot events")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.readers < 1 {
		return opts, fmt.Errorf("--readers must be at least 1, got %d", opts.readers)
	}
	return opts, nil
}

// eventLogger forwards slot events to zap.
type eventLogger struct {
	log *zap.Logger
}

func (e eventLogger) On(ev atomicslot.EventData) {
	e.log.Debug("slot event",
		zap.Stringer("event", ev.Event),
		zap.Uint64("generation", ev.Generation),
		zap.Error(ev.Err))
}

func run(ctx context.Context, opts options, log *zap.Logger) error {
	l := &ledger{}
	slotOpts := []atomicslot.Option{
		atomicslot.WithName("stress"),
		atomicslot.WithLogger(log),
		atomicslot.WithMaxConcurrentTeardowns(opts.maxTeardowns),
	}
	if opts.coalesce {
		slotOpts = append(slotOpts, atomicslot.WithCoalescedCreate())
	}
	if opts.verbose {
		slotOpts = append(slotOpts, atomicslot.WithObserver(eventLogger{log: log}))
	}

	slot, err := atomicslot.New(l.factory, l.teardown, slotOpts...)
	if err != nil {
		return err
	}

	var reads, resets atomic.Int64
	ctx, cancel := context.WithTimeout(ctx, opts.duration)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for range opts.readers {
		g.Go(func() error {
			for ctx.Err() == nil {
				inst, ok, err := slot.GetOrCreate()
				if err != nil {
					return err
				}
				if ok && inst.torn.Load() != 0 {
					// Stale reads after a reset are allowed; this is only
					// reported, not failed on.
					log.Debug("read an instance already torn down", zap.Int64("id", inst.id))
				}
				slot.TryGet()
				reads.Add(1)
			}
			return nil
		})
	}
	for range opts.resetters {
		g.Go(func() error {
			for ctx.Err() == nil {
				if err := slot.Reset(); err != nil {
					return err
				}
				resets.Add(1)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		<-slot.DisposeAsync()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slot.Wait()

	if _, ok, _ := slot.GetOrCreate(); ok {
		return fmt.Errorf("%w: slot returned an instance after disposal", errLeak)
	}

	built, bad := l.check()
	log.Info("stress run finished",
		zap.Int64("reads", reads.Load()),
		zap.Int64("resets", resets.Load()),
		zap.Int("instances", built))
	if bad != nil {
		return fmt.Errorf("%w: instance #%d torn down %d times", errLeak, bad.id, bad.torn.Load())
	}
	return nil
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}

	cfg := zap.NewDevelopmentConfig()
	if !opts.verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	log, err := cfg.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(context.Background(), opts, log); err != nil {
		log.Error("stress run failed", zap.Error(err))
		os.Exit(1)
	}
}
