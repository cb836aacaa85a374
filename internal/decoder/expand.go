package decoder

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"tessera/internal/derivation"
)

// ErrWorkerPanic wraps a panic recovered inside a beam expansion worker.
var ErrWorkerPanic = errors.New("beam expansion worker panicked")

// expander runs one expansion round over a bucket snapshot. Worker id
// handles snapshot[i] for every i with i % workers == id; Wait is the
// end-of-bucket barrier.
type expander struct {
	threads int
}

func newExpander(threads int) *expander {
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}
	return &expander{threads: threads}
}

func (e *expander) run(ctx context.Context, snapshot []*derivation.Derivation, fn func(*derivation.Derivation) error) error {
	workers := min(e.threads, len(snapshot))
	if workers == 0 {
		return nil
	}
	// The round always runs to completion; only a failing shard stops it.
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	for id := range workers {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: %v\n%s", ErrWorkerPanic, r, debug.Stack())
				}
			}()
			for i := id; i < len(snapshot); i += workers {
				if gctx.Err() != nil {
					return nil
				}
				if err := fn(snapshot[i]); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}
