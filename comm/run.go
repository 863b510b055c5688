package comm

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// WorkerFunc is the body of one worker started by Run.
type WorkerFunc func(ctx context.Context, c Communicator) error

// Run starts size workers in a new LocalGroup and waits for all of them.
//
// A worker that returns an error or panics aborts the group, which unblocks
// every peer waiting in a collective. Panics are reported as *PanicError. When
// several workers fail, the error of the worker that failed first is returned
// in preference to the ErrGroupAborted errors it caused.
func Run(ctx context.Context, size int, fn WorkerFunc) error {
	group := NewLocalGroup(size)
	g, gctx := errgroup.WithContext(ctx)

	errs := make([]error, size)
	for rank := 0; rank < size; rank++ {
		c := group.Comm(rank)
		g.Go(func() (err error) {
			defer func() {
				if v := recover(); v != nil {
					err = newPanicError(c.Rank(), v)
				}
				if err != nil {
					group.Abort(err)
				}
				errs[c.Rank()] = err
			}()
			return fn(gctx, c)
		})
	}

	first := g.Wait()
	if first == nil {
		return nil
	}
	for _, err := range errs {
		if err != nil && !errors.Is(err, ErrGroupAborted) {
			return err
		}
	}
	return first
}
