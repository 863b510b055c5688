// Package distvec provides a dense vector partitioned contiguously across the
// workers of a parallel group.
//
// Every worker owns one half-open range of global indices. Ranges follow rank
// order: rank 0 owns [0, n0), rank 1 owns [n0, n0+n1), and so on. Element
// access and arithmetic touch only the owned range and need no communication.
// Reductions and localize operations are collectives and must be entered by
// every worker of the group, in the same order.
//
// # Quick Start
//
// Workers run in one process with comm.Run, or across processes with the
// comm/tcp transport:
//
//	err := comm.Run(ctx, 4, func(ctx context.Context, c comm.Communicator) error {
//	    n := 1000
//	    v, err := distvec.NewPartitioned[float64](ctx, c, n, distvec.EvenLocalSize(n, c))
//	    if err != nil {
//	        return err
//	    }
//	    for i := v.FirstLocalIndex(); i < v.LastLocalIndex(); i++ {
//	        v.Set(i, float64(i))
//	    }
//	    v.Close()
//
//	    norm, err := v.L2Norm(ctx)  // identical on every worker
//	    all, err := v.LocalizeToOne(ctx, 0) // full vector on rank 0 only
//	    ...
//	})
//
// # Errors
//
// Misuse is a programming error and panics with a *FaultError wrapping one of
// the Err* sentinels: reading an index the worker does not own, combining
// vectors of different sizes, using a vector before Init. Failures of the
// communicator, the resource controller or a cancelled context are returned
// as errors.
//
// # Validation
//
// With validation enabled (the default unless built with the
// distvec_release tag) every collective first exchanges a short tag with all
// peers. Workers that enter different collectives fault with
// ErrCollectiveMismatch instead of deadlocking or exchanging garbage.
//
// # Scalars
//
// Vectors hold float32, float64, complex64 or complex128 entries. Complex
// minimum and maximum compare real parts; Dot conjugates its receiver.
package distvec
