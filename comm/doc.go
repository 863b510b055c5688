// Package comm defines the group communication layer used by distributed vectors.
//
// A Communicator connects one worker (identified by its rank in [0, Size())) to
// a fixed group of peers. Every method is a collective: all workers of the
// group must call the same operation, in the same order, before any of them
// returns.
//
// # Implementations
//
//   - Self: a single-worker group. Collectives return immediately.
//   - LocalGroup: n workers running as goroutines in one process.
//   - comm/tcp: workers in separate processes connected through a hub.
//
// # Typed collectives
//
// The byte-level primitives (AllGather, Gather, AllToAll) are wrapped by package
// functions that operate on numbers:
//
//	sum, err := comm.Sum(ctx, c, []float64{local})
//	sizes, err := comm.AllGatherInts(ctx, c, nLocal)
//	err := comm.Barrier(ctx, c)
//
// Reductions combine contributions in rank order, so every worker computes a
// bit-identical result.
//
// # Failure model
//
// A collective that fails on one worker (error, cancellation, panic) aborts the
// whole group. Pending and future collectives on every worker return an error
// wrapping ErrGroupAborted.
//
//	err := comm.Run(ctx, 4, func(ctx context.Context, c comm.Communicator) error {
//		...
//	})
package comm
