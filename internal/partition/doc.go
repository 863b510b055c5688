// Package partition describes contiguous, rank-ordered partitions of a global
// index space [0, N).
//
// A Layout is built from the local sizes of every worker, in rank order. Worker
// r owns the half-open range [First(r), Last(r)), where First(r) is the sum of
// the local sizes of all lower ranks. There are no gaps and no overlaps.
//
//	l := partition.FromSizes([]int{4, 6})
//	l.First(1)  // 4
//	l.Owner(7)  // 1
//
// Layouts are values. They are recomputed from a fresh all-gather every time a
// vector is initialized and are never cached in package state.
package partition
