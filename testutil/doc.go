// Package testutil provides testing utilities for distvec.
//
// This package is intended for use in tests and benchmarks only.
// It provides seeded random data, random partitions of a global size and
// serial reference reductions to check distributed results against.
//
// # Random Data
//
//	rng := testutil.NewRNG(seed)
//	vals := testutil.Uniform[float64](rng, 100)   // uniform [-1, 1)
//	sizes := rng.Partition(100, 4)                // local sizes summing to 100
//
// # Reference Reductions
//
//	want := testutil.Reduce(vals)
//	assert.InDelta(t, want.L2, got, 1e-9)
package testutil
