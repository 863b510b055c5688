package distvec

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/hupe1980/distvec/comm"
	"github.com/hupe1980/distvec/internal/kernels"
)

// Min returns the global minimum. Complex entries are compared by their real
// part. Workers without entries do not affect the result.
func (v *DistributedVector[T]) Min(ctx context.Context) (float64, error) {
	const op = "min"
	v.mustBeConsistent(op)
	out, err := v.reduce(ctx, op, comm.OpMin, kernels.MinReal(v.values))
	if err != nil {
		return 0, err
	}
	return out[0], nil
}

// Max returns the global maximum. Complex entries are compared by their real
// part.
func (v *DistributedVector[T]) Max(ctx context.Context) (float64, error) {
	const op = "max"
	v.mustBeConsistent(op)
	out, err := v.reduce(ctx, op, comm.OpMax, kernels.MaxReal(v.values))
	if err != nil {
		return 0, err
	}
	return out[0], nil
}

// Sum returns the sum of all entries.
func (v *DistributedVector[T]) Sum(ctx context.Context) (T, error) {
	const op = "sum"
	v.mustBeConsistent(op)
	re, im := kernels.SumParts(v.values)
	out, err := v.reduce(ctx, op, comm.OpSum, re, im)
	if err != nil {
		var zero T
		return zero, err
	}
	return kernels.FromParts[T](out[0], out[1]), nil
}

// L1Norm returns the sum of the magnitudes of all entries.
func (v *DistributedVector[T]) L1Norm(ctx context.Context) (float64, error) {
	const op = "l1_norm"
	v.mustBeConsistent(op)
	out, err := v.reduce(ctx, op, comm.OpSum, kernels.SumAbs(v.values))
	if err != nil {
		return 0, err
	}
	return out[0], nil
}

// L2Norm returns the Euclidean norm.
func (v *DistributedVector[T]) L2Norm(ctx context.Context) (float64, error) {
	const op = "l2_norm"
	v.mustBeConsistent(op)
	out, err := v.reduce(ctx, op, comm.OpSum, kernels.SumSquares(v.values))
	if err != nil {
		return 0, err
	}
	return math.Sqrt(out[0]), nil
}

// LinftyNorm returns the largest magnitude of any entry.
func (v *DistributedVector[T]) LinftyNorm(ctx context.Context) (float64, error) {
	const op = "linfty_norm"
	v.mustBeConsistent(op)
	out, err := v.reduce(ctx, op, comm.OpMax, kernels.MaxAbs(v.values))
	if err != nil {
		return 0, err
	}
	return out[0], nil
}

// Dot returns Σ conj(v_i)·other_i over the whole vector. other must have the
// same global and local size.
func (v *DistributedVector[T]) Dot(ctx context.Context, other Vector[T]) (T, error) {
	const op = "dot"
	v.mustBeConsistent(op)
	v.mustMatch(op, other)
	re, im := kernels.DotParts(v.values, localOf(other, v.localSize))
	out, err := v.reduce(ctx, op, comm.OpSum, re, im)
	if err != nil {
		var zero T
		return zero, err
	}
	return kernels.FromParts[T](out[0], out[1]), nil
}

// reduce combines the local contributions across the group. A serial vector
// is reduced over the calling worker's copy.
func (v *DistributedVector[T]) reduce(ctx context.Context, op string, cop comm.Op, local ...float64) ([]float64, error) {
	start := time.Now()

	err := v.verify(ctx, op)
	var out []float64
	switch {
	case err != nil:
	case v.replicated():
		out = local
	default:
		out, err = comm.AllReduce(ctx, v.comm, cop, local)
	}

	d := time.Since(start)
	v.metrics.RecordCollective(op, d, err)
	v.log.LogCollective(ctx, op, d, err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
