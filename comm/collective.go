package comm

import (
	"bytes"
	"context"
	"fmt"
	"math"

	"github.com/hupe1980/distvec/internal/wire"
)

// Op is an element-wise reduction operator.
type Op uint8

const (
	OpSum Op = iota + 1
	OpMin
	OpMax
)

func (o Op) String() string {
	switch o {
	case OpSum:
		return "sum"
	case OpMin:
		return "min"
	case OpMax:
		return "max"
	default:
		return fmt.Sprintf("comm.Op(%d)", uint8(o))
	}
}

// AllReduce combines v element-wise across the group. Every worker must pass a
// slice of the same length. Contributions are combined in rank order.
func AllReduce(ctx context.Context, c Communicator, op Op, v []float64) ([]float64, error) {
	if op < OpSum || op > OpMax {
		return nil, fmt.Errorf("allreduce: unknown operator %s", op)
	}
	all, err := c.AllGather(ctx, wire.AppendFloat64s(nil, v...))
	if err != nil {
		return nil, fmt.Errorf("allreduce %s: %w", op, err)
	}

	var out []float64
	for rank, buf := range all {
		contrib, err := wire.DecodeFloat64s(buf)
		if err != nil {
			return nil, fmt.Errorf("allreduce %s: rank %d: %w", op, rank, err)
		}
		if len(contrib) != len(v) {
			return nil, fmt.Errorf("allreduce %s: %w: rank %d sent %d values, want %d",
				op, ErrMismatch, rank, len(contrib), len(v))
		}
		if rank == 0 {
			out = contrib
			continue
		}
		for i, x := range contrib {
			switch op {
			case OpSum:
				out[i] += x
			case OpMin:
				out[i] = math.Min(out[i], x)
			case OpMax:
				out[i] = math.Max(out[i], x)
			}
		}
	}
	return out, nil
}

// Sum is AllReduce with OpSum.
func Sum(ctx context.Context, c Communicator, v []float64) ([]float64, error) {
	return AllReduce(ctx, c, OpSum, v)
}

// Min is AllReduce with OpMin.
func Min(ctx context.Context, c Communicator, v []float64) ([]float64, error) {
	return AllReduce(ctx, c, OpMin, v)
}

// Max is AllReduce with OpMax.
func Max(ctx context.Context, c Communicator, v []float64) ([]float64, error) {
	return AllReduce(ctx, c, OpMax, v)
}

// AllGatherInts returns every worker's x, indexed by rank.
func AllGatherInts(ctx context.Context, c Communicator, x int) ([]int, error) {
	all, err := c.AllGather(ctx, wire.AppendInt64s(nil, int64(x)))
	if err != nil {
		return nil, fmt.Errorf("allgather ints: %w", err)
	}
	out := make([]int, len(all))
	for rank, buf := range all {
		v, err := wire.DecodeInt64s(buf)
		if err != nil || len(v) != 1 {
			return nil, fmt.Errorf("allgather ints: %w: rank %d sent %d bytes", ErrMismatch, rank, len(buf))
		}
		out[rank] = int(v[0])
	}
	return out, nil
}

// Broadcast returns root's data on every worker. Non-root data is ignored.
func Broadcast(ctx context.Context, c Communicator, root int, data []byte) ([]byte, error) {
	if err := checkRank(root, c.Size()); err != nil {
		return nil, err
	}
	if c.Rank() != root {
		data = nil
	}
	all, err := c.AllGather(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("broadcast: %w", err)
	}
	return all[root], nil
}

// Barrier blocks until every worker has entered it.
func Barrier(ctx context.Context, c Communicator) error {
	if _, err := c.AllGather(ctx, nil); err != nil {
		return fmt.Errorf("barrier: %w", err)
	}
	return nil
}

// Verify checks that every worker passed the same tag. All workers observe
// the same outcome: either all get nil or all get an error wrapping ErrMismatch.
func Verify(ctx context.Context, c Communicator, tag string) error {
	all, err := c.AllGather(ctx, []byte(tag))
	if err != nil {
		return fmt.Errorf("verify %q: %w", tag, err)
	}
	for rank := 1; rank < len(all); rank++ {
		if !bytes.Equal(all[0], all[rank]) {
			return fmt.Errorf("%w: rank 0 is in %q, rank %d is in %q", ErrMismatch, all[0], rank, all[rank])
		}
	}
	return nil
}
