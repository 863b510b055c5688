package distvec

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/distvec/comm"
	"github.com/hupe1980/distvec/internal/partition"
	"github.com/hupe1980/distvec/internal/wire"
)

// Localize returns the whole vector on every worker. Collective.
func (v *DistributedVector[T]) Localize(ctx context.Context) ([]T, error) {
	const op = "localize"
	v.mustBeConsistent(op)

	start := time.Now()
	out, err := v.allGatherValues(ctx, op)
	v.observeLocalize(ctx, op, start, len(out), err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LocalizeInto copies the whole vector into dst on every worker. dst must be
// initialized with Size() == LocalSize() == v.Size(). Collective.
func (v *DistributedVector[T]) LocalizeInto(ctx context.Context, dst Vector[T]) error {
	const op = "localize_into"
	v.mustBeConsistent(op)
	v.mustBeSerialTarget(op, dst)

	start := time.Now()
	out, err := v.allGatherValues(ctx, op)
	if err == nil {
		storeAll(dst, out)
	}
	v.observeLocalize(ctx, op, start, len(out), err)
	return err
}

// LocalizeSendList copies the owned range of v and every index listed in
// sendList into dst, which must be serial-shaped with v's global size.
// Other entries of dst are left untouched. sendList may differ between
// workers and may repeat indices. Collective.
func (v *DistributedVector[T]) LocalizeSendList(ctx context.Context, dst Vector[T], sendList []int) error {
	const op = "localize_send_list"
	v.mustBeConsistent(op)
	v.mustBeSerialTarget(op, dst)
	want := v.requestSet(op, sendList, v.firstLocal, v.lastLocal)

	start := time.Now()
	err := v.verify(ctx, op)
	var got []T
	if err == nil && !v.replicated() {
		got, err = fetch(ctx, v.comm, v.layout, v.values, want)
	}
	if err == nil {
		if d, ok := dst.(*DistributedVector[T]); ok {
			copy(d.values[v.firstLocal:v.lastLocal], v.values)
		} else {
			for k, x := range v.values {
				dst.Set(v.firstLocal+k, x)
			}
		}
		storeSet(dst, want, got)
	}
	v.observeLocalize(ctx, op, start, len(got), err)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// LocalizeIndices returns the values at the given global indices, in request
// order. Indices may be owned by any worker and may repeat. Collective.
func (v *DistributedVector[T]) LocalizeIndices(ctx context.Context, indices []int) ([]T, error) {
	const op = "localize_indices"
	v.mustBeConsistent(op)
	want := v.requestSet(op, indices, v.firstLocal, v.lastLocal)

	start := time.Now()
	err := v.verify(ctx, op)
	var got []T
	if err == nil && !v.replicated() {
		got, err = fetch(ctx, v.comm, v.layout, v.values, want)
	}
	v.observeLocalize(ctx, op, start, len(got), err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make([]T, len(indices))
	for k, i := range indices {
		if i >= v.firstLocal && i < v.lastLocal {
			out[k] = v.values[i-v.firstLocal]
			continue
		}
		out[k] = got[want.Rank(uint32(i))-1]
	}
	return out, nil
}

// LocalizeRange treats v as a serial copy in which only [first, last) is
// authoritative on this worker. Afterwards each worker's copy also holds the
// sendList entries, fetched from the workers that own them.
//
// v must be serial-shaped. The ranges of all workers, taken in rank order,
// must tile [0, Size()). Collective.
func (v *DistributedVector[T]) LocalizeRange(ctx context.Context, first, last int, sendList []int) error {
	const op = "localize_range"
	v.mustBeConsistent(op)
	if v.localSize != v.globalSize {
		fault(op, ErrSizeMismatch, "vector must be serial, has local %d of global %d", v.localSize, v.globalSize)
	}

	start := time.Now()
	err := v.verify(ctx, op)
	var got []T
	if err == nil {
		var layout partition.Layout
		layout, err = v.gatherRanges(ctx, op, first, last)
		if err == nil {
			want := v.requestSet(op, sendList, first, last)
			got, err = fetch(ctx, v.comm, layout, v.values[first:last], want)
			if err == nil {
				storeSet(v, want, got)
			}
		}
	}
	v.observeLocalize(ctx, op, start, len(got), err)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// LocalizeToOne returns the whole vector on root and nil on every other
// worker. Collective.
func (v *DistributedVector[T]) LocalizeToOne(ctx context.Context, root int) ([]T, error) {
	const op = "localize_to_one"
	v.mustBeConsistent(op)
	if root < 0 || root >= v.comm.Size() {
		fault(op, ErrOutOfRange, "root %d not in [0,%d)", root, v.comm.Size())
	}

	start := time.Now()
	err := v.verify(ctx, fmt.Sprintf("%s(%d)", op, root))
	var out []T
	if err == nil {
		switch {
		case v.replicated():
			if v.comm.Rank() == root {
				out = slices.Clone(v.values)
			}
		default:
			var parts [][]byte
			parts, err = v.comm.Gather(ctx, root, wire.EncodeScalars(v.values))
			if err == nil && v.comm.Rank() == root {
				out, err = v.concat(parts)
			}
		}
	}
	v.observeLocalize(ctx, op, start, len(out), err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (v *DistributedVector[T]) allGatherValues(ctx context.Context, op string) ([]T, error) {
	if err := v.verify(ctx, op); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if v.replicated() {
		return slices.Clone(v.values), nil
	}
	parts, err := v.comm.AllGather(ctx, wire.EncodeScalars(v.values))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out, err := v.concat(parts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// concat decodes per-rank local buffers into one global vector.
func (v *DistributedVector[T]) concat(parts [][]byte) ([]T, error) {
	out := make([]T, v.globalSize)
	off := 0
	for r, p := range parts {
		want := v.layout.LocalSize(r)
		if off+want > len(out) {
			return nil, fmt.Errorf("%w: rank %d overflows global size %d", ErrInconsistentPartition, r, v.globalSize)
		}
		if len(p) != want*wire.ScalarSize[T]() {
			return nil, fmt.Errorf("%w: rank %d sent %d bytes for %d entries", ErrInconsistentPartition, r, len(p), want)
		}
		wire.DecodeScalarsInto(out[off:off+want], p)
		off += want
	}
	if off != v.globalSize {
		return nil, fmt.Errorf("%w: gathered %d of %d entries", ErrInconsistentPartition, off, v.globalSize)
	}
	return out, nil
}

// gatherRanges all-gathers every worker's [first, last) and builds the layout
// they describe. All workers see the same ranges, so they fault together.
func (v *DistributedVector[T]) gatherRanges(ctx context.Context, op string, first, last int) (partition.Layout, error) {
	all, err := v.comm.AllGather(ctx, wire.AppendInt64s(nil, int64(first), int64(last)))
	if err != nil {
		return partition.Layout{}, err
	}

	sizes := make([]int, len(all))
	next := 0
	for r, buf := range all {
		x, err := wire.DecodeInt64s(buf)
		if err != nil || len(x) != 2 {
			return partition.Layout{}, fmt.Errorf("%w: rank %d sent a malformed range", comm.ErrMismatch, r)
		}
		f, l := int(x[0]), int(x[1])
		if f != next || l < f || l > v.globalSize {
			fault(op, ErrInconsistentPartition, "rank %d range [%d,%d) does not continue at %d", r, f, l, next)
		}
		sizes[r] = l - f
		next = l
	}
	if next != v.globalSize {
		fault(op, ErrInconsistentPartition, "ranges cover [0,%d) of %d entries", next, v.globalSize)
	}
	return partition.FromSizes(sizes), nil
}

// requestSet collects the indices outside [first, last) that must be fetched
// from other workers.
func (v *DistributedVector[T]) requestSet(op string, indices []int, first, last int) *roaring.Bitmap {
	if v.globalSize > math.MaxUint32 {
		fault(op, ErrNotImplemented, "index sets above %d entries", uint64(math.MaxUint32))
	}
	want := roaring.New()
	for _, i := range indices {
		if i < 0 || i >= v.globalSize {
			fault(op, ErrOutOfRange, "index %d not in [0,%d)", i, v.globalSize)
		}
		if i < first || i >= last {
			want.Add(uint32(i))
		}
	}
	return want
}

func (v *DistributedVector[T]) mustBeSerialTarget(op string, dst Vector[T]) {
	if !dst.Initialized() {
		fault(op, ErrNotInitialized, "target")
	}
	if dst.Size() != v.globalSize || dst.LocalSize() != v.globalSize {
		fault(op, ErrSizeMismatch, "target has global %d local %d, needs %d entries on every worker",
			dst.Size(), dst.LocalSize(), v.globalSize)
	}
}

func (v *DistributedVector[T]) observeLocalize(ctx context.Context, op string, start time.Time, elements int, err error) {
	d := time.Since(start)
	v.metrics.RecordLocalize(op, elements, d, err)
	v.log.LogLocalize(ctx, op, elements, d, err)
}

// fetch exchanges request sets and returns the requested values in ascending
// index order. local holds the entries of this worker's range in layout.
//
// Every worker all-gathers the request sets; each owner answers with the
// values it holds for every requester. Owner ranges ascend with rank, so
// replies concatenated in rank order are sorted by index.
func fetch[T Scalar](ctx context.Context, c comm.Communicator, layout partition.Layout, local []T, want *roaring.Bitmap) ([]T, error) {
	req, err := want.ToBytes()
	if err != nil {
		return nil, err
	}
	reqs, err := c.AllGather(ctx, req)
	if err != nil {
		return nil, err
	}

	first, last := layout.First(c.Rank()), layout.Last(c.Rank())
	mine := roaring.New()
	mine.AddRange(uint64(first), uint64(last))

	replies := make([][]byte, len(reqs))
	for r, buf := range reqs {
		asked := roaring.New()
		if err := asked.UnmarshalBinary(buf); err != nil {
			return nil, fmt.Errorf("%w: rank %d sent a malformed request: %v", comm.ErrMismatch, r, err)
		}
		asked.And(mine)

		vals := make([]T, 0, asked.GetCardinality())
		it := asked.Iterator()
		for it.HasNext() {
			vals = append(vals, local[int(it.Next())-first])
		}
		replies[r] = wire.EncodeScalars(vals)
	}

	got, err := c.AllToAll(ctx, replies)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, want.GetCardinality())
	for r, buf := range got {
		vals, err := wire.DecodeScalars[T](buf)
		if err != nil {
			return nil, fmt.Errorf("rank %d: %w", r, err)
		}
		out = append(out, vals...)
	}
	if uint64(len(out)) != want.GetCardinality() {
		return nil, fmt.Errorf("%w: received %d of %d requested entries", ErrInconsistentPartition, len(out), want.GetCardinality())
	}
	return out, nil
}

// storeAll writes a full global vector into a serial-shaped dst.
func storeAll[T Scalar](dst Vector[T], vals []T) {
	if d, ok := dst.(*DistributedVector[T]); ok {
		copy(d.values, vals)
		return
	}
	for i, x := range vals {
		dst.Set(i, x)
	}
}

// storeSet writes vals, sorted like the members of set, into a serial-shaped dst.
func storeSet[T Scalar](dst Vector[T], set *roaring.Bitmap, vals []T) {
	d, fast := dst.(*DistributedVector[T])
	it := set.Iterator()
	for k := 0; it.HasNext(); k++ {
		i := int(it.Next())
		if fast {
			d.values[i] = vals[k]
		} else {
			dst.Set(i, vals[k])
		}
	}
}
