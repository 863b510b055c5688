package partition

import (
	"errors"
	"fmt"
	"sort"
)

// ErrSizeMismatch is returned by Validate when the local sizes do not add up
// to the expected global size.
var ErrSizeMismatch = errors.New("partition: local sizes do not sum to global size")

// ErrNegativeSize is returned by Validate when a worker reports a negative local size.
var ErrNegativeSize = errors.New("partition: negative local size")

// Layout is a contiguous rank-ordered partition.
//
// offsets has one entry per worker plus a trailing entry holding the total,
// so offsets[r] is the first global index of rank r and offsets[r+1] is one
// past its last.
type Layout struct {
	offsets []int
}

// FromSizes builds a layout from per-rank local sizes (prefix sum).
func FromSizes(sizes []int) Layout {
	offsets := make([]int, len(sizes)+1)
	for r, n := range sizes {
		offsets[r+1] = offsets[r] + n
	}
	return Layout{offsets: offsets}
}

// Single returns the layout of a vector held entirely by one worker.
func Single(n int) Layout {
	return Layout{offsets: []int{0, n}}
}

// Workers returns the number of ranks described by the layout.
func (l Layout) Workers() int {
	if len(l.offsets) == 0 {
		return 0
	}
	return len(l.offsets) - 1
}

// Total returns the sum of all local sizes.
func (l Layout) Total() int {
	if len(l.offsets) == 0 {
		return 0
	}
	return l.offsets[len(l.offsets)-1]
}

// First returns the first global index owned by rank.
func (l Layout) First(rank int) int {
	return l.offsets[rank]
}

// Last returns one past the last global index owned by rank.
func (l Layout) Last(rank int) int {
	return l.offsets[rank+1]
}

// LocalSize returns the number of entries owned by rank.
func (l Layout) LocalSize(rank int) int {
	return l.offsets[rank+1] - l.offsets[rank]
}

// Sizes returns the per-rank local sizes.
func (l Layout) Sizes() []int {
	w := l.Workers()
	sizes := make([]int, w)
	for r := 0; r < w; r++ {
		sizes[r] = l.LocalSize(r)
	}
	return sizes
}

// Owner returns the rank owning global index i, or -1 if i is outside [0, Total()).
// Empty ranks never own anything.
func (l Layout) Owner(i int) int {
	if i < 0 || i >= l.Total() {
		return -1
	}
	// First offset strictly greater than i, minus one.
	r := sort.Search(len(l.offsets), func(k int) bool { return l.offsets[k] > i })
	return r - 1
}

// Validate checks that every local size is non-negative and that they sum to n.
func (l Layout) Validate(n int) error {
	for r := 0; r < l.Workers(); r++ {
		if l.LocalSize(r) < 0 {
			return fmt.Errorf("%w: rank %d has %d", ErrNegativeSize, r, l.LocalSize(r))
		}
	}
	if l.Total() != n {
		return fmt.Errorf("%w: got %d, want %d", ErrSizeMismatch, l.Total(), n)
	}
	return nil
}

// Equal reports whether two layouts describe the same partition.
func (l Layout) Equal(o Layout) bool {
	if len(l.offsets) != len(o.offsets) {
		return false
	}
	for i := range l.offsets {
		if l.offsets[i] != o.offsets[i] {
			return false
		}
	}
	return true
}

// EvenSize returns the local size of rank when n entries are spread as evenly
// as possible over workers ranks. The first n%workers ranks get one extra entry.
func EvenSize(n, workers, rank int) int {
	if workers <= 0 {
		return 0
	}
	size := n / workers
	if rank < n%workers {
		size++
	}
	return size
}

// Even returns the layout produced by EvenSize for every rank.
func Even(n, workers int) Layout {
	sizes := make([]int, workers)
	for r := range sizes {
		sizes[r] = EvenSize(n, workers, r)
	}
	return FromSizes(sizes)
}
