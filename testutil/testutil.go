package testutil

import (
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/hupe1980/distvec/internal/kernels"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe, so workers of an in-process group may share one.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// FillUniform fills dst with random values in range [minVal, maxVal).
// Locks only once per call.
func (r *RNG) FillUniform(dst []float64, minVal, maxVal float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	span := maxVal - minVal
	for i := range dst {
		dst[i] = minVal + r.rand.Float64()*span
	}
}

// Partition splits n entries into workers contiguous local sizes that sum to
// n. Empty workers are likely for small n.
func (r *RNG) Partition(n, workers int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	// workers-1 cut points in [0, n], sorted.
	cuts := make([]int, workers-1)
	for i := range cuts {
		cuts[i] = r.rand.Intn(n + 1)
	}
	sort.Ints(cuts)

	sizes := make([]int, workers)
	prev := 0
	for i, c := range cuts {
		sizes[i] = c - prev
		prev = c
	}
	sizes[workers-1] = n - prev
	return sizes
}

// Indices returns count random indices in [0, n). Repeats are possible.
func (r *RNG) Indices(count, n int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]int, count)
	for i := range out {
		out[i] = r.rand.Intn(n)
	}
	return out
}

// Uniform returns n values with real and, for complex types, imaginary parts
// uniform in [-1, 1).
func Uniform[T kernels.Scalar](r *RNG, n int) []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]T, n)
	for i := range out {
		re := r.rand.Float64()*2 - 1
		im := 0.0
		if kernels.IsComplex[T]() {
			im = r.rand.Float64()*2 - 1
		}
		out[i] = kernels.FromParts[T](re, im)
	}
	return out
}

// Iota returns the values 0, 1, ..., n-1.
func Iota[T kernels.Scalar](n int) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = kernels.FromParts[T](float64(i), 0)
	}
	return out
}

// Reduction holds the reductions of a whole vector computed in one serial
// pass. Min and Max compare real parts. For an empty vector they hold the
// sentinels math.MaxFloat64 and -math.MaxFloat64.
type Reduction struct {
	Sum      complex128
	L1       float64
	L2       float64
	Linfty   float64
	Min, Max float64
}

// Reduce computes the reference reductions of vals.
func Reduce[T kernels.Scalar](vals []T) Reduction {
	var (
		red Reduction
		ss  float64
	)
	red.Min, red.Max = math.MaxFloat64, -math.MaxFloat64
	for _, x := range vals {
		re := kernels.Real(x)
		red.Sum += complex(re, kernels.Imag(x))
		a := kernels.Abs(x)
		red.L1 += a
		ss += a * a
		red.Linfty = math.Max(red.Linfty, a)
		red.Min = math.Min(red.Min, re)
		red.Max = math.Max(red.Max, re)
	}
	red.L2 = math.Sqrt(ss)
	return red
}
