package distvec

import (
	"fmt"

	"github.com/hupe1980/distvec/internal/kernels"
)

// Scalar is the set of element types a vector can hold.
type Scalar = kernels.Scalar

// ParallelType describes how a vector is laid out over the workers.
type ParallelType uint8

const (
	// Automatic resolves to Serial when the local size equals the global size
	// and to Parallel otherwise.
	Automatic ParallelType = iota
	// Serial vectors are held entirely by every worker.
	Serial
	// Parallel vectors are split contiguously in rank order.
	Parallel
)

func (p ParallelType) String() string {
	switch p {
	case Automatic:
		return "automatic"
	case Serial:
		return "serial"
	case Parallel:
		return "parallel"
	default:
		return fmt.Sprintf("ParallelType(%d)", uint8(p))
	}
}

// Vector is the capability set shared by all vector implementations. It is
// what DistributedVector accepts as the other operand of Assign, Dot,
// AddVector, PointwiseMult and the localize variants.
//
// Get and Set address global indices and only succeed for indices owned by
// the calling worker.
type Vector[T Scalar] interface {
	Size() int
	LocalSize() int
	FirstLocalIndex() int
	LastLocalIndex() int
	Type() ParallelType
	Initialized() bool
	Get(i int) T
	Set(i int, v T)
}

// SparseMatrix is the narrow view of a sparse matrix needed by the product
// hooks. No matrix type is provided by this module.
type SparseMatrix[T Scalar] interface {
	Rows() int
	Cols() int
}

var _ Vector[float64] = (*DistributedVector[float64])(nil)
