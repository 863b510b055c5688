package distvec

import (
	"github.com/hupe1980/distvec/internal/kernels"
)

// Get returns the entry at global index i. i must be owned by this worker.
func (v *DistributedVector[T]) Get(i int) T {
	v.mustOwn("get", i)
	return v.values[i-v.firstLocal]
}

// Set overwrites the entry at global index i. i must be owned by this worker.
func (v *DistributedVector[T]) Set(i int, x T) {
	v.mustOwn("set", i)
	v.values[i-v.firstLocal] = x
}

// Add accumulates x into the entry at global index i.
func (v *DistributedVector[T]) Add(i int, x T) {
	v.mustOwn("add", i)
	v.values[i-v.firstLocal] += x
}

// Values returns a copy of the local buffer. Entry k holds global index
// FirstLocalIndex()+k.
func (v *DistributedVector[T]) Values() []T {
	v.mustBeInitialized("values")
	out := make([]T, len(v.values))
	copy(out, v.values)
	return out
}

// Fill sets every local entry to s.
func (v *DistributedVector[T]) Fill(s T) {
	v.mustBeConsistent("fill")
	kernels.Fill(v.values, s)
}

// Zero sets every local entry to zero.
func (v *DistributedVector[T]) Zero() {
	v.mustBeConsistent("zero")
	clear(v.values)
}

// Assign copies the local entries of other, which must have the same global
// and local size.
func (v *DistributedVector[T]) Assign(other Vector[T]) {
	const op = "assign"
	v.mustBeConsistent(op)
	v.mustMatch(op, other)

	if o, ok := other.(*DistributedVector[T]); ok {
		copy(v.values, o.values)
		return
	}
	first := other.FirstLocalIndex()
	for k := range v.values {
		v.values[k] = other.Get(first + k)
	}
}

// AssignSlice copies s into the vector. s holds either the local entries
// (len(s) == LocalSize()) or the whole vector (len(s) == Size()), in which
// case only the owned range is copied.
func (v *DistributedVector[T]) AssignSlice(s []T) {
	const op = "assign_slice"
	v.mustBeConsistent(op)

	switch len(s) {
	case v.localSize:
		copy(v.values, s)
	case v.globalSize:
		copy(v.values, s[v.firstLocal:v.lastLocal])
	default:
		fault(op, ErrSizeMismatch, "slice has %d entries, vector has %d local and %d global", len(s), v.localSize, v.globalSize)
	}
}

// Scale multiplies every local entry by f.
func (v *DistributedVector[T]) Scale(f T) {
	v.mustBeConsistent("scale")
	kernels.Scale(v.values, f)
}

// AddScalar adds s to every local entry.
func (v *DistributedVector[T]) AddScalar(s T) {
	v.mustBeConsistent("add_scalar")
	kernels.AddScalar(v.values, s)
}

// Reciprocal replaces every local entry by its multiplicative inverse.
// Zero entries become infinite (or NaN for complex types).
func (v *DistributedVector[T]) Reciprocal() {
	v.mustBeConsistent("reciprocal")
	kernels.Reciprocal(v.values)
}

// Conjugate negates the imaginary part of every local entry. It is a no-op
// for real types.
func (v *DistributedVector[T]) Conjugate() {
	v.mustBeConsistent("conjugate")
	kernels.Conjugate(v.values)
}

// Abs replaces every local entry by its magnitude.
func (v *DistributedVector[T]) Abs() {
	v.mustBeConsistent("abs")
	kernels.AbsInPlace(v.values)
}

// AddVector adds other to v entry-wise.
func (v *DistributedVector[T]) AddVector(other Vector[T]) {
	const op = "add_vector"
	v.mustBeConsistent(op)
	v.mustMatch(op, other)
	kernels.Add(v.values, localOf(other, v.localSize))
}

// SubVector subtracts other from v entry-wise.
func (v *DistributedVector[T]) SubVector(other Vector[T]) {
	const op = "sub_vector"
	v.mustBeConsistent(op)
	v.mustMatch(op, other)
	kernels.Sub(v.values, localOf(other, v.localSize))
}

// AddScaled computes v += a*other.
func (v *DistributedVector[T]) AddScaled(a T, other Vector[T]) {
	const op = "add_scaled"
	v.mustBeConsistent(op)
	v.mustMatch(op, other)
	kernels.Axpy(v.values, a, localOf(other, v.localSize))
}

// DivideVector divides v by other entry-wise.
func (v *DistributedVector[T]) DivideVector(other Vector[T]) {
	const op = "divide_vector"
	v.mustBeConsistent(op)
	v.mustMatch(op, other)
	kernels.Div(v.values, localOf(other, v.localSize))
}

// PointwiseMult stores the entry-wise product of a and b in v. The three
// vectors must have the same local size.
func (v *DistributedVector[T]) PointwiseMult(a, b Vector[T]) {
	const op = "pointwise_mult"
	v.mustBeConsistent(op)
	if a.LocalSize() != v.localSize || b.LocalSize() != v.localSize {
		fault(op, ErrSizeMismatch, "local sizes %d, %d and %d", v.localSize, a.LocalSize(), b.LocalSize())
	}
	kernels.Mul(v.values, localOf(a, v.localSize), localOf(b, v.localSize))
}

// AddMatVec would compute v += A*x. Sparse matrices are not supported and
// the call always faults with ErrNotImplemented.
func (v *DistributedVector[T]) AddMatVec(x Vector[T], a SparseMatrix[T]) {
	fault("add_mat_vec", ErrNotImplemented, "sparse matrix products are not supported")
}

// AddMatTransposeVec would compute v += Aᵀ*x. It always faults with
// ErrNotImplemented.
func (v *DistributedVector[T]) AddMatTransposeVec(x Vector[T], a SparseMatrix[T]) {
	fault("add_mat_transpose_vec", ErrNotImplemented, "sparse matrix products are not supported")
}

// localOf returns the local entries of other. The fast path shares the
// buffer of a *DistributedVector; other implementations are read through Get.
func localOf[T Scalar](other Vector[T], n int) []T {
	if o, ok := other.(*DistributedVector[T]); ok {
		return o.values
	}
	out := make([]T, n)
	first := other.FirstLocalIndex()
	for k := range out {
		out[k] = other.Get(first + k)
	}
	return out
}

func (v *DistributedVector[T]) mustOwn(op string, i int) {
	v.mustBeInitialized(op)
	if i < v.firstLocal || i >= v.lastLocal || i >= v.globalSize {
		fault(op, ErrOutOfRange, "index %d not in [%d,%d)", i, v.firstLocal, v.lastLocal)
	}
}

// mustBeConsistent checks the local invariants that every mutation relies on.
func (v *DistributedVector[T]) mustBeConsistent(op string) {
	v.mustBeInitialized(op)
	if len(v.values) != v.localSize || v.lastLocal-v.firstLocal != v.localSize {
		fault(op, ErrInconsistentPartition, "buffer %d, local size %d, range [%d,%d)",
			len(v.values), v.localSize, v.firstLocal, v.lastLocal)
	}
}

func (v *DistributedVector[T]) mustMatch(op string, other Vector[T]) {
	if !other.Initialized() {
		fault(op, ErrNotInitialized, "operand")
	}
	if other.Size() != v.globalSize || other.LocalSize() != v.localSize {
		fault(op, ErrSizeMismatch, "operand has global %d local %d, vector has global %d local %d",
			other.Size(), other.LocalSize(), v.globalSize, v.localSize)
	}
}
