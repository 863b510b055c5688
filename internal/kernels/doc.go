// Package kernels provides the local numeric loops used by distributed vectors.
//
// Every kernel works on a worker's local buffer only and never communicates.
// Kernels are generic over Scalar and dispatch once per call on the concrete
// slice type, so the inner loops run on plain float64/complex128 slices.
//
// Complex inputs follow the usual conventions: Dot conjugates its first
// operand, Abs is the modulus and the real-valued min/max use the real part.
package kernels
