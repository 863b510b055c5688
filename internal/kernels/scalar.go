package kernels

import (
	"math"
	"math/cmplx"
)

// Scalar is the set of element types a distributed vector can hold.
type Scalar interface {
	float32 | float64 | complex64 | complex128
}

// Kind identifies a concrete Scalar type. It is stable and used in wire and
// checkpoint headers.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindFloat32
	KindFloat64
	KindComplex64
	KindComplex128
)

// String returns the Go type name of the kind.
func (k Kind) String() string {
	switch k {
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	case KindComplex64:
		return "complex64"
	case KindComplex128:
		return "complex128"
	default:
		return "invalid"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "float32":
		return KindFloat32, true
	case "float64":
		return KindFloat64, true
	case "complex64":
		return KindComplex64, true
	case "complex128":
		return KindComplex128, true
	default:
		return KindInvalid, false
	}
}

// Size returns the encoded width of one element in bytes.
func (k Kind) Size() int {
	switch k {
	case KindFloat32:
		return 4
	case KindFloat64, KindComplex64:
		return 8
	case KindComplex128:
		return 16
	default:
		return 0
	}
}

// KindOf returns the Kind of T.
func KindOf[T Scalar]() Kind {
	var z T
	switch any(z).(type) {
	case float32:
		return KindFloat32
	case float64:
		return KindFloat64
	case complex64:
		return KindComplex64
	case complex128:
		return KindComplex128
	}
	return KindInvalid
}

// IsComplex reports whether T is a complex type.
func IsComplex[T Scalar]() bool {
	k := KindOf[T]()
	return k == KindComplex64 || k == KindComplex128
}

// Real returns the real part of x as float64.
func Real[T Scalar](x T) float64 {
	switch v := any(x).(type) {
	case float32:
		return float64(v)
	case float64:
		return v
	case complex64:
		return float64(real(v))
	case complex128:
		return real(v)
	}
	return 0
}

// Imag returns the imaginary part of x (zero for real types).
func Imag[T Scalar](x T) float64 {
	switch v := any(x).(type) {
	case complex64:
		return float64(imag(v))
	case complex128:
		return imag(v)
	}
	return 0
}

// Abs returns the magnitude of x.
func Abs[T Scalar](x T) float64 {
	switch v := any(x).(type) {
	case float32:
		return math.Abs(float64(v))
	case float64:
		return math.Abs(v)
	case complex64:
		return cmplx.Abs(complex128(v))
	case complex128:
		return cmplx.Abs(v)
	}
	return 0
}

// Conj returns the complex conjugate of x; real values are returned unchanged.
func Conj[T Scalar](x T) T {
	switch v := any(x).(type) {
	case complex64:
		return any(complex(real(v), -imag(v))).(T)
	case complex128:
		return any(cmplx.Conj(v)).(T)
	}
	return x
}

// FromParts builds a T from real and imaginary parts. The imaginary part is
// dropped for real types.
func FromParts[T Scalar](re, im float64) T {
	var z T
	switch p := any(&z).(type) {
	case *float32:
		*p = float32(re)
	case *float64:
		*p = re
	case *complex64:
		*p = complex(float32(re), float32(im))
	case *complex128:
		*p = complex(re, im)
	}
	return z
}

// FromFloat converts a real number to T.
func FromFloat[T Scalar](f float64) T {
	return FromParts[T](f, 0)
}
