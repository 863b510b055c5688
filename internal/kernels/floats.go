package kernels

import "math"

// DotParts returns the real and imaginary parts of Σ conj(a[i])·b[i],
// accumulated in float64 for every scalar type.
//
// SAFETY: len(a) must equal len(b); callers check sizes before dispatching.
func DotParts[T Scalar](a, b []T) (re, im float64) {
	switch x := any(a).(type) {
	case []float64:
		return dotFloat64(x, any(b).([]float64)), 0
	case []float32:
		return dotFloat32(x, any(b).([]float32)), 0
	case []complex128:
		d := dotComplex128(x, any(b).([]complex128))
		return real(d), imag(d)
	case []complex64:
		d := dotComplex64(x, any(b).([]complex64))
		return real(d), imag(d)
	}
	return 0, 0
}

func dotFloat64(a, b []float64) float64 {
	var s0, s1, s2, s3 float64
	n := len(a) &^ 3
	for i := 0; i < n; i += 4 {
		s0 += a[i] * b[i]
		s1 += a[i+1] * b[i+1]
		s2 += a[i+2] * b[i+2]
		s3 += a[i+3] * b[i+3]
	}
	for i := n; i < len(a); i++ {
		s0 += a[i] * b[i]
	}
	return s0 + s1 + s2 + s3
}

func dotFloat32(a, b []float32) float64 {
	var ret float64
	for i := range a {
		ret += float64(a[i]) * float64(b[i])
	}
	return ret
}

func dotComplex128(a, b []complex128) complex128 {
	var ret complex128
	for i := range a {
		ret += complex(real(a[i]), -imag(a[i])) * b[i]
	}
	return ret
}

func dotComplex64(a, b []complex64) complex128 {
	var ret complex128
	for i := range a {
		ret += complex(float64(real(a[i])), -float64(imag(a[i]))) * complex128(b[i])
	}
	return ret
}

// SumParts returns the real and imaginary parts of Σ a[i], accumulated in
// float64 for every scalar type.
func SumParts[T Scalar](a []T) (re, im float64) {
	switch x := any(a).(type) {
	case []float64:
		for _, v := range x {
			re += v
		}
	case []float32:
		for _, v := range x {
			re += float64(v)
		}
	case []complex128:
		var s complex128
		for _, v := range x {
			s += v
		}
		return real(s), imag(s)
	case []complex64:
		var s complex128
		for _, v := range x {
			s += complex128(v)
		}
		return real(s), imag(s)
	}
	return re, im
}

// SumAbs returns Σ |a[i]|.
func SumAbs[T Scalar](a []T) float64 {
	var s float64
	for _, v := range a {
		s += Abs(v)
	}
	return s
}

// SumSquares returns Σ |a[i]|².
func SumSquares[T Scalar](a []T) float64 {
	switch x := any(a).(type) {
	case []float64:
		return dotFloat64(x, x)
	case []complex128:
		var s float64
		for _, v := range x {
			s += real(v)*real(v) + imag(v)*imag(v)
		}
		return s
	}
	var s float64
	for _, v := range a {
		re, im := Real(v), Imag(v)
		s += re*re + im*im
	}
	return s
}

// MaxAbs returns max |a[i]|, or 0 for an empty slice.
func MaxAbs[T Scalar](a []T) float64 {
	var m float64
	for _, v := range a {
		if x := Abs(v); x > m {
			m = x
		}
	}
	return m
}

// MinReal returns the smallest real part in a. An empty slice yields
// math.MaxFloat64 so it never wins a global minimum.
func MinReal[T Scalar](a []T) float64 {
	m := math.MaxFloat64
	for _, v := range a {
		m = math.Min(m, Real(v))
	}
	return m
}

// MaxReal returns the largest real part in a. An empty slice yields
// -math.MaxFloat64 so it never wins a global maximum.
func MaxReal[T Scalar](a []T) float64 {
	m := -math.MaxFloat64
	for _, v := range a {
		m = math.Max(m, Real(v))
	}
	return m
}
