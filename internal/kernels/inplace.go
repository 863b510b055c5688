package kernels

// Scale multiplies every element of a by s.
func Scale[T Scalar](a []T, s T) {
	if x, ok := any(a).([]float64); ok {
		scaleFloat64(x, any(s).(float64))
		return
	}
	for i := range a {
		a[i] *= s
	}
}

func scaleFloat64(a []float64, s float64) {
	n := len(a) &^ 3
	for i := 0; i < n; i += 4 {
		a[i] *= s
		a[i+1] *= s
		a[i+2] *= s
		a[i+3] *= s
	}
	for i := n; i < len(a); i++ {
		a[i] *= s
	}
}

// Fill sets every element of a to s.
func Fill[T Scalar](a []T, s T) {
	for i := range a {
		a[i] = s
	}
}

// AddScalar adds s to every element of a.
func AddScalar[T Scalar](a []T, s T) {
	for i := range a {
		a[i] += s
	}
}

// Axpy computes dst[i] += alpha·x[i].
func Axpy[T Scalar](dst []T, alpha T, x []T) {
	for i := range dst {
		dst[i] += alpha * x[i]
	}
}

// Add computes dst[i] += x[i].
func Add[T Scalar](dst, x []T) {
	for i := range dst {
		dst[i] += x[i]
	}
}

// Sub computes dst[i] -= x[i].
func Sub[T Scalar](dst, x []T) {
	for i := range dst {
		dst[i] -= x[i]
	}
}

// Mul computes dst[i] = x[i]·y[i].
func Mul[T Scalar](dst, x, y []T) {
	for i := range dst {
		dst[i] = x[i] * y[i]
	}
}

// Div computes dst[i] /= x[i].
func Div[T Scalar](dst, x []T) {
	for i := range dst {
		dst[i] /= x[i]
	}
}

// Reciprocal replaces every element with its multiplicative inverse.
func Reciprocal[T Scalar](a []T) {
	one := FromFloat[T](1)
	for i := range a {
		a[i] = one / a[i]
	}
}

// Conjugate replaces every element with its complex conjugate. It is a no-op
// for real types.
func Conjugate[T Scalar](a []T) {
	if !IsComplex[T]() {
		return
	}
	for i := range a {
		a[i] = Conj(a[i])
	}
}

// AbsInPlace replaces every element with its magnitude.
func AbsInPlace[T Scalar](a []T) {
	for i := range a {
		a[i] = FromFloat[T](Abs(a[i]))
	}
}
