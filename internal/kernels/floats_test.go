package kernels

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDot(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float64
		expected float64
	}{
		{"Positive values", []float64{1, 2, 3}, []float64{4, 5, 6}, 32.0},
		{"Negative values", []float64{-1, -2, -3}, []float64{-4, -5, -6}, 32.0},
		{"More than 4", []float64{1, 2, 3, 1, 2, 3}, []float64{4, 5, 6, 4, 5, 6}, 64.0},
		{"Mixed values", []float64{1, -2, 3}, []float64{-4, 5, -6}, -32.0},
		{"Zero values", []float64{0, 0, 0}, []float64{0, 0, 0}, 0.0},
		{"Empty", nil, nil, 0.0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			re, im := DotParts(tc.a, tc.b)
			assert.Equal(t, tc.expected, re)
			assert.Zero(t, im)
		})
	}
}

func TestDotComplexConjugatesFirstOperand(t *testing.T) {
	a := []complex128{complex(1, 2), complex(0, 1)}

	// <a, a> is |a|² and therefore real.
	re, im := DotParts(a, a)
	assert.Equal(t, 6.0, re)
	assert.Zero(t, im)
	assert.InDelta(t, 6.0, SumSquares(a), 1e-12)

	b := []complex64{complex(1, 1)}
	re, im = DotParts(b, b)
	assert.Equal(t, 2.0, re)
	assert.Zero(t, im)
}

func TestDotFloat32(t *testing.T) {
	re, _ := DotParts([]float32{1, 2, 3}, []float32{4, 5, 6})
	assert.Equal(t, 32.0, re)
}

func TestNarrowTypesKeepWideSums(t *testing.T) {
	// 2^24 + 1 is not representable as a float32.
	a := []float32{1 << 24, 1}
	re, _ := SumParts(a)
	assert.Equal(t, float64(1<<24+1), re)

	re, _ = DotParts(a, []float32{1, 1})
	assert.Equal(t, float64(1<<24+1), re)

	c := []complex64{complex(1<<24, 1<<24), complex(1, 1)}
	re, im := SumParts(c)
	assert.Equal(t, float64(1<<24+1), re)
	assert.Equal(t, float64(1<<24+1), im)
}

func TestReductions(t *testing.T) {
	a := []float64{5, 3, 8, 1, 9}

	re, im := SumParts(a)
	assert.Equal(t, 26.0, re)
	assert.Zero(t, im)
	assert.Equal(t, 26.0, SumAbs(a))
	assert.Equal(t, 180.0, SumSquares(a))
	assert.Equal(t, 9.0, MaxAbs(a))
	assert.Equal(t, 1.0, MinReal(a))
	assert.Equal(t, 9.0, MaxReal(a))
}

func TestReductionSentinels(t *testing.T) {
	var empty []float64

	assert.Equal(t, math.MaxFloat64, MinReal(empty))
	assert.Equal(t, -math.MaxFloat64, MaxReal(empty))
	assert.Equal(t, 0.0, MaxAbs(empty))
	re, _ := SumParts(empty)
	assert.Equal(t, 0.0, re)
}

func TestComplexUsesRealPartForMinMax(t *testing.T) {
	a := []complex128{complex(2, -10), complex(-1, 50), complex(3, 0)}

	assert.Equal(t, -1.0, MinReal(a))
	assert.Equal(t, 3.0, MaxReal(a))
	assert.InDelta(t, math.Hypot(-1, 50), MaxAbs(a), 1e-12)
}

func TestInPlace(t *testing.T) {
	t.Run("Scale", func(t *testing.T) {
		a := []float64{1, 2, 3, 4, 5}
		Scale(a, 2)
		assert.Equal(t, []float64{2, 4, 6, 8, 10}, a)
	})

	t.Run("AddScalar", func(t *testing.T) {
		a := []float32{1, 2}
		AddScalar(a, 0.5)
		assert.Equal(t, []float32{1.5, 2.5}, a)
	})

	t.Run("Axpy", func(t *testing.T) {
		dst := []float64{1, 1}
		Axpy(dst, 3, []float64{1, 2})
		assert.Equal(t, []float64{4, 7}, dst)
	})

	t.Run("Reciprocal", func(t *testing.T) {
		a := []float64{2, 4, -0.5}
		Reciprocal(a)
		assert.Equal(t, []float64{0.5, 0.25, -2}, a)
	})

	t.Run("Conjugate", func(t *testing.T) {
		a := []complex128{complex(1, 2)}
		Conjugate(a)
		assert.Equal(t, []complex128{complex(1, -2)}, a)

		r := []float64{1, -2}
		Conjugate(r)
		assert.Equal(t, []float64{1, -2}, r)
	})

	t.Run("AbsInPlace", func(t *testing.T) {
		a := []complex128{complex(3, 4), complex(-1, 0)}
		AbsInPlace(a)
		assert.Equal(t, []complex128{complex(5, 0), complex(1, 0)}, a)
	})

	t.Run("Mul and Div", func(t *testing.T) {
		dst := make([]float64, 3)
		Mul(dst, []float64{1, 2, 3}, []float64{4, 5, 6})
		assert.Equal(t, []float64{4, 10, 18}, dst)
		Div(dst, []float64{4, 5, 6})
		assert.Equal(t, []float64{1, 2, 3}, dst)
	})
}

func TestKind(t *testing.T) {
	assert.Equal(t, KindFloat32, KindOf[float32]())
	assert.Equal(t, KindComplex128, KindOf[complex128]())
	assert.Equal(t, 16, KindComplex128.Size())
	assert.True(t, IsComplex[complex64]())
	assert.False(t, IsComplex[float64]())

	for _, k := range []Kind{KindFloat32, KindFloat64, KindComplex64, KindComplex128} {
		parsed, ok := ParseKind(k.String())
		assert.True(t, ok)
		assert.Equal(t, k, parsed)
	}
	_, ok := ParseKind("int")
	assert.False(t, ok)
}

// BenchmarkDot-10    	    3380	    352129 ns/op	       0 B/op	       0 allocs/op
func BenchmarkDot(b *testing.B) {
	const size = 1000000
	va := make([]float64, size)
	vb := make([]float64, size)

	for i := range va {
		va[i] = rand.Float64() // nolint gosec
		vb[i] = rand.Float64() // nolint gosec
	}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _ = DotParts(va, vb)
	}
}
