// Package wire encodes scalar and index slices as fixed-width little-endian bytes.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/distvec/internal/kernels"
)

// ErrShortBuffer is returned when a payload is not a whole number of elements.
var ErrShortBuffer = errors.New("wire: payload length is not a multiple of the element size")

// ScalarSize returns the encoded size of one element of T.
func ScalarSize[T kernels.Scalar]() int {
	return kernels.KindOf[T]().Size()
}

// AppendScalars appends the little-endian encoding of v to dst.
func AppendScalars[T kernels.Scalar](dst []byte, v []T) []byte {
	switch x := any(v).(type) {
	case []float32:
		for _, f := range x {
			dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(f))
		}
	case []float64:
		for _, f := range x {
			dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(f))
		}
	case []complex64:
		for _, c := range x {
			dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(real(c)))
			dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(imag(c)))
		}
	case []complex128:
		for _, c := range x {
			dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(real(c)))
			dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(imag(c)))
		}
	}
	return dst
}

// EncodeScalars returns a freshly allocated encoding of v.
func EncodeScalars[T kernels.Scalar](v []T) []byte {
	return AppendScalars(make([]byte, 0, len(v)*ScalarSize[T]()), v)
}

// DecodeScalars decodes src into a new slice.
func DecodeScalars[T kernels.Scalar](src []byte) ([]T, error) {
	size := ScalarSize[T]()
	if len(src)%size != 0 {
		return nil, fmt.Errorf("%w: %d bytes, element size %d", ErrShortBuffer, len(src), size)
	}
	out := make([]T, len(src)/size)
	DecodeScalarsInto(out, src)
	return out, nil
}

// DecodeScalarsInto decodes min(len(dst), len(src)/size) elements into dst and
// returns the count.
func DecodeScalarsInto[T kernels.Scalar](dst []T, src []byte) int {
	n := len(src) / ScalarSize[T]()
	if n > len(dst) {
		n = len(dst)
	}
	switch x := any(dst).(type) {
	case []float32:
		for i := 0; i < n; i++ {
			x[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
		}
	case []float64:
		for i := 0; i < n; i++ {
			x[i] = math.Float64frombits(binary.LittleEndian.Uint64(src[i*8:]))
		}
	case []complex64:
		for i := 0; i < n; i++ {
			re := math.Float32frombits(binary.LittleEndian.Uint32(src[i*8:]))
			im := math.Float32frombits(binary.LittleEndian.Uint32(src[i*8+4:]))
			x[i] = complex(re, im)
		}
	case []complex128:
		for i := 0; i < n; i++ {
			re := math.Float64frombits(binary.LittleEndian.Uint64(src[i*16:]))
			im := math.Float64frombits(binary.LittleEndian.Uint64(src[i*16+8:]))
			x[i] = complex(re, im)
		}
	}
	return n
}

// AppendInt64s appends v as little-endian int64 values.
func AppendInt64s(dst []byte, v ...int64) []byte {
	for _, x := range v {
		dst = binary.LittleEndian.AppendUint64(dst, uint64(x))
	}
	return dst
}

// DecodeInt64s decodes a payload produced by AppendInt64s.
func DecodeInt64s(src []byte) ([]int64, error) {
	if len(src)%8 != 0 {
		return nil, fmt.Errorf("%w: %d bytes, element size 8", ErrShortBuffer, len(src))
	}
	out := make([]int64, len(src)/8)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(src[i*8:]))
	}
	return out, nil
}

// AppendFloat64s appends v as little-endian IEEE-754 doubles.
func AppendFloat64s(dst []byte, v ...float64) []byte {
	return AppendScalars(dst, v)
}

// DecodeFloat64s decodes a payload produced by AppendFloat64s.
func DecodeFloat64s(src []byte) ([]float64, error) {
	return DecodeScalars[float64](src)
}
