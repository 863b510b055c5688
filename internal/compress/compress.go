// Package compress frames byte payloads with optional LZ4 or Zstandard block
// compression. It is shared by the TCP transport and checkpoint parts.
package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type defines the compression algorithm used.
type Type uint8

const (
	// None stores payloads verbatim.
	None Type = 0
	// LZ4 uses LZ4 block compression (fast).
	LZ4 Type = 1
	// ZSTD uses Zstandard (better ratio).
	ZSTD Type = 2
)

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compress.Type(%d)", uint8(t))
	}
}

// Valid reports whether t is a known algorithm.
func (t Type) Valid() bool {
	return t <= ZSTD
}

var (
	// ErrCorrupt is returned when a block cannot be decoded.
	ErrCorrupt = errors.New("compress: corrupt block")
	// ErrUnknownType is returned for an unsupported algorithm id.
	ErrUnknownType = errors.New("compress: unknown compression type")
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// HeaderSize is the size of the block header.
// Format: [UncompressedSize uint32][CompressedSize uint32][Data...]
// A CompressedSize of 0 means the data is stored uncompressed.
const HeaderSize = 8

// Block compresses data with t and prepends the block header. When
// compression does not pay off the block is stored uncompressed.
func Block(data []byte, t Type) ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, t)
	}

	var compressed []byte
	var err error

	switch t {
	case LZ4:
		compressed, err = blockLZ4(data)
	case ZSTD:
		compressed = blockZSTD(data)
	}
	if err != nil {
		return nil, err
	}

	// Keep only if the ratio is better than 0.9.
	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		out := make([]byte, HeaderSize+len(data))
		binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
		binary.LittleEndian.PutUint32(out[4:], 0)
		copy(out[HeaderSize:], data)
		return out, nil
	}

	out := make([]byte, HeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[4:], uint32(len(compressed)))
	copy(out[HeaderSize:], compressed)
	return out, nil
}

func blockLZ4(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	buf := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, buf, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil // incompressible
	}
	return buf[:n], nil
}

func blockZSTD(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	enc := getZstdEncoder()
	defer zstdEncoderPool.Put(enc)
	return enc.EncodeAll(data, nil)
}

// Unblock reverses Block.
func Unblock(data []byte, t Type) ([]byte, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: block too small for header", ErrCorrupt)
	}

	uncompressedSize := binary.LittleEndian.Uint32(data[0:])
	compressedSize := binary.LittleEndian.Uint32(data[4:])

	if compressedSize == 0 {
		if uint64(len(data)) < HeaderSize+uint64(uncompressedSize) {
			return nil, fmt.Errorf("%w: block data too small", ErrCorrupt)
		}
		return data[HeaderSize : HeaderSize+uncompressedSize], nil
	}

	if uint64(len(data)) < HeaderSize+uint64(compressedSize) {
		return nil, fmt.Errorf("%w: compressed block data too small", ErrCorrupt)
	}
	payload := data[HeaderSize : HeaderSize+compressedSize]
	result := make([]byte, uncompressedSize)

	switch t {
	case LZ4:
		n, err := lz4.UncompressBlock(payload, result)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if uint32(n) != uncompressedSize {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return result, nil

	case ZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)

		decoded, err := dec.DecodeAll(payload, result[:0])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if uint32(len(decoded)) != uncompressedSize {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return decoded, nil

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, t)
	}
}
