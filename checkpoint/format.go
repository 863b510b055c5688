package checkpoint

import (
	"encoding/binary"
	"fmt"
	"path"
	"time"

	"github.com/hupe1980/distvec/internal/compress"
	"github.com/hupe1980/distvec/internal/conv"
	"github.com/hupe1980/distvec/internal/hash"
	"github.com/hupe1980/distvec/internal/kernels"
)

const (
	// FormatVersion is the version written by Save.
	FormatVersion = 1

	// HeaderSize is the size of the fixed part header in bytes.
	HeaderSize = 36

	manifestName = "MANIFEST"
	magic        = "DVEC"
	crcOffset    = HeaderSize - 4
)

// Compression selects how part payloads are stored.
type Compression uint8

const (
	// NoCompression stores payloads verbatim.
	NoCompression Compression = Compression(compress.None)
	// LZ4 favors speed.
	LZ4 Compression = Compression(compress.LZ4)
	// Zstd favors ratio.
	Zstd Compression = Compression(compress.ZSTD)
)

func (c Compression) String() string {
	return compress.Type(c).String()
}

// Header is the fixed prefix of a part blob.
//
//	magic "DVEC" | version u16 | scalar kind u8 | compression u8 |
//	first u64 | count u64 | payload length u64 | crc32c u32
//
// All fields are little-endian. The checksum covers the first 32 header
// bytes and the stored payload.
type Header struct {
	Version     uint16
	Kind        kernels.Kind
	Compression Compression
	First       uint64
	Count       uint64
	PayloadLen  uint64
	Checksum    uint32
}

func (h Header) prefix() []byte {
	buf := make([]byte, crcOffset, HeaderSize)
	copy(buf[0:4], magic)
	binary.LittleEndian.PutUint16(buf[4:], h.Version)
	buf[6] = byte(h.Kind)
	buf[7] = byte(h.Compression)
	binary.LittleEndian.PutUint64(buf[8:], h.First)
	binary.LittleEndian.PutUint64(buf[16:], h.Count)
	binary.LittleEndian.PutUint64(buf[24:], h.PayloadLen)
	return buf
}

// encodePart builds a complete part blob for the given raw entries.
func encodePart(kind kernels.Kind, c Compression, first uint64, raw []byte) (Header, []byte, error) {
	payload := raw
	if c != NoCompression {
		if _, err := conv.IntToUint32(len(raw)); err != nil {
			return Header{}, nil, fmt.Errorf("checkpoint: %s compression: %w", c, err)
		}
		var err error
		if payload, err = compress.Block(raw, compress.Type(c)); err != nil {
			return Header{}, nil, err
		}
	}

	h := Header{
		Version:     FormatVersion,
		Kind:        kind,
		Compression: c,
		First:       first,
		Count:       uint64(len(raw) / kind.Size()),
		PayloadLen:  uint64(len(payload)),
	}
	buf := h.prefix()
	crc := hash.UpdateCRC32C(hash.CRC32C(buf), payload)
	h.Checksum = crc

	buf = binary.LittleEndian.AppendUint32(buf, crc)
	return h, append(buf, payload...), nil
}

// decodePart validates a part blob and returns its header and the raw,
// decompressed entries.
func decodePart(blob []byte) (Header, []byte, error) {
	if len(blob) < HeaderSize {
		return Header{}, nil, fmt.Errorf("%w: part is %d bytes, shorter than the header", ErrCorrupt, len(blob))
	}
	if string(blob[0:4]) != magic {
		return Header{}, nil, fmt.Errorf("%w: bad magic %q", ErrCorrupt, blob[0:4])
	}

	h := Header{
		Version:     binary.LittleEndian.Uint16(blob[4:]),
		Kind:        kernels.Kind(blob[6]),
		Compression: Compression(blob[7]),
		First:       binary.LittleEndian.Uint64(blob[8:]),
		Count:       binary.LittleEndian.Uint64(blob[16:]),
		PayloadLen:  binary.LittleEndian.Uint64(blob[24:]),
		Checksum:    binary.LittleEndian.Uint32(blob[crcOffset:]),
	}
	if uint64(len(blob)-HeaderSize) != h.PayloadLen {
		return h, nil, fmt.Errorf("%w: payload is %d bytes, header says %d", ErrCorrupt, len(blob)-HeaderSize, h.PayloadLen)
	}

	payload := blob[HeaderSize:]
	if crc := hash.UpdateCRC32C(hash.CRC32C(blob[:crcOffset]), payload); crc != h.Checksum {
		return h, nil, fmt.Errorf("%w: checksum %08x, header says %08x", ErrCorrupt, crc, h.Checksum)
	}
	if h.Version != FormatVersion {
		return h, nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	if h.Kind.Size() == 0 {
		return h, nil, fmt.Errorf("%w: unknown scalar kind %d", ErrCorrupt, h.Kind)
	}

	raw := payload
	if h.Compression != NoCompression {
		var err error
		if raw, err = compress.Unblock(payload, compress.Type(h.Compression)); err != nil {
			return h, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}
	if uint64(len(raw)) != h.Count*uint64(h.Kind.Size()) {
		return h, nil, fmt.Errorf("%w: %d payload bytes for %d %s entries", ErrCorrupt, len(raw), h.Count, h.Kind)
	}
	return h, raw, nil
}

// Manifest describes a complete checkpoint.
type Manifest struct {
	Version     int        `json:"version"`
	Name        string     `json:"name"`
	Scalar      string     `json:"scalar"`
	GlobalSize  uint64     `json:"global_size"`
	Workers     int        `json:"workers"`
	Compression string     `json:"compression"`
	Codec       string     `json:"codec"`
	CreatedAt   time.Time  `json:"created_at"`
	Parts       []PartInfo `json:"parts"`
}

// PartInfo describes one part blob.
type PartInfo struct {
	// Name is relative to the checkpoint, e.g. "part-3.dvec".
	Name     string `json:"name"`
	Rank     int    `json:"rank"`
	First    uint64 `json:"first"`
	Count    uint64 `json:"count"`
	Bytes    int64  `json:"bytes"`
	Checksum uint32 `json:"checksum"`
}

// validate checks that the parts are in rank order, do not overlap and
// stay inside [0, GlobalSize). Gaps are reported by Load per worker.
func (m *Manifest) validate() error {
	if m.Version != FormatVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, m.Version)
	}
	if _, ok := kernels.ParseKind(m.Scalar); !ok {
		return fmt.Errorf("%w: unknown scalar %q", ErrCorrupt, m.Scalar)
	}
	var next uint64
	for i, p := range m.Parts {
		if i > 0 && p.Rank <= m.Parts[i-1].Rank {
			return fmt.Errorf("%w: part %d has rank %d after rank %d", ErrCorrupt, i, p.Rank, m.Parts[i-1].Rank)
		}
		if p.First < next {
			return fmt.Errorf("%w: part of rank %d starts at %d inside the previous part", ErrCorrupt, p.Rank, p.First)
		}
		next = p.First + p.Count
		if next > m.GlobalSize {
			return fmt.Errorf("%w: part of rank %d ends at %d beyond global size %d", ErrCorrupt, p.Rank, next, m.GlobalSize)
		}
	}
	return nil
}

func partFile(rank int) string {
	return fmt.Sprintf("part-%d.dvec", rank)
}

// PartName returns the blob name of rank's part of checkpoint name.
func PartName(name string, rank int) string {
	return path.Join(name, partFile(rank))
}

// ManifestName returns the blob name of the manifest of checkpoint name.
func ManifestName(name string) string {
	return path.Join(name, manifestName)
}
