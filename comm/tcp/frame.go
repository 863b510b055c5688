package tcp

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/hupe1980/distvec/internal/compress"
)

// ErrProtocol is returned when a peer sends a malformed or unexpected frame.
var ErrProtocol = errors.New("tcp: protocol error")

type frameKind uint8

const (
	kindHello frameKind = iota + 1
	kindWelcome
	kindAllGather
	kindGather
	kindAllToAll
	kindResult
	kindAbort
)

func (k frameKind) String() string {
	switch k {
	case kindHello:
		return "hello"
	case kindWelcome:
		return "welcome"
	case kindAllGather:
		return "allgather"
	case kindGather:
		return "gather"
	case kindAllToAll:
		return "alltoall"
	case kindResult:
		return "result"
	case kindAbort:
		return "abort"
	default:
		return fmt.Sprintf("frame(%d)", uint8(k))
	}
}

const (
	flagZSTD uint8 = 1 << 0
	flagLZ4  uint8 = 1 << 1
)

const headerSize = 8

type frame struct {
	kind    frameKind
	flags   uint8
	root    uint16
	payload []byte
}

// peer is one end of a hub-spoke connection.
type peer struct {
	rank int
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer
}

func newPeer(rank int, conn net.Conn) *peer {
	return &peer{
		rank: rank,
		conn: conn,
		r:    bufio.NewReader(conn),
		w:    bufio.NewWriter(conn),
	}
}

func (p *peer) send(f frame) error {
	var hdr [headerSize]byte
	hdr[0] = byte(f.kind)
	hdr[1] = f.flags
	binary.LittleEndian.PutUint16(hdr[2:], f.root)
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(f.payload)))

	if _, err := p.w.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := p.w.Write(f.payload); err != nil {
		return err
	}
	return p.w.Flush()
}

func (p *peer) recv() (frame, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(p.r, hdr[:]); err != nil {
		return frame{}, err
	}
	f := frame{
		kind:  frameKind(hdr[0]),
		flags: hdr[1],
		root:  binary.LittleEndian.Uint16(hdr[2:]),
	}
	n := binary.LittleEndian.Uint32(hdr[4:])
	if n > MaxFrameSize {
		return frame{}, fmt.Errorf("%w: %s frame of %d bytes exceeds limit", ErrProtocol, f.kind, n)
	}
	f.payload = make([]byte, n)
	if _, err := io.ReadFull(p.r, f.payload); err != nil {
		return frame{}, err
	}
	return f, nil
}

func (p *peer) close() error {
	return p.conn.Close()
}

// pack builds a frame, compressing the payload when it is large enough.
func (o *options) pack(kind frameKind, root int, payload []byte) (frame, error) {
	f := frame{kind: kind, root: uint16(root), payload: payload}
	if o.compression == CompressionNone || len(payload) < o.threshold {
		return f, nil
	}
	block, err := compress.Block(payload, o.compression)
	if err != nil {
		return frame{}, err
	}
	f.payload = block
	switch o.compression {
	case CompressionZSTD:
		f.flags |= flagZSTD
	case CompressionLZ4:
		f.flags |= flagLZ4
	}
	return f, nil
}

// unpack returns the plain payload of f.
func unpack(f frame) ([]byte, error) {
	switch {
	case f.flags&flagZSTD != 0:
		return compress.Unblock(f.payload, compress.ZSTD)
	case f.flags&flagLZ4 != 0:
		return compress.Unblock(f.payload, compress.LZ4)
	case f.flags != 0:
		return nil, fmt.Errorf("%w: unknown flags %#x", ErrProtocol, f.flags)
	default:
		return f.payload, nil
	}
}

// encodeParts serializes a list of byte slices as
// count u32 | (length u32 | bytes)*.
func encodeParts(parts [][]byte) []byte {
	size := 4
	for _, p := range parts {
		size += 4 + len(p)
	}
	buf := make([]byte, 0, size)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(parts)))
	for _, p := range parts {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(p)))
		buf = append(buf, p...)
	}
	return buf
}

func decodeParts(buf []byte) ([][]byte, error) {
	if len(buf) < 4 {
		return nil, fmt.Errorf("%w: truncated part list", ErrProtocol)
	}
	n := binary.LittleEndian.Uint32(buf)
	buf = buf[4:]
	if uint64(n)*4 > uint64(len(buf)) {
		return nil, fmt.Errorf("%w: part count %d exceeds payload", ErrProtocol, n)
	}
	parts := make([][]byte, n)
	for i := range parts {
		if len(buf) < 4 {
			return nil, fmt.Errorf("%w: truncated part %d", ErrProtocol, i)
		}
		l := binary.LittleEndian.Uint32(buf)
		buf = buf[4:]
		if uint64(l) > uint64(len(buf)) {
			return nil, fmt.Errorf("%w: part %d length %d exceeds payload", ErrProtocol, i, l)
		}
		parts[i] = buf[:l:l]
		buf = buf[l:]
	}
	if len(buf) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrProtocol, len(buf))
	}
	return parts, nil
}
