package tcp

import (
	"bytes"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartsRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		parts [][]byte
	}{
		{"Empty", nil},
		{"Single", [][]byte{[]byte("abc")}},
		{"WithEmptyPart", [][]byte{[]byte("a"), {}, []byte("bc")}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := decodeParts(encodeParts(tc.parts))
			require.NoError(t, err)
			require.Len(t, out, len(tc.parts))
			for i := range out {
				assert.True(t, bytes.Equal(tc.parts[i], out[i]))
			}
		})
	}
}

func TestDecodePartsRejectsGarbage(t *testing.T) {
	for _, buf := range [][]byte{
		{1, 0},
		{1, 0, 0, 0, 9, 0, 0, 0, 'x'},
		{255, 255, 255, 255},
		append(encodeParts([][]byte{[]byte("x")}), 0),
	} {
		_, err := decodeParts(buf)
		assert.ErrorIs(t, err, ErrProtocol)
	}
}

func TestFrameOverPipe(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	o := applyOptions([]Option{WithCompression(CompressionZSTD), WithCompressionThreshold(8)})
	payload := bytes.Repeat([]byte("frame"), 100)

	f, err := o.pack(kindAllGather, 3, payload)
	require.NoError(t, err)
	assert.Equal(t, flagZSTD, f.flags)

	go func() { _ = newPeer(1, a).send(f) }()

	got, err := newPeer(0, b).recv()
	require.NoError(t, err)
	assert.Equal(t, kindAllGather, got.kind)
	assert.Equal(t, uint16(3), got.root)

	plain, err := unpack(got)
	require.NoError(t, err)
	assert.Equal(t, payload, plain)
}

func TestUnpackRejectsUnknownFlags(t *testing.T) {
	_, err := unpack(frame{flags: 0x80})
	assert.ErrorIs(t, err, ErrProtocol)
}
