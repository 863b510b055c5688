package mmap

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blob")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestMapping_ReadAt(t *testing.T) {
	m, err := Open(writeFile(t, []byte("part-0 payload")))
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, 14, m.Size())
	assert.Equal(t, []byte("part-0 payload"), m.Bytes())
	require.NoError(t, m.Advise(AccessSequential))

	buf := make([]byte, 7)
	n, err := m.ReadAt(buf, 7)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(buf[:n]))

	n, err = m.ReadAt(make([]byte, 10), 10)
	assert.Equal(t, 4, n)
	assert.Equal(t, io.EOF, err)

	_, err = m.ReadAt(buf, 100)
	assert.Equal(t, io.EOF, err)

	_, err = m.ReadAt(buf, -1)
	assert.Equal(t, ErrInvalidOffset, err)
}

func TestMapping_Close(t *testing.T) {
	m, err := Open(writeFile(t, []byte("x")))
	require.NoError(t, err)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.Nil(t, m.Bytes())

	_, err = m.ReadAt(make([]byte, 1), 0)
	assert.Equal(t, ErrClosed, err)
	assert.Equal(t, ErrClosed, m.Advise(AccessRandom))
}

func TestMapping_EmptyFile(t *testing.T) {
	m, err := Open(writeFile(t, nil))
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, 0, m.Size())
	assert.Empty(t, m.Bytes())
}

func TestMapping_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
