package fs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFS(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	lfs := LocalFS{}

	require.NoError(t, lfs.MkdirAll(dir, 0o755))

	path := filepath.Join(dir, "blob")
	f, err := lfs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	require.NoError(t, err)
	assert.Equal(t, path, f.Name())
	_, err = f.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())

	info, err := lfs.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size())

	renamed := filepath.Join(dir, "renamed")
	require.NoError(t, lfs.Rename(path, renamed))

	entries, err := lfs.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "renamed", entries[0].Name())

	require.NoError(t, lfs.Remove(renamed))
	_, err = lfs.Stat(renamed)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFaultyFS(t *testing.T) {
	dir := t.TempDir()
	boom := errors.New("boom")

	ffs := NewFaultyFS(nil)
	ffs.AddRule("limited", Fault{FailAfterBytes: 4, Err: boom})
	ffs.AddRule("unsynced", Fault{FailAfterBytes: -1, FailOnSync: true})
	ffs.AddRule("unclosed", Fault{FailAfterBytes: -1, FailOnClose: true})
	ffs.AddRule("pinned", Fault{FailAfterBytes: -1, FailOnRename: true})

	t.Run("WriteLimit", func(t *testing.T) {
		f, err := ffs.OpenFile(filepath.Join(dir, "limited"), os.O_CREATE|os.O_WRONLY, 0o644)
		require.NoError(t, err)
		defer f.Close()

		_, err = f.Write([]byte("1234"))
		require.NoError(t, err)
		_, err = f.Write([]byte("5"))
		assert.ErrorIs(t, err, boom)
	})

	t.Run("Sync", func(t *testing.T) {
		f, err := ffs.OpenFile(filepath.Join(dir, "unsynced"), os.O_CREATE|os.O_WRONLY, 0o644)
		require.NoError(t, err)
		defer f.Close()
		assert.ErrorIs(t, f.Sync(), ErrInjected)
	})

	t.Run("Close", func(t *testing.T) {
		f, err := ffs.OpenFile(filepath.Join(dir, "unclosed"), os.O_CREATE|os.O_WRONLY, 0o644)
		require.NoError(t, err)
		assert.ErrorIs(t, f.Close(), ErrInjected)
	})

	t.Run("Rename", func(t *testing.T) {
		src := filepath.Join(dir, "src")
		require.NoError(t, os.WriteFile(src, nil, 0o644))
		assert.ErrorIs(t, ffs.Rename(src, filepath.Join(dir, "pinned")), ErrInjected)
		require.NoError(t, ffs.Rename(src, filepath.Join(dir, "free")))
	})

	t.Run("Unmatched", func(t *testing.T) {
		f, err := ffs.OpenFile(filepath.Join(dir, "plain"), os.O_CREATE|os.O_WRONLY, 0o644)
		require.NoError(t, err)
		_, err = f.Write(make([]byte, 1024))
		require.NoError(t, err)
		require.NoError(t, f.Sync())
		require.NoError(t, f.Close())
	})
}
