package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	vfs "github.com/hupe1980/distvec/internal/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"Memory": func(*testing.T) Store { return NewMemoryStore() },
		"Local":  func(t *testing.T) Store { return NewLocalStore(t.TempDir()) },
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			t.Run("PutGet", func(t *testing.T) {
				require.NoError(t, s.Put(ctx, "ckpt/part-0.dvec", []byte("hello world")))

				got, err := Get(ctx, s, "ckpt/part-0.dvec")
				require.NoError(t, err)
				assert.Equal(t, "hello world", string(got))
			})

			t.Run("CreateIsAtomic", func(t *testing.T) {
				w, err := s.Create(ctx, "ckpt/part-1.dvec")
				require.NoError(t, err)
				_, err = w.Write([]byte("strea"))
				require.NoError(t, err)

				_, err = s.Open(ctx, "ckpt/part-1.dvec")
				assert.ErrorIs(t, err, ErrNotFound)

				_, err = w.Write([]byte("med"))
				require.NoError(t, err)
				require.NoError(t, w.Sync())
				require.NoError(t, w.Close())
				assert.Error(t, w.Close())

				got, err := Get(ctx, s, "ckpt/part-1.dvec")
				require.NoError(t, err)
				assert.Equal(t, "streamed", string(got))
			})

			t.Run("ReadAtAndRange", func(t *testing.T) {
				b, err := s.Open(ctx, "ckpt/part-0.dvec")
				require.NoError(t, err)
				defer b.Close()
				assert.Equal(t, int64(11), b.Size())

				buf := make([]byte, 5)
				n, err := b.ReadAt(ctx, buf, 6)
				require.NoError(t, err)
				assert.Equal(t, "world", string(buf[:n]))

				n, err = b.ReadAt(ctx, make([]byte, 8), 6)
				assert.Equal(t, 5, n)
				assert.Equal(t, io.EOF, err)

				r, err := b.ReadRange(ctx, 2, 3)
				require.NoError(t, err)
				data, err := io.ReadAll(r)
				require.NoError(t, err)
				require.NoError(t, r.Close())
				assert.Equal(t, "llo", string(data))

				r, err = b.ReadRange(ctx, 9, 100)
				require.NoError(t, err)
				data, err = io.ReadAll(r)
				require.NoError(t, err)
				assert.Equal(t, "ld", string(data))
			})

			t.Run("List", func(t *testing.T) {
				require.NoError(t, s.Put(ctx, "CURRENT", []byte("ckpt")))
				require.NoError(t, s.Put(ctx, "other/MANIFEST", nil))

				names, err := s.List(ctx, "ckpt/")
				require.NoError(t, err)
				assert.Equal(t, []string{"ckpt/part-0.dvec", "ckpt/part-1.dvec"}, names)

				all, err := s.List(ctx, "")
				require.NoError(t, err)
				assert.Equal(t, []string{"CURRENT", "ckpt/part-0.dvec", "ckpt/part-1.dvec", "other/MANIFEST"}, all)

				none, err := s.List(ctx, "missing/")
				require.NoError(t, err)
				assert.Empty(t, none)
			})

			t.Run("EmptyBlob", func(t *testing.T) {
				got, err := Get(ctx, s, "other/MANIFEST")
				require.NoError(t, err)
				assert.Empty(t, got)
			})

			t.Run("Abort", func(t *testing.T) {
				w, err := s.Create(ctx, "ckpt/part-9.dvec")
				require.NoError(t, err)
				_, err = w.Write([]byte("partial"))
				require.NoError(t, err)
				require.NoError(t, Abort(w))

				_, err = s.Open(ctx, "ckpt/part-9.dvec")
				assert.ErrorIs(t, err, ErrNotFound)
				names, err := s.List(ctx, "ckpt/")
				require.NoError(t, err)
				assert.Len(t, names, 2)
			})

			t.Run("Delete", func(t *testing.T) {
				require.NoError(t, s.Delete(ctx, "CURRENT"))
				require.NoError(t, s.Delete(ctx, "CURRENT"))
				_, err := s.Open(ctx, "CURRENT")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("CancelledContext", func(t *testing.T) {
				cancelled, cancel := context.WithCancel(ctx)
				cancel()
				_, err := s.Open(cancelled, "ckpt/part-0.dvec")
				assert.ErrorIs(t, err, context.Canceled)
			})
		})
	}
}

func TestLocalStoreFailedCommitLeavesNoBlob(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	ffs := vfs.NewFaultyFS(nil)
	ffs.AddRule("part-2", vfs.Fault{FailAfterBytes: -1, FailOnSync: true})
	ffs.AddRule("part-3", vfs.Fault{FailAfterBytes: 4})
	ffs.AddRule("part-4", vfs.Fault{FailAfterBytes: -1, FailOnRename: true})

	s := &LocalStore{root: root, fs: ffs}

	for _, name := range []string{"part-2", "part-3", "part-4"} {
		err := s.Put(ctx, name, []byte("payload"))
		assert.ErrorIs(t, err, vfs.ErrInjected, name)

		_, err = s.Open(ctx, name)
		assert.ErrorIs(t, err, ErrNotFound, name)
	}

	// No temporary files are left behind.
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, s.Put(ctx, "part-5", []byte("ok")))
	_, err = os.Stat(filepath.Join(root, "part-5"))
	require.NoError(t, err)
}

func TestMemoryStoreCorrupt(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, "a", []byte{0x00, 0x01}))

	b, err := s.Open(ctx, "a")
	require.NoError(t, err)

	assert.True(t, s.Corrupt("a", 1))
	assert.False(t, s.Corrupt("a", 2))
	assert.False(t, s.Corrupt("missing", 0))

	got, err := Get(ctx, s, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xFE}, got)

	// Blobs opened earlier keep their snapshot.
	buf := make([]byte, 2)
	_, err = b.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x01}, buf)
}
