package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hupe1980/distvec"
	"github.com/hupe1980/distvec/blobstore"
	"github.com/hupe1980/distvec/codec"
	"github.com/hupe1980/distvec/comm"
	"github.com/hupe1980/distvec/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// saveIota saves a vector of n entries with entry i = i under the given
// local sizes.
func saveIota(t *testing.T, store blobstore.Store, name string, sizes []int, opts ...Option) {
	t.Helper()
	n := 0
	for _, s := range sizes {
		n += s
	}
	err := comm.Run(context.Background(), len(sizes), func(ctx context.Context, c comm.Communicator) error {
		v, err := distvec.NewPartitioned[float64](ctx, c, n, sizes[c.Rank()])
		if err != nil {
			return err
		}
		for i := v.FirstLocalIndex(); i < v.LastLocalIndex(); i++ {
			v.Set(i, float64(i))
		}
		return Save(ctx, v, store, name, opts...)
	})
	require.NoError(t, err)
}

func TestSaveLoadRepartition(t *testing.T) {
	layouts := map[string][]int{
		"serial":     {10},
		"even":       {5, 5},
		"uneven":     {1, 6, 3},
		"emptyRanks": {0, 4, 0, 6},
	}

	for saveName, saveSizes := range layouts {
		for loadName, loadSizes := range layouts {
			t.Run(saveName+"To"+loadName, func(t *testing.T) {
				store := blobstore.NewMemoryStore()
				saveIota(t, store, "ckpt", saveSizes)

				err := comm.Run(context.Background(), len(loadSizes), func(ctx context.Context, c comm.Communicator) error {
					v, err := distvec.NewPartitioned[float64](ctx, c, 10, loadSizes[c.Rank()])
					if err != nil {
						return err
					}
					if err := Load(ctx, v, store, "ckpt"); err != nil {
						return err
					}
					for i := v.FirstLocalIndex(); i < v.LastLocalIndex(); i++ {
						assert.Equal(t, float64(i), v.Get(i))
					}
					return nil
				})
				require.NoError(t, err)
			})
		}
	}
}

func TestSaveWritesManifest(t *testing.T) {
	store := blobstore.NewMemoryStore()
	saveIota(t, store, "run/step-1", []int{4, 0, 6}, WithCompression(LZ4))

	names, err := store.List(context.Background(), "run/step-1/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"run/step-1/MANIFEST",
		"run/step-1/part-0.dvec",
		"run/step-1/part-1.dvec",
		"run/step-1/part-2.dvec",
	}, names)

	m, err := ReadManifest(context.Background(), store, "run/step-1")
	require.NoError(t, err)
	assert.Equal(t, "run/step-1", m.Name)
	assert.Equal(t, "float64", m.Scalar)
	assert.Equal(t, uint64(10), m.GlobalSize)
	assert.Equal(t, 3, m.Workers)
	assert.Equal(t, "lz4", m.Compression)
	assert.Equal(t, codec.Default.Name(), m.Codec)
	require.Len(t, m.Parts, 3)
	assert.Equal(t, PartInfo{Name: "part-1.dvec", Rank: 1, First: 4, Count: 0, Bytes: m.Parts[1].Bytes, Checksum: m.Parts[1].Checksum}, m.Parts[1])
	assert.Equal(t, uint64(4), m.Parts[2].First)
	assert.Equal(t, uint64(6), m.Parts[2].Count)
}

func TestSaveSerialWritesOneCopy(t *testing.T) {
	store := blobstore.NewMemoryStore()

	err := comm.Run(context.Background(), 3, func(ctx context.Context, c comm.Communicator) error {
		v, err := distvec.NewSized[float32](ctx, c, 5)
		if err != nil {
			return err
		}
		v.AssignSlice([]float32{1, 2, 3, 4, 5})
		return Save(ctx, v, store, "replica")
	})
	require.NoError(t, err)

	names, err := store.List(context.Background(), "replica/")
	require.NoError(t, err)
	assert.Equal(t, []string{"replica/MANIFEST", "replica/part-0.dvec"}, names)

	m, err := ReadManifest(context.Background(), store, "replica")
	require.NoError(t, err)
	assert.Equal(t, 3, m.Workers)
	require.Len(t, m.Parts, 1)
	assert.Equal(t, uint64(5), m.Parts[0].Count)
}

func TestSaveLoadComplexWithCompression(t *testing.T) {
	for _, c := range []Compression{NoCompression, LZ4, Zstd} {
		t.Run(c.String(), func(t *testing.T) {
			store := blobstore.NewMemoryStore()
			want := make([]complex64, 300)
			for i := range want {
				want[i] = complex(float32(i%5), -float32(i%3))
			}

			err := comm.Run(context.Background(), 3, func(ctx context.Context, cm comm.Communicator) error {
				v, err := distvec.NewPartitioned[complex64](ctx, cm, len(want), 100)
				if err != nil {
					return err
				}
				v.AssignSlice(want)
				if err := Save(ctx, v, store, "z", WithCompression(c), WithCodec(codec.JSON{})); err != nil {
					return err
				}

				w, err := distvec.NewSized[complex64](ctx, cm, len(want))
				if err != nil {
					return err
				}
				if err := Load(ctx, w, store, "z", WithCodec(codec.JSON{}), WithConcurrency(2)); err != nil {
					return err
				}
				assert.Equal(t, want, w.Values())
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestLoadThroughCachingStore(t *testing.T) {
	store := blobstore.NewMemoryStore()
	saveIota(t, store, "ckpt", []int{5, 5})

	cached := blobstore.NewCachingStore(store, 1<<20, nil)
	err := comm.Run(context.Background(), 4, func(ctx context.Context, c comm.Communicator) error {
		v, err := distvec.NewPartitioned[float64](ctx, c, 10, []int{2, 4, 2, 2}[c.Rank()])
		if err != nil {
			return err
		}
		if err := Load(ctx, v, cached, "ckpt"); err != nil {
			return err
		}
		for i := v.FirstLocalIndex(); i < v.LastLocalIndex(); i++ {
			assert.Equal(t, float64(i), v.Get(i))
		}
		return nil
	})
	require.NoError(t, err)

	// Four manifest reads and five part overlaps; rank 1 spans both parts.
	hits, misses := cached.Stats()
	assert.Equal(t, int64(9), hits+misses)
	assert.Positive(t, cached.Size())
}

func TestLoadSelf(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewLocalStore(t.TempDir())

	v, err := distvec.NewSized[float32](ctx, nil, 4)
	require.NoError(t, err)
	v.AssignSlice([]float32{1, 2, 3, 4})
	require.NoError(t, Save(ctx, v, store, "self"))

	w, err := distvec.NewSized[float32](ctx, nil, 4)
	require.NoError(t, err)
	require.NoError(t, Load(ctx, w, store, "self"))
	assert.Equal(t, []float32{1, 2, 3, 4}, w.Values())
}

func TestLoadRejectsMismatches(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	saveIota(t, store, "ckpt", []int{3, 3})

	t.Run("Scalar", func(t *testing.T) {
		v, err := distvec.NewSized[float32](ctx, nil, 6)
		require.NoError(t, err)
		assert.ErrorIs(t, Load(ctx, v, store, "ckpt"), ErrScalarMismatch)
	})

	t.Run("Size", func(t *testing.T) {
		v, err := distvec.NewSized[float64](ctx, nil, 7)
		require.NoError(t, err)
		assert.ErrorIs(t, Load(ctx, v, store, "ckpt"), ErrSizeMismatch)
	})

	t.Run("Missing", func(t *testing.T) {
		v, err := distvec.NewSized[float64](ctx, nil, 6)
		require.NoError(t, err)
		assert.ErrorIs(t, Load(ctx, v, store, "nope"), blobstore.ErrNotFound)
	})

	t.Run("NotInitialized", func(t *testing.T) {
		v := distvec.New[float64](nil)
		assert.ErrorIs(t, Load(ctx, v, store, "ckpt"), distvec.ErrNotInitialized)
		assert.ErrorIs(t, Save(ctx, v, store, "ckpt"), distvec.ErrNotInitialized)
	})
}

func TestLoadDetectsCorruptPartOnEveryWorker(t *testing.T) {
	store := blobstore.NewMemoryStore()
	saveIota(t, store, "ckpt", []int{5, 5})
	require.True(t, store.Corrupt(PartName("ckpt", 1), HeaderSize+3))

	errs := make([]error, 2)
	err := comm.Run(context.Background(), 2, func(ctx context.Context, c comm.Communicator) error {
		v, err := distvec.NewPartitioned[float64](ctx, c, 10, 5)
		if err != nil {
			return err
		}
		before := v.Values()
		errs[c.Rank()] = Load(ctx, v, store, "ckpt")
		assert.Equal(t, before, v.Values())
		return nil
	})
	require.NoError(t, err)

	assert.ErrorIs(t, errs[1], ErrCorrupt)
	assert.NotErrorIs(t, errs[1], ErrPeerFailed)
	assert.ErrorIs(t, errs[0], ErrPeerFailed)
	assert.ErrorIs(t, errs[0], ErrCorrupt)
}

func TestLoadReportsGaps(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	saveIota(t, store, "ckpt", []int{4, 2, 4})

	m, err := ReadManifest(ctx, store, "ckpt")
	require.NoError(t, err)
	m.Parts = append(m.Parts[:1], m.Parts[2:]...)
	require.NoError(t, store.Put(ctx, ManifestName("ckpt"), codec.MustMarshal(nil, m)))

	errs := make([]error, 2)
	err = comm.Run(ctx, 2, func(ctx context.Context, c comm.Communicator) error {
		v, err := distvec.NewPartitioned[float64](ctx, c, 10, []int{3, 7}[c.Rank()])
		if err != nil {
			return err
		}
		errs[c.Rank()] = Load(ctx, v, store, "ckpt")
		return nil
	})
	require.NoError(t, err)

	for rank, err := range errs {
		assert.ErrorIs(t, err, ErrIncompleteCheckpoint, "rank %d", rank)
	}
	assert.ErrorIs(t, errs[0], ErrPeerFailed)
	assert.Contains(t, errs[1].Error(), "entry 4")
}

// failingStore fails Create for one blob name.
type failingStore struct {
	*blobstore.MemoryStore
	fail string
}

var errInjected = errors.New("injected")

func (s *failingStore) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	if name == s.fail {
		return nil, errInjected
	}
	return s.MemoryStore.Create(ctx, name)
}

func TestSaveFailureRemovesParts(t *testing.T) {
	store := &failingStore{MemoryStore: blobstore.NewMemoryStore(), fail: PartName("ckpt", 2)}
	committer := NewBlobCommitter(store)

	errs := make([]error, 3)
	err := comm.Run(context.Background(), 3, func(ctx context.Context, c comm.Communicator) error {
		v, err := distvec.NewPartitioned[float64](ctx, c, 9, 3)
		if err != nil {
			return err
		}
		errs[c.Rank()] = Save(ctx, v, store, "ckpt", WithCommitter(committer))
		return nil
	})
	require.NoError(t, err)

	assert.ErrorIs(t, errs[2], errInjected)
	assert.ErrorIs(t, errs[0], ErrPeerFailed)
	assert.ErrorIs(t, errs[1], ErrPeerFailed)

	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestCommitAndLatest(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	committer := NewBlobCommitter(store)

	_, err := Latest(ctx, committer)
	require.ErrorIs(t, err, blobstore.ErrNotFound)

	for step := 1; step <= 3; step++ {
		saveIota(t, store, fmt.Sprintf("step-%d", step), []int{2, 2}, WithCommitter(committer))
	}

	name, err := Latest(ctx, committer)
	require.NoError(t, err)
	assert.Equal(t, "step-3", name)

	v, err := distvec.NewSized[float64](ctx, nil, 4)
	require.NoError(t, err)
	require.NoError(t, Load(ctx, v, store, name))
	assert.Equal(t, []float64{0, 1, 2, 3}, v.Values())
}

// failingCommitter rejects every commit.
type failingCommitter struct{}

func (failingCommitter) Commit(context.Context, string) error { return errInjected }

func (failingCommitter) Latest(context.Context) (string, error) { return "", blobstore.ErrNotFound }

func TestCommitFailureFailsEveryWorker(t *testing.T) {
	store := blobstore.NewMemoryStore()

	errs := make([]error, 2)
	err := comm.Run(context.Background(), 2, func(ctx context.Context, c comm.Communicator) error {
		v, err := distvec.NewPartitioned[float64](ctx, c, 4, 2)
		if err != nil {
			return err
		}
		errs[c.Rank()] = Save(ctx, v, store, "ckpt", WithCommitter(failingCommitter{}))
		return nil
	})
	require.NoError(t, err)

	assert.ErrorIs(t, errs[0], errInjected)
	assert.ErrorIs(t, errs[1], ErrPeerFailed)

	_, err = store.Open(context.Background(), ManifestName("ckpt"))
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestResourceController(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	rc := resource.NewController(resource.Config{
		MaxConcurrentIO:    1,
		IOLimitBytesPerSec: 1 << 20,
	})
	saveIota(t, store, "ckpt", []int{8, 8}, WithResourceController(rc))

	v, err := distvec.NewSized[float64](ctx, nil, 16)
	require.NoError(t, err)
	require.NoError(t, Load(ctx, v, store, "ckpt", WithResourceController(rc)))
	assert.Equal(t, float64(15), v.Get(15))
	assert.Zero(t, rc.MemoryUsage())

	tight := resource.NewController(resource.Config{MemoryLimitBytes: 64})
	err = Load(ctx, v, store, "ckpt", WithResourceController(tight))
	assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
}
