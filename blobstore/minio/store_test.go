package minio

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/hupe1980/distvec/blobstore"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreNormalizesPrefix(t *testing.T) {
	assert.Equal(t, "run-7/part-0.dvec", NewStore(nil, "b", "run-7").key("part-0.dvec"))
	assert.Equal(t, "run-7/part-0.dvec", NewStore(nil, "b", "run-7/").key("part-0.dvec"))
	assert.Equal(t, "part-0.dvec", NewStore(nil, "b", "").key("part-0.dvec"))

	s := NewStore(nil, "b", "", WithPartSize(5<<20))
	assert.Equal(t, uint64(5<<20), s.putOptions().PartSize)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.True(t, isNotFound(minio.ErrorResponse{Code: "NotFound"}))
	assert.False(t, isNotFound(minio.ErrorResponse{Code: "AccessDenied"}))
	assert.False(t, isNotFound(errors.New("dial tcp: connection refused")))
}

// TestMinioIntegration needs a MinIO server at DISTVEC_MINIO_ENDPOINT
// with the default minioadmin credentials.
func TestMinioIntegration(t *testing.T) {
	endpoint := os.Getenv("DISTVEC_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("DISTVEC_MINIO_ENDPOINT not set")
	}
	const bucket = "distvec-test"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	require.NoError(t, err)

	ctx := context.Background()
	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewStore(client, bucket, "it")

	require.NoError(t, store.Put(ctx, "ckpt/MANIFEST", []byte("hello minio world")))
	got, err := blobstore.Get(ctx, store, "ckpt/MANIFEST")
	require.NoError(t, err)
	assert.Equal(t, "hello minio world", string(got))

	b, err := store.Open(ctx, "ckpt/MANIFEST")
	require.NoError(t, err)
	r, err := b.ReadRange(ctx, 6, 5)
	require.NoError(t, err)
	part, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "minio", string(part))
	require.NoError(t, b.Close())

	w, err := store.Create(ctx, "ckpt/part-0.dvec")
	require.NoError(t, err)
	_, err = w.Write([]byte("streamed data"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	names, err := store.List(ctx, "ckpt/")
	require.NoError(t, err)
	assert.Equal(t, []string{"ckpt/MANIFEST", "ckpt/part-0.dvec"}, names)

	for _, name := range names {
		require.NoError(t, store.Delete(ctx, name))
	}
	_, err = store.Open(ctx, "ckpt/MANIFEST")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
