package s3

import (
	"context"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hupe1980/distvec/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestS3Integration runs against a real bucket named by DISTVEC_S3_BUCKET.
// DISTVEC_DDB_TABLE additionally exercises the committer.
func TestS3Integration(t *testing.T) {
	bucket := os.Getenv("DISTVEC_S3_BUCKET")
	if bucket == "" {
		t.Skip("DISTVEC_S3_BUCKET not set")
	}

	ctx := context.Background()
	cfg, err := config.LoadDefaultConfig(ctx)
	require.NoError(t, err)

	store := NewStore(awss3.NewFromConfig(cfg), bucket, "distvec-test/")

	require.NoError(t, store.Put(ctx, "it/blob", []byte("hello s3")))
	t.Cleanup(func() { _ = store.Delete(ctx, "it/blob") })

	got, err := blobstore.Get(ctx, store, "it/blob")
	require.NoError(t, err)
	assert.Equal(t, "hello s3", string(got))

	names, err := store.List(ctx, "it/")
	require.NoError(t, err)
	assert.Contains(t, names, "it/blob")

	table := os.Getenv("DISTVEC_DDB_TABLE")
	if table == "" {
		return
	}
	committer := NewDDBCommitter(dynamodb.NewFromConfig(cfg), table, "s3://"+bucket+"/distvec-test/")
	require.NoError(t, committer.Commit(ctx, "it"))

	latest, err := committer.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "it", latest)
}
