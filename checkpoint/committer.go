package checkpoint

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/distvec/blobstore"
)

// Committer records which checkpoint is the latest complete one.
//
// s3.DDBCommitter implements it on DynamoDB for stores without atomic
// overwrite semantics.
type Committer interface {
	// Commit records name as the latest checkpoint.
	Commit(ctx context.Context, name string) error

	// Latest returns the most recently committed name, or an error wrapping
	// blobstore.ErrNotFound if nothing was committed.
	Latest(ctx context.Context) (string, error)
}

// CurrentName is the blob written by BlobCommitter.
const CurrentName = "CURRENT"

// BlobCommitter stores the latest checkpoint name in a single blob. It relies
// on the store's Put being atomic, which holds for every store in this
// module. Concurrent savers race and the last one wins.
type BlobCommitter struct {
	store blobstore.Store
	name  string
}

// NewBlobCommitter returns a committer writing CurrentName in store.
func NewBlobCommitter(store blobstore.Store) *BlobCommitter {
	return &BlobCommitter{store: store, name: CurrentName}
}

// Commit overwrites the pointer blob with name.
func (c *BlobCommitter) Commit(ctx context.Context, name string) error {
	return c.store.Put(ctx, c.name, []byte(name+"\n"))
}

// Latest reads the pointer blob.
func (c *BlobCommitter) Latest(ctx context.Context) (string, error) {
	data, err := blobstore.Get(ctx, c.store, c.name)
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(string(data))
	if name == "" {
		return "", fmt.Errorf("%w: %s is empty", blobstore.ErrNotFound, c.name)
	}
	return name, nil
}

// Latest returns the newest checkpoint recorded by c.
func Latest(ctx context.Context, c Committer) (string, error) {
	name, err := c.Latest(ctx)
	if err != nil {
		return "", fmt.Errorf("checkpoint: latest: %w", err)
	}
	return name, nil
}
