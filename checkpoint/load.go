package checkpoint

import (
	"context"
	"fmt"
	"io"
	"path"
	"sync"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/hupe1980/distvec"
	"github.com/hupe1980/distvec/blobstore"
	"github.com/hupe1980/distvec/comm"
	"github.com/hupe1980/distvec/internal/conv"
	"github.com/hupe1980/distvec/internal/kernels"
	"github.com/hupe1980/distvec/internal/wire"
	"github.com/hupe1980/distvec/resource"
	"golang.org/x/sync/errgroup"
)

// ReadManifest reads and validates the manifest of checkpoint name.
func ReadManifest(ctx context.Context, store blobstore.Store, name string, opts ...Option) (*Manifest, error) {
	o := applyOptions(opts)
	return readManifest(ctx, store, name, o)
}

func readManifest(ctx context.Context, store blobstore.Store, name string, o options) (*Manifest, error) {
	data, err := blobstore.Get(ctx, store, ManifestName(name))
	if err != nil {
		return nil, fmt.Errorf("read manifest of %s: %w", name, err)
	}
	var m Manifest
	if err := o.codec.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: manifest of %s: %v", ErrCorrupt, name, err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Load reads checkpoint name into v. Collective.
//
// v must be initialized with the checkpoint's global size; its partition and
// worker count may differ from the ones the checkpoint was saved with. Each
// worker reads only the parts that overlap its owned range and verifies
// their checksums. v is left untouched unless every worker succeeds.
func Load[T distvec.Scalar](ctx context.Context, v *distvec.DistributedVector[T], store blobstore.Store, name string, opts ...Option) error {
	if !v.Initialized() {
		return fmt.Errorf("checkpoint: load %s: %w", name, distvec.ErrNotInitialized)
	}
	o := applyOptions(opts)
	c := v.Communicator()
	log := o.logger.WithRank(c.Rank(), c.Size()).WithOp("checkpoint.load")
	start := time.Now()

	if err := comm.Verify(ctx, c, "checkpoint.load("+name+")"); err != nil {
		return fmt.Errorf("checkpoint: load %s: %w", name, err)
	}

	var (
		values []T
		parts  int
	)
	staging := int64(v.LocalSize()) * int64(kernels.KindOf[T]().Size())
	err := o.rc.ReserveMemory(staging)
	if err == nil {
		defer o.rc.ReleaseMemory(staging)
		values, parts, err = loadLocal(ctx, v, store, name, o)
	}

	if err := agree(ctx, c, err); err != nil {
		log.ErrorContext(ctx, "checkpoint load failed", "name", name, "error", err)
		return fmt.Errorf("checkpoint: load %s: %w", name, err)
	}

	v.AssignSlice(values)
	log.InfoContext(ctx, "checkpoint loaded",
		"name", name,
		"entries", len(values),
		"parts", parts,
		"duration", time.Since(start),
	)
	return nil
}

// loadLocal assembles the owned range of v from the overlapping parts.
func loadLocal[T distvec.Scalar](ctx context.Context, v *distvec.DistributedVector[T], store blobstore.Store, name string, o options) ([]T, int, error) {
	m, err := readManifest(ctx, store, name, o)
	if err != nil {
		return nil, 0, err
	}
	if kind := kernels.KindOf[T](); m.Scalar != kind.String() {
		return nil, 0, fmt.Errorf("%w: checkpoint holds %s, vector holds %s", ErrScalarMismatch, m.Scalar, kind)
	}
	n, err := conv.Uint64ToInt(m.GlobalSize)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: global size: %w", ErrCorrupt, err)
	}
	if n != v.Size() {
		return nil, 0, fmt.Errorf("%w: checkpoint has %d entries, vector has %d", ErrSizeMismatch, m.GlobalSize, v.Size())
	}

	first, last := uint64(v.FirstLocalIndex()), uint64(v.LastLocalIndex())
	out := make([]T, last-first)
	covered := bitset.New(uint(last - first))

	var (
		mu    sync.Mutex
		parts int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for _, p := range m.Parts {
		lo, hi := max(p.First, first), min(p.First+p.Count, last)
		if lo >= hi {
			continue
		}
		parts++
		g.Go(func() error {
			vals, err := readPart[T](gctx, store, name, p, o)
			if err != nil {
				return err
			}
			copy(out[lo-first:hi-first], vals[lo-p.First:hi-p.First])

			mu.Lock()
			defer mu.Unlock()
			// Manifest validation guarantees that parts do not overlap.
			covered.FlipRange(uint(lo-first), uint(hi-first))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	if covered.Count() != uint(len(out)) {
		missing, _ := covered.NextClear(0)
		return nil, 0, fmt.Errorf("%w: entry %d of [%d,%d) is in no part", ErrIncompleteCheckpoint, first+uint64(missing), first, last)
	}
	return out, parts, nil
}

func readPart[T distvec.Scalar](ctx context.Context, store blobstore.Store, name string, p PartInfo, o options) ([]T, error) {
	if err := o.rc.AcquireIOSlot(ctx); err != nil {
		return nil, err
	}
	defer o.rc.ReleaseIOSlot()

	blobName := path.Join(name, p.Name)
	b, err := store.Open(ctx, blobName)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", blobName, err)
	}
	defer func() { _ = b.Close() }()

	r, err := b.ReadRange(ctx, 0, b.Size())
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", blobName, err)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(resource.NewRateLimitedReader(ctx, r, o.rc))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", blobName, err)
	}

	h, raw, err := decodePart(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", blobName, err)
	}
	if kind := kernels.KindOf[T](); h.Kind != kind {
		return nil, fmt.Errorf("%w: %s holds %s", ErrScalarMismatch, blobName, h.Kind)
	}
	if h.First != p.First || h.Count != p.Count || h.Checksum != p.Checksum {
		return nil, fmt.Errorf("%w: %s header [%d,+%d) crc %08x does not match manifest [%d,+%d) crc %08x",
			ErrCorrupt, blobName, h.First, h.Count, h.Checksum, p.First, p.Count, p.Checksum)
	}
	return wire.DecodeScalars[T](raw)
}
