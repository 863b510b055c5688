package checkpoint

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hupe1980/distvec"
	"github.com/hupe1980/distvec/blobstore"
	"github.com/hupe1980/distvec/codec"
	"github.com/hupe1980/distvec/comm"
	"github.com/hupe1980/distvec/internal/kernels"
	"github.com/hupe1980/distvec/internal/wire"
	"github.com/hupe1980/distvec/resource"
)

// Save writes v to store as checkpoint name. Collective.
//
// Every worker writes its part, then rank 0 writes the manifest and, if a
// committer is configured, commits the checkpoint. Of a serial vector only
// rank 0 writes its copy. If any worker fails, the parts written so far are
// removed and every worker returns an error.
func Save[T distvec.Scalar](ctx context.Context, v *distvec.DistributedVector[T], store blobstore.Store, name string, opts ...Option) error {
	if !v.Initialized() {
		return fmt.Errorf("checkpoint: save %s: %w", name, distvec.ErrNotInitialized)
	}
	o := applyOptions(opts)
	c := v.Communicator()
	log := o.logger.WithRank(c.Rank(), c.Size()).WithOp("checkpoint.save")
	start := time.Now()

	if err := comm.Verify(ctx, c, "checkpoint.save("+name+")"); err != nil {
		return fmt.Errorf("checkpoint: save %s: %w", name, err)
	}

	writes := v.Type() != distvec.Serial || c.Rank() == 0

	var (
		part PartInfo
		err  error
	)
	if writes {
		part, err = writePart(ctx, v, store, name, o)
	}
	if err := agree(ctx, c, err); err != nil {
		_ = store.Delete(ctx, PartName(name, c.Rank()))
		log.ErrorContext(ctx, "part write failed", "name", name, "error", err)
		return fmt.Errorf("checkpoint: save %s: %w", name, err)
	}

	var report []byte
	if writes {
		// PartInfo always marshals; a failure here is a broken codec.
		report = codec.MustMarshal(o.codec, part)
	}
	reports, err := c.Gather(ctx, 0, report)
	if err != nil {
		return fmt.Errorf("checkpoint: save %s: %w", name, err)
	}

	var commitErr error
	if c.Rank() == 0 {
		commitErr = writeManifest[T](ctx, store, name, v.Size(), reports, o)
	}
	if err := agree(ctx, c, commitErr); err != nil {
		_ = store.Delete(ctx, PartName(name, c.Rank()))
		log.ErrorContext(ctx, "manifest write failed", "name", name, "error", err)
		return fmt.Errorf("checkpoint: save %s: %w", name, err)
	}

	log.InfoContext(ctx, "checkpoint saved",
		"name", name,
		"entries", part.Count,
		"bytes", part.Bytes,
		"compression", o.compression.String(),
		"duration", time.Since(start),
	)
	return nil
}

func writePart[T distvec.Scalar](ctx context.Context, v *distvec.DistributedVector[T], store blobstore.Store, name string, o options) (PartInfo, error) {
	rank := v.Communicator().Rank()
	raw := wire.EncodeScalars(v.Values())
	h, data, err := encodePart(kernels.KindOf[T](), o.compression, uint64(v.FirstLocalIndex()), raw)
	if err != nil {
		return PartInfo{}, err
	}

	if err := o.rc.AcquireIOSlot(ctx); err != nil {
		return PartInfo{}, err
	}
	defer o.rc.ReleaseIOSlot()

	w, err := store.Create(ctx, PartName(name, rank))
	if err != nil {
		return PartInfo{}, err
	}
	if _, err := io.Copy(resource.NewRateLimitedWriter(ctx, w, o.rc), bytes.NewReader(data)); err != nil {
		_ = blobstore.Abort(w)
		return PartInfo{}, fmt.Errorf("write %s: %w", PartName(name, rank), err)
	}
	if err := w.Close(); err != nil {
		return PartInfo{}, fmt.Errorf("commit %s: %w", PartName(name, rank), err)
	}

	return PartInfo{
		Name:     partFile(rank),
		Rank:     rank,
		First:    h.First,
		Count:    h.Count,
		Bytes:    int64(len(data)),
		Checksum: h.Checksum,
	}, nil
}

func writeManifest[T distvec.Scalar](ctx context.Context, store blobstore.Store, name string, n int, reports [][]byte, o options) error {
	m := Manifest{
		Version:     FormatVersion,
		Name:        name,
		Scalar:      kernels.KindOf[T]().String(),
		GlobalSize:  uint64(n),
		Workers:     len(reports),
		Compression: o.compression.String(),
		Codec:       o.codec.Name(),
		CreatedAt:   time.Now().UTC(),
	}
	for rank, b := range reports {
		// Replicas that did not write send an empty report.
		if len(b) == 0 {
			continue
		}
		var p PartInfo
		if err := o.codec.Unmarshal(b, &p); err != nil {
			return fmt.Errorf("decode part info of rank %d: %w", rank, err)
		}
		m.Parts = append(m.Parts, p)
	}
	if err := m.validate(); err != nil {
		return err
	}

	data, err := o.codec.Marshal(&m)
	if err != nil {
		return err
	}
	if err := store.Put(ctx, ManifestName(name), data); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if o.committer != nil {
		if err := o.committer.Commit(ctx, name); err != nil {
			_ = store.Delete(ctx, ManifestName(name))
			return fmt.Errorf("commit: %w", err)
		}
	}
	return nil
}
