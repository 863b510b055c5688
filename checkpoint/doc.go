// Package checkpoint saves a DistributedVector to a blobstore.Store and
// loads it back, possibly under a different partition or worker count.
//
// A checkpoint named "step-42" consists of one part blob per worker and a
// manifest:
//
//	step-42/part-0.dvec
//	step-42/part-1.dvec
//	step-42/MANIFEST
//
// Each part starts with a fixed header that carries the scalar kind, the
// global range it covers and a CRC32-Castagnoli checksum over header and
// payload. The payload is the little-endian encoding of the entries,
// optionally LZ4 or Zstandard compressed.
//
// Save and Load are collectives and every worker must call them. Every
// worker returns the same outcome: a failure on one worker makes the
// operation fail everywhere.
//
//	store := blobstore.NewLocalStore("/var/lib/solver")
//	committer := checkpoint.NewBlobCommitter(store)
//
//	err := checkpoint.Save(ctx, v, store, "step-42",
//	    checkpoint.WithCompression(checkpoint.Zstd),
//	    checkpoint.WithCommitter(committer),
//	)
//
//	name, err := checkpoint.Latest(ctx, committer)
//	err = checkpoint.Load(ctx, w, store, name)
package checkpoint
