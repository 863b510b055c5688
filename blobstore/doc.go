// Package blobstore abstracts the storage that checkpoints are written to.
//
// A Store holds named, immutable blobs. Writers either stream through Create
// or write a whole blob at once with Put; both become visible atomically.
// Readers open a Blob and read byte ranges from it.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process map, for tests and single-process runs
//   - LocalStore: local directory, atomic rename on commit, mmap reads
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible servers
//
// # Custom Implementations
//
// Implement Store and Blob; return an error matching ErrNotFound for
// missing blobs and keep List sorted:
//
//	type Store interface {
//	    Open(ctx, name) (Blob, error)
//	    Create(ctx, name) (WritableBlob, error)
//	    Put(ctx, name, data) error
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
package blobstore
