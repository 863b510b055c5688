package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/hupe1980/distvec/blobstore"
	"github.com/minio/minio-go/v7"
)

const defaultPartSize = 16 << 20

var errUploadAborted = errors.New("minio: upload aborted")

// Option configures a Store.
type Option func(*Store)

// WithPartSize sets the part size of streaming uploads.
func WithPartSize(n uint64) Option {
	return func(s *Store) {
		if n > 0 {
			s.partSize = n
		}
	}
}

// Store implements blobstore.Store on a MinIO bucket.
type Store struct {
	client   *minio.Client
	bucket   string
	prefix   string
	partSize uint64
}

// NewStore creates a store for bucket. Keys are prefix followed by the
// blob name; a missing trailing slash on prefix is added.
func NewStore(client *minio.Client, bucket, prefix string, opts ...Option) *Store {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	s := &Store{
		client:   client,
		bucket:   bucket,
		prefix:   prefix,
		partSize: defaultPartSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(name string) string {
	return s.prefix + name
}

func (s *Store) putOptions() minio.PutObjectOptions {
	return minio.PutObjectOptions{
		PartSize:     s.partSize,
		AutoChecksum: minio.ChecksumCRC32C,
	}
}

// Open stats the object and returns a blob that reads with ranged GETs.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	info, err := s.client.StatObject(ctx, s.bucket, s.key(name), minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, blobstore.ErrNotFound
		}
		return nil, fmt.Errorf("minio: stat %s: %w", name, err)
	}
	return &blob{
		client: s.client,
		bucket: s.bucket,
		key:    s.key(name),
		size:   info.Size,
	}, nil
}

// Put uploads data in one request.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.key(name), bytes.NewReader(data), int64(len(data)), s.putOptions())
	if err != nil {
		return fmt.Errorf("minio: put %s: %w", name, err)
	}
	return nil
}

// Create starts a streaming upload of unknown length. The object becomes
// visible when Close returns without error.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()
	w := &writableBlob{
		pw:     pw,
		cancel: cancel,
		done:   make(chan error, 1),
	}

	go func() {
		_, err := s.client.PutObject(ctx, s.bucket, s.key(name), pr, -1, s.putOptions())
		_ = pr.CloseWithError(err)
		w.done <- err
	}()
	return w, nil
}

// Delete removes an object. Deleting a missing object succeeds.
func (s *Store) Delete(ctx context.Context, name string) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.key(name), minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("minio: delete %s: %w", name, err)
	}
	return nil
}

// List returns the sorted names of all blobs starting with prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.key(prefix),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("minio: list %s: %w", prefix, obj.Err)
		}
		if name := strings.TrimPrefix(obj.Key, s.prefix); name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}

type blob struct {
	client *minio.Client
	bucket string
	key    string
	size   int64
}

func (b *blob) Size() int64 { return b.size }

func (b *blob) Close() error { return nil }

func (b *blob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if off < 0 || off >= b.size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	end := off + int64(len(p))
	if end > b.size {
		end = b.size
	}

	obj, err := b.get(ctx, off, end-1)
	if err != nil {
		return 0, err
	}
	defer obj.Close()

	n, err := io.ReadFull(obj, p[:end-off])
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *blob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if off < 0 || off >= b.size || length <= 0 {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	end := off + length - 1
	if end >= b.size {
		end = b.size - 1
	}
	return b.get(ctx, off, end)
}

func (b *blob) get(ctx context.Context, first, last int64) (*minio.Object, error) {
	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(first, last); err != nil {
		return nil, err
	}
	obj, err := b.client.GetObject(ctx, b.bucket, b.key, opts)
	if err != nil {
		return nil, fmt.Errorf("minio: get %s: %w", b.key, err)
	}
	return obj, nil
}

type writableBlob struct {
	pw       *io.PipeWriter
	cancel   context.CancelFunc
	done     chan error
	finished atomic.Bool
}

func (w *writableBlob) Write(p []byte) (int, error) {
	if w.finished.Load() {
		return 0, io.ErrClosedPipe
	}
	return w.pw.Write(p)
}

// Sync is a no-op; the object is durable once Close succeeds.
func (w *writableBlob) Sync() error { return nil }

func (w *writableBlob) Close() error {
	if !w.finished.CompareAndSwap(false, true) {
		return io.ErrClosedPipe
	}
	defer w.cancel()

	if err := w.pw.Close(); err != nil {
		return err
	}
	if err := <-w.done; err != nil {
		return fmt.Errorf("minio: upload: %w", err)
	}
	return nil
}

// Abort cancels the upload without publishing the object.
func (w *writableBlob) Abort() error {
	if !w.finished.CompareAndSwap(false, true) {
		return nil
	}
	_ = w.pw.CloseWithError(errUploadAborted)
	w.cancel()
	<-w.done
	return nil
}
