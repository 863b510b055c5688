package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
)

var errUploadAborted = errors.New("s3: upload aborted")

type blob struct {
	client Client
	bucket string
	key    string
	size   int64
}

func (b *blob) Size() int64 { return b.size }

func (b *blob) Close() error { return nil }

// ReadAt fetches [off, off+len(p)) with a single ranged GET.
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

	body, err := b.get(ctx, off, end-1)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	n, err := io.ReadFull(body, p[:end-off])
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// ReadRange streams [off, off+length) clipped to the object size.
func (b *blob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if off < 0 || off >= b.size || length <= 0 {
		return io.NopCloser(eofReader{}), nil
	}
	end := off + length - 1
	if end >= b.size {
		end = b.size - 1
	}
	return b.get(ctx, off, end)
}

func (b *blob) get(ctx context.Context, first, last int64) (io.ReadCloser, error) {
	out, err := b.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", first, last)),
	})
	if err != nil {
		return nil, fmt.Errorf("s3: get %s: %w", b.key, err)
	}
	return out.Body, nil
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }

// writableBlob feeds an upload running in the background through a pipe.
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

// Close ends the body and waits for the upload to complete.
func (w *writableBlob) Close() error {
	if !w.finished.CompareAndSwap(false, true) {
		return io.ErrClosedPipe
	}
	defer w.cancel()

	if err := w.pw.Close(); err != nil {
		return err
	}
	if err := <-w.done; err != nil {
		return fmt.Errorf("s3: upload: %w", err)
	}
	return nil
}

// Abort cancels the upload. The manager removes any uploaded parts.
func (w *writableBlob) Abort() error {
	if !w.finished.CompareAndSwap(false, true) {
		return nil
	}
	_ = w.pw.CloseWithError(errUploadAborted)
	w.cancel()
	<-w.done
	return nil
}
