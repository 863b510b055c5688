package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/distvec/blobstore"
	"github.com/hupe1980/distvec/comm"
)

// sentinels travel between workers as their index in this table.
var sentinels = []error{
	ErrCorrupt,
	ErrScalarMismatch,
	ErrSizeMismatch,
	ErrIncompleteCheckpoint,
	ErrUnsupportedVersion,
	blobstore.ErrNotFound,
	context.Canceled,
	context.DeadlineExceeded,
}

// peerError is an error reported by another worker.
type peerError struct {
	rank     int
	msg      string
	sentinel error
}

func (e *peerError) Error() string {
	return fmt.Sprintf("rank %d: %s", e.rank, e.msg)
}

func (e *peerError) Unwrap() error { return e.sentinel }

func encodeError(err error) []byte {
	if err == nil {
		return nil
	}
	code := byte(0)
	for i, s := range sentinels {
		if errors.Is(err, s) {
			code = byte(i + 1)
			break
		}
	}
	return append([]byte{code}, err.Error()...)
}

func decodeError(rank int, b []byte) error {
	if len(b) == 0 {
		return nil
	}
	e := &peerError{rank: rank, msg: string(b[1:])}
	if code := int(b[0]); code > 0 && code <= len(sentinels) {
		e.sentinel = sentinels[code-1]
	}
	return e
}

// agree exchanges the local outcome of a step with every worker. It returns
// the local error if there is one, otherwise the error of the lowest failing
// rank wrapped in ErrPeerFailed, so that all workers fail together.
func agree(ctx context.Context, c comm.Communicator, local error) error {
	all, err := c.AllGather(ctx, encodeError(local))
	if local != nil {
		return local
	}
	if err != nil {
		return fmt.Errorf("checkpoint: agree: %w", err)
	}
	for rank, b := range all {
		if perr := decodeError(rank, b); perr != nil {
			return fmt.Errorf("%w: %w", ErrPeerFailed, perr)
		}
	}
	return nil
}
