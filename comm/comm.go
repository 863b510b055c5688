package comm

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
)

// Communicator is one worker's endpoint into a group.
//
// Byte slices passed in may be reused by the caller once the call returns.
// Byte slices handed out are shared with other workers and must be treated as
// read-only.
type Communicator interface {
	// Rank returns this worker's rank in [0, Size()).
	Rank() int

	// Size returns the number of workers in the group.
	Size() int

	// AllGather returns every worker's data, indexed by rank.
	AllGather(ctx context.Context, data []byte) ([][]byte, error)

	// Gather returns every worker's data, indexed by rank, on root and nil elsewhere.
	Gather(ctx context.Context, root int, data []byte) ([][]byte, error)

	// AllToAll sends parts[r] to rank r and returns the parts addressed to this
	// worker, indexed by source rank. len(parts) must equal Size().
	AllToAll(ctx context.Context, parts [][]byte) ([][]byte, error)
}

var (
	// ErrGroupAborted is returned by every collective once the group has failed.
	ErrGroupAborted = errors.New("comm: group aborted")

	// ErrRankOutOfRange is returned when a root or peer rank is not in the group.
	ErrRankOutOfRange = errors.New("comm: rank out of range")

	// ErrMismatch is returned when workers disagree about the collective being
	// performed (operation, root, tag or payload shape).
	ErrMismatch = errors.New("comm: collective mismatch")

	// ErrPartCount is returned when AllToAll is called with len(parts) != Size().
	ErrPartCount = errors.New("comm: part count does not match group size")
)

// PanicError reports a worker that panicked inside Run.
type PanicError struct {
	Rank  int
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("comm: worker %d panicked: %v", e.Rank, e.Value)
}

// Unwrap exposes the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

func newPanicError(rank int, v any) *PanicError {
	return &PanicError{Rank: rank, Value: v, Stack: debug.Stack()}
}

func checkRank(rank, size int) error {
	if rank < 0 || rank >= size {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrRankOutOfRange, rank, size)
	}
	return nil
}
