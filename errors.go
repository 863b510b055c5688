package distvec

import (
	"errors"
	"fmt"
)

// Sentinel causes carried by FaultError.
var (
	// ErrNotInitialized is the cause of any access to a vector before Init.
	ErrNotInitialized = errors.New("vector not initialized")

	// ErrOutOfRange is the cause of an access to an index this worker does not own.
	ErrOutOfRange = errors.New("index out of owned range")

	// ErrSizeMismatch is the cause of operands with different global or local sizes.
	ErrSizeMismatch = errors.New("size mismatch")

	// ErrTypeMismatch is the cause of Swap with a different vector implementation.
	ErrTypeMismatch = errors.New("vector type mismatch")

	// ErrInvalidSize is the cause of a negative size or a local size larger than the global size.
	ErrInvalidSize = errors.New("invalid size")

	// ErrInconsistentPartition is the cause of local sizes that do not add up to the global size.
	ErrInconsistentPartition = errors.New("inconsistent partition")

	// ErrParallelUnavailable is the cause of a partitioned vector on a single-worker communicator.
	ErrParallelUnavailable = errors.New("parallel vector requires a multi-worker communicator")

	// ErrNotImplemented is the cause of the sparse matrix product hooks.
	ErrNotImplemented = errors.New("not implemented")

	// ErrCollectiveMismatch is the cause of workers issuing different collectives.
	ErrCollectiveMismatch = errors.New("workers issued different collective operations")
)

// FaultError reports a programming error: a violated precondition, an
// inconsistent partition, a missing communication layer or an unsupported
// operation. Faults are raised with panic and are never retried.
//
// Recover and inspect a fault with errors.Is:
//
//	defer func() {
//	    if r := recover(); r != nil {
//	        err, _ := r.(error)
//	        if errors.Is(err, distvec.ErrOutOfRange) { ... }
//	    }
//	}()
type FaultError struct {
	Op  string
	Err error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("distvec: %s: %v", e.Op, e.Err)
}

func (e *FaultError) Unwrap() error { return e.Err }

// fault panics with a *FaultError for op. When format is non-empty the
// sentinel is wrapped with the formatted detail.
func fault(op string, sentinel error, format string, args ...any) {
	err := sentinel
	if format != "" {
		err = fmt.Errorf("%w: "+format, append([]any{sentinel}, args...)...)
	}
	panic(&FaultError{Op: op, Err: err})
}

// IsFault reports whether err is, or wraps, a *FaultError.
func IsFault(err error) bool {
	var fe *FaultError
	return errors.As(err, &fe)
}
