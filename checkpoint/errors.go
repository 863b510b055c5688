package checkpoint

import "errors"

var (
	// ErrCorrupt is returned when a part or manifest fails validation.
	ErrCorrupt = errors.New("checkpoint: corrupt")

	// ErrScalarMismatch is returned when loading into a vector whose scalar
	// type differs from the saved one.
	ErrScalarMismatch = errors.New("checkpoint: scalar type mismatch")

	// ErrSizeMismatch is returned when the target vector's global size
	// differs from the saved one.
	ErrSizeMismatch = errors.New("checkpoint: global size mismatch")

	// ErrIncompleteCheckpoint is returned when the parts of a checkpoint do
	// not cover a worker's owned range.
	ErrIncompleteCheckpoint = errors.New("checkpoint: parts do not cover the owned range")

	// ErrUnsupportedVersion is returned for a format version this package
	// cannot read.
	ErrUnsupportedVersion = errors.New("checkpoint: unsupported format version")

	// ErrPeerFailed is returned on workers that succeeded locally when
	// another worker of the group failed.
	ErrPeerFailed = errors.New("checkpoint: failed on another worker")
)
