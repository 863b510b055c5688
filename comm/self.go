package comm

import (
	"bytes"
	"context"
	"fmt"
)

type self struct{}

// Self returns the communicator of a group with exactly one worker.
func Self() Communicator {
	return self{}
}

// IsSelf reports whether c is the single-worker communicator returned by Self.
func IsSelf(c Communicator) bool {
	_, ok := c.(self)
	return ok
}

func (self) Rank() int { return 0 }
func (self) Size() int { return 1 }

func (self) AllGather(ctx context.Context, data []byte) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return [][]byte{bytes.Clone(data)}, nil
}

func (self) Gather(ctx context.Context, root int, data []byte) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkRank(root, 1); err != nil {
		return nil, err
	}
	return [][]byte{bytes.Clone(data)}, nil
}

func (self) AllToAll(ctx context.Context, parts [][]byte) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(parts) != 1 {
		return nil, fmt.Errorf("%w: got %d, want 1", ErrPartCount, len(parts))
	}
	return [][]byte{bytes.Clone(parts[0])}, nil
}
