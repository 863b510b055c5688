package comm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelf(t *testing.T) {
	c := Self()
	ctx := context.Background()

	assert.Equal(t, 0, c.Rank())
	assert.Equal(t, 1, c.Size())
	assert.True(t, IsSelf(c))

	all, err := c.AllGather(ctx, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("x")}, all)

	_, err = c.Gather(ctx, 1, nil)
	assert.ErrorIs(t, err, ErrRankOutOfRange)

	_, err = c.AllToAll(ctx, [][]byte{nil, nil})
	assert.ErrorIs(t, err, ErrPartCount)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = c.AllGather(cancelled, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalGroupAllGather(t *testing.T) {
	err := Run(context.Background(), 4, func(ctx context.Context, c Communicator) error {
		for round := 0; round < 10; round++ {
			all, err := c.AllGather(ctx, []byte(fmt.Sprintf("%d/%d", round, c.Rank())))
			if err != nil {
				return err
			}
			for r, b := range all {
				if want := fmt.Sprintf("%d/%d", round, r); string(b) != want {
					return fmt.Errorf("rank %d round %d: got %q from %d, want %q", c.Rank(), round, b, r, want)
				}
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestLocalGroupGather(t *testing.T) {
	var mu sync.Mutex
	results := map[int][][]byte{}

	err := Run(context.Background(), 3, func(ctx context.Context, c Communicator) error {
		out, err := c.Gather(ctx, 1, []byte{byte(c.Rank())})
		if err != nil {
			return err
		}
		mu.Lock()
		results[c.Rank()] = out
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	assert.Nil(t, results[0])
	assert.Nil(t, results[2])
	assert.Equal(t, [][]byte{{0}, {1}, {2}}, results[1])
}

func TestLocalGroupAllToAll(t *testing.T) {
	err := Run(context.Background(), 3, func(ctx context.Context, c Communicator) error {
		parts := make([][]byte, c.Size())
		for dst := range parts {
			parts[dst] = []byte{byte(c.Rank()), byte(dst)}
		}
		in, err := c.AllToAll(ctx, parts)
		if err != nil {
			return err
		}
		for src, b := range in {
			if b[0] != byte(src) || b[1] != byte(c.Rank()) {
				return fmt.Errorf("rank %d: bad part from %d: %v", c.Rank(), src, b)
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestLocalGroupCallerMayReuseBuffers(t *testing.T) {
	err := Run(context.Background(), 2, func(ctx context.Context, c Communicator) error {
		buf := []byte{byte(c.Rank())}
		all, err := c.AllGather(ctx, buf)
		if err != nil {
			return err
		}
		buf[0] = 99
		if err := Barrier(ctx, c); err != nil {
			return err
		}
		for r, b := range all {
			if b[0] != byte(r) {
				return fmt.Errorf("rank %d saw mutated buffer from %d", c.Rank(), r)
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestLocalGroupOperationMismatchAborts(t *testing.T) {
	err := Run(context.Background(), 2, func(ctx context.Context, c Communicator) error {
		if c.Rank() == 0 {
			_, err := c.AllGather(ctx, nil)
			return err
		}
		_, err := c.Gather(ctx, 0, nil)
		return err
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGroupAborted)
	assert.ErrorIs(t, err, ErrMismatch)
}

func TestLocalGroupFailureUnblocksPeers(t *testing.T) {
	boom := errors.New("boom")

	err := Run(context.Background(), 3, func(ctx context.Context, c Communicator) error {
		if c.Rank() == 2 {
			return boom
		}
		return Barrier(ctx, c)
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, ErrGroupAborted))
}

func TestLocalGroupPanicBecomesError(t *testing.T) {
	sentinel := errors.New("sentinel")

	err := Run(context.Background(), 2, func(ctx context.Context, c Communicator) error {
		if c.Rank() == 1 {
			panic(sentinel)
		}
		return Barrier(ctx, c)
	})

	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.Rank)
	assert.ErrorIs(t, err, sentinel)
	assert.NotEmpty(t, pe.Stack)
}

func TestLocalGroupCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	g := NewLocalGroup(2)
	// Rank 1 never arrives.
	_, err := g.Comm(0).AllGather(ctx, nil)
	assert.ErrorIs(t, err, ErrGroupAborted)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Once aborted, the group stays aborted.
	_, err = g.Comm(1).AllGather(context.Background(), nil)
	assert.ErrorIs(t, err, ErrGroupAborted)
}

func TestLocalGroupStats(t *testing.T) {
	g := NewLocalGroup(2)
	var wg sync.WaitGroup
	for r := 0; r < 2; r++ {
		wg.Add(1)
		go func(c Communicator) {
			defer wg.Done()
			_, _ = c.AllGather(context.Background(), []byte("abc"))
		}(g.Comm(r))
	}
	wg.Wait()

	s := g.Stats(0)
	assert.Equal(t, uint64(1), s.Collectives)
	assert.Equal(t, uint64(6), s.BytesSent)
	assert.NoError(t, g.Err())
}
