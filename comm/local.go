package comm

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

type opKind uint8

const (
	opAllGather opKind = iota + 1
	opGather
	opAllToAll
)

func (k opKind) String() string {
	switch k {
	case opAllGather:
		return "allgather"
	case opGather:
		return "gather"
	case opAllToAll:
		return "alltoall"
	default:
		return "unknown"
	}
}

// round is one collective in flight. It is immutable once done is closed.
type round struct {
	kind    opKind
	root    int
	in      [][][]byte // in[src][dst]
	arrived int
	done    chan struct{}
}

func newRound(size int) *round {
	return &round{
		in:   make([][][]byte, size),
		done: make(chan struct{}),
	}
}

// rankStats is padded to a cache line so that workers updating their own
// counters do not contend.
type rankStats struct {
	collectives atomic.Uint64
	bytesSent   atomic.Uint64
	_           cpu.CacheLinePad
}

// Stats is a snapshot of one worker's traffic in a LocalGroup.
type Stats struct {
	Collectives uint64
	BytesSent   uint64
}

// LocalGroup runs a group of workers as goroutines of one process.
//
// Each worker obtains its endpoint with Comm(rank). A LocalGroup is used for
// exactly one group lifetime; once aborted it stays aborted.
type LocalGroup struct {
	size int

	mu      sync.Mutex
	current *round

	abortOnce sync.Once
	aborted   chan struct{}
	cause     error

	stats []rankStats
}

// NewLocalGroup creates a group of size workers. size must be positive.
func NewLocalGroup(size int) *LocalGroup {
	if size <= 0 {
		panic(fmt.Sprintf("comm: invalid group size %d", size))
	}
	return &LocalGroup{
		size:    size,
		current: newRound(size),
		aborted: make(chan struct{}),
		stats:   make([]rankStats, size),
	}
}

// Size returns the number of workers.
func (g *LocalGroup) Size() int { return g.size }

// Comm returns the endpoint of the given rank.
func (g *LocalGroup) Comm(rank int) Communicator {
	if err := checkRank(rank, g.size); err != nil {
		panic(err)
	}
	return &localComm{group: g, rank: rank}
}

// Abort fails the group. Every pending and future collective returns an error
// wrapping ErrGroupAborted and cause. Only the first call has an effect.
func (g *LocalGroup) Abort(cause error) {
	g.abortOnce.Do(func() {
		g.cause = cause
		close(g.aborted)
	})
}

// Err returns nil while the group is healthy and the abort error afterwards.
func (g *LocalGroup) Err() error {
	select {
	case <-g.aborted:
		return g.abortErr()
	default:
		return nil
	}
}

func (g *LocalGroup) abortErr() error {
	if g.cause == nil {
		return ErrGroupAborted
	}
	return fmt.Errorf("%w: %w", ErrGroupAborted, g.cause)
}

// Stats returns the traffic counters of rank.
func (g *LocalGroup) Stats(rank int) Stats {
	s := &g.stats[rank]
	return Stats{
		Collectives: s.collectives.Load(),
		BytesSent:   s.bytesSent.Load(),
	}
}

// exchange deposits this rank's outgoing parts and waits for the rest of the
// group. It returns the round's incoming parts for rank, indexed by source.
// parts must not be modified by the caller afterwards.
func (g *LocalGroup) exchange(ctx context.Context, rank int, kind opKind, root int, parts [][]byte) ([][]byte, error) {
	if err := g.Err(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		g.Abort(err)
		return nil, g.abortErr()
	}

	var sent uint64
	for _, p := range parts {
		sent += uint64(len(p))
	}

	g.mu.Lock()
	r := g.current
	if r.arrived == 0 {
		r.kind, r.root = kind, root
	} else if r.kind != kind || r.root != root {
		g.mu.Unlock()
		g.Abort(fmt.Errorf("%w: rank %d called %s(root=%d) while the group is in %s(root=%d)",
			ErrMismatch, rank, kind, root, r.kind, r.root))
		return nil, g.abortErr()
	}
	r.in[rank] = parts
	r.arrived++
	if r.arrived == g.size {
		g.current = newRound(g.size)
		close(r.done)
	}
	g.mu.Unlock()

	st := &g.stats[rank]
	st.collectives.Add(1)
	st.bytesSent.Add(sent)

	select {
	case <-r.done:
	case <-g.aborted:
		return nil, g.abortErr()
	case <-ctx.Done():
		g.Abort(ctx.Err())
		return nil, g.abortErr()
	}

	out := make([][]byte, g.size)
	for src := range out {
		if row := r.in[src]; rank < len(row) {
			out[src] = row[rank]
		}
	}
	return out, nil
}

type localComm struct {
	group *LocalGroup
	rank  int
}

func (c *localComm) Rank() int { return c.rank }
func (c *localComm) Size() int { return c.group.size }

func (c *localComm) AllGather(ctx context.Context, data []byte) ([][]byte, error) {
	parts := make([][]byte, c.group.size)
	shared := bytes.Clone(data)
	for i := range parts {
		parts[i] = shared
	}
	return c.group.exchange(ctx, c.rank, opAllGather, 0, parts)
}

func (c *localComm) Gather(ctx context.Context, root int, data []byte) ([][]byte, error) {
	if err := checkRank(root, c.group.size); err != nil {
		return nil, err
	}
	parts := make([][]byte, c.group.size)
	parts[root] = bytes.Clone(data)
	out, err := c.group.exchange(ctx, c.rank, opGather, root, parts)
	if err != nil || c.rank != root {
		return nil, err
	}
	return out, nil
}

func (c *localComm) AllToAll(ctx context.Context, parts [][]byte) ([][]byte, error) {
	if len(parts) != c.group.size {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrPartCount, len(parts), c.group.size)
	}
	owned := make([][]byte, len(parts))
	for i, p := range parts {
		owned[i] = bytes.Clone(p)
	}
	return c.group.exchange(ctx, c.rank, opAllToAll, 0, owned)
}
