package tcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/distvec/comm"
	"github.com/hupe1980/distvec/internal/wire"
)

// Comm is a TCP communicator endpoint. It implements comm.Communicator.
//
// A Comm is used by a single worker; collectives must not be issued
// concurrently from several goroutines.
type Comm struct {
	rank int
	size int
	opts options
	log  *slog.Logger

	peers []*peer // hub only, indexed by rank; peers[0] is nil
	hub   *peer   // spokes only

	mu        sync.Mutex
	err       error // sticky abort error
	closeOnce sync.Once
}

var _ comm.Communicator = (*Comm)(nil)

// Serve makes the caller rank 0 of a group of size workers. It accepts one
// connection from every other rank on ln, completes the handshake and closes
// ln. It returns once all workers have joined.
func Serve(ctx context.Context, ln net.Listener, size int, opts ...Option) (*Comm, error) {
	if size < 1 {
		return nil, fmt.Errorf("tcp: invalid group size %d", size)
	}
	if size > 1<<16 {
		return nil, fmt.Errorf("tcp: group size %d exceeds %d", size, 1<<16)
	}

	o := applyOptions(opts)
	c := &Comm{
		rank:  0,
		size:  size,
		opts:  o,
		log:   o.logger.With("rank", 0, "size", size),
		peers: make([]*peer, size),
	}

	defer func() { _ = ln.Close() }()
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	var mu sync.Mutex
	var g errgroup.Group
	for joined := 1; joined < size; joined++ {
		conn, err := ln.Accept()
		if err != nil {
			_ = g.Wait()
			c.Close()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("tcp: accept: %w", err)
		}
		g.Go(func() error {
			p, err := c.handshake(conn)
			if err != nil {
				_ = conn.Close()
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if c.peers[p.rank] != nil {
				_ = conn.Close()
				return fmt.Errorf("%w: rank %d joined twice", ErrProtocol, p.rank)
			}
			c.peers[p.rank] = p
			c.log.Debug("worker joined", "peer", p.rank, "addr", conn.RemoteAddr().String())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.Close()
		return nil, err
	}

	for r := 1; r < size; r++ {
		if err := c.peers[r].send(frame{kind: kindWelcome}); err != nil {
			c.Close()
			return nil, fmt.Errorf("tcp: welcome rank %d: %w", r, err)
		}
	}
	c.log.Info("group formed")
	return c, nil
}

func (c *Comm) handshake(conn net.Conn) (*peer, error) {
	_ = conn.SetDeadline(time.Now().Add(c.opts.dialTimeout))
	defer func() { _ = conn.SetDeadline(time.Time{}) }()

	p := newPeer(0, conn)
	f, err := p.recv()
	if err != nil {
		return nil, fmt.Errorf("tcp: hello: %w", err)
	}
	if f.kind != kindHello {
		return nil, fmt.Errorf("%w: expected hello, got %s", ErrProtocol, f.kind)
	}
	v, err := wire.DecodeInt64s(f.payload)
	if err != nil || len(v) != 1 {
		return nil, fmt.Errorf("%w: malformed hello", ErrProtocol)
	}
	rank := int(f.root)
	if int(v[0]) != c.size {
		return nil, fmt.Errorf("%w: rank %d expects group size %d, hub has %d", ErrProtocol, rank, v[0], c.size)
	}
	if rank < 1 || rank >= c.size {
		return nil, fmt.Errorf("%w: hello from rank %d", comm.ErrRankOutOfRange, rank)
	}
	p.rank = rank
	return p, nil
}

// Dial joins the group served at addr as rank. rank must be in [1, size).
// It returns once the hub reports that all workers have joined.
func Dial(ctx context.Context, addr string, rank, size int, opts ...Option) (*Comm, error) {
	if rank < 1 || rank >= size {
		return nil, fmt.Errorf("tcp: dial: %w: %d not in [1,%d)", comm.ErrRankOutOfRange, rank, size)
	}

	o := applyOptions(opts)
	d := net.Dialer{Timeout: o.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("tcp: dial %s: %w", addr, err)
	}

	c := &Comm{
		rank: rank,
		size: size,
		opts: o,
		log:  o.logger.With("rank", rank, "size", size),
		hub:  newPeer(0, conn),
	}

	hello := frame{kind: kindHello, root: uint16(rank), payload: wire.AppendInt64s(nil, int64(size))}
	if err := c.hub.send(hello); err != nil {
		c.Close()
		return nil, fmt.Errorf("tcp: hello: %w", err)
	}

	release := watch(ctx, conn)
	f, err := c.hub.recv()
	release()
	if err != nil {
		c.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("tcp: waiting for group: %w", err)
	}
	if f.kind != kindWelcome {
		c.Close()
		return nil, fmt.Errorf("%w: expected welcome, got %s", ErrProtocol, f.kind)
	}
	c.log.Debug("joined group", "hub", addr)
	return c, nil
}

// watch applies ctx's deadline and cancellation to conns until release is called.
func watch(ctx context.Context, conns ...net.Conn) (release func()) {
	if dl, ok := ctx.Deadline(); ok {
		for _, conn := range conns {
			_ = conn.SetDeadline(dl)
		}
	}
	stop := context.AfterFunc(ctx, func() {
		for _, conn := range conns {
			_ = conn.SetDeadline(time.Unix(1, 0))
		}
	})
	return func() {
		stop()
		for _, conn := range conns {
			_ = conn.SetDeadline(time.Time{})
		}
	}
}

// Rank implements comm.Communicator.
func (c *Comm) Rank() int { return c.rank }

// Size implements comm.Communicator.
func (c *Comm) Size() int { return c.size }

// AllGather implements comm.Communicator.
func (c *Comm) AllGather(ctx context.Context, data []byte) ([][]byte, error) {
	return c.collective(ctx, kindAllGather, 0, [][]byte{data})
}

// Gather implements comm.Communicator.
func (c *Comm) Gather(ctx context.Context, root int, data []byte) ([][]byte, error) {
	if root < 0 || root >= c.size {
		return nil, fmt.Errorf("%w: %d not in [0,%d)", comm.ErrRankOutOfRange, root, c.size)
	}
	out, err := c.collective(ctx, kindGather, root, [][]byte{data})
	if err != nil || c.rank != root {
		return nil, err
	}
	return out, nil
}

// AllToAll implements comm.Communicator.
func (c *Comm) AllToAll(ctx context.Context, parts [][]byte) ([][]byte, error) {
	if len(parts) != c.size {
		return nil, fmt.Errorf("%w: got %d, want %d", comm.ErrPartCount, len(parts), c.size)
	}
	return c.collective(ctx, kindAllToAll, 0, parts)
}

// Close closes all connections. Pending collectives on peers fail.
func (c *Comm) Close() error {
	var errs []error
	c.closeOnce.Do(func() {
		if c.hub != nil {
			errs = append(errs, c.hub.close())
		}
		for _, p := range c.peers {
			if p != nil {
				errs = append(errs, p.close())
			}
		}
	})
	return errors.Join(errs...)
}

func (c *Comm) collective(ctx context.Context, kind frameKind, root int, parts [][]byte) ([][]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return nil, c.err
	}
	if err := ctx.Err(); err != nil {
		c.abort(err)
		return nil, c.err
	}

	var out [][]byte
	var err error
	if c.rank == 0 {
		// The hub hands its own contribution back to itself.
		owned := make([][]byte, len(parts))
		for i, p := range parts {
			owned[i] = bytes.Clone(p)
		}
		out, err = c.serveRound(ctx, kind, root, owned)
	} else {
		out, err = c.joinRound(ctx, kind, root, parts)
	}
	if err != nil {
		c.abort(err)
		return nil, c.err
	}
	return out, nil
}

// abort records the sticky group error and notifies the rest of the group:
// the hub sends an abort frame to every spoke, a spoke drops its connection.
func (c *Comm) abort(cause error) {
	if c.err != nil {
		return
	}
	if errors.Is(cause, comm.ErrGroupAborted) {
		c.err = cause
	} else {
		c.err = fmt.Errorf("%w: %w", comm.ErrGroupAborted, cause)
	}
	c.log.Error("group aborted", "error", cause)

	if c.rank != 0 {
		_ = c.hub.close()
		return
	}
	msg := []byte(cause.Error())
	for _, p := range c.peers {
		if p == nil {
			continue
		}
		_ = p.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = p.send(frame{kind: kindAbort, payload: msg})
	}
}

func (c *Comm) joinRound(ctx context.Context, kind frameKind, root int, parts [][]byte) ([][]byte, error) {
	release := watch(ctx, c.hub.conn)
	defer release()

	f, err := c.opts.pack(kind, root, encodeParts(parts))
	if err != nil {
		return nil, err
	}
	if err := c.hub.send(f); err != nil {
		return nil, c.ioErr(ctx, "send", err)
	}

	reply, err := c.hub.recv()
	if err != nil {
		return nil, c.ioErr(ctx, "receive", err)
	}
	switch reply.kind {
	case kindResult:
	case kindAbort:
		return nil, fmt.Errorf("%w: %s", comm.ErrGroupAborted, reply.payload)
	default:
		return nil, fmt.Errorf("%w: expected result, got %s", ErrProtocol, reply.kind)
	}

	payload, err := unpack(reply)
	if err != nil {
		return nil, err
	}
	out, err := decodeParts(payload)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	if len(out) != c.size {
		return nil, fmt.Errorf("%w: result has %d parts, want %d", ErrProtocol, len(out), c.size)
	}
	return out, nil
}

func (c *Comm) serveRound(ctx context.Context, kind frameKind, root int, parts [][]byte) ([][]byte, error) {
	conns := make([]net.Conn, 0, c.size-1)
	for _, p := range c.peers[1:] {
		conns = append(conns, p.conn)
	}
	release := watch(ctx, conns...)
	defer release()

	in := make([][][]byte, c.size)
	var err error
	if in[0], err = c.spread(kind, root, parts); err != nil {
		return nil, err
	}

	var g errgroup.Group
	for _, p := range c.peers[1:] {
		g.Go(func() error {
			f, err := p.recv()
			if err != nil {
				return c.ioErr(ctx, fmt.Sprintf("receive from rank %d", p.rank), err)
			}
			if f.kind == kindAbort {
				return fmt.Errorf("rank %d aborted: %s", p.rank, f.payload)
			}
			if f.kind != kind || int(f.root) != root {
				return fmt.Errorf("%w: rank %d called %s(root=%d) while rank 0 is in %s(root=%d)",
					comm.ErrMismatch, p.rank, f.kind, f.root, kind, root)
			}
			payload, err := unpack(f)
			if err != nil {
				return fmt.Errorf("rank %d: %w", p.rank, err)
			}
			contrib, err := decodeParts(payload)
			if err != nil {
				return fmt.Errorf("rank %d: %w", p.rank, err)
			}
			if in[p.rank], err = c.spread(kind, root, contrib); err != nil {
				return fmt.Errorf("rank %d: %w", p.rank, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, p := range c.peers[1:] {
		var result []byte
		if kind == kindGather && p.rank != root {
			result = encodeParts(nil)
		} else {
			result = encodeParts(column(in, p.rank))
		}
		f, err := c.opts.pack(kindResult, 0, result)
		if err != nil {
			return nil, err
		}
		if err := p.send(f); err != nil {
			return nil, c.ioErr(ctx, fmt.Sprintf("send to rank %d", p.rank), err)
		}
	}

	if kind == kindGather && root != 0 {
		return nil, nil
	}
	return column(in, 0), nil
}

// spread turns one worker's contribution into its per-destination parts.
func (c *Comm) spread(kind frameKind, root int, contrib [][]byte) ([][]byte, error) {
	switch kind {
	case kindAllGather, kindGather:
		if len(contrib) != 1 {
			return nil, fmt.Errorf("%w: %s carries %d parts", ErrProtocol, kind, len(contrib))
		}
		out := make([][]byte, c.size)
		if kind == kindGather {
			out[root] = contrib[0]
			return out, nil
		}
		for i := range out {
			out[i] = contrib[0]
		}
		return out, nil
	case kindAllToAll:
		if len(contrib) != c.size {
			return nil, fmt.Errorf("%w: got %d, want %d", comm.ErrPartCount, len(contrib), c.size)
		}
		return contrib, nil
	default:
		return nil, fmt.Errorf("%w: unexpected %s", ErrProtocol, kind)
	}
}

func column(in [][][]byte, dst int) [][]byte {
	out := make([][]byte, len(in))
	for src, row := range in {
		out[src] = row[dst]
	}
	return out
}

func (c *Comm) ioErr(ctx context.Context, what string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("tcp: %s: %w", what, err)
}
