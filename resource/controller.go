package resource

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned by ReserveMemory when the hard limit
// would be exceeded.
var ErrMemoryLimitExceeded = errors.New("resource: memory limit exceeded")

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes is the hard limit for managed memory.
	// If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64

	// MaxConcurrentIO is the maximum number of blob operations in flight.
	// If 0, defaults to 4.
	MaxConcurrentIO int64

	// IOLimitBytesPerSec is the maximum IO throughput.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller manages memory and IO budgets.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	ioSem *semaphore.Weighted

	ioLimiter *rate.Limiter
	ioBurst   int
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxConcurrentIO <= 0 {
		cfg.MaxConcurrentIO = 4
	}

	c := &Controller{
		cfg:   cfg,
		ioSem: semaphore.NewWeighted(cfg.MaxConcurrentIO),
	}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioBurst = int(cfg.IOLimitBytesPerSec)
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), c.ioBurst)
	}

	return c
}

// Config returns the effective configuration.
func (c *Controller) Config() Config {
	if c == nil {
		return Config{}
	}
	return c.cfg
}

// ReserveMemory reserves bytes without blocking.
func (c *Controller) ReserveMemory(bytes int64) error {
	if c.TryAcquireMemory(bytes) {
		return nil
	}
	return fmt.Errorf("%w: requested %d bytes, %d of %d in use",
		ErrMemoryLimitExceeded, bytes, c.MemoryUsage(), c.cfg.MemoryLimitBytes)
}

// AcquireMemory reserves bytes, blocking until they are available or ctx is
// done.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if err := c.memSem.Acquire(ctx, bytes); err != nil {
			return err
		}
	}

	c.memUsed.Add(bytes)
	return nil
}

// TryAcquireMemory attempts to reserve memory without blocking.
// Returns true if acquired, false if limit would be exceeded.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}

	if c.memSem != nil {
		if !c.memSem.TryAcquire(bytes) {
			return false
		}
	}

	c.memUsed.Add(bytes)
	return true
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current memory usage in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// AcquireIOSlot reserves one concurrent IO slot.
func (c *Controller) AcquireIOSlot(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.ioSem.Acquire(ctx, 1)
}

// TryAcquireIOSlot reserves an IO slot without blocking.
func (c *Controller) TryAcquireIOSlot() bool {
	if c == nil {
		return true
	}
	return c.ioSem.TryAcquire(1)
}

// ReleaseIOSlot releases a slot obtained by AcquireIOSlot.
func (c *Controller) ReleaseIOSlot() {
	if c == nil {
		return
	}
	c.ioSem.Release(1)
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
// Requests larger than one second of budget are split.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	for bytes > 0 {
		n := min(bytes, c.ioBurst)
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}
