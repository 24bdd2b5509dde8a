package resource

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when a reservation would exceed the memory limit.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// Config holds resource limits.
type Config struct {
	// BuildThreads bounds the workers used inside one Build call.
	// If <= 0, defaults to runtime.GOMAXPROCS(0).
	BuildThreads int

	// SearchThreads bounds the workers used inside one Search call.
	// If <= 0, defaults to runtime.GOMAXPROCS(0).
	SearchThreads int

	// MemoryLimitBytes is the hard limit for reserved memory.
	// If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64

	// IOLimitBytesPerSec is the maximum artifact write throughput.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Pool identifies a worker pool.
type Pool int

const (
	// BuildPool is used by index construction.
	BuildPool Pool = iota
	// SearchPool is used by query execution.
	SearchPool
)

func (p Pool) String() string {
	if p == BuildPool {
		return "build"
	}
	return "search"
}

// Controller manages process-wide resources.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.BuildThreads <= 0 {
		cfg.BuildThreads = runtime.GOMAXPROCS(0)
	}
	if cfg.SearchThreads <= 0 {
		cfg.SearchThreads = runtime.GOMAXPROCS(0)
	}

	c := &Controller{cfg: cfg}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// Config returns the effective configuration.
func (c *Controller) Config() Config {
	if c == nil {
		return Config{BuildThreads: 1, SearchThreads: 1}
	}
	return c.cfg
}

// Threads returns the size of the given pool.
func (c *Controller) Threads(p Pool) int {
	if c == nil {
		return 1
	}
	if p == BuildPool {
		return c.cfg.BuildThreads
	}
	return c.cfg.SearchThreads
}

// ParallelFor runs fn(i) for i in [0, n) on at most Threads(p) goroutines.
// The first error cancels the remaining work and is returned.
func (c *Controller) ParallelFor(ctx context.Context, p Pool, n int, fn func(ctx context.Context, i int) error) error {
	if n <= 0 {
		return nil
	}

	workers := c.Threads(p)
	if workers <= 1 || n == 1 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return fn(gctx, i)
		})
	}
	return g.Wait()
}

// ParallelChunks splits [0, n) into contiguous chunks, one per worker, and runs
// fn(lo, hi) for each. Useful when per-item goroutine overhead dominates.
func (c *Controller) ParallelChunks(ctx context.Context, p Pool, n int, fn func(ctx context.Context, lo, hi int) error) error {
	if n <= 0 {
		return nil
	}
	workers := min(c.Threads(p), n)
	chunk := (n + workers - 1) / workers
	return c.ParallelFor(ctx, p, workers, func(ctx context.Context, w int) error {
		lo := w * chunk
		hi := min(lo+chunk, n)
		if lo >= hi {
			return nil
		}
		return fn(ctx, lo, hi)
	})
}

// AcquireMemory attempts to reserve memory.
// Returns ErrMemoryLimitExceeded if limit would be exceeded.
// Non-blocking - callers control retry/backoff policy.
func (c *Controller) AcquireMemory(bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if !c.memSem.TryAcquire(bytes) {
			return ErrMemoryLimitExceeded
		}
	}

	c.memUsed.Add(bytes)
	return nil
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

// MemoryLimit returns the configured memory limit in bytes (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
// Requests larger than the bucket are split into bucket-sized waits.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	burst := c.ioLimiter.Burst()
	for bytes > 0 {
		n := min(bytes, burst)
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}
