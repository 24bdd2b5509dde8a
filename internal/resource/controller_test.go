package resource

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Memory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	require.NoError(t, c.AcquireMemory(50))
	assert.Equal(t, int64(50), c.MemoryUsage())

	require.NoError(t, c.AcquireMemory(40))
	assert.Equal(t, int64(90), c.MemoryUsage())

	err := c.AcquireMemory(20)
	assert.ErrorIs(t, err, ErrMemoryLimitExceeded)
	assert.Equal(t, int64(90), c.MemoryUsage())

	c.ReleaseMemory(50)
	assert.Equal(t, int64(40), c.MemoryUsage())

	require.NoError(t, c.AcquireMemory(20))
	assert.Equal(t, int64(60), c.MemoryUsage())
}

func TestController_UnlimitedMemory(t *testing.T) {
	c := NewController(Config{})

	require.NoError(t, c.AcquireMemory(1000))
	assert.Equal(t, int64(1000), c.MemoryUsage())

	c.ReleaseMemory(500)
	assert.Equal(t, int64(500), c.MemoryUsage())
	assert.Zero(t, c.MemoryLimit())
}

func TestController_NilIsUnlimited(t *testing.T) {
	var c *Controller

	require.NoError(t, c.AcquireMemory(1<<40))
	c.ReleaseMemory(1 << 40)
	require.NoError(t, c.AcquireIO(context.Background(), 1<<20))
	assert.Equal(t, 1, c.Threads(BuildPool))
	assert.Equal(t, 1, c.Threads(SearchPool))
}

func TestController_DefaultThreads(t *testing.T) {
	c := NewController(Config{})
	assert.Positive(t, c.Threads(BuildPool))
	assert.Positive(t, c.Threads(SearchPool))

	c = NewController(Config{BuildThreads: 3, SearchThreads: 5})
	assert.Equal(t, 3, c.Threads(BuildPool))
	assert.Equal(t, 5, c.Threads(SearchPool))
}

func TestController_ParallelForBoundsWorkers(t *testing.T) {
	c := NewController(Config{SearchThreads: 2})

	var (
		active  atomic.Int32
		peak    atomic.Int32
		visited sync.Map
	)
	err := c.ParallelFor(context.Background(), SearchPool, 20, func(_ context.Context, i int) error {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		visited.Store(i, true)
		active.Add(-1)
		return nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))

	count := 0
	visited.Range(func(_, _ any) bool {
		count++
		return true
	})
	assert.Equal(t, 20, count)
}

func TestController_ParallelForPropagatesError(t *testing.T) {
	c := NewController(Config{BuildThreads: 4})
	boom := errors.New("boom")

	err := c.ParallelFor(context.Background(), BuildPool, 100, func(_ context.Context, i int) error {
		if i == 7 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestController_ParallelChunksCoversRange(t *testing.T) {
	c := NewController(Config{BuildThreads: 3})

	hits := make([]int32, 10)
	err := c.ParallelChunks(context.Background(), BuildPool, len(hits), func(_ context.Context, lo, hi int) error {
		for i := lo; i < hi; i++ {
			atomic.AddInt32(&hits[i], 1)
		}
		return nil
	})
	require.NoError(t, err)
	for i, h := range hits {
		assert.Equal(t, int32(1), h, "index %d", i)
	}
}

func TestController_IO(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})
	require.NoError(t, c.AcquireIO(context.Background(), 1024))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, c.AcquireIO(ctx, 4<<20))
}
