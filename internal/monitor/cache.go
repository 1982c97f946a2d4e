package monitor

import (
	"context"
	"fmt"

	"github.com/i474232898/hens-workflow/internal/common"
	"github.com/i474232898/hens-workflow/internal/sizeprobe"
)

// DefaultCacheExpectedBytes is the size of a fully populated workflow cache.
const DefaultCacheExpectedBytes int64 = 9642388063

// CacheWaiter waits for the background cache fill to finish.
type CacheWaiter struct {
	monitor  *Monitor
	dir      string
	expected int64
	opts     Options
}

// NewCacheWaiter watches dir until it holds expected bytes. A non-positive
// expected falls back to DefaultCacheExpectedBytes.
func NewCacheWaiter(m *Monitor, dir string, expected int64, opts Options) *CacheWaiter {
	if expected <= 0 {
		expected = DefaultCacheExpectedBytes
	}
	if opts.Description == "" {
		opts.Description = "Waiting for cache"
	}
	return &CacheWaiter{monitor: m, dir: dir, expected: expected, opts: opts}
}

// Wait blocks until the cache is populated.
func (w *CacheWaiter) Wait(ctx context.Context) (Result, error) {
	if w.dir == "" {
		return Result{}, fmt.Errorf("%w: cache directory is not set", common.ErrConfiguration)
	}
	return w.monitor.Watch(ctx, sizeprobe.Path(w.dir), w.expected, w.opts)
}
