package usage

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// MemoryCounter keeps the count in process memory.
type MemoryCounter struct {
	limit  int64
	window time.Duration
	clock  clock.Clock
	logger *zap.Logger

	mu    sync.Mutex
	used  int64
	start time.Time
}

func NewMemoryCounter(limit int64, window time.Duration, clk clock.Clock, logger *zap.Logger) *MemoryCounter {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryCounter{
		limit:  limit,
		window: window,
		clock:  clk,
		logger: logger.With(zap.String("component", "usage"), zap.String("backend", "memory")),
	}
}

// expire drops the count when the window has elapsed. mu must be held.
func (c *MemoryCounter) expire(now time.Time) {
	if c.window <= 0 || c.start.IsZero() {
		return
	}
	if !now.Before(c.start.Add(c.window)) {
		c.logger.Debug("usage window elapsed", zap.Int64("used", c.used))
		c.used = 0
		c.start = time.Time{}
	}
}

func (c *MemoryCounter) quota() Quota {
	var resetAt time.Time
	if c.window > 0 && !c.start.IsZero() {
		resetAt = c.start.Add(c.window)
	}
	return newQuota(c.used, c.limit, resetAt)
}

func (c *MemoryCounter) Acquire(ctx context.Context) (Quota, error) {
	if err := ctx.Err(); err != nil {
		return Quota{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	c.expire(now)
	if c.used >= c.limit {
		return c.quota(), ErrLimitReached
	}
	if c.used == 0 {
		c.start = now
	}
	c.used++
	return c.quota(), nil
}

func (c *MemoryCounter) Peek(ctx context.Context) (Quota, error) {
	if err := ctx.Err(); err != nil {
		return Quota{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.expire(c.clock.Now())
	return c.quota(), nil
}

func (c *MemoryCounter) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.used = 0
	c.start = time.Time{}
	c.logger.Info("usage counter reset")
	return nil
}

func (c *MemoryCounter) Close() error {
	return nil
}
