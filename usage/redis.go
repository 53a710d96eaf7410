package usage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// acquireScript increments KEYS[1] unless it already reached ARGV[1].
// ARGV[2] is the window in milliseconds, set as TTL on the first count.
// Returns {accepted, used, pttl}.
var acquireScript = redis.NewScript(`
local used = tonumber(redis.call('GET', KEYS[1]) or '0')
local limit = tonumber(ARGV[1])
if used >= limit then
	return {0, used, redis.call('PTTL', KEYS[1])}
end
used = redis.call('INCR', KEYS[1])
local window = tonumber(ARGV[2])
if window > 0 and used == 1 then
	redis.call('PEXPIRE', KEYS[1], window)
end
return {1, used, redis.call('PTTL', KEYS[1])}
`)

// RedisCounter keeps the count in a redis key so it is shared by every
// server instance and survives restarts.
type RedisCounter struct {
	client *redis.Client
	key    string
	limit  int64
	window time.Duration
	clock  clock.Clock
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
}

func NewRedisCounter(cfg Config, clk clock.Clock, logger *zap.Logger) (*RedisCounter, error) {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	key := cfg.Redis.Key
	if key == "" {
		key = DefaultConfig().Redis.Key
	}
	c := &RedisCounter{
		client: client,
		key:    key,
		limit:  cfg.Limit,
		window: cfg.Window,
		clock:  clk,
		logger: logger.With(zap.String("component", "usage"), zap.String("backend", "redis")),
	}
	c.logger.Info("usage counter initialized",
		zap.String("addr", cfg.Redis.Addr),
		zap.String("key", key),
		zap.Int64("limit", cfg.Limit),
		zap.Duration("window", cfg.Window),
	)
	return c, nil
}

var errClosed = errors.New("usage counter is closed")

func (c *RedisCounter) resetAt(pttl int64) time.Time {
	if pttl <= 0 {
		return time.Time{}
	}
	return c.clock.Now().Add(time.Duration(pttl) * time.Millisecond)
}

func (c *RedisCounter) Acquire(ctx context.Context) (Quota, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return Quota{}, errClosed
	}

	res, err := acquireScript.Run(ctx, c.client, []string{c.key}, c.limit, c.window.Milliseconds()).Int64Slice()
	if err != nil {
		c.logger.Warn("failed to acquire usage", zap.Error(err))
		return Quota{}, fmt.Errorf("acquire usage: %w", err)
	}
	if len(res) != 3 {
		return Quota{}, fmt.Errorf("acquire usage: unexpected reply %v", res)
	}
	q := newQuota(res[1], c.limit, c.resetAt(res[2]))
	if res[0] == 0 {
		return q, ErrLimitReached
	}
	return q, nil
}

func (c *RedisCounter) Peek(ctx context.Context) (Quota, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return Quota{}, errClosed
	}

	var get *redis.StringCmd
	var pttl *redis.DurationCmd
	_, err := c.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		get = p.Get(ctx, c.key)
		pttl = p.PTTL(ctx, c.key)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return Quota{}, fmt.Errorf("peek usage: %w", err)
	}
	used, err := get.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Quota{}, fmt.Errorf("peek usage: %w", err)
	}
	return newQuota(used, c.limit, c.resetAt(pttl.Val().Milliseconds())), nil
}

func (c *RedisCounter) Reset(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errClosed
	}
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("reset usage: %w", err)
	}
	c.logger.Info("usage counter reset")
	return nil
}

func (c *RedisCounter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.client.Close()
}
