// Package usage limits how many reconstructions can be requested.
//
// A Counter counts accepted requests against a ceiling. With a zero window
// the count lives as long as the backing store (process memory or a redis
// key); with a positive window the count returns to zero once the window
// that started at the first accepted request has elapsed. Reset clears the
// count at any time.
package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// DefaultLimit is the number of accepted requests per window.
const DefaultLimit = 50

var ErrLimitReached = errors.New("usage limit reached")

// Quota is a snapshot of a counter.
type Quota struct {
	Used      int64
	Limit     int64
	Remaining int64
	// ResetAt is when the count returns to zero. Zero when the counter has
	// no window or nothing was counted yet.
	ResetAt time.Time
}

func newQuota(used, limit int64, resetAt time.Time) Quota {
	rem := limit - used
	if rem < 0 {
		rem = 0
	}
	return Quota{Used: used, Limit: limit, Remaining: rem, ResetAt: resetAt}
}

// Counter counts requests against a limit.
type Counter interface {
	// Acquire counts one request. It returns ErrLimitReached without
	// counting when the limit is already used up.
	Acquire(ctx context.Context) (Quota, error)
	// Peek returns the current quota without counting.
	Peek(ctx context.Context) (Quota, error)
	// Reset sets the count back to zero.
	Reset(ctx context.Context) error
	Close() error
}

type Backend string

const (
	BackendMemory Backend = "memory"
	BackendRedis  Backend = "redis"
)

type Config struct {
	Backend Backend       `yaml:"backend" env:"BACKEND"`
	Limit   int64         `yaml:"limit" env:"LIMIT"`
	Window  time.Duration `yaml:"window" env:"WINDOW"`
	Redis   RedisConfig   `yaml:"redis" env:"REDIS"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
	Key      string `yaml:"key" env:"KEY"`
}

func DefaultConfig() Config {
	return Config{
		Backend: BackendMemory,
		Limit:   DefaultLimit,
		Redis: RedisConfig{
			Addr: "localhost:6379",
			Key:  "splatview:usage",
		},
	}
}

// New builds the counter selected by cfg.
func New(cfg Config, logger *zap.Logger) (Counter, error) {
	if cfg.Limit <= 0 {
		return nil, fmt.Errorf("usage limit must be positive, got %d", cfg.Limit)
	}
	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemoryCounter(cfg.Limit, cfg.Window, clock.New(), logger), nil
	case BackendRedis:
		return NewRedisCounter(cfg, clock.New(), logger)
	default:
		return nil, fmt.Errorf("unknown usage backend %q", cfg.Backend)
	}
}
