// Package redis connects the shared go-redis client used by the task queue,
// the rate limiter and the outcome channel.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Options configures NewClient.
type Options struct {
	Addr     string
	Password string
	DB       int
	// BlockingConsumers is how many goroutines sit in BLPOP at once. Each holds a
	// connection for the whole poll, so the pool is grown to leave room for everyone else.
	BlockingConsumers int
	// PollTimeout is the longest BLPOP wait; reads must be allowed to outlast it.
	PollTimeout time.Duration
}

// Client wraps go-redis client with optional logger.
type Client struct {
	*redis.Client
	logger *zap.Logger
}

// NewClient creates a Redis client and verifies connectivity.
func NewClient(ctx context.Context, opts Options, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ro := &redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
	if opts.BlockingConsumers > 0 {
		ro.PoolSize = opts.BlockingConsumers + 10
	}
	if opts.PollTimeout > 0 {
		ro.ReadTimeout = opts.PollTimeout + 3*time.Second
	}
	rdb := redis.NewClient(ro)

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info("Redis client connected", zap.String("addr", opts.Addr), zap.Int("pool_size", ro.PoolSize))
	return &Client{Client: rdb, logger: logger}, nil
}
