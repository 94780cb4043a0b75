// Package cache provides the Dragonfly/Redis client used by the Redis store backend.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps a Redis/Dragonfly client.
type Cache struct {
	Client *redis.Client
}

// Option adjusts client options before connecting.
type Option func(*redis.Options)

// WithTimeouts overrides the dial, read and write timeouts.
func WithTimeouts(dial, rw time.Duration) Option {
	return func(o *redis.Options) {
		o.DialTimeout = dial
		o.ReadTimeout = rw
		o.WriteTimeout = rw
	}
}

// ParseURL validates a Redis connection URL.
func ParseURL(url string) (*redis.Options, error) {
	if url == "" {
		return nil, fmt.Errorf("cache URL is empty")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid cache URL: %w", err)
	}
	return opts, nil
}

// New connects to url and verifies the connection with a ping.
func New(ctx context.Context, url string, opts ...Option) (*Cache, error) {
	redisOpts, err := ParseURL(url)
	if err != nil {
		return nil, err
	}

	redisOpts.DialTimeout = 5 * time.Second
	redisOpts.ReadTimeout = 3 * time.Second
	redisOpts.WriteTimeout = 3 * time.Second
	for _, opt := range opts {
		opt(redisOpts)
	}

	client := redis.NewClient(redisOpts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging cache: %w", err)
	}

	return &Cache{Client: client}, nil
}

// Close shuts down the cache client.
func (c *Cache) Close() error {
	return c.Client.Close()
}
