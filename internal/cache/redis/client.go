// Package redis implements domain cache interfaces using go-redis/v9.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connection defaults applied when ClientConfig leaves them zero.
const (
	defaultDialTimeout = 5 * time.Second
	defaultPoolSize    = 10
)

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	// DialTimeout bounds connection establishment; zero means the package
	// default.
	DialTimeout time.Duration
	TLSEnabled  bool
}

// Client owns the go-redis connection pool shared by the caches, locks, and
// the signal bus in this package.
type Client struct {
	raw *redis.Client
}

// New connects to Redis and verifies connectivity with a ping before handing
// the client out.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = defaultPoolSize
	}

	opts := &redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: cfg.DialTimeout,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	c := &Client{raw: redis.NewClient(opts)}
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Ping checks connectivity; the health probe calls this.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.raw.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.raw.Close()
}

// Underlying returns the raw *redis.Client for the sub-components that issue
// driver calls directly.
func (c *Client) Underlying() *redis.Client {
	return c.raw
}
