package redis

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wonny/tradebook/pkg/config"
)

const connectTimeout = 3 * time.Second

// Client is the optional security reference cache connection.
// A disabled client is valid: every cache operation becomes a miss.
// ⭐ SSOT: Redis 연결은 여기서만 관리
type Client struct {
	rdb     *redis.Client
	addr    string
	enabled bool
}

// Options builds the go-redis options for cfg
func Options(cfg config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:        net.JoinHostPort(cfg.Host, cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: connectTimeout,
	}
}

// New connects to Redis when enabled and verifies the connection
func New(cfg *config.Config) (*Client, error) {
	if !cfg.Redis.Enabled {
		return &Client{enabled: false}, nil
	}

	opts := Options(cfg.Redis)
	c := &Client{rdb: redis.NewClient(opts), addr: opts.Addr, enabled: true}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		_ = c.rdb.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

// Enabled returns whether Redis is enabled
func (c *Client) Enabled() bool {
	return c.enabled
}

// Addr is the host:port in use, empty when disabled
func (c *Client) Addr() string {
	return c.addr
}

// Redis returns the underlying redis client for advanced usage
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

// Ping checks the connection. A disabled client has nothing to check.
func (c *Client) Ping(ctx context.Context) error {
	if !c.enabled {
		return nil
	}
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed (%s): %w", c.addr, err)
	}
	return nil
}

// HealthStatus is the cache side of the test-db report
type HealthStatus struct {
	Enabled      bool          `json:"enabled"`
	Healthy      bool          `json:"healthy"`
	Addr         string        `json:"addr,omitempty"`
	ResponseTime time.Duration `json:"response_time"`
	Timestamp    time.Time     `json:"timestamp"`
	Stats        PoolStats     `json:"stats"`
}

// PoolStats mirrors the go-redis pool counters
type PoolStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
}

// HealthCheck pings Redis and reports pool statistics.
// A disabled client reports healthy with Enabled=false.
func (c *Client) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	status := &HealthStatus{
		Enabled:   c.enabled,
		Addr:      c.addr,
		Timestamp: time.Now(),
	}
	if !c.enabled {
		status.Healthy = true
		return status, nil
	}

	start := time.Now()
	if err := c.Ping(ctx); err != nil {
		status.ResponseTime = time.Since(start)
		return status, err
	}
	status.ResponseTime = time.Since(start)
	status.Healthy = true

	if s := c.rdb.PoolStats(); s != nil {
		status.Stats = PoolStats{
			Hits:       s.Hits,
			Misses:     s.Misses,
			Timeouts:   s.Timeouts,
			TotalConns: s.TotalConns,
			IdleConns:  s.IdleConns,
		}
	}
	return status, nil
}
