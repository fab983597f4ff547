// Package redis mirrors checkpoint positions into Redis so dashboards and
// sibling services can read sync progress without touching Postgres.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const checkpointsKey = "sync:checkpoints"

// Client wraps Redis operations for the status cache.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// NewClient creates a new Redis client and verifies connectivity.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// SetCheckpoint publishes the latest committed block for a source.
func (c *Client) SetCheckpoint(ctx context.Context, sourceKey string, blockNumber uint64) error {
	if err := c.rdb.HSet(ctx, checkpointsKey, sourceKey, blockNumber).Err(); err != nil {
		return fmt.Errorf("hset failed: %w", err)
	}
	return nil
}

// GetCheckpoints reads the published positions for all sources.
func (c *Client) GetCheckpoints(ctx context.Context) (map[string]uint64, error) {
	raw, err := c.rdb.HGetAll(ctx, checkpointsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall failed: %w", err)
	}

	out := make(map[string]uint64, len(raw))
	for source, v := range raw {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid checkpoint for %s: %w", source, err)
		}
		out[source] = n
	}
	return out, nil
}
