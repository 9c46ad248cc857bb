package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// VerifyCache implements ports.VerifyCache using Redis.
type VerifyCache struct {
	client *goredis.Client
	prefix string
}

// NewVerifyCache creates a new Redis-backed verify cache.
func NewVerifyCache(client *goredis.Client) *VerifyCache {
	return &VerifyCache{
		client: client,
		prefix: "verify:",
	}
}

// Get retrieves a cached verify result by "alg:hash" key.
// Returns nil, nil if the key does not exist.
func (c *VerifyCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis verify cache get: %w", err)
	}
	return val, nil
}

// Set stores a verify result with TTL.
func (c *VerifyCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis verify cache set: %w", err)
	}
	return nil
}
