package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still holds the caller's token,
// so an expired holder cannot release a lock taken over by someone else.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// BuildLock implements ports.BuildLock using Redis SET NX PX.
type BuildLock struct {
	client *goredis.Client
	prefix string
}

// NewBuildLock creates a new Redis-backed build lock.
func NewBuildLock(client *goredis.Client) *BuildLock {
	return &BuildLock{
		client: client,
		prefix: "lock:",
	}
}

// Acquire takes the named lock for ttl. Returns ok=false if it is held.
func (l *BuildLock) Acquire(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	result, err := l.client.SetArgs(ctx, l.prefix+name, token, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis lock acquire: %w", err)
	}
	if result != "OK" {
		return "", false, nil
	}
	return token, true, nil
}

// Release frees the named lock if token still owns it.
func (l *BuildLock) Release(ctx context.Context, name string, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.prefix + name}, token).Err(); err != nil {
		return fmt.Errorf("redis lock release: %w", err)
	}
	return nil
}
