package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultLockPrefix = "megabin:dailyroute:"

// RunLock makes sure only one replica performs a given run.
type RunLock interface {
	// TryAcquire takes the lock for key. ok is false when another holder has it.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	// Release drops the lock if token still owns it.
	Release(ctx context.Context, key, token string) error
}

// releaseScript deletes the key only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRunLock coordinates runs across replicas using SET NX EX.
// A TTL is attached to every lock so a crashed holder cannot block later days.
type RedisRunLock struct {
	client    redis.Cmdable
	keyPrefix string
}

// NewRedisRunLock constructs the lock. An empty prefix uses the default.
func NewRedisRunLock(client redis.Cmdable, prefix string) *RedisRunLock {
	if prefix == "" {
		prefix = defaultLockPrefix
	}
	return &RedisRunLock{client: client, keyPrefix: prefix}
}

// TryAcquire attempts to take the lock for key.
func (l *RedisRunLock) TryAcquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.keyPrefix+key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release removes the lock if it is still held with token.
func (l *RedisRunLock) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.keyPrefix + key}, token).Err(); err != nil {
		return fmt.Errorf("redis release: %w", err)
	}
	return nil
}

// LocalRunLock is a RunLock for single-replica deployments.
type LocalRunLock struct{}

// TryAcquire always succeeds.
func (LocalRunLock) TryAcquire(context.Context, string, time.Duration) (string, bool, error) {
	return "local", true, nil
}

// Release is a no-op.
func (LocalRunLock) Release(context.Context, string, string) error { return nil }

// NewRedisClient connects to the Redis server at url.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
