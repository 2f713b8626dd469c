package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker guards a job against a concurrent run in another process.
// Acquire returns a release func, or acquired=false when the lock is held.
type Locker interface {
	Acquire(ctx context.Context, job string) (release func(context.Context) error, acquired bool, err error)
}

// lockKeyPrefix is prepended to the job name in Redis
const lockKeyPrefix = "jobs:lock:"

// releaseScript deletes the key only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a SET NX PX lock shared by every worker process
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisLocker creates a RedisLocker. The ttl bounds how long a crashed
// holder can block a job.
func NewRedisLocker(client redis.UniversalClient, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl}
}

// Acquire tries to take the lock for job
func (l *RedisLocker) Acquire(ctx context.Context, job string) (func(context.Context) error, bool, error) {
	token := uuid.NewString()
	key := lockKeyPrefix + job
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to release lock %s: %w", key, err)
		}
		return nil
	}
	return release, true, nil
}
