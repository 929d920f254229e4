package lock

import (
	"context"
	"time"

	"recoveryd/internal/domain"

	"github.com/redis/go-redis/v9"
)

// lockKey is the workspace-wide constant every exclusive operation
// contends on; it is deliberately not parameterized per module.
const lockKey = "recoveryd:workspace:lock"

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLock builds a lock over SET NX with a TTL guarding against
// orphaned holders.
func NewRedisLock(client *redis.Client, ttl time.Duration) domain.WorkspaceLock {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &redisLock{client: client, ttl: ttl}
}

func (l *redisLock) Acquire(ctx context.Context, holder string) error {
	ok, err := l.client.SetNX(ctx, lockKey, holder, l.ttl).Result()
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	current, err := l.client.Get(ctx, lockKey).Result()
	if err == nil && current == holder {
		// refresh our own TTL instead of failing
		return l.client.Set(ctx, lockKey, holder, l.ttl).Err()
	}
	return domain.ErrPhaseInProgress
}

func (l *redisLock) Release(ctx context.Context, holder string) error {
	return releaseScript.Run(ctx, l.client, []string{lockKey}, holder).Err()
}
