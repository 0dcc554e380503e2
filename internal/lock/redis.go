package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const (
	redisRetryInterval = 25 * time.Millisecond
	releaseTimeout     = 2 * time.Second
)

// RedisLocker holds locks as SET NX keys with a TTL so a crashed holder
// cannot block other replicas forever.
type RedisLocker struct {
	client *redis.Client
	script *redis.Script
	wait   time.Duration
	ttl    time.Duration
	log    *zap.Logger
}

func NewRedisLocker(client *redis.Client, wait, ttl time.Duration, log *zap.Logger) *RedisLocker {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisLocker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
		wait:   wait,
		ttl:    ttl,
		log:    log.Named("lock.redis"),
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (Release, error) {
	if l == nil || l.client == nil {
		return nil, errors.New("lock client not configured")
	}
	if key == "" {
		return nil, errors.New("lock key is empty")
	}
	if l.ttl <= 0 {
		return nil, errors.New("lock ttl must be positive")
	}

	waitCtx := ctx
	if l.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	token := uuid.NewString()
	ticker := time.NewTicker(redisRetryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(waitCtx, key, token, l.ttl).Result()
		if err != nil && waitCtx.Err() == nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			return l.releaser(key, token), nil
		}

		select {
		case <-ticker.C:
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		}
	}
}

func (l *RedisLocker) releaser(key, token string) Release {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			if err := l.script.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
				l.log.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
			}
		})
	}
}
