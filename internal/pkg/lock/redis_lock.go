// internal/pkg/lock/redis_lock.go
package lock

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"stockflow/internal/pkg/metrics"
	"stockflow/internal/pkg/redis"
)

const (
	releaseScriptName = "lock_release"
	defaultRetryDelay = 5 * time.Millisecond
)

// 只有 token 匹配时才删除，避免删掉租约过期后别人拿到的锁
var releaseScript = `
if redis.call('get', KEYS[1]) == ARGV[1] then
    return redis.call('del', KEYS[1])
end
return 0
`

// RedisLocker 基于 SET NX PX 的租约锁
type RedisLocker struct {
	client     *redis.Client
	retryDelay time.Duration
}

// NewRedisLocker 创建锁服务并注册释放脚本
func NewRedisLocker(client *redis.Client) (*RedisLocker, error) {
	if err := client.LoadScriptFromContent(releaseScriptName, releaseScript); err != nil {
		return nil, fmt.Errorf("failed to load lock release script: %w", err)
	}
	return &RedisLocker{client: client, retryDelay: defaultRetryDelay}, nil
}

// Acquire 轮询 SET NX 直到成功或 wait 耗尽
func (l *RedisLocker) Acquire(ctx context.Context, key string, wait, lease time.Duration) (Handle, error) {
	start := time.Now()
	token := uuid.NewString()
	deadline := start.Add(wait)

	for {
		ok, err := l.client.GetClient().SetNX(ctx, key, token, lease).Result()
		if err != nil {
			metrics.LockWaitSeconds.WithLabelValues("redis", "error").Observe(time.Since(start).Seconds())
			return nil, errors.Wrapf(err, "acquire lock %s", key)
		}
		if ok {
			metrics.LockWaitSeconds.WithLabelValues("redis", "acquired").Observe(time.Since(start).Seconds())
			return &redisHandle{locker: l, key: key, token: token}, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			metrics.LockWaitSeconds.WithLabelValues("redis", "timeout").Observe(time.Since(start).Seconds())
			return nil, fmt.Errorf("%w: %s", ErrLockUnavailable, key)
		}
		// 加一点抖动，避免大量等待者同时醒来
		delay := l.retryDelay + rand.N(l.retryDelay)
		if delay > remaining {
			delay = remaining
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %s: %v", ErrLockUnavailable, key, ctx.Err())
		case <-timer.C:
		}
	}
}

type redisHandle struct {
	locker *RedisLocker
	key    string
	token  string
}

func (h *redisHandle) Key() string { return h.key }

func (h *redisHandle) Release(ctx context.Context) error {
	res, err := h.locker.client.RunScript(ctx, releaseScriptName, []string{h.key}, h.token)
	if err != nil && !errors.Is(err, goredis.Nil) {
		return errors.Wrapf(err, "release lock %s", h.key)
	}
	if n, _ := res.(int64); n == 0 {
		return fmt.Errorf("%w: %s", ErrLockNotHeld, h.key)
	}
	return nil
}
