// internal/pkg/lock/lock.go
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockflow/internal/pkg/logger"
)

const productKeyPrefix = "lock:product:"

var (
	// ErrLockUnavailable 在 waitTime 内没有拿到锁。调用方直接失败，不排队也不重试。
	ErrLockUnavailable = errors.New("lock unavailable")
	// ErrLockNotHeld 释放时发现租约已过期或已被他人持有
	ErrLockNotHeld = errors.New("lock not held")
)

// Locker 是跨实例的互斥锁服务，按资源 key 加锁
type Locker interface {
	// Acquire 最多阻塞 wait；拿到后租约在 lease 之后自动失效，即使持有者没有调用 Release。
	Acquire(ctx context.Context, key string, wait, lease time.Duration) (Handle, error)
}

// Handle 是一次成功加锁的凭证
type Handle interface {
	Key() string
	Release(ctx context.Context) error
}

// Options 是一次受保护调用的等待时间与租约时间
type Options struct {
	WaitTime  time.Duration
	LeaseTime time.Duration
}

// ProductKey 返回商品级别的锁 key，不同商品之间互不竞争
func ProductKey(productID int64) string {
	return fmt.Sprintf("%s%d", productKeyPrefix, productID)
}

// WithLock 在 key 对应的锁内执行 fn，返回 fn 的结果。
// 拿不到锁时返回 ErrLockUnavailable；释放失败只记录日志，不覆盖 fn 的结果。
func WithLock[T any](ctx context.Context, locker Locker, key string, opts Options, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	h, err := locker.Acquire(ctx, key, opts.WaitTime, opts.LeaseTime)
	if err != nil {
		return zero, err
	}
	defer func() {
		// 释放不应受调用方 context 取消的影响
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if relErr := h.Release(releaseCtx); relErr != nil {
			logger.Ctx(ctx).Warn().Err(relErr).Str("lock_key", key).Msg("failed to release lock")
		}
	}()
	return fn(ctx)
}

// Do 是 WithLock 的无返回值版本
func Do(ctx context.Context, locker Locker, key string, opts Options, fn func(ctx context.Context) error) error {
	_, err := WithLock(ctx, locker, key, opts, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
