// internal/service/order/application/saga/retry.go
package saga

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const maxBackoff = time.Second

// Retry 执行 fn，返回 retryable 错误时按指数退避重试，其他错误立即返回。
// ctx 结束时返回 ctx 的错误和最后一次尝试的错误。
func Retry(ctx context.Context, initial time.Duration, retryable func(error) bool, fn func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = maxBackoff

	var last error
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		last = fn(ctx)
		if last != nil && !retryable(last) {
			return struct{}{}, backoff.Permanent(last)
		}
		return struct{}{}, last
	}, backoff.WithBackOff(b))
	if err != nil && last != nil && !errors.Is(err, last) {
		return errors.Join(err, last)
	}
	return err
}
