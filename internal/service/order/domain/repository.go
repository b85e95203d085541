// internal/service/order/domain/repository.go
package domain

import (
	"context"
	"time"
)

// OrderRepository 定义了订单聚合的持久化接口。
// 它位于领域层，但由基础设施层实现。
type OrderRepository interface {
	// Create 在同一个事务里写入订单和订单行，失败时不留下任何数据
	Create(ctx context.Context, order *Order) error

	// FindByID 返回订单及其订单行，不存在时返回 ErrOrderNotFound
	FindByID(ctx context.Context, id string) (*Order, error)

	// UpdateStatus 仅当当前状态等于 from 时更新，否则返回 ErrStaleStatus。
	// 并发的重复处理靠它保证只有一方生效。
	UpdateStatus(ctx context.Context, id string, from, to Status, at time.Time) error

	// ListStale 按 ID 升序分页，返回状态为 status 且 updated_at 早于 before 的订单
	ListStale(ctx context.Context, status Status, before time.Time, afterID string, limit int) ([]*Order, error)
}
