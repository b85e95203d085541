// internal/service/inventory/domain/repository.go
package domain

import (
	"context"
	"time"
)

// ProductRepository 是库存的持久化接口，由基础设施层实现。
type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (*Product, error)

	// AdjustStock 原子地把库存加上 delta；结果为负时拒绝并返回 ErrStockInsufficient。
	AdjustStock(ctx context.Context, id int64, delta int64) error

	// ListAfter 按 ID 升序分页，用于对账
	ListAfter(ctx context.Context, afterID int64, limit int) ([]*Product, error)

	// Save 新增或覆盖一个商品
	Save(ctx context.Context, p *Product) error
}

// StockCache 是库存和开售时间的缓存，没有过期时间，生命周期由对账控制。
// 读不到时返回 ErrCacheMiss。
type StockCache interface {
	GetStock(ctx context.Context, productID int64) (int64, error)
	// SetStockIfAbsent 仅在 key 不存在时写入，返回写入后缓存里实际的值
	SetStockIfAbsent(ctx context.Context, productID int64, stock int64) (int64, error)
	SetStock(ctx context.Context, productID int64, stock int64) error
	// IncrBy 原子增减，key 不存在时返回 ErrCacheMiss 而不是从 0 开始计数
	IncrBy(ctx context.Context, productID int64, delta int64) (int64, error)

	GetPurchaseStart(ctx context.Context, productID int64) (time.Time, error)
	SetPurchaseStartIfAbsent(ctx context.Context, productID int64, start time.Time) (time.Time, error)
	SetPurchaseStart(ctx context.Context, productID int64, start time.Time) error
}
