// internal/service/order/domain/port/inventory.go
package port

import "context"

// InventoryService 是订单依赖的库存端口。
// 失败时返回库存领域的错误 (PurchaseTimeInvalid / StockInsufficient / LockUnavailable)。
type InventoryService interface {
	CheckAvailability(ctx context.Context, productID int64, quantity int) (bool, error)
	ReserveStock(ctx context.Context, productID int64, quantity int) error
	RollbackStock(ctx context.Context, productID int64, quantity int) error
}
