// internal/service/inventory/domain/product.go
package domain

import "time"

// Product 是库存的权威来源，由持久化存储拥有；缓存只是它的镜像
type Product struct {
	ID                int64
	Name              string
	Price             int64
	Stock             int64
	PurchaseStartTime time.Time
	UpdatedAt         time.Time
}

// PurchaseOpen 判断在 now 时刻是否已开放购买
func (p *Product) PurchaseOpen(now time.Time) bool {
	return !now.Before(p.PurchaseStartTime)
}
