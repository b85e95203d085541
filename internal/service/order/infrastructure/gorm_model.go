// internal/service/order/infrastructure/gorm_model.go
package infrastructure

import "time"

// Models 是订单服务需要迁移的表
var Models = []any{&OrderModel{}, &OrderLineItemModel{}}

// OrderModel 对应 orders 表
type OrderModel struct {
	ID            string `gorm:"primaryKey;size:36"`
	MemberID      int64  `gorm:"not null;index"`
	TotalPrice    int64  `gorm:"not null"`
	TotalQuantity int    `gorm:"not null"`
	Status        string `gorm:"size:32;not null;index:idx_orders_status_updated,priority:1"`
	CreatedAt     time.Time
	UpdatedAt     time.Time            `gorm:"index:idx_orders_status_updated,priority:2"`
	LineItems     []OrderLineItemModel `gorm:"foreignKey:OrderID"`
}

func (OrderModel) TableName() string {
	return "orders"
}

// OrderLineItemModel 对应 order_line_item 表
type OrderLineItemModel struct {
	ID        uint   `gorm:"primaryKey"`
	OrderID   string `gorm:"size:36;not null;index"`
	ProductID int64  `gorm:"not null"`
	Quantity  int    `gorm:"not null"`
	UnitPrice int64  `gorm:"not null"`
}

func (OrderLineItemModel) TableName() string {
	return "order_line_item"
}
