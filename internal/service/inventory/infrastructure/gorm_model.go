package infrastructure

import "time"

// ProductModel 对应数据库中的 product 表
type ProductModel struct {
	ID                int64  `gorm:"primaryKey;autoIncrement:false"`
	Name              string `gorm:"size:255"`
	Price             int64
	Stock             int64     `gorm:"not null;check:chk_product_stock,stock >= 0"`
	PurchaseStartTime time.Time `gorm:"type:datetime(3)"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName 指定 GORM 应该使用的表名
func (ProductModel) TableName() string {
	return "product"
}
