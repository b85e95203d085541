// internal/service/payment/infrastructure/gorm_model.go
package infrastructure

import "time"

// PaymentModel 对应 payment 表，order_id 唯一保证一笔订单只有一笔支付
type PaymentModel struct {
	ID        string `gorm:"primaryKey;size:36"`
	OrderID   string `gorm:"size:36;not null;uniqueIndex"`
	MemberID  int64  `gorm:"not null"`
	Amount    int64  `gorm:"not null"`
	Status    string `gorm:"size:16;not null"`
	Reason    string `gorm:"size:255"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (PaymentModel) TableName() string {
	return "payment"
}
