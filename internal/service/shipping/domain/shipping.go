// internal/service/shipping/domain/shipping.go
package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrShippingNotFound  = errors.New("shipping not found")
	ErrDuplicateShipping = errors.New("shipping already recorded for order")
	ErrInvalidShipping   = errors.New("invalid shipping info")
)

// Shipping 记录订单的收货目的地。每个订单只创建一次，支付失败的订单也会保留。
type Shipping struct {
	ID            string
	OrderID       string
	MemberID      int64
	Address       string
	AddressDetail string
	Phone         string
	CreatedAt     time.Time
}

type ShippingRepository interface {
	// Create 同一订单重复写入时返回 ErrDuplicateShipping
	Create(ctx context.Context, s *Shipping) error
	FindByOrderID(ctx context.Context, orderID string) (*Shipping, error)
}
