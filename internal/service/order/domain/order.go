// internal/service/order/domain/order.go
package domain

import (
	"fmt"
	"time"
)

// LineItem 是订单行，随订单一起创建，之后不再单独修改
type LineItem struct {
	ProductID int64
	Quantity  int
	UnitPrice int64
}

func (li LineItem) Subtotal() int64 {
	return int64(li.Quantity) * li.UnitPrice
}

// ShippingInfo 是下单时填写的收货信息
type ShippingInfo struct {
	Address       string
	AddressDetail string
	Phone         string
}

// Order 是订单聚合的根实体。只会流转，不会被删除。
type Order struct {
	ID            string
	MemberID      int64
	TotalPrice    int64
	TotalQuantity int
	Status        Status
	LineItems     []LineItem
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewOrder 创建一个待支付订单，合计金额和数量由订单行汇总得出
func NewOrder(id string, memberID int64, items []LineItem, now time.Time) (*Order, error) {
	if id == "" || memberID <= 0 || len(items) == 0 {
		return nil, fmt.Errorf("%w: id, member and line items are required", ErrInvalidOrder)
	}
	o := &Order{
		ID:        id,
		MemberID:  memberID,
		Status:    StatusPaymentPending,
		LineItems: make([]LineItem, 0, len(items)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, item := range items {
		if item.ProductID <= 0 || item.Quantity <= 0 || item.UnitPrice < 0 {
			return nil, fmt.Errorf("%w: bad line item for product %d", ErrInvalidOrder, item.ProductID)
		}
		o.LineItems = append(o.LineItems, item)
		o.TotalQuantity += item.Quantity
		o.TotalPrice += item.Subtotal()
	}
	return o, nil
}

// ApplyPayment 根据支付结果离开 PAYMENT_PENDING
func (o *Order) ApplyPayment(succeeded bool, now time.Time) error {
	to := StatusPaymentFailed
	if succeeded {
		to = StatusPaymentCompleted
	}
	if o.Status != StatusPaymentPending {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, o.Status, to)
	}
	return o.moveTo(to, now)
}

// Cancel 是会员主动取消，只允许在支付完成后、发货前
func (o *Order) Cancel(now time.Time) error {
	if o.Status != StatusPaymentCompleted {
		return fmt.Errorf("%w: status is %s", ErrCancellationNotAllowed, o.Status)
	}
	return o.moveTo(StatusCancelled, now)
}

// Expire 取消迟迟没有支付结果的订单
func (o *Order) Expire(now time.Time) error {
	if o.Status != StatusPaymentPending {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, o.Status, StatusCancelled)
	}
	return o.moveTo(StatusCancelled, now)
}

func (o *Order) RequestReturn(now time.Time) error {
	if o.Status != StatusDelivered {
		return fmt.Errorf("%w: status is %s", ErrReturnNotAllowed, o.Status)
	}
	return o.moveTo(StatusReturnRequested, now)
}

func (o *Order) ApproveReturn(now time.Time) error {
	if o.Status != StatusReturnRequested {
		return fmt.Errorf("%w: status is %s", ErrOrderNotReturnRequested, o.Status)
	}
	return o.moveTo(StatusReturnCompleted, now)
}

// Advance 用于物流推进 (SHIPPING / DELIVERED / ORDER_CONFIRMED)
func (o *Order) Advance(to Status, now time.Time) error {
	return o.moveTo(to, now)
}

func (o *Order) moveTo(to Status, now time.Time) error {
	if !o.Status.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, o.Status, to)
	}
	o.Status = to
	o.UpdatedAt = now
	return nil
}
