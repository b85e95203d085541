// internal/service/payment/domain/payment.go
package domain

import (
	"context"
	"errors"
	"time"
)

// Status 支付状态：PENDING -> PROCESSING -> COMPLETED | FAILED
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var (
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrDuplicatePayment  = errors.New("payment already exists for order")
	ErrPaymentInProgress = errors.New("payment for order is being processed")
	ErrStalePayment      = errors.New("payment status changed concurrently")
)

// Payment 与订单一对一，只由支付服务写入
type Payment struct {
	ID        string
	OrderID   string
	MemberID  int64
	Amount    int64
	Status    Status
	Reason    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type LineItem struct {
	ProductID int64
	Quantity  int
	UnitPrice int64
}

// PaymentRequest 是一次支付请求携带的订单快照
type PaymentRequest struct {
	OrderID       string
	MemberID      int64
	TotalPrice    int64
	TotalQuantity int
	LineItems     []LineItem
}

// Decision 是结果决策策略的输出
type Decision struct {
	Approved bool
	Reason   string
}

// OutcomePolicy 决定一笔支付成功还是失败，代替真实的支付网关
type OutcomePolicy interface {
	Decide(ctx context.Context, req PaymentRequest) (Decision, error)
}

// PaymentRepository 定义了支付的持久化接口
type PaymentRepository interface {
	FindByOrderID(ctx context.Context, orderID string) (*Payment, error)
	// Create 同一订单重复创建时返回 ErrDuplicatePayment
	Create(ctx context.Context, p *Payment) error
	// UpdateStatus 只在当前状态仍为 from 时生效，否则返回 ErrStalePayment
	UpdateStatus(ctx context.Context, id string, from, to Status, reason string, at time.Time) error
}
