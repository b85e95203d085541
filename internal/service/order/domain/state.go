// internal/service/order/domain/state.go
package domain

// Status 定义了订单的生命周期状态
type Status string

const (
	StatusPaymentPending   Status = "PAYMENT_PENDING"   // 已预占库存，等待支付结果
	StatusPaymentCompleted Status = "PAYMENT_COMPLETED" // 支付成功
	StatusPaymentFailed    Status = "PAYMENT_FAILED"    // 支付失败，库存已回滚
	StatusShipping         Status = "SHIPPING"
	StatusDelivered        Status = "DELIVERED"
	StatusOrderConfirmed   Status = "ORDER_CONFIRMED"
	StatusCancelled        Status = "CANCELLED"
	StatusReturnRequested  Status = "RETURN_REQUESTED"
	StatusReturnCompleted  Status = "RETURN_COMPLETED"
)

// validNext 只包含前进方向的状态流转
var validNext = map[Status][]Status{
	StatusPaymentPending:   {StatusPaymentCompleted, StatusPaymentFailed, StatusCancelled},
	StatusPaymentCompleted: {StatusShipping, StatusCancelled},
	StatusShipping:         {StatusDelivered},
	StatusDelivered:        {StatusOrderConfirmed, StatusReturnRequested},
	StatusReturnRequested:  {StatusReturnCompleted},
}

// CanTransition 判断 s 能否直接流转到 to
func (s Status) CanTransition(to Status) bool {
	for _, next := range validNext[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal 终态不会再发生任何流转
func (s Status) IsTerminal() bool {
	return len(validNext[s]) == 0
}
