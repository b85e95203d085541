// internal/service/order/domain/port/payment.go
package port

import (
	"context"

	"stockflow/internal/service/order/domain"
)

// PaymentTrigger 决定支付如何被触发：同步调用并等待结果，或者发布请求后由事件回调。
type PaymentTrigger interface {
	// Trigger 返回 nil 结果表示结果稍后通过 HandlePaymentResult 到达
	Trigger(ctx context.Context, order *domain.Order) (*domain.PaymentResult, error)
}
