// internal/service/order/infrastructure/adapter/payment_sync_adapter.go
package adapter

import (
	"context"

	"stockflow/internal/service/order/domain"
	paydomain "stockflow/internal/service/payment/domain"
)

// PaymentProcessor 是支付服务的处理器，同步模式下在进程内调用
type PaymentProcessor interface {
	ProcessPayment(ctx context.Context, req paydomain.PaymentRequest) (*paydomain.Payment, error)
}

// PaymentSyncAdapter 实现了 port.PaymentTrigger 的同步版本：调用并等待结果
type PaymentSyncAdapter struct {
	processor PaymentProcessor
}

func NewPaymentSyncAdapter(processor PaymentProcessor) *PaymentSyncAdapter {
	return &PaymentSyncAdapter{processor: processor}
}

func (a *PaymentSyncAdapter) Trigger(ctx context.Context, order *domain.Order) (*domain.PaymentResult, error) {
	req := paydomain.PaymentRequest{
		OrderID:       order.ID,
		MemberID:      order.MemberID,
		TotalPrice:    order.TotalPrice,
		TotalQuantity: order.TotalQuantity,
		LineItems:     make([]paydomain.LineItem, 0, len(order.LineItems)),
	}
	for _, li := range order.LineItems {
		req.LineItems = append(req.LineItems, paydomain.LineItem{ProductID: li.ProductID, Quantity: li.Quantity, UnitPrice: li.UnitPrice})
	}

	payment, err := a.processor.ProcessPayment(ctx, req)
	if err != nil {
		return nil, err
	}
	return &domain.PaymentResult{
		OrderID:   order.ID,
		PaymentID: payment.ID,
		Succeeded: payment.Status == paydomain.StatusCompleted,
		Reason:    payment.Reason,
	}, nil
}
