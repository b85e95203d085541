// internal/service/order/domain/event.go
package domain

// PaymentResult 是支付服务给出的结果，同步返回或通过 payment-response 事件到达
type PaymentResult struct {
	OrderID   string
	PaymentID string
	Succeeded bool
	Reason    string
}
