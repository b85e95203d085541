// internal/pkg/event/event.go
// Package event 定义服务之间通过 Kafka 交换的消息契约。
package event

import "time"

const (
	TopicPaymentRequest  = "payment-request"
	TopicPaymentResponse = "payment-response"
	TopicShipping        = "shipping"
)

// 支付结果，与 payment 服务的状态取值一致
const (
	PaymentStatusCompleted = "COMPLETED"
	PaymentStatusFailed    = "FAILED"
)

// Order 是事件中携带的订单快照
type Order struct {
	ID            string `json:"id"`
	MemberID      int64  `json:"memberId"`
	TotalPrice    int64  `json:"totalPrice"`
	TotalQuantity int    `json:"totalQuantity"`
	Status        string `json:"status"`
}

type LineItem struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
	UnitPrice int64 `json:"unitPrice"`
}

// PaymentRequested 由订单服务发布，支付服务消费
type PaymentRequested struct {
	EventID    string     `json:"eventId"`
	Order      Order      `json:"order"`
	LineItems  []LineItem `json:"lineItems"`
	OccurredAt time.Time  `json:"occurredAt"`
}

// PaymentResponded 由支付服务发布，订单服务消费
type PaymentResponded struct {
	EventID       string     `json:"eventId"`
	Order         Order      `json:"order"`
	LineItems     []LineItem `json:"lineItems"`
	PaymentID     string     `json:"paymentId"`
	PaymentStatus string     `json:"paymentStatus"`
	Reason        string     `json:"reason,omitempty"`
	OccurredAt    time.Time  `json:"occurredAt"`
}

// ShippingRequested 记录订单的收货信息，由配送服务持久化
type ShippingRequested struct {
	EventID       string    `json:"eventId"`
	Address       string    `json:"address"`
	AddressDetail string    `json:"addressDetail"`
	Phone         string    `json:"phone"`
	Order         Order     `json:"order"`
	OccurredAt    time.Time `json:"occurredAt"`
}
