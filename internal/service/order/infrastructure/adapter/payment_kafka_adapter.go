// internal/service/order/infrastructure/adapter/payment_kafka_adapter.go
package adapter

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"stockflow/internal/pkg/event"
	"stockflow/internal/service/order/domain"
)

// Publisher 是 *mq.Producer 的发布能力
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any, headers ...kafka.Header) error
}

// PaymentKafkaAdapter 实现了 port.PaymentTrigger 的事件驱动版本：
// 发布 payment-request 后立即返回，结果由 payment-response 消费者回调。
type PaymentKafkaAdapter struct {
	publisher Publisher
}

func NewPaymentKafkaAdapter(publisher Publisher) *PaymentKafkaAdapter {
	return &PaymentKafkaAdapter{publisher: publisher}
}

func (a *PaymentKafkaAdapter) Trigger(ctx context.Context, order *domain.Order) (*domain.PaymentResult, error) {
	evt := event.PaymentRequested{
		EventID:    uuid.NewString(),
		Order:      toEventOrder(order),
		LineItems:  toEventLineItems(order.LineItems),
		OccurredAt: time.Now().UTC(),
	}
	// 以订单 ID 为 key，同一订单的消息落在同一分区
	if err := a.publisher.Publish(ctx, event.TopicPaymentRequest, order.ID, evt); err != nil {
		return nil, err
	}
	return nil, nil
}
