// internal/service/order/infrastructure/adapter/shipping_adapter.go
package adapter

import (
	"context"
	"time"

	"github.com/google/uuid"

	"stockflow/internal/pkg/event"
	"stockflow/internal/service/order/domain"
	shipapp "stockflow/internal/service/shipping/application"
	shipdomain "stockflow/internal/service/shipping/domain"
)

// ShippingService 是配送服务的记录用例
type ShippingService interface {
	Record(ctx context.Context, cmd shipapp.RecordCommand) (*shipdomain.Shipping, error)
}

// ShippingDirectAdapter 直接写入配送存储
type ShippingDirectAdapter struct {
	service ShippingService
}

func NewShippingDirectAdapter(service ShippingService) *ShippingDirectAdapter {
	return &ShippingDirectAdapter{service: service}
}

func (a *ShippingDirectAdapter) Record(ctx context.Context, order *domain.Order, info domain.ShippingInfo) error {
	_, err := a.service.Record(ctx, shipapp.RecordCommand{
		OrderID:       order.ID,
		MemberID:      order.MemberID,
		Address:       info.Address,
		AddressDetail: info.AddressDetail,
		Phone:         info.Phone,
	})
	return err
}

// ShippingKafkaAdapter 发布 shipping 事件，由配送服务异步持久化
type ShippingKafkaAdapter struct {
	publisher Publisher
}

func NewShippingKafkaAdapter(publisher Publisher) *ShippingKafkaAdapter {
	return &ShippingKafkaAdapter{publisher: publisher}
}

func (a *ShippingKafkaAdapter) Record(ctx context.Context, order *domain.Order, info domain.ShippingInfo) error {
	evt := event.ShippingRequested{
		EventID:       uuid.NewString(),
		Address:       info.Address,
		AddressDetail: info.AddressDetail,
		Phone:         info.Phone,
		Order:         toEventOrder(order),
		OccurredAt:    time.Now().UTC(),
	}
	return a.publisher.Publish(ctx, event.TopicShipping, order.ID, evt)
}
