// internal/service/order/domain/port/shipping.go
package port

import (
	"context"

	"stockflow/internal/service/order/domain"
)

// ShippingRecorder 持久化订单的收货信息，按订单幂等
type ShippingRecorder interface {
	Record(ctx context.Context, order *domain.Order, info domain.ShippingInfo) error
}
