// internal/service/shipping/interfaces/shipping_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"errors"

	pkgerrors "github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"stockflow/internal/pkg/event"
	"stockflow/internal/pkg/logger"
	"stockflow/internal/service/shipping/application"
	"stockflow/internal/service/shipping/domain"
)

type ShippingRecorder interface {
	Record(ctx context.Context, cmd application.RecordCommand) (*domain.Shipping, error)
}

// ShippingEventHandler 消费 shipping topic 并持久化收货信息
type ShippingEventHandler struct {
	service ShippingRecorder
}

func NewShippingEventHandler(service ShippingRecorder) *ShippingEventHandler {
	return &ShippingEventHandler{service: service}
}

func (h *ShippingEventHandler) Handle(ctx context.Context, msg kafka.Message) error {
	var evt event.ShippingRequested
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return pkgerrors.Wrap(err, "unmarshal shipping event")
	}
	_, err := h.service.Record(ctx, application.RecordCommand{
		OrderID:       evt.Order.ID,
		MemberID:      evt.Order.MemberID,
		Address:       evt.Address,
		AddressDetail: evt.AddressDetail,
		Phone:         evt.Phone,
	})
	if errors.Is(err, domain.ErrInvalidShipping) {
		// 重试也不会成功，记录后丢弃
		logger.Ctx(ctx).Error().Err(err).Str("event_id", evt.EventID).Msg("dropping invalid shipping event")
		return nil
	}
	return err
}
