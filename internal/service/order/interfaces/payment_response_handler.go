// internal/service/order/interfaces/payment_response_handler.go
package interfaces

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"stockflow/internal/pkg/event"
	"stockflow/internal/pkg/logger"
	"stockflow/internal/service/order/domain"
)

type PaymentResultHandler interface {
	HandlePaymentResult(ctx context.Context, result domain.PaymentResult) error
}

// PaymentResponseHandler 消费 payment-response，驱动订单状态流转
type PaymentResponseHandler struct {
	service PaymentResultHandler
}

func NewPaymentResponseHandler(service PaymentResultHandler) *PaymentResponseHandler {
	return &PaymentResponseHandler{service: service}
}

func (h *PaymentResponseHandler) Handle(ctx context.Context, msg kafka.Message) error {
	var evt event.PaymentResponded
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return errors.Wrap(err, "unmarshal payment response")
	}

	var succeeded bool
	switch evt.PaymentStatus {
	case event.PaymentStatusCompleted:
		succeeded = true
	case event.PaymentStatusFailed:
	default:
		// 非终态的响应不应该被发布，丢弃
		logger.Ctx(ctx).Warn().Str("order_id", evt.Order.ID).Str("payment_status", evt.PaymentStatus).
			Msg("ignoring payment response with non-terminal status")
		return nil
	}

	return h.service.HandlePaymentResult(ctx, domain.PaymentResult{
		OrderID:   evt.Order.ID,
		PaymentID: evt.PaymentID,
		Succeeded: succeeded,
		Reason:    evt.Reason,
	})
}
