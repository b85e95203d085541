// internal/service/payment/interfaces/payment_request_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"stockflow/internal/pkg/event"
	"stockflow/internal/pkg/logger"
	"stockflow/internal/service/payment/domain"
)

// PaymentProcessor 是 application.Processor 在这里用到的能力
type PaymentProcessor interface {
	ProcessPayment(ctx context.Context, req domain.PaymentRequest) (*domain.Payment, error)
}

// Publisher 发布支付结果，*mq.Producer 实现了它
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any, headers ...kafka.Header) error
}

// PaymentRequestHandler 消费 payment-request，处理支付并发布 payment-response。
// 重复投递时处理器返回上一次的结果，响应会被再次发布，订单服务负责幂等。
type PaymentRequestHandler struct {
	processor PaymentProcessor
	publisher Publisher
}

func NewPaymentRequestHandler(processor PaymentProcessor, publisher Publisher) *PaymentRequestHandler {
	return &PaymentRequestHandler{processor: processor, publisher: publisher}
}

func (h *PaymentRequestHandler) Handle(ctx context.Context, msg kafka.Message) error {
	var req event.PaymentRequested
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return errors.Wrap(err, "unmarshal payment request")
	}
	log := logger.Ctx(ctx).With().Str("order_id", req.Order.ID).Str("event_id", req.EventID).Logger()
	log.Info().Msg("payment request received")

	payment, err := h.processor.ProcessPayment(ctx, ToPaymentRequest(req))
	if err != nil {
		return err
	}

	resp := event.PaymentResponded{
		EventID:       uuid.NewString(),
		Order:         req.Order,
		LineItems:     req.LineItems,
		PaymentID:     payment.ID,
		PaymentStatus: string(payment.Status),
		Reason:        payment.Reason,
		OccurredAt:    time.Now().UTC(),
	}
	if err := h.publisher.Publish(ctx, event.TopicPaymentResponse, req.Order.ID, resp); err != nil {
		return errors.Wrapf(err, "publish payment response for order %s", req.Order.ID)
	}
	log.Info().Str("payment_id", payment.ID).Str("status", string(payment.Status)).Msg("payment response published")
	return nil
}

// ToPaymentRequest 把事件里的订单快照转换成领域请求
func ToPaymentRequest(evt event.PaymentRequested) domain.PaymentRequest {
	req := domain.PaymentRequest{
		OrderID:       evt.Order.ID,
		MemberID:      evt.Order.MemberID,
		TotalPrice:    evt.Order.TotalPrice,
		TotalQuantity: evt.Order.TotalQuantity,
		LineItems:     make([]domain.LineItem, 0, len(evt.LineItems)),
	}
	for _, li := range evt.LineItems {
		req.LineItems = append(req.LineItems, domain.LineItem{ProductID: li.ProductID, Quantity: li.Quantity, UnitPrice: li.UnitPrice})
	}
	return req
}
