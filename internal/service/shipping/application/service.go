// internal/service/shipping/application/service.go
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"stockflow/internal/pkg/logger"
	"stockflow/internal/service/shipping/domain"
)

type RecordCommand struct {
	OrderID       string
	MemberID      int64
	Address       string
	AddressDetail string
	Phone         string
}

type ShippingService struct {
	repo   domain.ShippingRepository
	tracer trace.Tracer
	newID  func() string
	now    func() time.Time
}

func NewShippingService(repo domain.ShippingRepository, tracer trace.Tracer) *ShippingService {
	return &ShippingService{repo: repo, tracer: tracer, newID: uuid.NewString, now: time.Now}
}

// Record 按订单幂等：已经记录过时返回已有记录
func (s *ShippingService) Record(ctx context.Context, cmd RecordCommand) (*domain.Shipping, error) {
	ctx, span := s.tracer.Start(ctx, "shipping.Record")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", cmd.OrderID))

	if cmd.OrderID == "" {
		return nil, fmt.Errorf("%w: order id is required", domain.ErrInvalidShipping)
	}
	shipping := &domain.Shipping{
		ID:            s.newID(),
		OrderID:       cmd.OrderID,
		MemberID:      cmd.MemberID,
		Address:       cmd.Address,
		AddressDetail: cmd.AddressDetail,
		Phone:         cmd.Phone,
		CreatedAt:     s.now(),
	}
	err := s.repo.Create(ctx, shipping)
	if errors.Is(err, domain.ErrDuplicateShipping) {
		logger.Ctx(ctx).Info().Str("order_id", cmd.OrderID).Msg("shipping already recorded")
		return s.repo.FindByOrderID(ctx, cmd.OrderID)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	logger.Ctx(ctx).Info().Str("order_id", cmd.OrderID).Str("shipping_id", shipping.ID).Msg("shipping recorded")
	return shipping, nil
}
