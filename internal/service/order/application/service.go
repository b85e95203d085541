// internal/service/order/application/service.go
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"stockflow/internal/pkg/lock"
	"stockflow/internal/pkg/logger"
	"stockflow/internal/pkg/metrics"
	"stockflow/internal/pkg/tracing"
	"stockflow/internal/service/order/application/saga"
	"stockflow/internal/service/order/domain"
	"stockflow/internal/service/order/domain/port"
)

const compensationTimeout = 10 * time.Second

// 回滚遇到锁竞争时的初始退避
var rollbackBackoff = 20 * time.Millisecond

// OrderService 只关注业务流程编排：预占库存、落库、触发支付、应用结果、补偿。
// 同步支付和事件驱动支付共用同一个状态机，区别只在注入的 PaymentTrigger。
type OrderService struct {
	orders    domain.OrderRepository
	inventory port.InventoryService
	payments  port.PaymentTrigger
	shipping  port.ShippingRecorder
	carts     port.CartService
	members   port.MemberDirectory
	tracer    trace.Tracer

	processingTimeout time.Duration
	newID             func() string
	now               func() time.Time
}

type Option func(*OrderService)

func WithCartService(c port.CartService) Option {
	return func(s *OrderService) { s.carts = c }
}

func WithMemberDirectory(m port.MemberDirectory) Option {
	return func(s *OrderService) { s.members = m }
}

// WithProcessingTimeout 限制一次下单流程的总耗时
func WithProcessingTimeout(d time.Duration) Option {
	return func(s *OrderService) { s.processingTimeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *OrderService) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *OrderService) { s.newID = newID }
}

func NewOrderService(orders domain.OrderRepository, inventory port.InventoryService, payments port.PaymentTrigger, shipping port.ShippingRecorder, tracer trace.Tracer, opts ...Option) *OrderService {
	s := &OrderService{
		orders:    orders,
		inventory: inventory,
		payments:  payments,
		shipping:  shipping,
		tracer:    tracer,
		newID:     uuid.NewString,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestOrder 对每个订单行做可售检查，不加锁也不扣减。
// 第一个失败的关卡直接返回，错误标明是哪一个关卡。
func (s *OrderService) RequestOrder(ctx context.Context, items []domain.LineItem) (ok bool, err error) {
	ctx, span := s.tracer.Start(ctx, "app.RequestOrder")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.Int("order.line_items", len(items)))

	if len(items) == 0 {
		return false, fmt.Errorf("%w: no line items", domain.ErrInvalidOrder)
	}
	for _, item := range items {
		if ok, err := s.inventory.CheckAvailability(ctx, item.ProductID, item.Quantity); !ok || err != nil {
			return false, err
		}
	}
	return true, nil
}

// CreateOrder 执行下单 saga。
// 支付失败不是错误：返回的订单状态为 PAYMENT_FAILED，库存已经回滚。
func (s *OrderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (order *domain.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "app.CreateOrder")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(
		attribute.Int64("member.id", cmd.MemberID),
		attribute.Int("order.line_items", len(cmd.LineItems)),
		attribute.Bool("order.from_cart", cmd.FromCart),
	)

	if s.processingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.processingTimeout)
		defer cancel()
	}

	order, err = domain.NewOrder(s.newID(), cmd.MemberID, cmd.LineItems, s.now())
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("order.id", order.ID))
	log := logger.Ctx(ctx).With().Str("order_id", order.ID).Int64("member_id", order.MemberID).Logger()

	if s.members != nil {
		if err := s.members.Exists(ctx, cmd.MemberID); err != nil {
			return nil, err
		}
	}

	// 1. 逐个商品预占库存，每次只持有一把锁
	var compensations saga.Compensations
	for _, item := range order.LineItems {
		if err := s.inventory.ReserveStock(ctx, item.ProductID, item.Quantity); err != nil {
			log.Warn().Err(err).Int64("product_id", item.ProductID).Int("reserved", compensations.Len()).
				Msg("reservation failed, releasing already reserved line items")
			compCtx, cancel := s.compensationContext(ctx)
			if compErr := compensations.Run(compCtx); compErr != nil {
				span.RecordError(compErr, trace.WithAttributes(attribute.Bool("critical.error", true)))
			}
			cancel()
			return nil, err
		}
		compensations.Add(fmt.Sprintf("rollback product %d", item.ProductID), rollbackStep(s.inventory, item))
	}
	span.AddEvent("Stock reserved for all line items.")

	// 2. 订单和订单行在一个事务里落库。
	// 失败时已扣减的缓存库存不回滚，由库存对账修复。
	if err := s.orders.Create(ctx, order); err != nil {
		log.Error().Err(err).Msg("CRITICAL: failed to persist order, reserved stock is left for reconciliation")
		span.RecordError(err, trace.WithAttributes(attribute.Bool("critical.error", true)))
		return nil, err
	}
	metrics.OrderTransitions.WithLabelValues(string(domain.StatusPaymentPending)).Inc()
	log.Info().Int64("total_price", order.TotalPrice).Int("total_quantity", order.TotalQuantity).Msg("order persisted, triggering payment")

	// 3. 触发支付；同步模式下立即得到结果
	result, err := s.payments.Trigger(ctx, order)
	if err != nil {
		log.Error().Err(err).Msg("failed to trigger payment, order stays PAYMENT_PENDING until it expires")
		return nil, fmt.Errorf("trigger payment for order %s: %w", order.ID, err)
	}
	if result != nil {
		if err := s.applyPaymentResult(ctx, order, *result); err != nil {
			return nil, err
		}
	}

	// 4. 无论支付结果如何都记录收货信息
	if err := s.shipping.Record(ctx, order, cmd.Shipping); err != nil {
		log.Error().Err(err).Msg("failed to record shipping info")
		span.RecordError(err)
	}

	// 5. 购物车清理不在事务边界内
	if cmd.FromCart && s.carts != nil {
		if err := s.carts.RemoveItems(ctx, cmd.MemberID, cmd.productIDs()); err != nil {
			log.Warn().Err(err).Msg("failed to remove purchased items from cart")
		}
	}

	log.Info().Str("status", string(order.Status)).Msg("order created")
	return order, nil
}

// HandlePaymentResult 应用异步到达的支付结果。
// 订单已经离开 PAYMENT_PENDING 时直接忽略，重复投递不会产生副作用。
func (s *OrderService) HandlePaymentResult(ctx context.Context, result domain.PaymentResult) (err error) {
	ctx, span := s.tracer.Start(ctx, "app.HandlePaymentResult", trace.WithSpanKind(trace.SpanKindConsumer))
	defer func() { endSpan(span, err) }()
	span.SetAttributes(
		attribute.String("order.id", result.OrderID),
		attribute.String("payment.id", result.PaymentID),
		attribute.Bool("payment.succeeded", result.Succeeded),
	)
	log := logger.Ctx(ctx).With().Str("order_id", result.OrderID).Logger()

	order, err := s.orders.FindByID(ctx, result.OrderID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		log.Warn().Msg("payment result for unknown order, dropping")
		return nil
	}
	if err != nil {
		return err
	}
	switch {
	case order.Status.IsTerminal():
		log.Info().Str("status", string(order.Status)).Msg("order already settled, payment result ignored")
		return nil
	case order.Status != domain.StatusPaymentPending:
		log.Info().Str("status", string(order.Status)).Msg("order already left PAYMENT_PENDING, payment result ignored")
		return nil
	}
	return s.applyPaymentResult(ctx, order, result)
}

// CancelOrder 取消一个已支付的订单并回滚库存
func (s *OrderService) CancelOrder(ctx context.Context, memberID int64, orderID string) (order *domain.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "app.CancelOrder")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("order.id", orderID), attribute.Int64("member.id", memberID))

	order, err = s.findOwned(ctx, memberID, orderID)
	if err != nil {
		return nil, err
	}
	from := order.Status
	if err := order.Cancel(s.now()); err != nil {
		return nil, err
	}
	if err := s.updateStatus(ctx, order, from, domain.ErrCancellationNotAllowed); err != nil {
		return nil, err
	}
	s.rollbackLineItems(ctx, order)
	return order, nil
}

// RequestReturn 申请退货，需要后续 ApproveReturnRequest 才会完成
func (s *OrderService) RequestReturn(ctx context.Context, memberID int64, orderID string) (order *domain.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "app.RequestReturn")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("order.id", orderID), attribute.Int64("member.id", memberID))

	order, err = s.findOwned(ctx, memberID, orderID)
	if err != nil {
		return nil, err
	}
	from := order.Status
	if err := order.RequestReturn(s.now()); err != nil {
		return nil, err
	}
	if err := s.updateStatus(ctx, order, from, domain.ErrReturnNotAllowed); err != nil {
		return nil, err
	}
	return order, nil
}

// ApproveReturnRequest 完成退货并回滚库存
func (s *OrderService) ApproveReturnRequest(ctx context.Context, orderID string) (order *domain.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "app.ApproveReturnRequest")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("order.id", orderID))

	order, err = s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	from := order.Status
	if err := order.ApproveReturn(s.now()); err != nil {
		return nil, err
	}
	if err := s.updateStatus(ctx, order, from, domain.ErrOrderNotReturnRequested); err != nil {
		return nil, err
	}
	s.rollbackLineItems(ctx, order)
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, memberID int64, orderID string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.GetOrder")
	defer span.End()
	return s.findOwned(ctx, memberID, orderID)
}

// applyPaymentResult 只有赢得条件更新的一方才执行回滚，保证每个订单行只回滚一次
func (s *OrderService) applyPaymentResult(ctx context.Context, order *domain.Order, result domain.PaymentResult) error {
	log := logger.Ctx(ctx).With().Str("order_id", order.ID).Logger()

	from := order.Status
	if err := order.ApplyPayment(result.Succeeded, s.now()); err != nil {
		log.Info().Err(err).Msg("payment result no longer applicable")
		return nil
	}
	err := s.orders.UpdateStatus(ctx, order.ID, from, order.Status, order.UpdatedAt)
	if errors.Is(err, domain.ErrStaleStatus) {
		log.Info().Msg("order status changed concurrently, payment result ignored")
		if latest, findErr := s.orders.FindByID(ctx, order.ID); findErr == nil {
			*order = *latest
		}
		return nil
	}
	if err != nil {
		return err
	}
	metrics.OrderTransitions.WithLabelValues(string(order.Status)).Inc()

	if !result.Succeeded {
		log.Warn().Str("payment_id", result.PaymentID).Str("reason", result.Reason).Msg("payment declined, rolling back stock")
		s.rollbackLineItems(ctx, order)
		return nil
	}
	log.Info().Str("payment_id", result.PaymentID).Msg("payment completed")
	return nil
}

// updateStatus 持久化实体上已经完成的流转；并发修改时返回 conflict
func (s *OrderService) updateStatus(ctx context.Context, order *domain.Order, from domain.Status, conflict error) error {
	err := s.orders.UpdateStatus(ctx, order.ID, from, order.Status, order.UpdatedAt)
	if errors.Is(err, domain.ErrStaleStatus) {
		return fmt.Errorf("%w: %v", conflict, err)
	}
	if err != nil {
		return err
	}
	metrics.OrderTransitions.WithLabelValues(string(order.Status)).Inc()
	return nil
}

func (s *OrderService) rollbackLineItems(ctx context.Context, order *domain.Order) {
	compCtx, cancel := s.compensationContext(ctx)
	defer cancel()
	if err := rollbackLineItems(compCtx, s.inventory, order); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("order_id", order.ID).Msg("CRITICAL: stock rollback incomplete")
	}
}

// compensationContext 补偿不应因为请求超时或取消而中断
func (s *OrderService) compensationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(logger.Ctx(ctx).WithContext(tracing.Detach(ctx)), compensationTimeout)
}

func (s *OrderService) findOwned(ctx context.Context, memberID int64, orderID string) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	// 不暴露别人的订单是否存在
	if order.MemberID != memberID {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

// rollbackLineItems 为订单的每个订单行各回滚一次库存
func rollbackLineItems(ctx context.Context, inventory port.InventoryService, order *domain.Order) error {
	var compensations saga.Compensations
	for _, item := range order.LineItems {
		compensations.Add(fmt.Sprintf("rollback product %d", item.ProductID), rollbackStep(inventory, item))
	}
	return compensations.Run(ctx)
}

// rollbackStep 返回一个回滚补偿，商品锁被占用时退避重试直到 ctx 结束
func rollbackStep(inventory port.InventoryService, item domain.LineItem) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return saga.Retry(ctx, rollbackBackoff, isLockUnavailable, func(ctx context.Context) error {
			return inventory.RollbackStock(ctx, item.ProductID, item.Quantity)
		})
	}
}

func isLockUnavailable(err error) bool {
	return errors.Is(err, lock.ErrLockUnavailable)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
