// internal/service/payment/application/processor.go
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

	"stockflow/internal/pkg/logger"
	"stockflow/internal/pkg/metrics"
	"stockflow/internal/service/payment/domain"
)

const DefaultStallTimeout = 2 * time.Second

// Processor 是唯一写入 Payment 的组件。它不碰库存也不改订单状态，
// 这些由订单服务在收到结果后处理。
type Processor struct {
	payments     domain.PaymentRepository
	policy       domain.OutcomePolicy
	tracer       trace.Tracer
	stallTimeout time.Duration
	newID        func() string
	now          func() time.Time
}

type Option func(*Processor)

// WithStallTimeout 设置非终态支付被下一次投递接管前的最长静默时间
func WithStallTimeout(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.stallTimeout = d
		}
	}
}

func NewProcessor(payments domain.PaymentRepository, policy domain.OutcomePolicy, tracer trace.Tracer, opts ...Option) *Processor {
	p := &Processor{
		payments:     payments,
		policy:       policy,
		tracer:       tracer,
		stallTimeout: DefaultStallTimeout,
		newID:        uuid.NewString,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessPayment 对同一订单幂等：已经有终态支付时直接返回它。
// 非终态支付在 stallTimeout 内视为处理中；超过后说明上一次处理中途失败，由本次投递接管并完成。
func (p *Processor) ProcessPayment(ctx context.Context, req domain.PaymentRequest) (payment *domain.Payment, err error) {
	ctx, span := p.tracer.Start(ctx, "payment.ProcessPayment")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("order.id", req.OrderID), attribute.Int64("payment.amount", req.TotalPrice))
	log := logger.Ctx(ctx).With().Str("order_id", req.OrderID).Logger()

	existing, err := p.payments.FindByOrderID(ctx, req.OrderID)
	switch {
	case err == nil && existing.Status.IsTerminal():
		log.Info().Str("status", string(existing.Status)).Msg("payment already settled, returning previous outcome")
		return existing, nil
	case err == nil && p.now().Sub(existing.UpdatedAt) < p.stallTimeout:
		return nil, fmt.Errorf("%w: %s", domain.ErrPaymentInProgress, req.OrderID)
	case err == nil:
		log.Warn().Str("payment_id", existing.ID).Str("status", string(existing.Status)).
			Time("updated_at", existing.UpdatedAt).Msg("taking over stalled payment")
		payment = existing
	case !errors.Is(err, domain.ErrPaymentNotFound):
		return nil, err
	default:
		now := p.now()
		payment = &domain.Payment{
			ID:        p.newID(),
			OrderID:   req.OrderID,
			MemberID:  req.MemberID,
			Amount:    req.TotalPrice,
			Status:    domain.StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := p.payments.Create(ctx, payment); err != nil {
			if errors.Is(err, domain.ErrDuplicatePayment) {
				// 并发的重复投递抢先创建了记录
				return nil, fmt.Errorf("%w: %s", domain.ErrPaymentInProgress, req.OrderID)
			}
			return nil, err
		}
	}
	span.SetAttributes(attribute.String("payment.id", payment.ID))

	if payment.Status == domain.StatusPending {
		if err := p.transition(ctx, payment, domain.StatusProcessing, ""); err != nil {
			return nil, p.settleConflict(ctx, req.OrderID, err)
		}
	}

	decision, err := p.policy.Decide(ctx, req)
	if err != nil {
		// 策略本身出错按拒绝处理，保证支付总能进入终态
		log.Error().Err(err).Msg("outcome policy failed, declining payment")
		decision = domain.Decision{Approved: false, Reason: "policy error: " + err.Error()}
	}

	final := domain.StatusFailed
	if decision.Approved {
		final = domain.StatusCompleted
	}
	if err := p.transition(ctx, payment, final, decision.Reason); err != nil {
		return nil, p.settleConflict(ctx, req.OrderID, err)
	}
	metrics.PaymentOutcomes.WithLabelValues(string(final)).Inc()
	log.Info().Str("payment_id", payment.ID).Str("status", string(final)).Str("reason", decision.Reason).Msg("payment processed")
	return payment, nil
}

// settleConflict 把接管竞争中落败的写入转换成可重试的 ErrPaymentInProgress，
// 下一次投递会读到胜者写入的结果。
func (p *Processor) settleConflict(ctx context.Context, orderID string, err error) error {
	if errors.Is(err, domain.ErrStalePayment) {
		logger.Ctx(ctx).Info().Str("order_id", orderID).Msg("payment advanced by another delivery")
		return fmt.Errorf("%w: %s", domain.ErrPaymentInProgress, orderID)
	}
	return err
}

func (p *Processor) transition(ctx context.Context, payment *domain.Payment, to domain.Status, reason string) error {
	now := p.now()
	if err := p.payments.UpdateStatus(ctx, payment.ID, payment.Status, to, reason, now); err != nil {
		return err
	}
	payment.Status = to
	payment.Reason = reason
	payment.UpdatedAt = now
	return nil
}
