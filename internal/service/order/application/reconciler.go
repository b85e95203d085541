// internal/service/order/application/reconciler.go
package application

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"stockflow/internal/pkg/logger"
	"stockflow/internal/pkg/metrics"
	"stockflow/internal/pkg/tracing"
	"stockflow/internal/service/order/domain"
	"stockflow/internal/service/order/domain/port"
)

const defaultReconcileChunk = 100

// StatusRule 把在 From 状态停留超过 After 的订单推进到 To
type StatusRule struct {
	From     domain.Status
	To       domain.Status
	After    time.Duration
	Rollback bool // 推进后回滚库存
}

// DefaultStatusRules 模拟没有物流回调时的状态推进
func DefaultStatusRules(pendingTimeout, shippingAfter, deliveredAfter, confirmAfter time.Duration) []StatusRule {
	return []StatusRule{
		{From: domain.StatusPaymentPending, To: domain.StatusCancelled, After: pendingTimeout, Rollback: true},
		{From: domain.StatusPaymentCompleted, To: domain.StatusShipping, After: shippingAfter},
		{From: domain.StatusShipping, To: domain.StatusDelivered, After: deliveredAfter},
		{From: domain.StatusDelivered, To: domain.StatusOrderConfirmed, After: confirmAfter},
	}
}

// StatusReconciler 分批扫描订单，按停留时间推进状态
type StatusReconciler struct {
	orders    domain.OrderRepository
	inventory port.InventoryService
	tracer    trace.Tracer
	rules     []StatusRule
	chunk     int
	now       func() time.Time
}

func NewStatusReconciler(orders domain.OrderRepository, inventory port.InventoryService, tracer trace.Tracer, rules []StatusRule, chunk int) *StatusReconciler {
	if chunk <= 0 {
		chunk = defaultReconcileChunk
	}
	return &StatusReconciler{
		orders:    orders,
		inventory: inventory,
		tracer:    tracer,
		rules:     rules,
		chunk:     chunk,
		now:       time.Now,
	}
}

// RunOnce 依次执行每条规则，返回每个目标状态推进的订单数
func (r *StatusReconciler) RunOnce(ctx context.Context) (map[domain.Status]int, error) {
	ctx, span := r.tracer.Start(ctx, "app.StatusReconciler.RunOnce")
	defer span.End()

	advanced := make(map[domain.Status]int, len(r.rules))
	for _, rule := range r.rules {
		n, err := r.applyRule(ctx, rule)
		advanced[rule.To] += n
		if err != nil {
			span.RecordError(err)
			return advanced, err
		}
		span.SetAttributes(attribute.Int("advanced."+string(rule.To), n))
	}
	return advanced, nil
}

func (r *StatusReconciler) applyRule(ctx context.Context, rule StatusRule) (int, error) {
	log := logger.Ctx(ctx).With().Str("from", string(rule.From)).Str("to", string(rule.To)).Logger()
	before := r.now().Add(-rule.After)

	advanced := 0
	afterID := ""
	for {
		orders, err := r.orders.ListStale(ctx, rule.From, before, afterID, r.chunk)
		if err != nil {
			return advanced, err
		}
		for _, order := range orders {
			if err := ctx.Err(); err != nil {
				return advanced, err
			}
			ok, err := r.advance(ctx, order, rule)
			if err != nil {
				log.Warn().Err(err).Str("order_id", order.ID).Msg("failed to advance order")
				continue
			}
			if ok {
				advanced++
			}
		}
		if len(orders) < r.chunk {
			break
		}
		afterID = orders[len(orders)-1].ID
	}

	if advanced > 0 {
		log.Info().Int("count", advanced).Msg("orders advanced")
	}
	return advanced, nil
}

func (r *StatusReconciler) advance(ctx context.Context, order *domain.Order, rule StatusRule) (bool, error) {
	now := r.now()
	from := order.Status

	var err error
	if rule.To == domain.StatusCancelled {
		err = order.Expire(now)
	} else {
		err = order.Advance(rule.To, now)
	}
	if err != nil {
		return false, err
	}

	err = r.orders.UpdateStatus(ctx, order.ID, from, order.Status, now)
	if errors.Is(err, domain.ErrStaleStatus) {
		// 另一个写入者先处理了这个订单
		return false, nil
	}
	if err != nil {
		return false, err
	}
	metrics.OrderTransitions.WithLabelValues(string(order.Status)).Inc()

	if rule.Rollback {
		compCtx, cancel := context.WithTimeout(logger.Ctx(ctx).WithContext(tracing.Detach(ctx)), compensationTimeout)
		err := rollbackLineItems(compCtx, r.inventory, order)
		cancel()
		if err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("order_id", order.ID).Msg("CRITICAL: stock rollback incomplete for expired order")
		}
	}
	return true, nil
}

// Start 按固定间隔执行，直到 ctx 取消
func (r *StatusReconciler) Start(ctx context.Context, interval time.Duration) {
	log := logger.Ctx(ctx)
	log.Info().Dur("interval", interval).Msg("✅ Order status reconciler started")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("order status reconciliation failed")
			}
		case <-ctx.Done():
			log.Info().Msg("🛑 Order status reconciler stopped")
			return
		}
	}
}
