// internal/service/inventory/application/service.go
package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"stockflow/internal/pkg/lock"
	"stockflow/internal/pkg/logger"
	"stockflow/internal/pkg/metrics"
	"stockflow/internal/pkg/tracing"
	"stockflow/internal/service/inventory/domain"
)

const DefaultStoreWriteTimeout = 5 * time.Second

// InventoryService 实现 cache-aside 的库存逻辑：
// 缓存是读写路径，存储是权威来源，异步写入造成的偏差由定期对账修复。
type InventoryService struct {
	products domain.ProductRepository
	cache    domain.StockCache
	locker   lock.Locker
	lockOpts lock.Options
	tracer   trace.Tracer

	storeWriteTimeout time.Duration
	settleWindow      time.Duration
	now               func() time.Time

	loads   singleflight.Group // 合并同一商品并发的缓存回源
	pending sync.WaitGroup     // 尚未完成的异步存储写入

	suspectsMu sync.Mutex
	suspects   map[int64]stockObservation // 等待确认的库存偏差
}

type Option func(*InventoryService)

// WithClock 替换时间源，测试用
func WithClock(now func() time.Time) Option {
	return func(s *InventoryService) { s.now = now }
}

func WithStoreWriteTimeout(d time.Duration) Option {
	return func(s *InventoryService) {
		if d > 0 {
			s.storeWriteTimeout = d
		}
	}
}

// WithSettleWindow 让对账只修复持续了 d 以上且期间没有变化的库存偏差。
// 其他进程的异步写入最多在途 storeWriteTimeout，Drain 等不到它们。
func WithSettleWindow(d time.Duration) Option {
	return func(s *InventoryService) { s.settleWindow = d }
}

func NewInventoryService(products domain.ProductRepository, cache domain.StockCache, locker lock.Locker, lockOpts lock.Options, tracer trace.Tracer, opts ...Option) *InventoryService {
	s := &InventoryService{
		products:          products,
		cache:             cache,
		locker:            locker,
		lockOpts:          lockOpts,
		tracer:            tracer,
		storeWriteTimeout: DefaultStoreWriteTimeout,
		now:               time.Now,
		suspects:          make(map[int64]stockObservation),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckAvailability 依次检查开售时间和库存，不加锁。
// 任一关卡失败返回 false 以及对应的领域错误。
func (s *InventoryService) CheckAvailability(ctx context.Context, productID int64, quantity int) (ok bool, err error) {
	ctx, span := s.startSpan(ctx, "inventory.CheckAvailability", productID, quantity)
	defer func() { s.endSpan(span, "check", err) }()

	if quantity <= 0 {
		return false, domain.ErrInvalidQuantity
	}

	// 1. 开售时间关卡
	start, err := s.loadPurchaseStart(ctx, productID)
	if err != nil {
		return false, err
	}
	if s.now().Before(start) {
		return false, fmt.Errorf("%w: product %d opens at %s", domain.ErrPurchaseTimeInvalid, productID, start.Format(time.RFC3339))
	}

	// 2. 库存关卡
	stock, err := s.loadStock(ctx, productID)
	if err != nil {
		return false, err
	}
	if stock < int64(quantity) {
		return false, fmt.Errorf("%w: product %d has %d, requested %d", domain.ErrStockInsufficient, productID, stock, quantity)
	}
	return true, nil
}

// ReserveStock 在商品锁内重新检查库存并扣减缓存，释放锁后异步写入存储。
// 缓存扣减成功即视为预占成功。
func (s *InventoryService) ReserveStock(ctx context.Context, productID int64, quantity int) (err error) {
	ctx, span := s.startSpan(ctx, "inventory.ReserveStock", productID, quantity)
	defer func() { s.endSpan(span, "reserve", err) }()

	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	delta := int64(quantity)

	err = lock.Do(ctx, s.locker, lock.ProductKey(productID), s.lockOpts, func(ctx context.Context) error {
		// 未加锁时的检查结果可能已经过期，锁内必须重新读取
		stock, err := s.loadStock(ctx, productID)
		if err != nil {
			return err
		}
		if stock < delta {
			return fmt.Errorf("%w: product %d has %d, requested %d", domain.ErrStockInsufficient, productID, stock, quantity)
		}

		remaining, err := s.incrBy(ctx, productID, -delta)
		if err != nil {
			return err
		}
		if remaining < 0 {
			// 租约过期后有人绕过了互斥，撤销本次扣减
			if _, undoErr := s.incrBy(ctx, productID, delta); undoErr != nil {
				logger.Ctx(ctx).Error().Err(undoErr).Int64("product_id", productID).Msg("failed to undo over-decrement")
			}
			return fmt.Errorf("%w: product %d went negative under contention", domain.ErrStockInsufficient, productID)
		}
		span.SetAttributes(attribute.Int64("stock.remaining", remaining))
		return nil
	})
	if err != nil {
		return err
	}

	s.persistAsync(ctx, productID, -delta)
	return nil
}

// RollbackStock 是 ReserveStock 的补偿：锁内增加缓存，异步增加存储。
func (s *InventoryService) RollbackStock(ctx context.Context, productID int64, quantity int) (err error) {
	ctx, span := s.startSpan(ctx, "inventory.RollbackStock", productID, quantity)
	defer func() { s.endSpan(span, "rollback", err) }()

	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	delta := int64(quantity)

	err = lock.Do(ctx, s.locker, lock.ProductKey(productID), s.lockOpts, func(ctx context.Context) error {
		if _, err := s.loadStock(ctx, productID); err != nil {
			return err
		}
		_, err := s.incrBy(ctx, productID, delta)
		return err
	})
	if err != nil {
		return err
	}

	s.persistAsync(ctx, productID, delta)
	return nil
}

// SeedProduct 写入商品并覆盖缓存，用于上架或秒杀活动准备
func (s *InventoryService) SeedProduct(ctx context.Context, p *domain.Product) error {
	if p.Stock < 0 {
		return domain.ErrInvalidQuantity
	}
	return lock.Do(ctx, s.locker, lock.ProductKey(p.ID), s.lockOpts, func(ctx context.Context) error {
		if err := s.products.Save(ctx, p); err != nil {
			return err
		}
		if err := s.cache.SetStock(ctx, p.ID, p.Stock); err != nil {
			return err
		}
		return s.cache.SetPurchaseStart(ctx, p.ID, p.PurchaseStartTime)
	})
}

// Drain 等待本实例所有异步存储写入完成
func (s *InventoryService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// persistAsync 把缓存上的变更异步写入存储，调用方不等待结果。
// 写入失败只记录日志，偏差由对账修复。
func (s *InventoryService) persistAsync(ctx context.Context, productID int64, delta int64) {
	log := logger.Ctx(ctx).With().Int64("product_id", productID).Int64("delta", delta).Logger()
	bgCtx := tracing.Detach(ctx)

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		writeCtx, cancel := context.WithTimeout(bgCtx, s.storeWriteTimeout)
		defer cancel()

		writeCtx, span := s.tracer.Start(writeCtx, "inventory.PersistStock")
		defer span.End()
		span.SetAttributes(attribute.Int64("product.id", productID), attribute.Int64("stock.delta", delta))

		if err := s.products.AdjustStock(writeCtx, productID, delta); err != nil {
			metrics.StoreWriteFailures.Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, "store write failed")
			log.Error().Err(err).Msg("async stock write failed, cache and store diverge until reconciliation")
		}
	}()
}

// loadStock 读缓存，未命中时回源并以 set-if-absent 方式回填
func (s *InventoryService) loadStock(ctx context.Context, productID int64) (int64, error) {
	stock, err := s.cache.GetStock(ctx, productID)
	if err == nil {
		return stock, nil
	}
	if !errors.Is(err, domain.ErrCacheMiss) {
		return 0, err
	}

	v, err, _ := s.loads.Do("stock:"+strconv.FormatInt(productID, 10), func() (interface{}, error) {
		loadCtx, cancel := s.loadContext(ctx)
		defer cancel()
		p, err := s.products.FindByID(loadCtx, productID)
		if err != nil {
			return int64(0), err
		}
		logger.Ctx(ctx).Debug().Int64("product_id", productID).Int64("stock", p.Stock).Msg("stock cache populated from store")
		return s.cache.SetStockIfAbsent(loadCtx, productID, p.Stock)
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

func (s *InventoryService) loadPurchaseStart(ctx context.Context, productID int64) (time.Time, error) {
	start, err := s.cache.GetPurchaseStart(ctx, productID)
	if err == nil {
		return start, nil
	}
	if !errors.Is(err, domain.ErrCacheMiss) {
		return time.Time{}, err
	}

	v, err, _ := s.loads.Do("purchase-start:"+strconv.FormatInt(productID, 10), func() (interface{}, error) {
		loadCtx, cancel := s.loadContext(ctx)
		defer cancel()
		p, err := s.products.FindByID(loadCtx, productID)
		if err != nil {
			return time.Time{}, err
		}
		return s.cache.SetPurchaseStartIfAbsent(loadCtx, productID, p.PurchaseStartTime)
	})
	if err != nil {
		return time.Time{}, err
	}
	return v.(time.Time), nil
}

// loadContext 为合并后的回源提供独立的超时。回源结果被所有等待者共享，
// 不能因为发起它的那个调用方取消而让其他调用方一起失败。
func (s *InventoryService) loadContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.storeWriteTimeout)
}

// incrBy 在缓存被淘汰的极端情况下先回源再重试一次
func (s *InventoryService) incrBy(ctx context.Context, productID int64, delta int64) (int64, error) {
	v, err := s.cache.IncrBy(ctx, productID, delta)
	if !errors.Is(err, domain.ErrCacheMiss) {
		return v, err
	}
	if _, err := s.loadStock(ctx, productID); err != nil {
		return 0, err
	}
	return s.cache.IncrBy(ctx, productID, delta)
}

func (s *InventoryService) startSpan(ctx context.Context, name string, productID int64, quantity int) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, name)
	span.SetAttributes(attribute.Int64("product.id", productID), attribute.Int("quantity", quantity))
	return ctx, span
}

func (s *InventoryService) endSpan(span trace.Span, operation string, err error) {
	metrics.StockOperations.WithLabelValues(operation, resultLabel(err)).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrPurchaseTimeInvalid):
		return "purchase_time_invalid"
	case errors.Is(err, domain.ErrStockInsufficient):
		return "stock_insufficient"
	case errors.Is(err, lock.ErrLockUnavailable):
		return "lock_unavailable"
	default:
		return "error"
	}
}
