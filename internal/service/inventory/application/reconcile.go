// internal/service/inventory/application/reconcile.go
package application

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"stockflow/internal/pkg/lock"
	"stockflow/internal/pkg/logger"
	"stockflow/internal/pkg/metrics"
	"stockflow/internal/service/inventory/domain"
)

const defaultReconcileChunk = 200

// ReconcileReport 汇总一次对账的结果
type ReconcileReport struct {
	Scanned        int `json:"scanned"`
	StockFixed     int `json:"stockFixed"`
	StartTimeFixed int `json:"startTimeFixed"`
	Skipped        int `json:"skipped"`  // 未缓存或拿不到锁
	Deferred       int `json:"deferred"` // 偏差尚未稳定，留到下一轮
}

// stockObservation 是某次对账看到的一组不一致的缓存和存储值
type stockObservation struct {
	cache, store int64
	at           time.Time
}

// Reconcile 按 ID 分页遍历所有商品，缓存与存储不一致时以存储为准覆盖缓存。
// 未进入缓存的商品跳过，它们会在第一次读取时回源。
// 设置了 settle window 时，库存偏差要在两轮对账间保持不变才会被修复。
func (s *InventoryService) Reconcile(ctx context.Context, chunk int) (report ReconcileReport, err error) {
	ctx, span := s.tracer.Start(ctx, "inventory.Reconcile")
	defer func() {
		span.SetAttributes(
			attribute.Int("reconcile.scanned", report.Scanned),
			attribute.Int("reconcile.stock_fixed", report.StockFixed),
			attribute.Int("reconcile.start_time_fixed", report.StartTimeFixed),
			attribute.Int("reconcile.deferred", report.Deferred),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "reconciliation aborted")
		}
		span.End()
	}()

	if chunk <= 0 {
		chunk = defaultReconcileChunk
	}
	log := logger.Ctx(ctx)

	// 先让本实例未落库的写入完成，避免用旧的存储值覆盖缓存。
	// 其他进程的在途写入由 settle window 处理。
	if err := s.Drain(ctx); err != nil {
		return report, err
	}

	var afterID int64
	for {
		products, err := s.products.ListAfter(ctx, afterID, chunk)
		if err != nil {
			return report, err
		}
		for _, p := range products {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			report.Scanned++
			if err := s.reconcileProduct(ctx, p.ID, &report); err != nil {
				report.Skipped++
				if errors.Is(err, errNotCached) {
					continue
				}
				log.Warn().Err(err).Int64("product_id", p.ID).Msg("reconciliation skipped product")
			}
		}
		if len(products) < chunk {
			break
		}
		afterID = products[len(products)-1].ID
	}

	log.Info().
		Int("scanned", report.Scanned).
		Int("stock_fixed", report.StockFixed).
		Int("start_time_fixed", report.StartTimeFixed).
		Int("skipped", report.Skipped).
		Int("deferred", report.Deferred).
		Msg("stock reconciliation finished")
	return report, nil
}

// errNotCached 表示商品没有进入缓存，无需对账
var errNotCached = errors.New("product not cached")

func (s *InventoryService) reconcileProduct(ctx context.Context, productID int64, report *ReconcileReport) error {
	return lock.Do(ctx, s.locker, lock.ProductKey(productID), s.lockOpts, func(ctx context.Context) error {
		// 锁内重新读取存储，分页时拿到的值可能已经过期
		p, err := s.products.FindByID(ctx, productID)
		if err != nil {
			return err
		}
		log := logger.Ctx(ctx).With().Int64("product_id", productID).Logger()

		cachedStock, err := s.cache.GetStock(ctx, productID)
		switch {
		case errors.Is(err, domain.ErrCacheMiss):
			return errNotCached
		case err != nil:
			return err
		}
		switch {
		case cachedStock == p.Stock:
			s.forgetSuspect(productID)
		case !s.settled(productID, cachedStock, p.Stock):
			report.Deferred++
			log.Debug().Int64("cache", cachedStock).Int64("store", p.Stock).Msg("stock discrepancy not settled yet")
		default:
			if err := s.cache.SetStock(ctx, productID, p.Stock); err != nil {
				return err
			}
			s.forgetSuspect(productID)
			report.StockFixed++
			metrics.ReconcileDiscrepancies.WithLabelValues("stock").Inc()
			log.Warn().Int64("cache", cachedStock).Int64("store", p.Stock).Msg("stock discrepancy repaired from store")
		}

		cachedStart, err := s.cache.GetPurchaseStart(ctx, productID)
		switch {
		case errors.Is(err, domain.ErrCacheMiss):
			return nil
		case err != nil:
			return err
		}
		if !cachedStart.Equal(p.PurchaseStartTime) {
			if err := s.cache.SetPurchaseStart(ctx, productID, p.PurchaseStartTime); err != nil {
				return err
			}
			report.StartTimeFixed++
			metrics.ReconcileDiscrepancies.WithLabelValues("purchase_start").Inc()
			log.Warn().
				Str("cache", cachedStart.Format(time.RFC3339)).
				Str("store", p.PurchaseStartTime.Format(time.RFC3339)).
				Msg("purchase start time discrepancy repaired from store")
		}
		return nil
	})
}

// settled 记录这次看到的偏差，返回它是否已经原样保持了 settle window 以上
func (s *InventoryService) settled(productID, cache, store int64) bool {
	if s.settleWindow <= 0 {
		return true
	}
	now := s.now()
	s.suspectsMu.Lock()
	defer s.suspectsMu.Unlock()
	prev, ok := s.suspects[productID]
	if ok && prev.cache == cache && prev.store == store {
		return now.Sub(prev.at) >= s.settleWindow
	}
	s.suspects[productID] = stockObservation{cache: cache, store: store, at: now}
	return false
}

func (s *InventoryService) forgetSuspect(productID int64) {
	s.suspectsMu.Lock()
	delete(s.suspects, productID)
	s.suspectsMu.Unlock()
}

// StartReconciler 按固定间隔执行对账，直到 ctx 取消
func (s *InventoryService) StartReconciler(ctx context.Context, interval time.Duration, chunk int) {
	log := logger.Ctx(ctx)
	log.Info().Dur("interval", interval).Msg("✅ Stock reconciler started")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.Reconcile(ctx, chunk); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("stock reconciliation failed")
			}
		case <-ctx.Done():
			log.Info().Msg("🛑 Stock reconciler stopped")
			return
		}
	}
}
