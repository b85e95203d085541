package application

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"stockflow/internal/service/order/domain"
)

func newTestReconciler(orders *memoryOrderRepository, inventory *fakeInventory, now time.Time, chunk int) *StatusReconciler {
	rules := DefaultStatusRules(30*time.Minute, 24*time.Hour, 48*time.Hour, 7*24*time.Hour)
	r := NewStatusReconciler(orders, inventory, noop.NewTracerProvider().Tracer("test"), rules, chunk)
	r.now = func() time.Time { return now }
	return r
}

func TestStatusReconciler_AdvancesByDwellTime(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	orders := newMemoryOrderRepository()
	inventory := newFakeInventory(map[int64]int64{1: 0})
	item := []domain.LineItem{{ProductID: 1, Quantity: 2, UnitPrice: 10}}

	orders.put(&domain.Order{ID: "a-stale-pending", MemberID: 1, Status: domain.StatusPaymentPending, LineItems: item, UpdatedAt: now.Add(-time.Hour)})
	orders.put(&domain.Order{ID: "b-fresh-pending", MemberID: 1, Status: domain.StatusPaymentPending, LineItems: item, UpdatedAt: now.Add(-time.Minute)})
	orders.put(&domain.Order{ID: "c-paid", MemberID: 1, Status: domain.StatusPaymentCompleted, LineItems: item, UpdatedAt: now.Add(-25 * time.Hour)})
	orders.put(&domain.Order{ID: "d-shipping", MemberID: 1, Status: domain.StatusShipping, LineItems: item, UpdatedAt: now.Add(-49 * time.Hour)})
	orders.put(&domain.Order{ID: "e-delivered", MemberID: 1, Status: domain.StatusDelivered, LineItems: item, UpdatedAt: now.Add(-8 * 24 * time.Hour)})

	advanced, err := newTestReconciler(orders, inventory, now, 10).RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, orders.status("a-stale-pending"))
	assert.Equal(t, domain.StatusPaymentPending, orders.status("b-fresh-pending"))
	assert.Equal(t, domain.StatusShipping, orders.status("c-paid"))
	assert.Equal(t, domain.StatusDelivered, orders.status("d-shipping"))
	assert.Equal(t, domain.StatusOrderConfirmed, orders.status("e-delivered"))
	assert.Equal(t, 1, advanced[domain.StatusCancelled])

	// 只有过期取消的订单回滚库存
	assert.Equal(t, int64(2), inventory.stockOf(1))
	assert.Equal(t, 1, inventory.rollbacksOf(1))
}

func TestStatusReconciler_AdvancesOneStepPerRun(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	orders := newMemoryOrderRepository()
	orders.put(&domain.Order{ID: "o", MemberID: 1, Status: domain.StatusPaymentCompleted, UpdatedAt: now.Add(-30 * 24 * time.Hour)})

	_, err := newTestReconciler(orders, newFakeInventory(nil), now, 10).RunOnce(context.Background())

	require.NoError(t, err)
	// 推进后 updated_at 被刷新，下一步需要重新计时
	assert.Equal(t, domain.StatusShipping, orders.status("o"))
}

func TestStatusReconciler_PagesThroughChunks(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	orders := newMemoryOrderRepository()
	inventory := newFakeInventory(map[int64]int64{1: 0})
	for i := 0; i < 7; i++ {
		orders.put(&domain.Order{
			ID:        fmt.Sprintf("o-%02d", i),
			MemberID:  1,
			Status:    domain.StatusPaymentPending,
			LineItems: []domain.LineItem{{ProductID: 1, Quantity: 1, UnitPrice: 1}},
			UpdatedAt: now.Add(-2 * time.Hour),
		})
	}

	advanced, err := newTestReconciler(orders, inventory, now, 3).RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 7, advanced[domain.StatusCancelled])
	assert.Equal(t, int64(7), inventory.stockOf(1))
}

func TestStatusReconciler_ExpiryRollbackRetriesWhileLockHeld(t *testing.T) {
	defer shortRollbackBackoff()()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	orders := newMemoryOrderRepository()
	inventory := newFakeInventory(map[int64]int64{1: 8})
	orders.put(&domain.Order{ID: "o", MemberID: 1, Status: domain.StatusPaymentPending,
		LineItems: []domain.LineItem{{ProductID: 1, Quantity: 2, UnitPrice: 10}}, UpdatedAt: now.Add(-time.Hour)})

	rules := DefaultStatusRules(30*time.Minute, 24*time.Hour, 48*time.Hour, 7*24*time.Hour)
	r := NewStatusReconciler(orders, newContendedInventory(inventory, 3), noop.NewTracerProvider().Tracer("test"), rules, 10)
	r.now = func() time.Time { return now }

	_, err := r.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, orders.status("o"))
	assert.Equal(t, int64(10), inventory.stockOf(1))
}
