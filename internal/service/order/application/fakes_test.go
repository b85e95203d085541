package application

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"stockflow/internal/pkg/lock"
	invdomain "stockflow/internal/service/inventory/domain"
	"stockflow/internal/service/order/domain"
)

// memoryOrderRepository 模拟 GORM 实现的条件更新语义
type memoryOrderRepository struct {
	mu        sync.Mutex
	orders    map[string]domain.Order
	createErr error
}

func newMemoryOrderRepository() *memoryOrderRepository {
	return &memoryOrderRepository{orders: make(map[string]domain.Order)}
}

func (r *memoryOrderRepository) Create(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.orders[order.ID] = copyOrder(order)
	return nil
}

func (r *memoryOrderRepository) FindByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := copyOrder(&o)
	return &cp, nil
}

func (r *memoryOrderRepository) UpdateStatus(_ context.Context, id string, from, to domain.Status, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if o.Status != from {
		return domain.ErrStaleStatus
	}
	o.Status = to
	o.UpdatedAt = at
	r.orders[id] = o
	return nil
}

func (r *memoryOrderRepository) ListStale(_ context.Context, status domain.Status, before time.Time, afterID string, limit int) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Order
	for _, o := range r.orders {
		if o.Status == status && o.UpdatedAt.Before(before) && o.ID > afterID {
			cp := copyOrder(&o)
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryOrderRepository) put(o *domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = copyOrder(o)
}

func (r *memoryOrderRepository) status(id string) domain.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orders[id].Status
}

func (r *memoryOrderRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

func copyOrder(o *domain.Order) domain.Order {
	cp := *o
	cp.LineItems = append([]domain.LineItem(nil), o.LineItems...)
	return cp
}

// fakeInventory 是一个按商品计数的内存库存，记录每个商品的预占和回滚次数
type fakeInventory struct {
	mu        sync.Mutex
	stock     map[int64]int64
	checkErr  error
	reserves  map[int64]int
	rollbacks map[int64]int
}

func newFakeInventory(stock map[int64]int64) *fakeInventory {
	return &fakeInventory{stock: stock, reserves: map[int64]int{}, rollbacks: map[int64]int{}}
}

func (f *fakeInventory) CheckAvailability(_ context.Context, productID int64, quantity int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checkErr != nil {
		return false, f.checkErr
	}
	if f.stock[productID] < int64(quantity) {
		return false, invdomain.ErrStockInsufficient
	}
	return true, nil
}

func (f *fakeInventory) ReserveStock(_ context.Context, productID int64, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stock[productID] < int64(quantity) {
		return invdomain.ErrStockInsufficient
	}
	f.stock[productID] -= int64(quantity)
	f.reserves[productID]++
	return nil
}

func (f *fakeInventory) RollbackStock(_ context.Context, productID int64, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stock[productID] += int64(quantity)
	f.rollbacks[productID]++
	return nil
}

func (f *fakeInventory) stockOf(id int64) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stock[id]
}

func (f *fakeInventory) rollbacksOf(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rollbacks[id]
}

// stubPayments 同步返回固定结果；pending 为 true 时模拟事件驱动模式
type stubPayments struct {
	succeed bool
	pending bool
	err     error
	calls   int
}

func (s *stubPayments) Trigger(_ context.Context, order *domain.Order) (*domain.PaymentResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.pending {
		return nil, nil
	}
	return &domain.PaymentResult{OrderID: order.ID, PaymentID: "pay-" + order.ID, Succeeded: s.succeed}, nil
}

type recordingShipping struct {
	mu      sync.Mutex
	records map[string]domain.ShippingInfo
	err     error
}

func (r *recordingShipping) Record(_ context.Context, order *domain.Order, info domain.ShippingInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.records == nil {
		r.records = map[string]domain.ShippingInfo{}
	}
	r.records[order.ID] = info
	return r.err
}

type mockCart struct {
	mock.Mock
}

func (m *mockCart) RemoveItems(ctx context.Context, memberID int64, productIDs []int64) error {
	return m.Called(ctx, memberID, productIDs).Error(0)
}

type mockMembers struct {
	mock.Mock
}

func (m *mockMembers) Exists(ctx context.Context, memberID int64) error {
	return m.Called(ctx, memberID).Error(0)
}

// contendedInventory 模拟回滚时商品锁仍被其他实例持有：每个商品前 busy 次回滚返回锁不可用
type contendedInventory struct {
	*fakeInventory
	mu       sync.Mutex
	busy     int
	attempts map[int64]int
}

func newContendedInventory(inv *fakeInventory, busy int) *contendedInventory {
	return &contendedInventory{fakeInventory: inv, busy: busy, attempts: map[int64]int{}}
}

func (c *contendedInventory) RollbackStock(ctx context.Context, productID int64, quantity int) error {
	c.mu.Lock()
	c.attempts[productID]++
	n := c.attempts[productID]
	c.mu.Unlock()
	if n <= c.busy {
		return fmt.Errorf("%w: lock:product:%d", lock.ErrLockUnavailable, productID)
	}
	return c.fakeInventory.RollbackStock(ctx, productID, quantity)
}
