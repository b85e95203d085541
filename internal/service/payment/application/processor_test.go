package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"stockflow/internal/service/payment/domain"
)

type memoryPaymentRepository struct {
	mu       sync.Mutex
	payments map[string]domain.Payment // by order id
	history  map[string][]domain.Status
}

func newMemoryPaymentRepository() *memoryPaymentRepository {
	return &memoryPaymentRepository{payments: map[string]domain.Payment{}, history: map[string][]domain.Status{}}
}

func (r *memoryPaymentRepository) FindByOrderID(_ context.Context, orderID string) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[orderID]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	return &p, nil
}

func (r *memoryPaymentRepository) Create(_ context.Context, p *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.payments[p.OrderID]; ok {
		return domain.ErrDuplicatePayment
	}
	r.payments[p.OrderID] = *p
	r.history[p.ID] = append(r.history[p.ID], p.Status)
	return nil
}

func (r *memoryPaymentRepository) UpdateStatus(_ context.Context, id string, from, to domain.Status, reason string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for orderID, p := range r.payments {
		if p.ID == id {
			if p.Status != from {
				return domain.ErrStalePayment
			}
			p.Status, p.Reason, p.UpdatedAt = to, reason, at
			r.payments[orderID] = p
			r.history[id] = append(r.history[id], to)
			return nil
		}
	}
	return domain.ErrPaymentNotFound
}

func (r *memoryPaymentRepository) statusOf(orderID string) domain.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.payments[orderID].Status
}

// flakyPaymentRepository 让前 failures 次 UpdateStatus 失败，模拟记录创建后数据库短暂不可用
type flakyPaymentRepository struct {
	*memoryPaymentRepository
	failures int
}

func (r *flakyPaymentRepository) UpdateStatus(ctx context.Context, id string, from, to domain.Status, reason string, at time.Time) error {
	if r.failures > 0 {
		r.failures--
		return errors.New("mysql: connection reset")
	}
	return r.memoryPaymentRepository.UpdateStatus(ctx, id, from, to, reason, at)
}

type fixedPolicy struct {
	decision domain.Decision
	err      error
	calls    int
}

func (p *fixedPolicy) Decide(context.Context, domain.PaymentRequest) (domain.Decision, error) {
	p.calls++
	return p.decision, p.err
}

func newTestProcessor(repo domain.PaymentRepository, policy domain.OutcomePolicy) *Processor {
	return NewProcessor(repo, policy, noop.NewTracerProvider().Tracer("test"))
}

var request = domain.PaymentRequest{OrderID: "order-1", MemberID: 7, TotalPrice: 5100, TotalQuantity: 5}

func TestProcessPayment_WalksStatusesToCompleted(t *testing.T) {
	repo := newMemoryPaymentRepository()
	p := newTestProcessor(repo, ApproveAllPolicy{})

	payment, err := p.ProcessPayment(context.Background(), request)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, payment.Status)
	assert.Equal(t, int64(5100), payment.Amount)
	assert.Equal(t,
		[]domain.Status{domain.StatusPending, domain.StatusProcessing, domain.StatusCompleted},
		repo.history[payment.ID])
}

func TestProcessPayment_DeclineIsFailedWithReason(t *testing.T) {
	repo := newMemoryPaymentRepository()
	p := newTestProcessor(repo, &fixedPolicy{decision: domain.Decision{Approved: false, Reason: "insufficient funds"}})

	payment, err := p.ProcessPayment(context.Background(), request)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, payment.Status)
	assert.Equal(t, "insufficient funds", payment.Reason)
}

func TestProcessPayment_PolicyErrorDeclines(t *testing.T) {
	p := newTestProcessor(newMemoryPaymentRepository(), &fixedPolicy{err: errors.New("rule engine down")})

	payment, err := p.ProcessPayment(context.Background(), request)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, payment.Status)
	assert.Contains(t, payment.Reason, "rule engine down")
}

func TestProcessPayment_RedeliveryReturnsPreviousOutcome(t *testing.T) {
	repo := newMemoryPaymentRepository()
	policy := &fixedPolicy{decision: domain.Decision{Approved: true}}
	p := newTestProcessor(repo, policy)

	first, err := p.ProcessPayment(context.Background(), request)
	require.NoError(t, err)
	second, err := p.ProcessPayment(context.Background(), request)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, domain.StatusCompleted, second.Status)
	assert.Equal(t, 1, policy.calls, "the outcome is decided only once")
}

func TestProcessPayment_InFlightPaymentIsRetryable(t *testing.T) {
	repo := newMemoryPaymentRepository()
	require.NoError(t, repo.Create(context.Background(), &domain.Payment{ID: "p", OrderID: request.OrderID, Status: domain.StatusProcessing, UpdatedAt: time.Now()}))

	_, err := newTestProcessor(repo, ApproveAllPolicy{}).ProcessPayment(context.Background(), request)

	assert.ErrorIs(t, err, domain.ErrPaymentInProgress)
	assert.Equal(t, domain.StatusProcessing, repo.statusOf(request.OrderID))
}

func TestProcessPayment_RedeliveryTakesOverStalledPayment(t *testing.T) {
	repo := &flakyPaymentRepository{memoryPaymentRepository: newMemoryPaymentRepository(), failures: 1}
	p := newTestProcessor(repo, ApproveAllPolicy{})
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return clock }

	_, err := p.ProcessPayment(context.Background(), request)
	require.Error(t, err)
	assert.Equal(t, domain.StatusPending, repo.statusOf(request.OrderID))

	// 静默期内的重复投递仍视为处理中
	_, err = p.ProcessPayment(context.Background(), request)
	assert.ErrorIs(t, err, domain.ErrPaymentInProgress)

	clock = clock.Add(DefaultStallTimeout)
	var payment *domain.Payment
	for i := 0; i < 5; i++ {
		payment, err = p.ProcessPayment(context.Background(), request)
		require.NoError(t, err)
	}
	assert.Equal(t, domain.StatusCompleted, payment.Status)
	assert.Equal(t, domain.StatusCompleted, repo.statusOf(request.OrderID))
	assert.Equal(t,
		[]domain.Status{domain.StatusPending, domain.StatusProcessing, domain.StatusCompleted},
		repo.history[payment.ID])
}

func TestProcessPayment_LosingTakeoverReportsInProgress(t *testing.T) {
	repo := newMemoryPaymentRepository()
	stalled := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(context.Background(), &domain.Payment{ID: "p", OrderID: request.OrderID, Status: domain.StatusProcessing, UpdatedAt: stalled}))
	p := newTestProcessor(repo, racingPolicy{repo: repo})
	p.now = func() time.Time { return stalled.Add(time.Minute) }

	_, err := p.ProcessPayment(context.Background(), request)

	assert.ErrorIs(t, err, domain.ErrPaymentInProgress)
	assert.Equal(t, domain.StatusFailed, repo.statusOf(request.OrderID), "the first terminal write wins")
}

// racingPolicy 在决策期间让另一次投递先写入终态
type racingPolicy struct{ repo *memoryPaymentRepository }

func (r racingPolicy) Decide(ctx context.Context, _ domain.PaymentRequest) (domain.Decision, error) {
	_ = r.repo.UpdateStatus(ctx, "p", domain.StatusProcessing, domain.StatusFailed, "declined elsewhere", time.Now())
	return domain.Decision{Approved: true}, nil
}

func TestRandomFailurePolicy(t *testing.T) {
	_, err := NewRandomFailurePolicy(1.5, 1)
	assert.Error(t, err)

	always, err := NewRandomFailurePolicy(1, 1)
	require.NoError(t, err)
	never, err := NewRandomFailurePolicy(0, 1)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		d, _ := always.Decide(context.Background(), request)
		assert.False(t, d.Approved)
		d, _ = never.Decide(context.Background(), request)
		assert.True(t, d.Approved)
	}
}

func TestRandomFailurePolicy_RateIsApproximate(t *testing.T) {
	policy, err := NewRandomFailurePolicy(DefaultFailureRate, 42)
	require.NoError(t, err)

	declined := 0
	const n = 5000
	for i := 0; i < n; i++ {
		if d, _ := policy.Decide(context.Background(), request); !d.Approved {
			declined++
		}
	}
	assert.InDelta(t, DefaultFailureRate, float64(declined)/n, 0.03)
}
