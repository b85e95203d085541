package application

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"stockflow/internal/service/shipping/domain"
)

type memoryShippingRepository struct {
	mu      sync.Mutex
	byOrder map[string]domain.Shipping
}

func (r *memoryShippingRepository) Create(_ context.Context, s *domain.Shipping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byOrder == nil {
		r.byOrder = map[string]domain.Shipping{}
	}
	if _, ok := r.byOrder[s.OrderID]; ok {
		return domain.ErrDuplicateShipping
	}
	r.byOrder[s.OrderID] = *s
	return nil
}

func (r *memoryShippingRepository) FindByOrderID(_ context.Context, orderID string) (*domain.Shipping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byOrder[orderID]
	if !ok {
		return nil, domain.ErrShippingNotFound
	}
	return &s, nil
}

func TestRecord_IsIdempotentPerOrder(t *testing.T) {
	repo := &memoryShippingRepository{}
	svc := NewShippingService(repo, noop.NewTracerProvider().Tracer("test"))
	cmd := RecordCommand{OrderID: "o-1", MemberID: 7, Address: "Seoul", AddressDetail: "101", Phone: "010"}

	first, err := svc.Record(context.Background(), cmd)
	require.NoError(t, err)

	cmd.Address = "Busan"
	second, err := svc.Record(context.Background(), cmd)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Seoul", second.Address, "the first recorded destination wins")
	assert.Len(t, repo.byOrder, 1)
}

func TestRecord_RequiresOrderID(t *testing.T) {
	svc := NewShippingService(&memoryShippingRepository{}, noop.NewTracerProvider().Tracer("test"))

	_, err := svc.Record(context.Background(), RecordCommand{Address: "Seoul"})

	assert.ErrorIs(t, err, domain.ErrInvalidShipping)
}
