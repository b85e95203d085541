package interfaces

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/internal/pkg/event"
	"stockflow/internal/service/shipping/application"
	"stockflow/internal/service/shipping/domain"
)

type stubRecorder struct {
	got application.RecordCommand
	err error
}

func (s *stubRecorder) Record(_ context.Context, cmd application.RecordCommand) (*domain.Shipping, error) {
	s.got = cmd
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Shipping{OrderID: cmd.OrderID}, nil
}

func shippingMessage(t *testing.T) kafka.Message {
	t.Helper()
	raw, err := json.Marshal(event.ShippingRequested{
		EventID:       "evt-1",
		Address:       "Seoul",
		AddressDetail: "101",
		Phone:         "010",
		Order:         event.Order{ID: "order-1", MemberID: 7},
	})
	require.NoError(t, err)
	return kafka.Message{Value: raw}
}

func TestShippingEventHandler_Records(t *testing.T) {
	rec := &stubRecorder{}

	require.NoError(t, NewShippingEventHandler(rec).Handle(context.Background(), shippingMessage(t)))
	assert.Equal(t, application.RecordCommand{OrderID: "order-1", MemberID: 7, Address: "Seoul", AddressDetail: "101", Phone: "010"}, rec.got)
}

func TestShippingEventHandler_DropsInvalidEvents(t *testing.T) {
	rec := &stubRecorder{err: fmt.Errorf("%w: missing order id", domain.ErrInvalidShipping)}

	assert.NoError(t, NewShippingEventHandler(rec).Handle(context.Background(), shippingMessage(t)))
}

func TestShippingEventHandler_RetriesStoreErrors(t *testing.T) {
	rec := &stubRecorder{err: fmt.Errorf("connection refused")}
	h := NewShippingEventHandler(rec)

	assert.Error(t, h.Handle(context.Background(), shippingMessage(t)))
	assert.Error(t, h.Handle(context.Background(), kafka.Message{Value: []byte("not json")}))
}
