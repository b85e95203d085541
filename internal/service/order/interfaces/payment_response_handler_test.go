package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/internal/pkg/event"
	"stockflow/internal/pkg/mq"
	"stockflow/internal/service/order/domain"
)

type recordingResults struct {
	results []domain.PaymentResult
	err     error
}

func (r *recordingResults) HandlePaymentResult(_ context.Context, result domain.PaymentResult) error {
	r.results = append(r.results, result)
	return r.err
}

func responseMessage(t *testing.T, status string) kafka.Message {
	t.Helper()
	raw, err := json.Marshal(event.PaymentResponded{
		EventID:       "evt-1",
		Order:         event.Order{ID: "order-1", MemberID: 7},
		PaymentID:     "pay-1",
		PaymentStatus: status,
		Reason:        "declined",
	})
	require.NoError(t, err)
	return kafka.Message{Value: raw}
}

func TestPaymentResponseHandler_MapsStatus(t *testing.T) {
	svc := &recordingResults{}
	h := NewPaymentResponseHandler(svc)

	require.NoError(t, h.Handle(context.Background(), responseMessage(t, event.PaymentStatusCompleted)))
	require.NoError(t, h.Handle(context.Background(), responseMessage(t, event.PaymentStatusFailed)))

	require.Len(t, svc.results, 2)
	assert.Equal(t, domain.PaymentResult{OrderID: "order-1", PaymentID: "pay-1", Succeeded: true, Reason: "declined"}, svc.results[0])
	assert.False(t, svc.results[1].Succeeded)
}

func TestPaymentResponseHandler_IgnoresNonTerminalStatus(t *testing.T) {
	svc := &recordingResults{}

	require.NoError(t, NewPaymentResponseHandler(svc).Handle(context.Background(), responseMessage(t, "PROCESSING")))
	assert.Empty(t, svc.results)
}

func TestPaymentResponseHandler_PropagatesErrorsForRetry(t *testing.T) {
	svc := &recordingResults{err: errors.New("db down")}

	err := NewPaymentResponseHandler(svc).Handle(context.Background(), responseMessage(t, event.PaymentStatusCompleted))
	assert.EqualError(t, err, "db down")

	err = NewPaymentResponseHandler(svc).Handle(context.Background(), kafka.Message{Value: []byte("{")})
	assert.Error(t, err)
}

func TestLogDeadLetter_AlwaysAcknowledges(t *testing.T) {
	msg := kafka.Message{
		Key:   []byte("order-1"),
		Value: []byte(`{}`),
		Headers: []kafka.Header{
			{Key: mq.HeaderOriginTopic, Value: []byte(event.TopicPaymentResponse)},
			{Key: mq.HeaderAttempts, Value: []byte("4")},
		},
	}
	assert.NoError(t, LogDeadLetter(context.Background(), msg))
}
