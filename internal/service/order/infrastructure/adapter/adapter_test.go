package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"stockflow/internal/pkg/event"
	"stockflow/internal/pkg/httpclient"
	"stockflow/internal/pkg/httpx"
	"stockflow/internal/pkg/lock"
	invdomain "stockflow/internal/service/inventory/domain"
	"stockflow/internal/service/order/domain"
	paydomain "stockflow/internal/service/payment/domain"
	shipapp "stockflow/internal/service/shipping/application"
	shipdomain "stockflow/internal/service/shipping/domain"
)

func newClient() *httpclient.Client {
	return httpclient.NewClient(noop.NewTracerProvider().Tracer("test"))
}

func testOrder(t *testing.T) *domain.Order {
	t.Helper()
	o, err := domain.NewOrder("order-1", 7, []domain.LineItem{
		{ProductID: 1, Quantity: 2, UnitPrice: 1500},
		{ProductID: 2, Quantity: 1, UnitPrice: 500},
	}, time.Now())
	require.NoError(t, err)
	return o
}

func TestInventoryHTTPAdapter_TranslatesErrorCodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/inventory/products/1/availability":
			assert.Equal(t, "3", r.URL.Query().Get("quantity"))
			httpx.WriteJSON(w, http.StatusOK, map[string]any{"available": true})
		case "/inventory/products/1/reserve":
			w.WriteHeader(http.StatusNoContent)
		case "/inventory/products/2/reserve":
			httpx.WriteJSON(w, http.StatusConflict, httpx.ErrorBody{Code: "StockInsufficient", Message: "product 2"})
		case "/inventory/products/3/reserve":
			httpx.WriteJSON(w, http.StatusServiceUnavailable, httpx.ErrorBody{Code: "LockUnavailable", Message: "busy"})
		default:
			httpx.WriteJSON(w, http.StatusInternalServerError, httpx.ErrorBody{Code: "Internal"})
		}
	}))
	defer srv.Close()
	a := NewInventoryHTTPAdapter(newClient(), StaticResolver(srv.URL))
	ctx := context.Background()

	ok, err := a.CheckAvailability(ctx, 1, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.NoError(t, a.ReserveStock(ctx, 1, 1))
	assert.ErrorIs(t, a.ReserveStock(ctx, 2, 1), invdomain.ErrStockInsufficient)
	assert.ErrorIs(t, a.ReserveStock(ctx, 3, 1), lock.ErrLockUnavailable)

	var statusErr *httpclient.StatusError
	assert.ErrorAs(t, a.RollbackStock(ctx, 4, 1), &statusErr)
}

type stubResolver struct{ err error }

func (s stubResolver) ResolveURL(string) (string, error) { return "", s.err }

func TestInventoryHTTPAdapter_ResolverFailure(t *testing.T) {
	boom := errors.New("no healthy instance")
	a := NewInventoryHTTPAdapter(newClient(), NacosResolver(stubResolver{err: boom}, "inventory-service"))

	assert.ErrorIs(t, a.ReserveStock(context.Background(), 1, 1), boom)
}

type stubProcessor struct {
	got paydomain.PaymentRequest
	out *paydomain.Payment
	err error
}

func (s *stubProcessor) ProcessPayment(_ context.Context, req paydomain.PaymentRequest) (*paydomain.Payment, error) {
	s.got = req
	return s.out, s.err
}

func TestPaymentSyncAdapter(t *testing.T) {
	order := testOrder(t)
	p := &stubProcessor{out: &paydomain.Payment{ID: "pay-1", Status: paydomain.StatusCompleted}}

	result, err := NewPaymentSyncAdapter(p).Trigger(context.Background(), order)

	require.NoError(t, err)
	assert.Equal(t, &domain.PaymentResult{OrderID: "order-1", PaymentID: "pay-1", Succeeded: true}, result)
	assert.Equal(t, int64(3500), p.got.TotalPrice)
	assert.Equal(t, 3, p.got.TotalQuantity)
	assert.Len(t, p.got.LineItems, 2)

	p.out = &paydomain.Payment{ID: "pay-1", Status: paydomain.StatusFailed, Reason: "declined"}
	result, err = NewPaymentSyncAdapter(p).Trigger(context.Background(), order)
	require.NoError(t, err)
	assert.False(t, result.Succeeded)
	assert.Equal(t, "declined", result.Reason)

	p.err = paydomain.ErrPaymentInProgress
	_, err = NewPaymentSyncAdapter(p).Trigger(context.Background(), order)
	assert.ErrorIs(t, err, paydomain.ErrPaymentInProgress)
}

type capturePublisher struct {
	topic   string
	key     string
	payload any
	err     error
}

func (c *capturePublisher) Publish(_ context.Context, topic, key string, payload any, _ ...kafka.Header) error {
	c.topic, c.key, c.payload = topic, key, payload
	return c.err
}

func TestPaymentKafkaAdapter_ReturnsNoResult(t *testing.T) {
	pub := &capturePublisher{}

	result, err := NewPaymentKafkaAdapter(pub).Trigger(context.Background(), testOrder(t))

	require.NoError(t, err)
	assert.Nil(t, result, "result arrives later on payment-response")
	assert.Equal(t, event.TopicPaymentRequest, pub.topic)
	assert.Equal(t, "order-1", pub.key)
	evt, ok := pub.payload.(event.PaymentRequested)
	require.True(t, ok)
	assert.Equal(t, "PAYMENT_PENDING", evt.Order.Status)
	assert.Equal(t, int64(3500), evt.Order.TotalPrice)
	assert.Len(t, evt.LineItems, 2)
	assert.NotEmpty(t, evt.EventID)
}

func TestPaymentKafkaAdapter_PublishFailure(t *testing.T) {
	pub := &capturePublisher{err: errors.New("broker down")}

	_, err := NewPaymentKafkaAdapter(pub).Trigger(context.Background(), testOrder(t))
	assert.EqualError(t, err, "broker down")
}

type stubShipping struct{ got shipapp.RecordCommand }

func (s *stubShipping) Record(_ context.Context, cmd shipapp.RecordCommand) (*shipdomain.Shipping, error) {
	s.got = cmd
	return &shipdomain.Shipping{OrderID: cmd.OrderID}, nil
}

func TestShippingAdapters(t *testing.T) {
	info := domain.ShippingInfo{Address: "Seoul", AddressDetail: "101", Phone: "010"}

	direct := &stubShipping{}
	require.NoError(t, NewShippingDirectAdapter(direct).Record(context.Background(), testOrder(t), info))
	assert.Equal(t, shipapp.RecordCommand{OrderID: "order-1", MemberID: 7, Address: "Seoul", AddressDetail: "101", Phone: "010"}, direct.got)

	pub := &capturePublisher{}
	require.NoError(t, NewShippingKafkaAdapter(pub).Record(context.Background(), testOrder(t), info))
	assert.Equal(t, event.TopicShipping, pub.topic)
	evt, ok := pub.payload.(event.ShippingRequested)
	require.True(t, ok)
	assert.Equal(t, "Seoul", evt.Address)
	assert.Equal(t, "order-1", evt.Order.ID)
}

func TestCollaboratorHTTPAdapters(t *testing.T) {
	var removed struct {
		ProductIDs []int64 `json:"productIds"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodDelete && r.URL.Path == "/carts/7/items":
			_ = json.NewDecoder(r.Body).Decode(&removed)
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/members/7":
			httpx.WriteJSON(w, http.StatusOK, map[string]any{"id": 7})
		default:
			httpx.WriteJSON(w, http.StatusNotFound, httpx.ErrorBody{Code: "NotFound"})
		}
	}))
	defer srv.Close()
	ctx := context.Background()

	require.NoError(t, NewCartHTTPAdapter(newClient(), srv.URL).RemoveItems(ctx, 7, []int64{1, 2}))
	assert.Equal(t, []int64{1, 2}, removed.ProductIDs)

	members := NewMemberHTTPAdapter(newClient(), srv.URL)
	assert.NoError(t, members.Exists(ctx, 7))
	assert.ErrorIs(t, members.Exists(ctx, 8), domain.ErrMemberNotFound)
}
