// internal/service/order/interfaces/http_handler.go
package interfaces

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"stockflow/internal/pkg/httpx"
	"stockflow/internal/pkg/lock"
	invdomain "stockflow/internal/service/inventory/domain"
	"stockflow/internal/service/order/application"
	"stockflow/internal/service/order/domain"
)

// HeaderMemberID 由网关在鉴权后写入
const HeaderMemberID = "X-Member-Id"

// OrderUseCases 是 HTTP 层依赖的订单用例
type OrderUseCases interface {
	RequestOrder(ctx context.Context, items []domain.LineItem) (bool, error)
	CreateOrder(ctx context.Context, cmd application.CreateOrderCommand) (*domain.Order, error)
	GetOrder(ctx context.Context, memberID int64, orderID string) (*domain.Order, error)
	CancelOrder(ctx context.Context, memberID int64, orderID string) (*domain.Order, error)
	RequestReturn(ctx context.Context, memberID int64, orderID string) (*domain.Order, error)
	ApproveReturnRequest(ctx context.Context, orderID string) (*domain.Order, error)
}

var errorMappings = []httpx.ErrorMapping{
	{Err: domain.ErrOrderNotFound, Status: http.StatusNotFound, Code: "OrderNotFound"},
	{Err: domain.ErrMemberNotFound, Status: http.StatusNotFound, Code: "MemberNotFound"},
	{Err: domain.ErrInvalidOrder, Status: http.StatusBadRequest, Code: "InvalidOrder"},
	{Err: domain.ErrCancellationNotAllowed, Status: http.StatusConflict, Code: "CancellationNotAllowed"},
	{Err: domain.ErrReturnNotAllowed, Status: http.StatusConflict, Code: "ReturnNotAllowed"},
	{Err: domain.ErrOrderNotReturnRequested, Status: http.StatusConflict, Code: "OrderNotReturnRequested"},
	{Err: domain.ErrStaleStatus, Status: http.StatusConflict, Code: "StaleStatus"},
	{Err: domain.ErrPaymentFailed, Status: http.StatusPaymentRequired, Code: "PaymentFailed"},
	{Err: invdomain.ErrPurchaseTimeInvalid, Status: http.StatusConflict, Code: "PurchaseTimeInvalid"},
	{Err: invdomain.ErrStockInsufficient, Status: http.StatusConflict, Code: "StockInsufficient"},
	{Err: invdomain.ErrProductNotFound, Status: http.StatusNotFound, Code: "ProductNotFound"},
	{Err: invdomain.ErrInvalidQuantity, Status: http.StatusBadRequest, Code: "InvalidQuantity"},
	{Err: lock.ErrLockUnavailable, Status: http.StatusServiceUnavailable, Code: "LockUnavailable"},
	{Err: context.DeadlineExceeded, Status: http.StatusGatewayTimeout, Code: "Timeout"},
}

// OrderHandler 封装了订单服务的 HTTP 处理器
type OrderHandler struct {
	service OrderUseCases
}

func NewOrderHandler(service OrderUseCases) *OrderHandler {
	return &OrderHandler{service: service}
}

type LineItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
	UnitPrice int64 `json:"unitPrice"`
}

type AvailabilityRequest struct {
	LineItems []LineItemRequest `json:"lineItems"`
}

type AvailabilityResponse struct {
	Available bool `json:"available"`
}

type CreateOrderRequest struct {
	LineItems     []LineItemRequest `json:"lineItems"`
	Address       string            `json:"address"`
	AddressDetail string            `json:"addressDetail"`
	Phone         string            `json:"phone"`
	FromCart      bool              `json:"fromCart"`
}

type OrderResponse struct {
	ID            string             `json:"id"`
	MemberID      int64              `json:"memberId"`
	Status        string             `json:"status"`
	TotalPrice    int64              `json:"totalPrice"`
	TotalQuantity int                `json:"totalQuantity"`
	LineItems     []LineItemResponse `json:"lineItems"`
}

type LineItemResponse struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
	UnitPrice int64 `json:"unitPrice"`
	Subtotal  int64 `json:"subtotal"`
}

func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/availability", h.checkAvailability)
		r.Post("/", h.createOrder)
		r.Route("/{orderID}", func(r chi.Router) {
			r.Get("/", h.getOrder)
			r.Post("/cancel", h.memberAction(OrderUseCases.CancelOrder))
			r.Post("/return", h.memberAction(OrderUseCases.RequestReturn))
			r.Post("/return/approve", h.approveReturn)
		})
	})
}

func (h *OrderHandler) checkAvailability(w http.ResponseWriter, r *http.Request) {
	var req AvailabilityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, "invalid request body")
		return
	}
	ok, err := h.service.RequestOrder(r.Context(), toLineItems(req.LineItems))
	if err != nil {
		httpx.WriteError(w, r, err, errorMappings)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, AvailabilityResponse{Available: ok})
}

func (h *OrderHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	memberID, ok := memberIDHeader(w, r)
	if !ok {
		return
	}
	var req CreateOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, "invalid request body")
		return
	}

	order, err := h.service.CreateOrder(r.Context(), application.CreateOrderCommand{
		MemberID:  memberID,
		LineItems: toLineItems(req.LineItems),
		Shipping: domain.ShippingInfo{
			Address:       req.Address,
			AddressDetail: req.AddressDetail,
			Phone:         req.Phone,
		},
		FromCart: req.FromCart,
	})
	if err != nil {
		httpx.WriteError(w, r, err, errorMappings)
		return
	}
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("order.id", order.ID))

	switch order.Status {
	case domain.StatusPaymentFailed:
		// 订单已落库但支付被拒绝，库存已回滚；订单详情可以通过 GET 查询
		httpx.WriteError(w, r, fmt.Errorf("%w: order %s", domain.ErrPaymentFailed, order.ID), errorMappings)
	case domain.StatusPaymentPending:
		httpx.WriteJSON(w, http.StatusAccepted, toOrderResponse(order))
	default:
		httpx.WriteJSON(w, http.StatusCreated, toOrderResponse(order))
	}
}

func (h *OrderHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	memberID, ok := memberIDHeader(w, r)
	if !ok {
		return
	}
	order, err := h.service.GetOrder(r.Context(), memberID, chi.URLParam(r, "orderID"))
	if err != nil {
		httpx.WriteError(w, r, err, errorMappings)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *OrderHandler) memberAction(op func(OrderUseCases, context.Context, int64, string) (*domain.Order, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		memberID, ok := memberIDHeader(w, r)
		if !ok {
			return
		}
		order, err := op(h.service, r.Context(), memberID, chi.URLParam(r, "orderID"))
		if err != nil {
			httpx.WriteError(w, r, err, errorMappings)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toOrderResponse(order))
	}
}

func (h *OrderHandler) approveReturn(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.ApproveReturnRequest(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		httpx.WriteError(w, r, err, errorMappings)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toOrderResponse(order))
}

func memberIDHeader(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.Header.Get(HeaderMemberID), 10, 64)
	if err != nil || id <= 0 {
		httpx.BadRequest(w, "missing or invalid "+HeaderMemberID+" header")
		return 0, false
	}
	return id, true
}

func toLineItems(in []LineItemRequest) []domain.LineItem {
	items := make([]domain.LineItem, 0, len(in))
	for _, li := range in {
		items = append(items, domain.LineItem{ProductID: li.ProductID, Quantity: li.Quantity, UnitPrice: li.UnitPrice})
	}
	return items
}

func toOrderResponse(o *domain.Order) OrderResponse {
	resp := OrderResponse{
		ID:            o.ID,
		MemberID:      o.MemberID,
		Status:        string(o.Status),
		TotalPrice:    o.TotalPrice,
		TotalQuantity: o.TotalQuantity,
		LineItems:     make([]LineItemResponse, 0, len(o.LineItems)),
	}
	for _, li := range o.LineItems {
		resp.LineItems = append(resp.LineItems, LineItemResponse{
			ProductID: li.ProductID,
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice,
			Subtotal:  li.Subtotal(),
		})
	}
	return resp
}
