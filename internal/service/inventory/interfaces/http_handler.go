// internal/service/inventory/interfaces/http_handler.go
package interfaces

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"stockflow/internal/pkg/httpx"
	"stockflow/internal/pkg/lock"
	"stockflow/internal/service/inventory/application"
	"stockflow/internal/service/inventory/domain"
)

// InventoryUseCases 是 HTTP 层依赖的库存用例
type InventoryUseCases interface {
	CheckAvailability(ctx context.Context, productID int64, quantity int) (bool, error)
	ReserveStock(ctx context.Context, productID int64, quantity int) error
	RollbackStock(ctx context.Context, productID int64, quantity int) error
	SeedProduct(ctx context.Context, p *domain.Product) error
	Reconcile(ctx context.Context, chunk int) (application.ReconcileReport, error)
}

// ErrorMappings 库存领域错误到 HTTP 的映射，远程调用方按 code 还原错误
var ErrorMappings = []httpx.ErrorMapping{
	{Err: domain.ErrPurchaseTimeInvalid, Status: http.StatusConflict, Code: "PurchaseTimeInvalid"},
	{Err: domain.ErrStockInsufficient, Status: http.StatusConflict, Code: "StockInsufficient"},
	{Err: lock.ErrLockUnavailable, Status: http.StatusServiceUnavailable, Code: "LockUnavailable"},
	{Err: domain.ErrProductNotFound, Status: http.StatusNotFound, Code: "ProductNotFound"},
	{Err: domain.ErrInvalidQuantity, Status: http.StatusBadRequest, Code: "InvalidQuantity"},
}

// InventoryHandler 封装库存服务的 HTTP 接口
type InventoryHandler struct {
	service        InventoryUseCases
	reconcileChunk int
}

func NewInventoryHandler(service InventoryUseCases, reconcileChunk int) *InventoryHandler {
	return &InventoryHandler{service: service, reconcileChunk: reconcileChunk}
}

// StockRequest 是预占和回滚的请求体
type StockRequest struct {
	Quantity int `json:"quantity"`
}

// AvailabilityResponse 是可售检查的结果
type AvailabilityResponse struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
	Available bool  `json:"available"`
}

// SeedProductRequest 上架或重置一个商品
type SeedProductRequest struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Price             int64     `json:"price"`
	Stock             int64     `json:"stock"`
	PurchaseStartTime time.Time `json:"purchaseStartTime"`
}

func (h *InventoryHandler) RegisterRoutes(r chi.Router) {
	r.Route("/inventory", func(r chi.Router) {
		r.Post("/products", h.seedProduct)
		r.Post("/reconcile", h.reconcile)
		r.Route("/products/{productID}", func(r chi.Router) {
			r.Get("/availability", h.checkAvailability)
			r.Post("/reserve", h.reserve)
			r.Post("/rollback", h.rollback)
		})
	})
}

func (h *InventoryHandler) checkAvailability(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}
	quantity, err := strconv.Atoi(r.URL.Query().Get("quantity"))
	if err != nil {
		httpx.BadRequest(w, "quantity must be an integer")
		return
	}

	available, err := h.service.CheckAvailability(r.Context(), productID, quantity)
	if err != nil {
		httpx.WriteError(w, r, err, ErrorMappings)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, AvailabilityResponse{ProductID: productID, Quantity: quantity, Available: available})
}

func (h *InventoryHandler) reserve(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.ReserveStock)
}

func (h *InventoryHandler) rollback(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.RollbackStock)
}

func (h *InventoryHandler) mutate(w http.ResponseWriter, r *http.Request, op func(context.Context, int64, int) error) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}
	var req StockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, "invalid request body")
		return
	}
	if err := op(r.Context(), productID, req.Quantity); err != nil {
		httpx.WriteError(w, r, err, ErrorMappings)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *InventoryHandler) seedProduct(w http.ResponseWriter, r *http.Request) {
	var req SeedProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, "invalid request body")
		return
	}
	if req.ID <= 0 {
		httpx.BadRequest(w, "id must be positive")
		return
	}
	p := &domain.Product{
		ID:                req.ID,
		Name:              req.Name,
		Price:             req.Price,
		Stock:             req.Stock,
		PurchaseStartTime: req.PurchaseStartTime.UTC(),
	}
	if err := h.service.SeedProduct(r.Context(), p); err != nil {
		httpx.WriteError(w, r, err, ErrorMappings)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, req)
}

func (h *InventoryHandler) reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Reconcile(r.Context(), h.reconcileChunk)
	if err != nil {
		httpx.WriteError(w, r, err, ErrorMappings)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, report)
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.BadRequest(w, "invalid product id")
		return 0, false
	}
	return id, true
}
