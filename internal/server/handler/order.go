package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

// OrderService defines the methods that the order handler requires from the
// service layer.
type OrderService interface {
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.Order, error)
	CancelOrder(ctx context.Context, id string) (domain.Order, error)
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	ListOrders(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error)
}

// OrderHandler serves order-related HTTP endpoints.
type OrderHandler struct {
	orders OrderService
	logger *slog.Logger
}

// NewOrderHandler creates an OrderHandler with the given service and logger.
func NewOrderHandler(orders OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		orders: orders,
		logger: logger,
	}
}

// ListOrders returns orders newest first.
// GET /api/orders?status=
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	var status domain.OrderStatus
	if s := strings.TrimSpace(r.URL.Query().Get("status")); s != "" && s != "all" {
		status = domain.ParseOrderStatus(s)
	}

	orders, err := h.orders.ListOrders(r.Context(), status)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to fetch orders")
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// GetOrder returns a single order.
// GET /api/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to fetch order")
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// PlaceOrder records an order and submits it to the market. When the
// submission fails the rejected order is returned alongside the error.
// POST /api/orders
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.OrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.orders.PlaceOrder(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrSubmitFailed) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": "Failed to submit order to market",
				"order": order,
			})
			return
		}
		writeServiceError(w, r, h.logger, err, "failed to create order")
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// CancelOrder cancels an order. The upstream cancel is best-effort.
// POST /api/orders/{id}/cancel
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.CancelOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to cancel order")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"order":   order,
	})
}
