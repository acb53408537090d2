package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/bonddesk/internal/domain"
	"github.com/alanyoungcy/bonddesk/internal/notify"
	"github.com/alanyoungcy/bonddesk/internal/platform/moment"
)

// DefaultUserID is the demo account used when a request names no user.
const DefaultUserID = "demo"

// OrderChannel is the signal bus channel order events are published on.
const OrderChannel = "orders"

// OrderGateway submits and cancels orders upstream.
type OrderGateway interface {
	SubmitOrder(ctx context.Context, req moment.SubmitRequest) (domain.UpstreamOrder, error)
	CancelOrder(ctx context.Context, id string) error
}

// OrderService handles the order lifecycle: record locally, submit upstream,
// then patch the local record with the outcome. The steps are not atomic; a
// reader between them sees a pending order.
type OrderService struct {
	orders   domain.OrderStore
	bonds    domain.BondStore
	gateway  OrderGateway
	limiter  domain.RateLimiter
	bus      domain.SignalBus
	notifier *notify.Notifier
	logger   *slog.Logger
}

// NewOrderService creates an OrderService. gateway may be nil, in which case
// orders stay local and pending.
func NewOrderService(
	orders domain.OrderStore,
	bonds domain.BondStore,
	gateway OrderGateway,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		orders:  orders,
		bonds:   bonds,
		gateway: gateway,
		logger:  logger.With(slog.String("component", "order_service")),
	}
}

// WithLimiter caps order submissions per user at 10 per second.
func (s *OrderService) WithLimiter(l domain.RateLimiter) *OrderService {
	s.limiter = l
	return s
}

// WithEvents attaches the event bus and alert notifier. Either may be nil.
func (s *OrderService) WithEvents(bus domain.SignalBus, n *notify.Notifier) *OrderService {
	s.bus = bus
	s.notifier = n
	return s
}

// PlaceOrder validates req, records it locally and submits it upstream. If
// the upstream submission fails the local order is marked rejected and
// returned together with an error wrapping domain.ErrSubmitFailed.
func (s *OrderService) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.Order, error) {
	if err := req.Validate(); err != nil {
		return domain.Order{}, fmt.Errorf("order_service: %w", err)
	}
	if strings.TrimSpace(req.UserID) == "" {
		req.UserID = DefaultUserID
	}

	if s.limiter != nil {
		// A limiter outage fails open, like the HTTP rate limit middleware.
		allowed, err := s.limiter.Allow(ctx, "orders:"+req.UserID, 10, time.Second)
		if err != nil {
			s.logger.WarnContext(ctx, "order rate limiter unavailable, allowing",
				slog.String("user_id", req.UserID),
				slog.String("error", err.Error()),
			)
		} else if !allowed {
			return domain.Order{}, fmt.Errorf("order_service: %w", domain.ErrRateLimited)
		}
	}

	bond, err := lookupBond(ctx, s.bonds, req.BondID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order_service: bond %q: %w", req.BondID, err)
	}

	order, err := s.orders.Create(ctx, domain.Order{
		UserID:     req.UserID,
		BondID:     bond.ID,
		Side:       req.Side,
		OrderType:  req.OrderType,
		Quantity:   req.Quantity,
		LimitPrice: req.LimitPrice,
		Status:     domain.OrderStatusPending,
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("order_service: create order: %w", err)
	}

	if s.gateway == nil {
		s.publish(ctx, "order_placed", order)
		return order, nil
	}

	submitReq := moment.SubmitRequest{
		InstrumentID: instrumentID(bond),
		Side:         order.Side,
		OrderType:    order.OrderType,
		Quantity:     order.Quantity,
	}
	if order.OrderType == domain.OrderTypeLimit {
		submitReq.Price = order.LimitPrice
	}

	up, submitErr := s.gateway.SubmitOrder(ctx, submitReq)
	if submitErr != nil {
		rejected := domain.OrderStatusRejected
		updated, err := s.orders.Update(ctx, order.ID, domain.OrderPatch{Status: &rejected})
		if err != nil {
			return order, fmt.Errorf("order_service: mark %q rejected: %w", order.ID, err)
		}
		s.logger.WarnContext(ctx, "upstream order submission failed",
			slog.String("order_id", order.ID),
			slog.String("bond_id", order.BondID),
			slog.String("error", submitErr.Error()),
		)
		s.rejected(ctx, updated, submitErr.Error())
		return updated, fmt.Errorf("order_service: submit %q: %w: %v", order.ID, domain.ErrSubmitFailed, submitErr)
	}

	patch := domain.OrderPatch{UpstreamOrderID: &up.ID}
	if up.Status != "" && up.Status != order.Status {
		patch.Status = &up.Status
	}
	if up.FilledQuantity.Valid() {
		patch.FilledQuantity = &up.FilledQuantity
	}
	if up.AverageFillPrice.Valid() {
		patch.AverageFillPrice = &up.AverageFillPrice
	}
	updated, err := s.orders.Update(ctx, order.ID, patch)
	if err != nil {
		return order, fmt.Errorf("order_service: record upstream result for %q: %w", order.ID, err)
	}

	if updated.Status == domain.OrderStatusRejected {
		s.rejected(ctx, updated, "rejected by upstream")
	}
	s.publish(ctx, "order_placed", updated)
	s.logger.InfoContext(ctx, "order placed",
		slog.String("order_id", updated.ID),
		slog.String("upstream_order_id", up.ID),
		slog.String("bond_id", updated.BondID),
		slog.String("side", string(updated.Side)),
		slog.String("status", string(updated.Status)),
	)
	return updated, nil
}

// CancelOrder cancels an order. The upstream cancel is best-effort: its
// failure is logged and the local order is canceled regardless. Canceling
// a terminal order fails with domain.ErrTerminalOrder.
func (s *OrderService) CancelOrder(ctx context.Context, id string) (domain.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order_service: cancel %q: %w", id, err)
	}
	if order.Status.Terminal() {
		return order, fmt.Errorf("order_service: cancel %q: %w", id, domain.ErrTerminalOrder)
	}

	if s.gateway != nil && order.UpstreamOrderID != "" {
		if err := s.gateway.CancelOrder(ctx, order.UpstreamOrderID); err != nil {
			s.logger.WarnContext(ctx, "upstream cancel failed, canceling locally",
				slog.String("order_id", id),
				slog.String("upstream_order_id", order.UpstreamOrderID),
				slog.String("error", err.Error()),
			)
		}
	}

	canceled := domain.OrderStatusCanceled
	updated, err := s.orders.Update(ctx, id, domain.OrderPatch{Status: &canceled})
	if err != nil {
		return order, fmt.Errorf("order_service: cancel %q: %w", id, err)
	}

	s.publish(ctx, "order_canceled", updated)
	s.logger.InfoContext(ctx, "order canceled", slog.String("order_id", id))
	return updated, nil
}

// GetOrder retrieves a single order by its ID.
func (s *OrderService) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order_service: get order %q: %w", id, err)
	}
	return order, nil
}

// ListOrders returns orders newest first, optionally filtered by status.
func (s *OrderService) ListOrders(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	orders, err := s.orders.List(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("order_service: list orders: %w", err)
	}
	return orders, nil
}

func (s *OrderService) rejected(ctx context.Context, o domain.Order, reason string) {
	if err := s.notifier.Notify(ctx, notify.Event{
		Type:    notify.EventOrderRejected,
		Title:   "Order rejected",
		Message: reason,
		Fields: map[string]string{
			"order_id": o.ID,
			"bond_id":  o.BondID,
			"side":     string(o.Side),
			"quantity": o.Quantity.String(),
		},
	}); err != nil {
		s.logger.DebugContext(ctx, "rejection notification failed", slog.String("error", err.Error()))
	}
}

func (s *OrderService) publish(ctx context.Context, event string, o domain.Order) {
	if s.bus == nil {
		return
	}
	payload, _ := json.Marshal(map[string]any{
		"event": event,
		"order": o,
	})
	if err := s.bus.Publish(ctx, OrderChannel, payload); err != nil {
		s.logger.WarnContext(ctx, "publish order event failed",
			slog.String("order_id", o.ID),
			slog.String("error", err.Error()),
		)
	}
}
