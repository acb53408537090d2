package moment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/alanyoungcy/bonddesk/internal/domain"
	"github.com/alanyoungcy/bonddesk/internal/normalize"
)

// SubmitRequest is an order as the upstream API expects it.
type SubmitRequest struct {
	InstrumentID string
	Side         domain.OrderSide
	OrderType    domain.OrderType
	Quantity     domain.Num
	Price        domain.Num
}

type submitBody struct {
	InstrumentID string      `json:"instrument_id"`
	Side         string      `json:"side"`
	Quantity     json.Number `json:"quantity"`
	OrderType    string      `json:"order_type"`
	Price        json.Number `json:"price,omitempty"`
}

type ordersResponse struct {
	Orders []normalize.RawOrder `json:"orders"`
}

// SubmitOrder places an order upstream.
func (c *Client) SubmitOrder(ctx context.Context, req SubmitRequest) (domain.UpstreamOrder, error) {
	payload := submitBody{
		InstrumentID: req.InstrumentID,
		Side:         string(req.Side),
		Quantity:     json.Number(req.Quantity.String()),
		OrderType:    string(req.OrderType),
	}
	if req.Price.Valid() {
		payload.Price = json.Number(req.Price.String())
	}

	body, err := c.do(ctx, "submit_order", http.MethodPost, "/v1/trading/orders/", nil, payload)
	if err != nil {
		return domain.UpstreamOrder{}, fmt.Errorf("moment: submit order: %w", err)
	}
	return decodeOrder(body)
}

// GetOrder fetches one upstream order.
func (c *Client) GetOrder(ctx context.Context, id string) (domain.UpstreamOrder, error) {
	path := fmt.Sprintf("/v1/trading/orders/%s/", url.PathEscape(id))

	body, err := c.do(ctx, "get_order", http.MethodGet, path, nil, nil)
	if err != nil {
		return domain.UpstreamOrder{}, fmt.Errorf("moment: get order %s: %w", id, err)
	}
	return decodeOrder(body)
}

// CancelOrder asks the upstream API to cancel an order.
func (c *Client) CancelOrder(ctx context.Context, id string) error {
	path := fmt.Sprintf("/v1/trading/orders/%s/cancel/", url.PathEscape(id))

	if _, err := c.do(ctx, "cancel_order", http.MethodPost, path, nil, struct{}{}); err != nil {
		return fmt.Errorf("moment: cancel order %s: %w", id, err)
	}
	return nil
}

// ListOrders lists upstream orders, optionally filtered by status.
func (c *Client) ListOrders(ctx context.Context, status string) ([]domain.UpstreamOrder, error) {
	var params url.Values
	if status != "" {
		params = url.Values{"status": {status}}
	}

	body, err := c.do(ctx, "list_orders", http.MethodGet, "/v1/trading/orders/", params, nil)
	if err != nil {
		return nil, fmt.Errorf("moment: list orders: %w", err)
	}

	var resp ordersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("moment: decode orders: %w", err)
	}
	out := make([]domain.UpstreamOrder, 0, len(resp.Orders))
	for _, raw := range resp.Orders {
		out = append(out, normalize.Order(raw))
	}
	return out, nil
}

func decodeOrder(body []byte) (domain.UpstreamOrder, error) {
	var raw normalize.RawOrder
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.UpstreamOrder{}, fmt.Errorf("moment: decode order: %w", err)
	}
	return normalize.Order(raw), nil
}
