package moment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

// Analytics responses are passed through untouched; their shape belongs to
// the upstream API.

// PriceToYield converts a clean price into yields for one instrument.
func (c *Client) PriceToYield(ctx context.Context, id string, price domain.Num) (json.RawMessage, error) {
	payload := map[string]json.Number{"price": json.Number(price.String())}
	return c.analytics(ctx, id, "price-to-yield", payload)
}

// YieldToPrice converts a yield to maturity into prices for one instrument.
func (c *Client) YieldToPrice(ctx context.Context, id string, ytm domain.Num) (json.RawMessage, error) {
	payload := map[string]json.Number{"yield_to_maturity": json.Number(ytm.String())}
	return c.analytics(ctx, id, "yield-to-price", payload)
}

// MarkupRequest is the input to the markup calculator.
type MarkupRequest struct {
	Side      domain.OrderSide `json:"side"`
	Quantity  domain.Num       `json:"quantity"`
	MarkupBps domain.Num       `json:"markupBps"`
}

// MarkupCalculator prices a dealer markup for a trade.
func (c *Client) MarkupCalculator(ctx context.Context, id string, req MarkupRequest) (json.RawMessage, error) {
	payload := map[string]any{
		"side":     string(req.Side),
		"quantity": json.Number(req.Quantity.String()),
	}
	if req.MarkupBps.Valid() {
		payload["markup_bps"] = json.Number(req.MarkupBps.String())
	}
	return c.analytics(ctx, id, "markup-calculator", payload)
}

func (c *Client) analytics(ctx context.Context, id, op string, payload any) (json.RawMessage, error) {
	path := fmt.Sprintf("/v1/analytics/%s/%s/", url.PathEscape(id), op)

	body, err := c.do(ctx, op, http.MethodPost, path, nil, payload)
	if err != nil {
		return nil, fmt.Errorf("moment: %s %s: %w", op, id, err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("moment: %s %s: invalid json response", op, id)
	}
	return json.RawMessage(body), nil
}
