package moment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/alanyoungcy/bonddesk/internal/domain"
	"github.com/alanyoungcy/bonddesk/internal/normalize"
)

// GetQuote fetches the tradable quote for one instrument. A valid quantity
// is passed through as the requested size.
func (c *Client) GetQuote(ctx context.Context, id string, quantity domain.Num) (domain.Quote, error) {
	path := fmt.Sprintf("/v1/trading/quote/%s/", url.PathEscape(id))
	var params url.Values
	if quantity.Valid() {
		params = url.Values{"quantity": {quantity.String()}}
	}

	body, err := c.do(ctx, "get_quote", http.MethodGet, path, params, nil)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("moment: get quote %s: %w", id, err)
	}

	var raw normalize.RawQuote
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.Quote{}, fmt.Errorf("moment: decode quote: %w", err)
	}
	return normalize.Quote(raw, id, time.Now()), nil
}

type marksRequest struct {
	InstrumentIDs []string `json:"instrument_ids"`
}

type marksResponse struct {
	Marks map[string]normalize.RawQuote `json:"marks"`
}

// GetMarks fetches the mark snapshot for a batch of instruments, keyed by
// instrument id. Ids the upstream does not know are simply absent.
func (c *Client) GetMarks(ctx context.Context, ids []string) (map[string]domain.Quote, error) {
	if len(ids) == 0 {
		return map[string]domain.Quote{}, nil
	}

	body, err := c.do(ctx, "get_marks", http.MethodPost, "/v1/data/marks/", nil, marksRequest{InstrumentIDs: ids})
	if err != nil {
		return nil, fmt.Errorf("moment: get marks: %w", err)
	}

	var resp marksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("moment: decode marks: %w", err)
	}

	now := time.Now()
	out := make(map[string]domain.Quote, len(resp.Marks))
	for id, raw := range resp.Marks {
		out[id] = normalize.Quote(raw, id, now)
	}
	return out, nil
}

// GetOrderBook fetches the depth ladder for one instrument.
func (c *Client) GetOrderBook(ctx context.Context, id string) (domain.OrderBook, error) {
	path := fmt.Sprintf("/v1/trading/order-book/%s/", url.PathEscape(id))

	body, err := c.do(ctx, "get_order_book", http.MethodGet, path, nil, nil)
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("moment: get order book %s: %w", id, err)
	}

	var raw normalize.RawOrderBook
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.OrderBook{}, fmt.Errorf("moment: decode order book: %w", err)
	}
	return normalize.OrderBook(raw, id, time.Now()), nil
}
