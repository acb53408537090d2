package moment

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/alanyoungcy/bonddesk/internal/domain"
	"github.com/alanyoungcy/bonddesk/internal/normalize"
)

// GetPriceHistory fetches the price series for id between start and end
// (YYYY-MM-DD) at the given frequency, e.g. "1day".
func (c *Client) GetPriceHistory(ctx context.Context, id, start, end, frequency string) (domain.PriceHistory, error) {
	path := fmt.Sprintf("/v1/data/instrument/%s/price/", url.PathEscape(id))
	params := url.Values{}
	params.Set("start", start)
	params.Set("end", end)
	if frequency != "" {
		params.Set("frequency", frequency)
	}

	body, err := c.do(ctx, "get_price_history", http.MethodGet, path, params, nil)
	if err != nil {
		return domain.PriceHistory{}, fmt.Errorf("moment: get price history %s: %w", id, err)
	}

	raws, err := decodeList[normalize.RawPricePoint](body, "price_data", "data")
	if err != nil {
		return domain.PriceHistory{}, fmt.Errorf("moment: decode price history: %w", err)
	}

	hist := domain.EmptyPriceHistory(frequency, start, end)
	for _, raw := range raws {
		hist.Data = append(hist.Data, normalize.PricePoint(raw))
	}
	hist.Count = len(hist.Data)
	return hist, nil
}
