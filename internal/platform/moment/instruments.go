package moment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/alanyoungcy/bonddesk/internal/domain"
	"github.com/alanyoungcy/bonddesk/internal/normalize"
)

// ListInstruments returns up to limit instruments with the given status.
// Records without any identifier are dropped.
func (c *Client) ListInstruments(ctx context.Context, status string, limit int) ([]domain.Bond, error) {
	params := url.Values{}
	if status != "" {
		params.Set("status", status)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	body, err := c.do(ctx, "list_instruments", http.MethodGet, "/v1/data/instrument/", params, nil)
	if err != nil {
		return nil, fmt.Errorf("moment: list instruments: %w", err)
	}

	raws, err := decodeList[normalize.RawInstrument](body, "data", "results", "instruments")
	if err != nil {
		return nil, fmt.Errorf("moment: decode instruments: %w", err)
	}
	return toBonds(raws), nil
}

// GetInstrument returns one instrument by its upstream id or ISIN.
func (c *Client) GetInstrument(ctx context.Context, id string) (domain.Bond, error) {
	path := fmt.Sprintf("/v1/data/instrument/%s/", url.PathEscape(id))

	body, err := c.do(ctx, "get_instrument", http.MethodGet, path, nil, nil)
	if err != nil {
		return domain.Bond{}, fmt.Errorf("moment: get instrument %s: %w", id, err)
	}

	var raw normalize.RawInstrument
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.Bond{}, fmt.Errorf("moment: decode instrument: %w", err)
	}
	b := normalize.Bond(raw)
	if b.ID == "" {
		b.ID = id
	}
	return b, nil
}

func toBonds(raws []normalize.RawInstrument) []domain.Bond {
	bonds := make([]domain.Bond, 0, len(raws))
	for _, raw := range raws {
		b := normalize.Bond(raw)
		if b.ID == "" {
			continue
		}
		bonds = append(bonds, b)
	}
	return bonds
}
