package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/bonddesk/internal/domain"
	"github.com/alanyoungcy/bonddesk/internal/service"
)

// BondService defines the methods that the bond handler requires.
type BondService interface {
	Search(ctx context.Context, filter domain.BondFilter) ([]domain.Bond, error)
	Get(ctx context.Context, id string) (domain.BondDetail, error)
	Quote(ctx context.Context, id string, quantity domain.Num) (domain.Quote, error)
	OrderBook(ctx context.Context, id string) domain.OrderBook
	PriceHistory(ctx context.Context, req service.PriceHistoryRequest) (domain.PriceHistory, error)
	PriceChart(ctx context.Context, req service.PriceHistoryRequest) (domain.PriceHistory, error)
}

// BondHandler serves bond screening, detail and market data endpoints.
type BondHandler struct {
	bonds  BondService
	logger *slog.Logger
}

// NewBondHandler creates a BondHandler with the given service and logger.
func NewBondHandler(bonds BondService, logger *slog.Logger) *BondHandler {
	return &BondHandler{bonds: bonds, logger: logger}
}

// ListBonds screens bonds by the query filters.
// GET /api/bonds?search=&bondType=&sector=&rating=&status=&minYield=&maxYield=&minMaturity=&maxMaturity=
func (h *BondHandler) ListBonds(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.BondFilter{
		Search:   q.Get("search"),
		BondType: q.Get("bondType"),
		Sector:   q.Get("sector"),
		Rating:   q.Get("rating"),
		Status:   q.Get("status"),
	}

	var err error
	if filter.MinYield, err = queryNum(q, "minYield"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.MaxYield, err = queryNum(q, "maxYield"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.MinMaturityYears, err = queryInt(q, "minMaturity"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.MaxMaturityYears, err = queryInt(q, "maxMaturity"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bonds, err := h.bonds.Search(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to fetch bonds")
		return
	}
	if bonds == nil {
		bonds = []domain.Bond{}
	}
	writeJSON(w, http.StatusOK, bonds)
}

// GetBond returns a bond with its market data snapshot.
// GET /api/bonds/{id}
func (h *BondHandler) GetBond(w http.ResponseWriter, r *http.Request) {
	detail, err := h.bonds.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to fetch bond")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// GetQuote returns a live or estimated quote.
// GET /api/bonds/{id}/quote?quantity=
func (h *BondHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	qty, err := domain.ParseNum(r.URL.Query().Get("quantity"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "quantity: "+err.Error())
		return
	}
	quote, err := h.bonds.Quote(r.Context(), r.PathValue("id"), qty)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to fetch quote")
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// GetOrderBook returns the bond's order book, empty when unavailable.
// GET /api/bonds/{id}/order-book
func (h *BondHandler) GetOrderBook(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.bonds.OrderBook(r.Context(), r.PathValue("id")))
}

// GetPrices returns the historical price series.
// GET /api/bonds/{id}/prices?start=&end=&frequency=1day
func (h *BondHandler) GetPrices(w http.ResponseWriter, r *http.Request) {
	hist, err := h.bonds.PriceHistory(r.Context(), historyRequest(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to fetch prices")
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

// GetPriceChart is GetPrices with the range defaulting to the last 30 days.
// GET /api/bonds/{id}/price-chart?start=&end=&frequency=
func (h *BondHandler) GetPriceChart(w http.ResponseWriter, r *http.Request) {
	hist, err := h.bonds.PriceChart(r.Context(), historyRequest(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to fetch price chart")
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

// historyRequest reads the range parameters. start_date, end_date and
// granularity are accepted as aliases.
func historyRequest(r *http.Request) service.PriceHistoryRequest {
	q := r.URL.Query()
	first := func(keys ...string) string {
		for _, k := range keys {
			if v := q.Get(k); v != "" {
				return v
			}
		}
		return ""
	}
	return service.PriceHistoryRequest{
		BondID:    r.PathValue("id"),
		Start:     first("start", "start_date"),
		End:       first("end", "end_date"),
		Frequency: first("frequency", "granularity"),
	}
}
