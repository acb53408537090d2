package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/bonddesk/internal/domain"
	"github.com/alanyoungcy/bonddesk/internal/platform/moment"
)

// AnalyticsService passes bond analytics through to the upstream API.
type AnalyticsService interface {
	PriceToYield(ctx context.Context, id string, price domain.Num) (json.RawMessage, error)
	YieldToPrice(ctx context.Context, id string, ytm domain.Num) (json.RawMessage, error)
	MarkupCalculator(ctx context.Context, id string, req moment.MarkupRequest) (json.RawMessage, error)
}

// BondLookup resolves a local bond id or ISIN to a bond.
type BondLookup interface {
	Get(ctx context.Context, id string) (domain.BondDetail, error)
}

// AnalyticsHandler serves the pricing calculators.
type AnalyticsHandler struct {
	analytics AnalyticsService
	bonds     BondLookup
	logger    *slog.Logger
}

func NewAnalyticsHandler(analytics AnalyticsService, bonds BondLookup, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics, bonds: bonds, logger: logger}
}

// PriceToYield converts a clean price to yields.
// GET /api/bonds/{id}/analytics/yield?price=
func (h *AnalyticsHandler) PriceToYield(w http.ResponseWriter, r *http.Request) {
	price, err := requiredNum(r, "price")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.respond(w, r, func(ctx context.Context, instrument string) (json.RawMessage, error) {
		return h.analytics.PriceToYield(ctx, instrument, price)
	})
}

// YieldToPrice converts a yield to maturity to a price.
// GET /api/bonds/{id}/analytics/price?ytm=
func (h *AnalyticsHandler) YieldToPrice(w http.ResponseWriter, r *http.Request) {
	ytm, err := requiredNum(r, "ytm")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.respond(w, r, func(ctx context.Context, instrument string) (json.RawMessage, error) {
		return h.analytics.YieldToPrice(ctx, instrument, ytm)
	})
}

// Markup computes a marked-up price for a trade.
// POST /api/bonds/{id}/analytics/markup
func (h *AnalyticsHandler) Markup(w http.ResponseWriter, r *http.Request) {
	var req moment.MarkupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Side != domain.OrderSideBuy && req.Side != domain.OrderSideSell {
		writeError(w, http.StatusBadRequest, "side must be buy or sell")
		return
	}
	if !req.Quantity.Positive() {
		writeError(w, http.StatusBadRequest, "quantity must be greater than zero")
		return
	}
	h.respond(w, r, func(ctx context.Context, instrument string) (json.RawMessage, error) {
		return h.analytics.MarkupCalculator(ctx, instrument, req)
	})
}

// respond resolves the bond to its upstream identifier, runs call and
// writes its raw result.
func (h *AnalyticsHandler) respond(w http.ResponseWriter, r *http.Request, call func(context.Context, string) (json.RawMessage, error)) {
	detail, err := h.bonds.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to resolve bond")
		return
	}
	instrument := detail.ISIN
	if instrument == "" {
		instrument = detail.ID
	}

	raw, err := call(r.Context(), instrument)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "analytics request failed")
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

func requiredNum(r *http.Request, key string) (domain.Num, error) {
	n, err := domain.ParseNum(r.URL.Query().Get(key))
	if err != nil {
		return domain.Num{}, err
	}
	if !n.Valid() {
		return domain.Num{}, fmt.Errorf("%w: %s is required", domain.ErrInvalidInput, key)
	}
	return n, nil
}
