package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/bonddesk/internal/domain"
	"github.com/alanyoungcy/bonddesk/internal/service"
)

// PortfolioService defines the methods that the portfolio handler requires.
type PortfolioService interface {
	Portfolio(ctx context.Context, userID string) (domain.Portfolio, error)
	AddHolding(ctx context.Context, req service.HoldingRequest) (domain.Holding, error)
	RemoveHolding(ctx context.Context, id string) error
}

// PortfolioHandler serves the holdings endpoints.
type PortfolioHandler struct {
	portfolio PortfolioService
	logger    *slog.Logger
}

func NewPortfolioHandler(portfolio PortfolioService, logger *slog.Logger) *PortfolioHandler {
	return &PortfolioHandler{portfolio: portfolio, logger: logger}
}

// GetPortfolio returns holdings and their summary.
// GET /api/portfolio?userId=
func (h *PortfolioHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	p, err := h.portfolio.Portfolio(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to fetch portfolio")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// AddHolding creates a holding.
// POST /api/portfolio
func (h *PortfolioHandler) AddHolding(w http.ResponseWriter, r *http.Request) {
	var req service.HoldingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID == "" {
		req.UserID = userID(r)
	}

	holding, err := h.portfolio.AddHolding(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to create portfolio holding")
		return
	}
	writeJSON(w, http.StatusCreated, holding)
}

// RemoveHolding deletes a holding.
// DELETE /api/portfolio/{id}
func (h *PortfolioHandler) RemoveHolding(w http.ResponseWriter, r *http.Request) {
	if err := h.portfolio.RemoveHolding(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, h.logger, err, "failed to delete portfolio holding")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
