package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/bonddesk/internal/domain"
	"github.com/alanyoungcy/bonddesk/internal/service"
)

// WatchlistService defines the methods that the watchlist handler requires.
type WatchlistService interface {
	List(ctx context.Context, userID string) ([]service.WatchlistEntry, error)
	Add(ctx context.Context, userID, bondID string) (domain.WatchlistItem, error)
	Remove(ctx context.Context, userID, bondID string) error
}

type WatchlistHandler struct {
	watchlist WatchlistService
	logger    *slog.Logger
}

func NewWatchlistHandler(watchlist WatchlistService, logger *slog.Logger) *WatchlistHandler {
	return &WatchlistHandler{watchlist: watchlist, logger: logger}
}

// GET /api/watchlist?userId=
func (h *WatchlistHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.watchlist.List(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to fetch watchlist")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type watchlistRequest struct {
	UserID string `json:"userId"`
	BondID string `json:"bondId"`
}

// POST /api/watchlist
func (h *WatchlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req watchlistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID == "" {
		req.UserID = userID(r)
	}

	item, err := h.watchlist.Add(r.Context(), req.UserID, req.BondID)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to add to watchlist")
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// DELETE /api/watchlist/{bondId}?userId=
func (h *WatchlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if err := h.watchlist.Remove(r.Context(), userID(r), r.PathValue("bondId")); err != nil {
		writeServiceError(w, r, h.logger, err, "failed to remove from watchlist")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
