package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/bonddesk/internal/service"
)

// ReferenceSyncer imports upstream reference data.
type ReferenceSyncer interface {
	Sync(ctx context.Context) (service.SyncResult, error)
}

// QuoteTrigger requests an extra quote poll cycle.
type QuoteTrigger interface {
	Trigger() bool
}

// SyncHandler serves the manual sync endpoints.
type SyncHandler struct {
	reference ReferenceSyncer
	quotes    QuoteTrigger
	logger    *slog.Logger
}

// NewSyncHandler creates a SyncHandler. quotes may be nil when the poller
// does not run in this process.
func NewSyncHandler(reference ReferenceSyncer, quotes QuoteTrigger, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{reference: reference, quotes: quotes, logger: logger}
}

// SyncBonds imports upstream instruments not stored yet.
// POST /api/sync-bonds
func (h *SyncHandler) SyncBonds(w http.ResponseWriter, r *http.Request) {
	h.logger.InfoContext(r.Context(), "handler: bond sync requested")
	res, err := h.reference.Sync(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: bond sync failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Failed to sync bonds from market")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// TriggerQuotes enqueues one quote poll cycle.
// POST /api/sync/quotes
func (h *SyncHandler) TriggerQuotes(w http.ResponseWriter, r *http.Request) {
	if h.quotes == nil {
		writeError(w, http.StatusServiceUnavailable, "quote sync is not running")
		return
	}
	status := "accepted"
	if !h.quotes.Trigger() {
		status = "already_pending"
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":       status,
		"requested_at": time.Now().UTC().Format(time.RFC3339),
	})
}
