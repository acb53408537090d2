package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// StatusSource reports the counters shown by the health check. Any field
// may be nil.
type StatusSource struct {
	BreakerState func() string
	Counts       func(ctx context.Context) (map[string]int, error)
	WSClients    func() int
}

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	mode   string
	status StatusSource
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler with the provided logger.
func NewHealthHandler(mode string, status StatusSource, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{mode: mode, status: status, logger: logger}
}

// HealthCheck reports liveness plus upstream and store state.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":    "ok",
		"mode":      h.mode,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.status.BreakerState != nil {
		body["upstream"] = h.status.BreakerState()
	}
	if h.status.Counts != nil {
		counts, err := h.status.Counts(r.Context())
		if err != nil {
			h.logger.WarnContext(r.Context(), "handler: health counts failed", slog.String("error", err.Error()))
			body["status"] = "degraded"
		}
		body["counts"] = counts
	}
	if h.status.WSClients != nil {
		body["ws_clients"] = h.status.WSClients()
	}
	writeJSON(w, http.StatusOK, body)
}
