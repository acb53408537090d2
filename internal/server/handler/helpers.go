package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

// maxBodyBytes caps decoded request bodies.
const maxBodyBytes = 1 << 20

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps a service error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrTerminalOrder):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrUpstreamUnavailable), errors.Is(err, domain.ErrUnauthorized):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeServiceError answers err with its mapped status. Client errors carry
// the error text; server errors are logged and answered with fallback.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, fallback string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "handler: "+fallback,
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, status, fallback)
		return
	}
	writeError(w, status, clientMessage(err))
}

// clientMessage strips the "pkg: op:" prefixes from a wrapped error.
func clientMessage(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{
		domain.ErrInvalidInput,
		domain.ErrNotFound,
		domain.ErrAlreadyExists,
		domain.ErrTerminalOrder,
		domain.ErrRateLimited,
	} {
		if i := strings.Index(msg, sentinel.Error()); i >= 0 && errors.Is(err, sentinel) {
			return msg[i:]
		}
	}
	return msg
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

// queryNum parses an optional numeric query parameter. Zero counts as unset.
func queryNum(q url.Values, key string) (*domain.Num, error) {
	n, err := domain.ParseNum(q.Get(key))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	if !n.Valid() || n.Decimal().IsZero() {
		return nil, nil
	}
	return &n, nil
}

// queryInt parses an optional integer query parameter. Zero counts as unset.
func queryInt(q url.Values, key string) (*int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", domain.ErrInvalidInput, key)
	}
	if n == 0 {
		return nil, nil
	}
	return &n, nil
}

// userID reads the acting user from the userId query parameter.
func userID(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("userId"))
}
