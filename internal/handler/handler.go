// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/portalo/portalo/internal/analytics"
	"github.com/portalo/portalo/internal/handler/dto"
	"github.com/portalo/portalo/internal/middleware"
)

// Handler serves the router-level fallbacks.
type Handler struct{}

// New creates a new Handler instance.
func New() *Handler {
	return &Handler{}
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, dto.CodeNotFound, "Resource not found", nil)
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, dto.CodeMethodNotAllow, "Method not allowed", nil)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeData writes a 200 {data: ...} envelope.
func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, dto.DataResponse{Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string, details map[string]string) {
	writeJSON(w, status, dto.ErrorResponse{Error: dto.ErrorBody{
		Code:    code,
		Message: message,
		Details: details,
	}})
}

// writeServiceError maps analytics errors to HTTP responses. Anything
// unrecognized is logged with the request id and reported as a bare 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var ve *analytics.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, dto.CodeValidation, "Invalid request", ve.Fields)
	case errors.Is(err, analytics.ErrNotFound):
		writeError(w, http.StatusNotFound, dto.CodeNotFound, "Page not found", nil)
	case errors.Is(err, analytics.ErrUpgradeRequired):
		writeError(w, http.StatusForbidden, dto.CodeUpgradeRequired, "This feature requires a Pro plan", nil)
	default:
		logger.Error("request failed",
			slog.String("error", err.Error()),
			slog.String("endpoint", r.Method+" "+r.URL.Path),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		writeError(w, http.StatusInternalServerError, dto.CodeInternal, "Internal server error", nil)
	}
}
