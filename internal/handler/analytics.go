package handler

import (
	"log/slog"
	"net/http"

	"github.com/portalo/portalo/internal/analytics"
	"github.com/portalo/portalo/internal/auth"
	"github.com/portalo/portalo/internal/handler/dto"
)

// AnalyticsHandler serves the authenticated dashboard reports.
type AnalyticsHandler struct {
	svc    *analytics.Service
	hub    *analytics.LiveHub
	logger *slog.Logger
}

// NewAnalyticsHandler creates a new AnalyticsHandler. Live streams are
// registered with hub so shutdown can end them.
func NewAnalyticsHandler(svc *analytics.Service, hub *analytics.LiveHub, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		svc:    svc,
		hub:    hub,
		logger: logger.With("component", "handler.analytics"),
	}
}

// parseQuery reads the common analytics query parameters.
func parseQuery(r *http.Request) analytics.Query {
	q := r.URL.Query()
	return analytics.Query{
		PageID:    q.Get("page_id"),
		Period:    q.Get("period"),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
	}
}

// callerID returns the authenticated user id, writing a 401 when absent.
func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, dto.CodeUnauthorized, "Authentication required", nil)
		return "", false
	}
	return userID, true
}

// Overview handles GET /analytics/overview.
func (h *AnalyticsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	ov, err := h.svc.Overview(r.Context(), userID, parseQuery(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, ov)
}

// Timeseries handles GET /analytics/timeseries.
func (h *AnalyticsHandler) Timeseries(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	buckets, err := h.svc.Timeseries(r.Context(), userID, parseQuery(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, buckets)
}

// Hourly handles GET /analytics/hourly.
func (h *AnalyticsHandler) Hourly(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	buckets, err := h.svc.Hourly(r.Context(), userID, parseQuery(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, buckets)
}

// Breakdown handles GET /analytics/breakdown.
func (h *AnalyticsHandler) Breakdown(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	b, err := h.svc.Breakdown(r.Context(), userID, parseQuery(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, b)
}

// TopLinks handles GET /analytics/top-links.
func (h *AnalyticsHandler) TopLinks(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	rows, err := h.svc.TopLinks(r.Context(), userID, parseQuery(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, rows)
}
