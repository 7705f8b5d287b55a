package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/portalo/portalo/internal/analytics"
)

// Export handles GET /analytics/export.
func (h *AnalyticsHandler) Export(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	res, err := h.svc.Export(r.Context(), userID, parseQuery(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, res.Filename))
	w.WriteHeader(http.StatusOK)

	if err := analytics.WriteCSV(w, res.Events); err != nil {
		// Headers are gone; all we can do is log.
		h.logger.Warn("csv export interrupted",
			slog.String("page_id", res.PageID),
			slog.String("error", err.Error()),
		)
	}
}
