package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/portalo/portalo/internal/handler/dto"
)

const maxShareBodySize = 4 << 10

// Share handles POST /analytics/share.
func (h *AnalyticsHandler) Share(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxShareBodySize)
	var req dto.ShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, dto.CodeValidation, "Invalid request",
			map[string]string{"enabled": "is required"})
		return
	}

	res, err := h.svc.SetSharing(r.Context(), userID, req.PageID, *req.Enabled)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, res)
}

// Shared handles GET /shared/analytics/{token}. No authentication.
func (h *AnalyticsHandler) Shared(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Shared(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, summary)
}
