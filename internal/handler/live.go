package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/portalo/portalo/internal/analytics"
	"github.com/portalo/portalo/internal/handler/dto"
)

// Live handles GET /analytics/live as a server-sent event stream.
// Every check happens before the stream opens; after that, failures only
// show up as heartbeats.
func (h *AnalyticsHandler) Live(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	session, err := h.svc.OpenLive(r.Context(), userID, r.URL.Query().Get("page_id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	ctx, detach, err := h.hub.Attach(r.Context(), session)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, dto.CodeUnavailable, "Server is shutting down", nil)
		return
	}
	defer detach()

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.logger.Warn("clear write deadline", slog.String("error", err.Error()))
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	err = session.Run(ctx, func(f analytics.Frame) error {
		if err := writeFrame(w, f); err != nil {
			return err
		}
		return rc.Flush()
	})
	if err != nil {
		h.logger.Debug("live stream closed",
			slog.String("page_id", session.PageID()),
			slog.String("error", err.Error()),
		)
	}
}

// writeFrame writes one SSE frame: a JSON array of events, or a comment
// line when there is nothing new.
func writeFrame(w io.Writer, f analytics.Frame) error {
	if f.Heartbeat() {
		_, err := io.WriteString(w, ": heartbeat\n\n")
		return err
	}

	payload, err := json.Marshal(f.Events)
	if err != nil {
		return fmt.Errorf("marshal live events: %w", err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}
