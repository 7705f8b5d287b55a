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

// DefaultMaxTrackBodySize caps the /public/track payload.
const DefaultMaxTrackBodySize = 16 << 10

// TrackHandler serves the public ingestion endpoint.
type TrackHandler struct {
	ingestor *analytics.Ingestor
	logger   *slog.Logger
	maxBody  int64
}

// NewTrackHandler creates a new TrackHandler. maxBody <= 0 uses
// DefaultMaxTrackBodySize.
func NewTrackHandler(ingestor *analytics.Ingestor, logger *slog.Logger, maxBody int64) *TrackHandler {
	if maxBody <= 0 {
		maxBody = DefaultMaxTrackBodySize
	}
	return &TrackHandler{
		ingestor: ingestor,
		logger:   logger.With("component", "handler.track"),
		maxBody:  maxBody,
	}
}

// Track handles POST /public/track.
func (h *TrackHandler) Track(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

	var req analytics.TrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDecodeError(w, err)
		return
	}

	meta := analytics.RequestMeta{
		UserAgent:     r.UserAgent(),
		CountryHeader: r.Header.Get("CF-IPCountry"),
	}
	if err := h.ingestor.Track(r.Context(), req, meta); err != nil {
		var ve *analytics.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, dto.CodeValidation, "Invalid event", ve.Fields)
			return
		}
		h.logger.Error("track failed",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		writeError(w, http.StatusInternalServerError, dto.CodeInternal, "Internal server error", nil)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

// writeDecodeError reports a body that could not be decoded.
func writeDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	var typeErr *json.UnmarshalTypeError

	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, dto.CodePayloadTooLarge, "Request body too large", nil)
	case errors.As(err, &typeErr) && typeErr.Field != "":
		writeError(w, http.StatusBadRequest, dto.CodeValidation, "Invalid request",
			map[string]string{typeErr.Field: "has the wrong type"})
	default:
		writeError(w, http.StatusBadRequest, dto.CodeInvalidJSON, "Request body must be valid JSON", nil)
	}
}
