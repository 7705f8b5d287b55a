package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/portalo/portalo/internal/metrics"
	"github.com/portalo/portalo/internal/model"
)

// TrackRequest is the public ingestion payload.
type TrackRequest struct {
	PageID        string  `json:"page_id" validate:"required,uuid"`
	LinkID        *string `json:"link_id" validate:"omitempty,uuid"`
	EventType     string  `json:"event_type" validate:"required,oneof=view click email_capture"`
	Referrer      *string `json:"referrer" validate:"omitempty,max=2048"`
	Country       *string `json:"country" validate:"omitempty,max=64"`
	Device        *string `json:"device" validate:"omitempty,oneof=mobile tablet desktop"`
	Browser       *string `json:"browser" validate:"omitempty,max=64"`
	VisitorID     *string `json:"visitor_id" validate:"omitempty,max=64"`
	TimeToClickMs *int    `json:"time_to_click_ms" validate:"omitempty,min=0,max=300000"`
}

// RequestMeta carries transport details used to fill fields the client
// did not send.
type RequestMeta struct {
	UserAgent string
	// CountryHeader is the CF-IPCountry value, if any.
	CountryHeader string
}

// Validate checks the payload shape.
func (r *TrackRequest) Validate() error {
	r.normalize()

	if err := validateStruct(r); err != nil {
		return err
	}

	if r.EventType != string(model.EventClick) {
		if r.LinkID != nil {
			return NewValidationError("link_id", "is only allowed on click events")
		}
		if r.TimeToClickMs != nil {
			return NewValidationError("time_to_click_ms", "is only allowed on click events")
		}
	}
	return nil
}

// normalize treats blank optional strings as absent.
func (r *TrackRequest) normalize() {
	for _, f := range []**string{&r.LinkID, &r.Referrer, &r.Country, &r.Device, &r.Browser, &r.VisitorID} {
		if *f != nil && strings.TrimSpace(**f) == "" {
			*f = nil
		}
	}
}

// Ingestor validates, enriches and appends tracking events.
type Ingestor struct {
	events  EventStore
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewIngestor creates a new Ingestor.
func NewIngestor(events EventStore, logger *slog.Logger, recorder metrics.Recorder) *Ingestor {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Ingestor{
		events:  events,
		logger:  logger.With("component", "ingest"),
		metrics: recorder,
	}
}

// Track validates req and inserts exactly one event. Nothing is written when
// validation fails. There is no deduplication: retries create duplicates.
func (i *Ingestor) Track(ctx context.Context, req TrackRequest, meta RequestMeta) error {
	if err := req.Validate(); err != nil {
		i.metrics.IncEventRejected("validation")
		return err
	}

	event := Enrich(req, meta)
	if err := i.events.InsertEvent(ctx, event); err != nil {
		i.metrics.IncEventRejected("store_error")
		return fmt.Errorf("track event: %w", err)
	}

	i.metrics.IncEventIngested(req.EventType)
	return nil
}

// Enrich builds the stored event from a validated request. Client-supplied
// values always win over derived ones.
func Enrich(req TrackRequest, meta RequestMeta) *model.NewEvent {
	e := &model.NewEvent{
		PageID:        strings.ToLower(req.PageID),
		LinkID:        req.LinkID,
		EventType:     model.EventType(req.EventType),
		Country:       req.Country,
		Device:        req.Device,
		Browser:       req.Browser,
		VisitorID:     req.VisitorID,
		TimeToClickMs: req.TimeToClickMs,
	}

	if req.Referrer != nil {
		if ref := SanitizeReferrer(*req.Referrer); ref != "" {
			e.Referrer = &ref
		}
	}
	if e.Country == nil {
		if code := ExtractCountryCode(meta.CountryHeader); code != "" {
			e.Country = &code
		}
	}
	if e.Device == nil {
		if d := DetectDevice(meta.UserAgent); d != "" {
			e.Device = &d
		}
	}
	if e.Browser == nil {
		if b := DetectBrowser(meta.UserAgent); b != "" {
			e.Browser = &b
		}
	}

	return e
}
