package analytics

import (
	"context"
	"errors"
	"testing"

	"github.com/portalo/portalo/internal/metrics"
	"github.com/portalo/portalo/internal/model"
)

func TestTrackRequest_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		req   TrackRequest
		field string
	}{
		{"missing page", TrackRequest{EventType: "view"}, "page_id"},
		{"bad page", TrackRequest{PageID: "nope", EventType: "view"}, "page_id"},
		{"missing type", TrackRequest{PageID: pageA}, "event_type"},
		{"unknown type", TrackRequest{PageID: pageA, EventType: "scroll"}, "event_type"},
		{"bad device", TrackRequest{PageID: pageA, EventType: "view", Device: strPtr("watch")}, "device"},
		{"ttc too large", TrackRequest{PageID: pageA, EventType: "click", TimeToClickMs: intPtr(400000)}, "time_to_click_ms"},
		{"ttc negative", TrackRequest{PageID: pageA, EventType: "click", TimeToClickMs: intPtr(-1)}, "time_to_click_ms"},
		{"link on view", TrackRequest{PageID: pageA, EventType: "view", LinkID: strPtr(pageB)}, "link_id"},
		{"ttc on view", TrackRequest{PageID: pageA, EventType: "view", TimeToClickMs: intPtr(10)}, "time_to_click_ms"},
		{"long visitor", TrackRequest{PageID: pageA, EventType: "view", VisitorID: strPtr(string(make([]byte, 65)))}, "visitor_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := fieldOf(t, tt.req.Validate())
			if _, ok := fields[tt.field]; !ok {
				t.Errorf("fields = %v, want key %q", fields, tt.field)
			}
		})
	}
}

func TestTrackRequest_BlankOptionalsIgnored(t *testing.T) {
	t.Parallel()

	req := TrackRequest{PageID: pageA, EventType: "view", LinkID: strPtr(""), Device: strPtr(" ")}
	if err := req.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if req.LinkID != nil || req.Device != nil {
		t.Error("blank optional fields should be cleared")
	}
}

func TestIngestor_RejectsWithoutInsert(t *testing.T) {
	t.Parallel()

	store := &fakeEvents{}
	rec := metrics.NewInMemory()
	ing := NewIngestor(store, discardLogger(), rec)

	err := ing.Track(context.Background(), TrackRequest{
		PageID:        pageA,
		EventType:     "click",
		TimeToClickMs: intPtr(400000),
	}, RequestMeta{})

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	if store.callCount() != 0 {
		t.Error("store must not be touched on validation failure")
	}
	if rec.Snapshot().EventsRejected["validation"] != 1 {
		t.Error("rejection not counted")
	}
}

func TestIngestor_Track(t *testing.T) {
	t.Parallel()

	store := &fakeEvents{}
	rec := metrics.NewInMemory()
	ing := NewIngestor(store, discardLogger(), rec)

	err := ing.Track(context.Background(), TrackRequest{
		PageID:        pageA,
		EventType:     "click",
		LinkID:        strPtr(pageB),
		Referrer:      strPtr("https://t.co/abc?utm_source=x"),
		TimeToClickMs: intPtr(1500),
		Browser:       strPtr("CustomBrowser"),
	}, RequestMeta{UserAgent: uaIPhone, CountryHeader: "de"})
	if err != nil {
		t.Fatalf("Track: %v", err)
	}

	if len(store.inserted) != 1 {
		t.Fatalf("inserted = %d, want 1", len(store.inserted))
	}
	e := store.inserted[0]
	if e.EventType != model.EventClick || *e.LinkID != pageB || *e.TimeToClickMs != 1500 {
		t.Errorf("unexpected event: %+v", e)
	}
	if *e.Referrer != "https://t.co/abc" {
		t.Errorf("Referrer = %q", *e.Referrer)
	}
	if *e.Country != "DE" {
		t.Errorf("Country = %q, want DE from header", *e.Country)
	}
	if *e.Device != "mobile" {
		t.Errorf("Device = %q, want mobile from user agent", *e.Device)
	}
	if *e.Browser != "CustomBrowser" {
		t.Errorf("Browser = %q, client value must win", *e.Browser)
	}
	if rec.Snapshot().EventsIngested["click"] != 1 {
		t.Error("ingest not counted")
	}
}

func TestIngestor_StoreError(t *testing.T) {
	t.Parallel()

	storeErr := errors.New("insert failed")
	store := &fakeEvents{err: storeErr}
	ing := NewIngestor(store, discardLogger(), nil)

	err := ing.Track(context.Background(), TrackRequest{PageID: pageA, EventType: "view"}, RequestMeta{})
	if !errors.Is(err, storeErr) {
		t.Errorf("err = %v, want wrapped store error", err)
	}
}
