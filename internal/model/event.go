package model

import "time"

// EventType classifies an analytics event.
type EventType string

// Event types.
const (
	EventView         EventType = "view"
	EventClick        EventType = "click"
	EventEmailCapture EventType = "email_capture"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventView, EventClick, EventEmailCapture:
		return true
	}
	return false
}

// Device classes.
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
)

// AnalyticsEvent is one row of the append-only event store.
// Optional attributes are nil when the client did not supply them.
type AnalyticsEvent struct {
	ID            int64     `json:"id"`
	PageID        string    `json:"page_id"`
	LinkID        *string   `json:"link_id"`
	EventType     EventType `json:"event_type"`
	Referrer      *string   `json:"referrer"`
	Country       *string   `json:"country"`
	Device        *string   `json:"device"`
	Browser       *string   `json:"browser"`
	VisitorID     *string   `json:"visitor_id"`
	TimeToClickMs *int      `json:"time_to_click_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewEvent is the write model for ingestion. CreatedAt is assigned by the store.
type NewEvent struct {
	PageID        string
	LinkID        *string
	EventType     EventType
	Referrer      *string
	Country       *string
	Device        *string
	Browser       *string
	VisitorID     *string
	TimeToClickMs *int
}

// LiveEvent is the projection pushed over the live feed.
type LiveEvent struct {
	ID        int64     `json:"id"`
	EventType EventType `json:"event_type"`
	Referrer  *string   `json:"referrer"`
	Country   *string   `json:"country"`
	Device    *string   `json:"device"`
	Browser   *string   `json:"browser"`
	CreatedAt time.Time `json:"created_at"`
	LinkID    *string   `json:"link_id"`
}

// ToLive projects e for the live feed.
func (e AnalyticsEvent) ToLive() LiveEvent {
	return LiveEvent{
		ID:        e.ID,
		EventType: e.EventType,
		Referrer:  e.Referrer,
		Country:   e.Country,
		Device:    e.Device,
		Browser:   e.Browser,
		CreatedAt: e.CreatedAt,
		LinkID:    e.LinkID,
	}
}
