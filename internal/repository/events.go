package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/portalo/portalo/internal/model"
)

// EventRepository provides access to the append-only analytics_events table.
type EventRepository struct {
	repo *Repository
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(repo *Repository) *EventRepository {
	return &EventRepository{repo: repo}
}

const eventColumns = `id, page_id::text, link_id::text, event_type, referrer, country,
	device, browser, visitor_id, time_to_click_ms, created_at`

// InsertEvent appends a single event. created_at is assigned by the database.
func (r *EventRepository) InsertEvent(ctx context.Context, e *model.NewEvent) error {
	query := `
		INSERT INTO analytics_events (
			page_id, link_id, event_type, referrer, country,
			device, browser, visitor_id, time_to_click_ms
		) VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.repo.pool.Exec(ctx, query,
		e.PageID,
		e.LinkID,
		string(e.EventType),
		e.Referrer,
		e.Country,
		e.Device,
		e.Browser,
		e.VisitorID,
		e.TimeToClickMs,
	)
	if err != nil {
		return fmt.Errorf("insert analytics event: %w", err)
	}

	return nil
}

// ListWindowEvents returns every event for pageIDs with since <= created_at <= until.
func (r *EventRepository) ListWindowEvents(ctx context.Context, pageIDs []string, since, until time.Time) ([]model.AnalyticsEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM analytics_events
		WHERE page_id = ANY($1::text[]::uuid[])
		  AND created_at >= $2 AND created_at <= $3
	`

	rows, err := r.repo.pool.Query(ctx, query, pageIDs, since, until)
	if err != nil {
		return nil, fmt.Errorf("list window events: %w", err)
	}
	return collectEvents(rows)
}

// ListLinkClicks returns click events carrying a link id in [since, until].
func (r *EventRepository) ListLinkClicks(ctx context.Context, pageIDs []string, since, until time.Time) ([]model.AnalyticsEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM analytics_events
		WHERE page_id = ANY($1::text[]::uuid[])
		  AND event_type = 'click'
		  AND link_id IS NOT NULL
		  AND created_at >= $2 AND created_at <= $3
	`

	rows, err := r.repo.pool.Query(ctx, query, pageIDs, since, until)
	if err != nil {
		return nil, fmt.Errorf("list link clicks: %w", err)
	}
	return collectEvents(rows)
}

// ReturningVisitors returns the subset of visitorIDs that recorded a view on
// any of pageIDs strictly before the given time.
func (r *EventRepository) ReturningVisitors(ctx context.Context, pageIDs, visitorIDs []string, before time.Time) ([]string, error) {
	if len(pageIDs) == 0 || len(visitorIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT DISTINCT visitor_id
		FROM analytics_events
		WHERE page_id = ANY($1::text[]::uuid[])
		  AND event_type = 'view'
		  AND visitor_id = ANY($2::text[])
		  AND created_at < $3
	`

	rows, err := r.repo.pool.Query(ctx, query, pageIDs, visitorIDs, before)
	if err != nil {
		return nil, fmt.Errorf("query returning visitors: %w", err)
	}
	defer rows.Close()

	var visitors []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan visitor id: %w", err)
		}
		visitors = append(visitors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate returning visitors: %w", err)
	}

	return visitors, nil
}

// ListEventsAfter returns up to limit events for pageID newer than after,
// newest first.
func (r *EventRepository) ListEventsAfter(ctx context.Context, pageID string, after time.Time, limit int) ([]model.AnalyticsEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM analytics_events
		WHERE page_id = $1::uuid AND created_at > $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`

	rows, err := r.repo.pool.Query(ctx, query, pageID, after, limit)
	if err != nil {
		return nil, fmt.Errorf("list events after: %w", err)
	}
	return collectEvents(rows)
}

// ListEventsForExport returns up to limit events for pageID in [since, until],
// oldest first.
func (r *EventRepository) ListEventsForExport(ctx context.Context, pageID string, since, until time.Time, limit int) ([]model.AnalyticsEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM analytics_events
		WHERE page_id = $1::uuid
		  AND created_at >= $2 AND created_at <= $3
		ORDER BY created_at ASC, id ASC
		LIMIT $4
	`

	rows, err := r.repo.pool.Query(ctx, query, pageID, since, until, limit)
	if err != nil {
		return nil, fmt.Errorf("list events for export: %w", err)
	}
	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]model.AnalyticsEvent, error) {
	defer rows.Close()

	var events []model.AnalyticsEvent
	for rows.Next() {
		var e model.AnalyticsEvent
		var eventType string
		err := rows.Scan(
			&e.ID,
			&e.PageID,
			&e.LinkID,
			&eventType,
			&e.Referrer,
			&e.Country,
			&e.Device,
			&e.Browser,
			&e.VisitorID,
			&e.TimeToClickMs,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan analytics event: %w", err)
		}
		e.EventType = model.EventType(eventType)
		e.CreatedAt = e.CreatedAt.UTC()
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analytics events: %w", err)
	}

	return events, nil
}
