package analytics

import (
	"context"
	"time"

	"github.com/portalo/portalo/internal/model"
)

// EventStore reads and appends analytics events.
type EventStore interface {
	InsertEvent(ctx context.Context, e *model.NewEvent) error
	ListWindowEvents(ctx context.Context, pageIDs []string, since, until time.Time) ([]model.AnalyticsEvent, error)
	ListLinkClicks(ctx context.Context, pageIDs []string, since, until time.Time) ([]model.AnalyticsEvent, error)
	ReturningVisitors(ctx context.Context, pageIDs, visitorIDs []string, before time.Time) ([]string, error)
	ListEventsAfter(ctx context.Context, pageID string, after time.Time, limit int) ([]model.AnalyticsEvent, error)
	ListEventsForExport(ctx context.Context, pageID string, since, until time.Time, limit int) ([]model.AnalyticsEvent, error)
}

// PageDirectory answers ownership questions about pages. Implementations
// return repository.ErrPageNotFound for unknown or foreign pages.
type PageDirectory interface {
	OwnedPage(ctx context.Context, userID, pageID string) (*model.Page, error)
	PageIDsByOwner(ctx context.Context, userID string) ([]string, error)
	SetShareToken(ctx context.Context, pageID string, token *string) error
	PageByShareToken(ctx context.Context, token string) (*model.Page, error)
}

// LinkLookup resolves link metadata. Missing ids are absent from the result.
type LinkLookup interface {
	LinksByIDs(ctx context.Context, ids []string) (map[string]model.LinkMeta, error)
}

// Entitlements decides whether a user may use a plan-gated feature.
type Entitlements interface {
	Allowed(ctx context.Context, userID string, feature model.Feature) (bool, error)
}

// RetentionPolicy is optionally implemented by Entitlements to cap how far
// back a custom date range may reach.
type RetentionPolicy interface {
	AnalyticsDays(ctx context.Context, userID string) (int, error)
}
