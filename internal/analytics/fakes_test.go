package analytics

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/portalo/portalo/internal/model"
	"github.com/portalo/portalo/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

// fakeEvents is an in-memory EventStore.
type fakeEvents struct {
	mu       sync.Mutex
	events   []model.AnalyticsEvent
	nextID   int64
	calls    int
	inserted []*model.NewEvent
	err      error
	// returning is the set of visitor ids seen before any window.
	returning map[string]bool
	clock     func() time.Time
}

func (f *fakeEvents) add(e model.AnalyticsEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	e.ID = f.nextID
	f.events = append(f.events, e)
}

func (f *fakeEvents) InsertEvent(_ context.Context, e *model.NewEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, e)
	return nil
}

func (f *fakeEvents) match(pageIDs []string, since, until time.Time, keep func(model.AnalyticsEvent) bool) []model.AnalyticsEvent {
	ids := map[string]bool{}
	for _, id := range pageIDs {
		ids[id] = true
	}
	var out []model.AnalyticsEvent
	for _, e := range f.events {
		if !ids[e.PageID] || e.CreatedAt.Before(since) || e.CreatedAt.After(until) {
			continue
		}
		if keep == nil || keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeEvents) ListWindowEvents(_ context.Context, pageIDs []string, since, until time.Time) ([]model.AnalyticsEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.match(pageIDs, since, until, nil), nil
}

func (f *fakeEvents) ListLinkClicks(_ context.Context, pageIDs []string, since, until time.Time) ([]model.AnalyticsEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.match(pageIDs, since, until, func(e model.AnalyticsEvent) bool {
		return e.EventType == model.EventClick && e.LinkID != nil
	}), nil
}

func (f *fakeEvents) ReturningVisitors(_ context.Context, _ []string, visitorIDs []string, _ time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []string
	for _, id := range visitorIDs {
		if f.returning[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeEvents) ListEventsAfter(_ context.Context, pageID string, after time.Time, limit int) ([]model.AnalyticsEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []model.AnalyticsEvent
	for _, e := range f.events {
		if e.PageID == pageID && e.CreatedAt.After(after) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeEvents) ListEventsForExport(_ context.Context, pageID string, since, until time.Time, limit int) ([]model.AnalyticsEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := f.match([]string{pageID}, since, until, nil)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeEvents) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakePages is an in-memory PageDirectory.
type fakePages struct {
	pages map[string]*model.Page
	calls int
}

func newFakePages(pages ...*model.Page) *fakePages {
	f := &fakePages{pages: map[string]*model.Page{}}
	for _, p := range pages {
		f.pages[p.ID] = p
	}
	return f
}

func (f *fakePages) OwnedPage(_ context.Context, userID, pageID string) (*model.Page, error) {
	f.calls++
	p, ok := f.pages[pageID]
	if !ok || p.UserID != userID {
		return nil, repository.ErrPageNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePages) PageIDsByOwner(_ context.Context, userID string) ([]string, error) {
	f.calls++
	ids := []string{}
	for id, p := range f.pages {
		if p.UserID == userID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakePages) SetShareToken(_ context.Context, pageID string, token *string) error {
	p, ok := f.pages[pageID]
	if !ok {
		return repository.ErrPageNotFound
	}
	p.ShareToken = token
	return nil
}

func (f *fakePages) PageByShareToken(_ context.Context, token string) (*model.Page, error) {
	for _, p := range f.pages {
		if p.ShareToken != nil && *p.ShareToken == token {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrPageNotFound
}

// fakeLinks resolves link metadata from a fixed map.
type fakeLinks map[string]model.LinkMeta

func (f fakeLinks) LinksByIDs(_ context.Context, ids []string) (map[string]model.LinkMeta, error) {
	out := map[string]model.LinkMeta{}
	for _, id := range ids {
		if m, ok := f[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

// fakePlans maps user ids to plan names.
type fakePlans map[string]string

func (f fakePlans) UserPlan(_ context.Context, userID string) (string, error) {
	plan, ok := f[userID]
	if !ok {
		return "", repository.ErrUserNotFound
	}
	return plan, nil
}

// countingEntitlements counts pro analytics lookups.
type countingEntitlements struct {
	*PlanEntitlements
	mu      sync.Mutex
	allowed int
}

func (c *countingEntitlements) Allowed(ctx context.Context, userID string, feature model.Feature) (bool, error) {
	c.mu.Lock()
	c.allowed++
	c.mu.Unlock()
	return c.PlanEntitlements.Allowed(ctx, userID, feature)
}

func (c *countingEntitlements) allowedCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.allowed
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
