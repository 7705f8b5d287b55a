package handler

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/portalo/portalo/internal/analytics"
	"github.com/portalo/portalo/internal/auth"
	"github.com/portalo/portalo/internal/metrics"
	"github.com/portalo/portalo/internal/model"
	"github.com/portalo/portalo/internal/repository"
)

const (
	freeUser  = "user-free"
	proUser   = "user-pro"
	freePage  = "11111111-1111-4111-8111-111111111111"
	proPage   = "22222222-2222-4222-8222-222222222222"
	testUserH = "X-Test-User"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

type memEvents struct {
	mu       sync.Mutex
	events   []model.AnalyticsEvent
	inserted []*model.NewEvent
	err      error
}

func (m *memEvents) add(e model.AnalyticsEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = int64(len(m.events) + 1)
	m.events = append(m.events, e)
}

func (m *memEvents) InsertEvent(_ context.Context, e *model.NewEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.inserted = append(m.inserted, e)
	return nil
}

func (m *memEvents) window(pageIDs []string, since, until time.Time) []model.AnalyticsEvent {
	var out []model.AnalyticsEvent
	for _, e := range m.events {
		for _, id := range pageIDs {
			if e.PageID == id && !e.CreatedAt.Before(since) && !e.CreatedAt.After(until) {
				out = append(out, e)
			}
		}
	}
	return out
}

func (m *memEvents) ListWindowEvents(_ context.Context, pageIDs []string, since, until time.Time) ([]model.AnalyticsEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.window(pageIDs, since, until), nil
}

func (m *memEvents) ListLinkClicks(_ context.Context, pageIDs []string, since, until time.Time) ([]model.AnalyticsEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AnalyticsEvent
	for _, e := range m.window(pageIDs, since, until) {
		if e.EventType == model.EventClick && e.LinkID != nil {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memEvents) ReturningVisitors(context.Context, []string, []string, time.Time) ([]string, error) {
	return nil, nil
}

func (m *memEvents) ListEventsAfter(_ context.Context, pageID string, after time.Time, limit int) ([]model.AnalyticsEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AnalyticsEvent
	for _, e := range m.events {
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

func (m *memEvents) ListEventsForExport(_ context.Context, pageID string, since, until time.Time, limit int) ([]model.AnalyticsEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.window([]string{pageID}, since, until)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memPages struct {
	mu    sync.Mutex
	pages map[string]*model.Page
}

func (m *memPages) OwnedPage(_ context.Context, userID, pageID string) (*model.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pages[pageID]
	if !ok || p.UserID != userID {
		return nil, repository.ErrPageNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPages) PageIDsByOwner(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := []string{}
	for id, p := range m.pages {
		if p.UserID == userID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memPages) SetShareToken(_ context.Context, pageID string, token *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[pageID].ShareToken = token
	return nil
}

func (m *memPages) PageByShareToken(_ context.Context, token string) (*model.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pages {
		if p.ShareToken != nil && *p.ShareToken == token {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrPageNotFound
}

type memLinks map[string]model.LinkMeta

func (m memLinks) LinksByIDs(_ context.Context, ids []string) (map[string]model.LinkMeta, error) {
	out := map[string]model.LinkMeta{}
	for _, id := range ids {
		if l, ok := m[id]; ok {
			out[id] = l
		}
	}
	return out, nil
}

type memPlans map[string]string

func (m memPlans) UserPlan(_ context.Context, userID string) (string, error) {
	return m[userID], nil
}

type testEnv struct {
	router http.Handler
	events *memEvents
	pages  *memPages
	hub    *analytics.LiveHub
}

// withTestUser stands in for the API key middleware.
func withTestUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(testUserH); id != "" {
			r = r.WithContext(auth.ContextWithAuth(r.Context(), &model.AuthContext{UserID: id}))
		}
		next.ServeHTTP(w, r)
	})
}

func newTestEnv() *testEnv {
	events := &memEvents{}
	pages := &memPages{pages: map[string]*model.Page{
		freePage: {ID: freePage, UserID: freeUser, Title: "Free", Slug: "free"},
		proPage:  {ID: proPage, UserID: proUser, Title: "Pro", Slug: "pro"},
	}}
	logger := discardLogger()

	svc := analytics.NewService(analytics.Deps{
		Events:       events,
		Pages:        pages,
		Links:        memLinks{"l1": {ID: "l1", Title: "Shop", URL: "https://shop.example"}},
		Entitlements: analytics.NewPlanEntitlements(memPlans{freeUser: model.PlanFree, proUser: model.PlanPro}),
		Logger:       logger,
		Metrics:      metrics.NewNoop(),
		Now:          func() time.Time { return testNow },
	}, analytics.Config{LiveInterval: 10 * time.Millisecond})

	hub := analytics.NewLiveHub()
	ah := NewAnalyticsHandler(svc, hub, logger)
	th := NewTrackHandler(analytics.NewIngestor(events, logger, nil), logger, 0)
	h := New()

	r := chi.NewRouter()
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)
	r.Post("/public/track", th.Track)
	r.Get("/shared/analytics/{token}", ah.Shared)
	r.Group(func(r chi.Router) {
		r.Use(withTestUser)
		r.Get("/analytics/overview", ah.Overview)
		r.Get("/analytics/timeseries", ah.Timeseries)
		r.Get("/analytics/hourly", ah.Hourly)
		r.Get("/analytics/breakdown", ah.Breakdown)
		r.Get("/analytics/top-links", ah.TopLinks)
		r.Get("/analytics/export", ah.Export)
		r.Get("/analytics/live", ah.Live)
		r.Post("/analytics/share", ah.Share)
	})

	return &testEnv{router: r, events: events, pages: pages, hub: hub}
}
