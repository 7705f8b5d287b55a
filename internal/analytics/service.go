package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/portalo/portalo/internal/metrics"
	"github.com/portalo/portalo/internal/model"
	"github.com/portalo/portalo/internal/repository"
	gobreaker "github.com/sony/gobreaker/v2"
)

const (
	defaultExportRowLimit = 10000
	defaultLiveInterval   = 5 * time.Second
	defaultLiveBatchLimit = 20
	sharedPeriodDays      = 30
)

// Deps are the collaborators of the analytics Service.
type Deps struct {
	Events       EventStore
	Pages        PageDirectory
	Links        LinkLookup
	Entitlements Entitlements
	Logger       *slog.Logger
	Metrics      metrics.Recorder
	// Now defaults to time.Now.
	Now func() time.Time
}

// Config tunes the Service. Zero values take defaults.
type Config struct {
	ExportRowLimit int
	LiveInterval   time.Duration
	LiveBatchLimit int
	AppDomain      string
}

// Service answers analytics requests for authenticated owners.
type Service struct {
	resolver     *Resolver
	events       EventStore
	pages        PageDirectory
	links        LinkLookup
	entitlements Entitlements
	now          func() time.Time
	logger       *slog.Logger
	metrics      metrics.Recorder
	cfg          Config
	liveBreaker  *gobreaker.CircuitBreaker[[]model.AnalyticsEvent]
}

// NewService creates a new Service.
func NewService(deps Deps, cfg Config) *Service {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNoop()
	}
	if cfg.ExportRowLimit <= 0 {
		cfg.ExportRowLimit = defaultExportRowLimit
	}
	if cfg.LiveInterval <= 0 {
		cfg.LiveInterval = defaultLiveInterval
	}
	if cfg.LiveBatchLimit <= 0 {
		cfg.LiveBatchLimit = defaultLiveBatchLimit
	}
	if cfg.AppDomain == "" {
		cfg.AppDomain = "portalo.so"
	}

	logger := deps.Logger.With("component", "analytics")

	return &Service{
		resolver:     NewResolver(deps.Pages, deps.Entitlements, deps.Now),
		events:       deps.Events,
		pages:        deps.Pages,
		links:        deps.Links,
		entitlements: deps.Entitlements,
		now:          deps.Now,
		logger:       logger,
		metrics:      deps.Metrics,
		cfg:          cfg,
		liveBreaker:  newLiveBreaker(logger, deps.Metrics),
	}
}

// Resolver exposes the parameter resolver.
func (s *Service) Resolver() *Resolver {
	return s.resolver
}

// observe records duration and failure of one aggregation.
func (s *Service) observe(name string, start time.Time, err error) {
	if err != nil {
		var ve *ValidationError
		if !errors.As(err, &ve) && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrUpgradeRequired) {
			s.metrics.IncAggregationError(name)
		}
		return
	}
	s.metrics.ObserveAggregation(name, time.Since(start))
}

// Overview computes the headline metrics for the resolved window.
func (s *Service) Overview(ctx context.Context, userID string, q Query) (ov model.Overview, err error) {
	defer func(start time.Time) { s.observe("overview", start, err) }(time.Now())

	p, err := s.resolver.Resolve(ctx, userID, q)
	if err != nil {
		return model.Overview{}, err
	}
	if len(p.PageIDs) == 0 {
		return EmptyOverview(p.Days), nil
	}

	events, err := s.events.ListWindowEvents(ctx, p.PageIDs, p.Since, p.Until)
	if err != nil {
		return model.Overview{}, fmt.Errorf("overview: %w", err)
	}
	ov = ComputeOverview(events, p.Days)

	if !s.visitorSplitAllowed(ctx, userID, p) {
		return ov, nil
	}

	viewers := DistinctViewers(events)
	returning := 0
	if len(viewers) > 0 {
		ids, err := s.events.ReturningVisitors(ctx, p.PageIDs, viewers, p.Since)
		if err != nil {
			return model.Overview{}, fmt.Errorf("overview returning visitors: %w", err)
		}
		returning = len(ids)
	}
	newVisitors := len(viewers) - returning
	ov.NewVisitors = &newVisitors
	ov.ReturningVisitors = &returning

	return ov, nil
}

// visitorSplitAllowed reuses the entitlement a custom range already checked
// and only looks it up for period windows. Lookup failures hide the split.
func (s *Service) visitorSplitAllowed(ctx context.Context, userID string, p Params) bool {
	if p.pro != entitlementUnknown {
		return p.pro == entitlementGranted
	}
	allowed, err := s.entitlements.Allowed(ctx, userID, model.FeatureProAnalytics)
	if err != nil {
		s.logger.Warn("entitlement lookup failed, omitting visitor split",
			"user_id", userID,
			"error", err,
		)
		return false
	}
	return allowed
}

// Timeseries returns exactly Days daily buckets for the resolved window.
func (s *Service) Timeseries(ctx context.Context, userID string, q Query) (buckets []model.DailyBucket, err error) {
	defer func(start time.Time) { s.observe("timeseries", start, err) }(time.Now())

	p, err := s.resolver.Resolve(ctx, userID, q)
	if err != nil {
		return nil, err
	}
	if len(p.PageIDs) == 0 {
		return BuildTimeseries(nil, p.Until, p.Days), nil
	}

	events, err := s.events.ListWindowEvents(ctx, p.PageIDs, p.Since, p.Until)
	if err != nil {
		return nil, fmt.Errorf("timeseries: %w", err)
	}
	return BuildTimeseries(events, p.Until, p.Days), nil
}

// Hourly returns the 24 hour-of-day buckets for the resolved window.
func (s *Service) Hourly(ctx context.Context, userID string, q Query) (buckets []model.HourlyBucket, err error) {
	defer func(start time.Time) { s.observe("hourly", start, err) }(time.Now())

	p, err := s.resolver.Resolve(ctx, userID, q)
	if err != nil {
		return nil, err
	}
	if len(p.PageIDs) == 0 {
		return BuildHourly(nil), nil
	}

	events, err := s.events.ListWindowEvents(ctx, p.PageIDs, p.Since, p.Until)
	if err != nil {
		return nil, fmt.Errorf("hourly: %w", err)
	}
	return BuildHourly(events), nil
}

// Breakdown returns the referrer, country, browser and device tables.
func (s *Service) Breakdown(ctx context.Context, userID string, q Query) (b model.Breakdown, err error) {
	defer func(start time.Time) { s.observe("breakdown", start, err) }(time.Now())

	p, err := s.resolver.Resolve(ctx, userID, q)
	if err != nil {
		return model.Breakdown{}, err
	}
	if len(p.PageIDs) == 0 {
		return EmptyBreakdown(), nil
	}

	events, err := s.events.ListWindowEvents(ctx, p.PageIDs, p.Since, p.Until)
	if err != nil {
		return model.Breakdown{}, fmt.Errorf("breakdown: %w", err)
	}
	return BuildBreakdown(events), nil
}

// TopLinks ranks links by clicks in the window and compares each with the
// preceding window of equal length.
func (s *Service) TopLinks(ctx context.Context, userID string, q Query) (rows []model.TopLink, err error) {
	defer func(start time.Time) { s.observe("top_links", start, err) }(time.Now())

	p, err := s.resolver.Resolve(ctx, userID, q)
	if err != nil {
		return nil, err
	}
	if len(p.PageIDs) == 0 {
		return []model.TopLink{}, nil
	}

	prevSince := p.Since.AddDate(0, 0, -p.Days)
	events, err := s.events.ListLinkClicks(ctx, p.PageIDs, prevSince, p.Until)
	if err != nil {
		return nil, fmt.Errorf("top links: %w", err)
	}

	current, previous := CountLinkClicks(events, p.Since)
	ids := TopLinkIDs(current, topLinksLimit)
	if len(ids) == 0 {
		return []model.TopLink{}, nil
	}

	meta, err := s.links.LinksByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("top links metadata: %w", err)
	}
	return RankTopLinks(ids, current, previous, meta), nil
}

// ExportResult is a materialized CSV export.
type ExportResult struct {
	PageID   string
	Filename string
	Events   []model.AnalyticsEvent
}

// Export loads up to the configured row limit of raw events for one owned
// page, oldest first. Requires pro analytics; a malformed query is rejected
// before the plan is consulted.
func (s *Service) Export(ctx context.Context, userID string, q Query) (res *ExportResult, err error) {
	defer func(start time.Time) { s.observe("export", start, err) }(time.Now())

	if err := s.resolver.ValidateSingle(q); err != nil {
		return nil, err
	}
	if err := s.requirePro(ctx, userID); err != nil {
		return nil, err
	}

	p, err := s.resolver.resolve(ctx, userID, q, entitlementGranted)
	if err != nil {
		return nil, err
	}

	events, err := s.events.ListEventsForExport(ctx, q.PageID, p.Since, p.Until, s.cfg.ExportRowLimit)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	s.metrics.ObserveExportRows(len(events))

	return &ExportResult{
		PageID:   q.PageID,
		Filename: ExportFilename(q.PageID, s.now()),
		Events:   events,
	}, nil
}

// OpenLive authorizes a live feed for pageID and returns a session that
// starts watching from now. Requires pro analytics.
func (s *Service) OpenLive(ctx context.Context, userID, pageID string) (*LiveSession, error) {
	if pageID == "" {
		return nil, NewValidationError("page_id", "is required")
	}
	if err := validPageID(pageID); err != nil {
		return nil, err
	}
	if err := s.requirePro(ctx, userID); err != nil {
		return nil, err
	}
	if _, err := s.resolver.ownedPage(ctx, userID, pageID); err != nil {
		return nil, err
	}

	return newLiveSession(liveSessionConfig{
		pageID:   pageID,
		events:   s.events,
		breaker:  s.liveBreaker,
		interval: s.cfg.LiveInterval,
		limit:    s.cfg.LiveBatchLimit,
		start:    s.now().UTC(),
		logger:   s.logger,
		metrics:  s.metrics,
	}), nil
}

// ShareResult is the state of a page's public analytics link.
type ShareResult struct {
	Token    *string `json:"token"`
	ShareURL *string `json:"share_url"`
}

// SetSharing enables or disables the public analytics link of an owned page.
// Enabling keeps an existing token. Requires pro analytics.
func (s *Service) SetSharing(ctx context.Context, userID, pageID string, enabled bool) (*ShareResult, error) {
	if err := validPageID(pageID); err != nil {
		return nil, err
	}
	if err := s.requirePro(ctx, userID); err != nil {
		return nil, err
	}

	page, err := s.resolver.ownedPage(ctx, userID, pageID)
	if err != nil {
		return nil, err
	}

	if !enabled {
		if err := s.pages.SetShareToken(ctx, pageID, nil); err != nil {
			return nil, fmt.Errorf("disable sharing: %w", err)
		}
		return &ShareResult{}, nil
	}

	token := page.ShareToken
	if token == nil {
		t := uuid.NewString()
		token = &t
		if err := s.pages.SetShareToken(ctx, pageID, token); err != nil {
			return nil, fmt.Errorf("enable sharing: %w", err)
		}
	}

	url := fmt.Sprintf("https://%s/analytics/%s", s.cfg.AppDomain, *token)
	return &ShareResult{Token: token, ShareURL: &url}, nil
}

// Shared returns the public 30-day summary behind a share token.
func (s *Service) Shared(ctx context.Context, token string) (sum model.SharedSummary, err error) {
	defer func(start time.Time) { s.observe("shared", start, err) }(time.Now())

	if uuid.Validate(token) != nil {
		return model.SharedSummary{}, ErrNotFound
	}

	page, err := s.pages.PageByShareToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrPageNotFound) {
			return model.SharedSummary{}, ErrNotFound
		}
		return model.SharedSummary{}, fmt.Errorf("resolve share token: %w", err)
	}

	until := s.now().UTC()
	since := until.AddDate(0, 0, -sharedPeriodDays)
	events, err := s.events.ListWindowEvents(ctx, []string{page.ID}, since, until)
	if err != nil {
		return model.SharedSummary{}, fmt.Errorf("shared summary: %w", err)
	}

	return ComputeShared(page, events, sharedPeriodDays), nil
}

func (s *Service) requirePro(ctx context.Context, userID string) error {
	allowed, err := s.entitlements.Allowed(ctx, userID, model.FeatureProAnalytics)
	if err != nil {
		return fmt.Errorf("check entitlement: %w", err)
	}
	if !allowed {
		return ErrUpgradeRequired
	}
	return nil
}

func validPageID(pageID string) error {
	if uuid.Validate(pageID) != nil {
		return NewValidationError("page_id", "must be a valid UUID")
	}
	return nil
}
