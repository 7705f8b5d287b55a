package analytics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/portalo/portalo/internal/model"
	"github.com/portalo/portalo/internal/repository"
)

const dateLayout = "2006-01-02"

// Query is the common analytics request shape as received from the client.
type Query struct {
	PageID    string `json:"page_id" validate:"omitempty,uuid"`
	Period    string `json:"period" validate:"omitempty,oneof=7d 30d 90d"`
	StartDate string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

// HasCustomRange reports whether an explicit date range was requested.
func (q Query) HasCustomRange() bool {
	return q.StartDate != "" || q.EndDate != ""
}

// Params is a validated, authorized analytics window.
type Params struct {
	PageIDs []string
	Since   time.Time
	Until   time.Time
	Days    int

	// pro is the pro analytics entitlement if resolving had to look it up.
	pro entitlement
}

// entitlement is a tri-state record of a pro analytics lookup.
type entitlement int8

const (
	entitlementUnknown entitlement = iota
	entitlementGranted
	entitlementDenied
)

func entitlementOf(allowed bool) entitlement {
	if allowed {
		return entitlementGranted
	}
	return entitlementDenied
}

// periodDays maps the period shorthand to a day count. Empty means 7d.
func periodDays(period string) int {
	switch period {
	case "30d":
		return 30
	case "90d":
		return 90
	default:
		return 7
	}
}

// Resolver turns a Query into Params: shape validation, entitlement for
// custom ranges, ownership, then the window.
type Resolver struct {
	pages        PageDirectory
	entitlements Entitlements
	now          func() time.Time
}

// NewResolver creates a Resolver. now may be nil for time.Now.
func NewResolver(pages PageDirectory, entitlements Entitlements, now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{pages: pages, entitlements: entitlements, now: now}
}

// Validate checks the query shape without touching any store.
func (r *Resolver) Validate(q Query) error {
	if err := validateStruct(q); err != nil {
		return err
	}
	if (q.StartDate == "") != (q.EndDate == "") {
		return NewValidationError("start_date", "start_date and end_date must be provided together")
	}
	if q.StartDate != "" {
		start, _ := time.Parse(dateLayout, q.StartDate)
		end, _ := time.Parse(dateLayout, q.EndDate)
		if end.Before(start) {
			return NewValidationError("end_date", "must not be before start_date")
		}
	}
	return nil
}

// Resolve validates q and resolves it for userID. An empty PageID selects
// every page the user owns, which may be none.
func (r *Resolver) Resolve(ctx context.Context, userID string, q Query) (Params, error) {
	return r.resolve(ctx, userID, q, entitlementUnknown)
}

// resolve is Resolve for callers that may already know the pro entitlement.
func (r *Resolver) resolve(ctx context.Context, userID string, q Query, pro entitlement) (Params, error) {
	if err := r.Validate(q); err != nil {
		return Params{}, err
	}

	since, until, err := r.window(ctx, userID, q, &pro)
	if err != nil {
		return Params{}, err
	}

	var pageIDs []string
	if q.PageID != "" {
		if _, err := r.ownedPage(ctx, userID, q.PageID); err != nil {
			return Params{}, err
		}
		pageIDs = []string{q.PageID}
	} else {
		pageIDs, err = r.pages.PageIDsByOwner(ctx, userID)
		if err != nil {
			return Params{}, fmt.Errorf("resolve owned pages: %w", err)
		}
		if pageIDs == nil {
			pageIDs = []string{}
		}
	}

	return Params{
		PageIDs: pageIDs,
		Since:   since,
		Until:   until,
		Days:    windowDays(since, until),
		pro:     pro,
	}, nil
}

// ResolveSingle is Resolve for endpoints that operate on exactly one page.
func (r *Resolver) ResolveSingle(ctx context.Context, userID string, q Query) (Params, error) {
	if err := r.ValidateSingle(q); err != nil {
		return Params{}, err
	}
	return r.Resolve(ctx, userID, q)
}

// ValidateSingle is Validate plus the page_id requirement of single-page
// endpoints.
func (r *Resolver) ValidateSingle(q Query) error {
	if q.PageID == "" {
		return NewValidationError("page_id", "is required")
	}
	return r.Validate(q)
}

// window gates custom ranges and derives [since, until]. Period windows roll
// back from now; custom ranges cover whole UTC days. A pro lookup made here
// is recorded in *pro.
func (r *Resolver) window(ctx context.Context, userID string, q Query, pro *entitlement) (time.Time, time.Time, error) {
	if !q.HasCustomRange() {
		until := r.now().UTC()
		return until.AddDate(0, 0, -periodDays(q.Period)), until, nil
	}

	if *pro == entitlementUnknown {
		allowed, err := r.entitlements.Allowed(ctx, userID, model.FeatureProAnalytics)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("check entitlement: %w", err)
		}
		*pro = entitlementOf(allowed)
	}
	if *pro != entitlementGranted {
		return time.Time{}, time.Time{}, ErrUpgradeRequired
	}

	start, _ := time.Parse(dateLayout, q.StartDate)
	end, _ := time.Parse(dateLayout, q.EndDate)
	since := start.UTC()
	until := end.UTC().Add(24*time.Hour - time.Second)

	if policy, ok := r.entitlements.(RetentionPolicy); ok {
		maxDays, err := policy.AnalyticsDays(ctx, userID)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("check analytics retention: %w", err)
		}
		if maxDays > 0 && windowDays(since, until) > maxDays {
			return time.Time{}, time.Time{}, ErrUpgradeRequired
		}
	}

	return since, until, nil
}

func (r *Resolver) ownedPage(ctx context.Context, userID, pageID string) (*model.Page, error) {
	page, err := r.pages.OwnedPage(ctx, userID, pageID)
	if err != nil {
		if errors.Is(err, repository.ErrPageNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("check page ownership: %w", err)
	}
	return page, nil
}

// windowDays is the whole number of days spanned by [since, until], at least 1.
func windowDays(since, until time.Time) int {
	days := int(math.Ceil(until.Sub(since).Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}
