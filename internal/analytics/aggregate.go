package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/portalo/portalo/internal/model"
)

const (
	breakdownLimit = 10
	topLinksLimit  = 10
	directReferrer = "Direct"
)

// roundPct rounds a ratio to a one-decimal percentage.
func roundPct(num, den int) float64 {
	return math.Round(float64(num)/float64(den)*1000) / 10
}

// EmptyOverview is the Overview of a caller with no pages.
func EmptyOverview(days int) model.Overview {
	return model.Overview{PeriodDays: days}
}

// ComputeOverview derives the headline metrics from one window's events.
// New/returning visitors are left nil; the service fills them when entitled.
func ComputeOverview(events []model.AnalyticsEvent, days int) model.Overview {
	ov := model.Overview{PeriodDays: days}

	viewers := map[string]struct{}{}
	clickers := map[string]struct{}{}
	referrers := map[string]int{}
	countries := map[string]int{}
	var ttcSum, ttcCount int

	for _, e := range events {
		switch e.EventType {
		case model.EventView:
			ov.Views++
			if e.VisitorID != nil && *e.VisitorID != "" {
				viewers[*e.VisitorID] = struct{}{}
			}
		case model.EventClick:
			ov.Clicks++
			if e.VisitorID != nil && *e.VisitorID != "" {
				clickers[*e.VisitorID] = struct{}{}
			}
		case model.EventEmailCapture:
			ov.EmailCaptures++
		}

		if e.Referrer != nil && *e.Referrer != "" {
			referrers[*e.Referrer]++
		}
		if e.Country != nil && *e.Country != "" {
			countries[*e.Country]++
		}
		if e.TimeToClickMs != nil {
			ttcSum += *e.TimeToClickMs
			ttcCount++
		}
	}

	if ov.Views > 0 {
		ov.CTR = math.Min(100, roundPct(ov.Clicks, ov.Views))
	}

	ov.UniqueViews = len(viewers)
	if ov.UniqueViews == 0 {
		ov.UniqueViews = ov.Views
	}
	ov.UniqueClicks = len(clickers)
	if ov.UniqueClicks == 0 {
		ov.UniqueClicks = ov.Clicks
	}

	switch {
	case len(viewers) > 0:
		ov.BounceRate = math.Max(0, roundPct(len(viewers)-len(clickers), len(viewers)))
	case ov.Views > 0:
		ov.BounceRate = math.Max(0, roundPct(ov.Views-ov.Clicks, ov.Views))
	}

	if ttcCount > 0 {
		avg := int(math.Round(float64(ttcSum) / float64(ttcCount)))
		ov.AvgTimeToClickMs = &avg
	}

	ov.TopReferrer = topKey(referrers)
	ov.TopCountry = topKey(countries)

	return ov
}

// DistinctViewers returns the sorted distinct visitor ids of view events.
func DistinctViewers(events []model.AnalyticsEvent) []string {
	seen := map[string]struct{}{}
	for _, e := range events {
		if e.EventType == model.EventView && e.VisitorID != nil && *e.VisitorID != "" {
			seen[*e.VisitorID] = struct{}{}
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// BuildTimeseries buckets events by UTC date. It returns exactly days buckets,
// oldest first, the last one being until's UTC date. Events outside those
// dates are dropped.
func BuildTimeseries(events []model.AnalyticsEvent, until time.Time, days int) []model.DailyBucket {
	if days < 1 {
		days = 1
	}

	last := until.UTC()
	last = time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, time.UTC)

	buckets := make([]model.DailyBucket, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		key := last.AddDate(0, 0, i-(days-1)).Format(dateLayout)
		buckets[i] = model.DailyBucket{Date: key}
		index[key] = i
	}

	for _, e := range events {
		i, ok := index[e.CreatedAt.UTC().Format(dateLayout)]
		if !ok {
			continue
		}
		switch e.EventType {
		case model.EventView:
			buckets[i].Views++
		case model.EventClick:
			buckets[i].Clicks++
		case model.EventEmailCapture:
			buckets[i].EmailCaptures++
		}
	}

	return buckets
}

// BuildHourly builds the 24-bucket hour-of-day histogram (UTC) over the
// whole window.
func BuildHourly(events []model.AnalyticsEvent) []model.HourlyBucket {
	buckets := make([]model.HourlyBucket, 24)
	for h := range buckets {
		buckets[h].Hour = h
	}

	for _, e := range events {
		h := e.CreatedAt.UTC().Hour()
		switch e.EventType {
		case model.EventView:
			buckets[h].Views++
		case model.EventClick:
			buckets[h].Clicks++
		}
	}

	return buckets
}

// BuildBreakdown counts referrers (nil grouped as "Direct"), countries,
// browsers and devices over the window's events.
func BuildBreakdown(events []model.AnalyticsEvent) model.Breakdown {
	referrers := map[string]int{}
	countries := map[string]int{}
	browsers := map[string]int{}
	devices := map[string]int{}

	for _, e := range events {
		ref := directReferrer
		if e.Referrer != nil && *e.Referrer != "" {
			ref = *e.Referrer
		}
		referrers[ref]++

		if e.Country != nil && *e.Country != "" {
			countries[*e.Country]++
		}
		if e.Browser != nil && *e.Browser != "" {
			browsers[*e.Browser]++
		}
		if e.Device != nil && *e.Device != "" {
			devices[*e.Device]++
		}
	}

	return model.Breakdown{
		Referrers: rankCounts(referrers, breakdownLimit),
		Countries: rankCounts(countries, breakdownLimit),
		Browsers:  rankCounts(browsers, breakdownLimit),
		Devices:   rankCounts(devices, breakdownLimit),
	}
}

// EmptyBreakdown has every table present and empty.
func EmptyBreakdown() model.Breakdown {
	return model.Breakdown{
		Referrers: []model.NamedCount{},
		Countries: []model.NamedCount{},
		Browsers:  []model.NamedCount{},
		Devices:   []model.NamedCount{},
	}
}

// CountLinkClicks partitions link clicks into the current window
// (created_at >= since) and the preceding one.
func CountLinkClicks(events []model.AnalyticsEvent, since time.Time) (current, previous map[string]int) {
	current = map[string]int{}
	previous = map[string]int{}

	for _, e := range events {
		if e.EventType != model.EventClick || e.LinkID == nil {
			continue
		}
		if !e.CreatedAt.Before(since) {
			current[*e.LinkID]++
		} else {
			previous[*e.LinkID]++
		}
	}

	return current, previous
}

// TopLinkIDs returns up to limit link ids with current clicks, highest first.
// Ties are ordered by link id.
func TopLinkIDs(current map[string]int, limit int) []string {
	ranked := rankCounts(current, limit)
	ids := make([]string, 0, len(ranked))
	for _, nc := range ranked {
		if nc.Count > 0 {
			ids = append(ids, nc.Name)
		}
	}
	return ids
}

// Velocity is the rounded percent change from previous to current.
// With no previous clicks it is 100 if there are current clicks, else 0.
func Velocity(current, previous int) int {
	if previous > 0 {
		return int(math.Round(float64(current-previous) / float64(previous) * 100))
	}
	if current > 0 {
		return 100
	}
	return 0
}

// RankTopLinks assembles the top-links rows for ranked ids. Links missing
// from meta are skipped.
func RankTopLinks(ids []string, current, previous map[string]int, meta map[string]model.LinkMeta) []model.TopLink {
	rows := make([]model.TopLink, 0, len(ids))
	for _, id := range ids {
		link, ok := meta[id]
		if !ok || current[id] == 0 {
			continue
		}
		rows = append(rows, model.TopLink{
			ID:          id,
			Title:       link.Title,
			URL:         link.URL,
			Clicks:      current[id],
			VelocityPct: Velocity(current[id], previous[id]),
		})
	}
	return rows
}

// rankCounts sorts counts descending (name ascending on ties) and keeps the
// first limit entries.
func rankCounts(counts map[string]int, limit int) []model.NamedCount {
	out := make([]model.NamedCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, model.NamedCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// topKey returns the most frequent key, or nil when counts is empty.
func topKey(counts map[string]int) *string {
	ranked := rankCounts(counts, 1)
	if len(ranked) == 0 {
		return nil
	}
	name := ranked[0].Name
	return &name
}

// ComputeShared summarizes a shared page's window: views, clicks, distinct
// visitors across all event types and CTR.
func ComputeShared(page *model.Page, events []model.AnalyticsEvent, days int) model.SharedSummary {
	s := model.SharedSummary{
		PageID:     page.ID,
		Title:      page.Title,
		Slug:       page.Slug,
		PeriodDays: days,
	}

	visitors := map[string]struct{}{}
	for _, e := range events {
		switch e.EventType {
		case model.EventView:
			s.Views++
		case model.EventClick:
			s.Clicks++
		}
		if e.VisitorID != nil && *e.VisitorID != "" {
			visitors[*e.VisitorID] = struct{}{}
		}
	}

	s.UniqueVisitors = len(visitors)
	if s.Views > 0 {
		s.CTR = math.Min(100, roundPct(s.Clicks, s.Views))
	}
	return s
}
