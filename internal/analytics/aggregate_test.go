package analytics

import (
	"testing"
	"time"

	"github.com/portalo/portalo/internal/model"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func ev(t model.EventType, at time.Time, visitor string) model.AnalyticsEvent {
	e := model.AnalyticsEvent{PageID: "p", EventType: t, CreatedAt: at}
	if visitor != "" {
		e.VisitorID = &visitor
	}
	return e
}

func TestComputeOverview_Counts(t *testing.T) {
	t.Parallel()

	events := []model.AnalyticsEvent{
		ev(model.EventView, testNow, "a"),
		ev(model.EventView, testNow, "a"),
		ev(model.EventView, testNow, "b"),
		ev(model.EventView, testNow, "c"),
		ev(model.EventClick, testNow, "a"),
		ev(model.EventEmailCapture, testNow, ""),
	}

	ov := ComputeOverview(events, 7)

	if ov.Views != 4 || ov.Clicks != 1 || ov.EmailCaptures != 1 {
		t.Fatalf("counts = %d/%d/%d, want 4/1/1", ov.Views, ov.Clicks, ov.EmailCaptures)
	}
	if ov.UniqueViews != 3 {
		t.Errorf("UniqueViews = %d, want 3", ov.UniqueViews)
	}
	if ov.UniqueClicks != 1 {
		t.Errorf("UniqueClicks = %d, want 1", ov.UniqueClicks)
	}
	if ov.CTR != 25 {
		t.Errorf("CTR = %v, want 25", ov.CTR)
	}
	// 3 viewers, 1 of them clicked
	if ov.BounceRate != 66.7 {
		t.Errorf("BounceRate = %v, want 66.7", ov.BounceRate)
	}
	if ov.PeriodDays != 7 {
		t.Errorf("PeriodDays = %d, want 7", ov.PeriodDays)
	}
	if ov.NewVisitors != nil || ov.ReturningVisitors != nil {
		t.Error("visitor split should be nil")
	}
}

func TestComputeOverview_Empty(t *testing.T) {
	t.Parallel()

	ov := ComputeOverview(nil, 30)

	if ov.CTR != 0 || ov.BounceRate != 0 || ov.UniqueViews != 0 {
		t.Errorf("unexpected non-zero overview: %+v", ov)
	}
	if ov.AvgTimeToClickMs != nil || ov.TopReferrer != nil || ov.TopCountry != nil {
		t.Error("optional fields should be nil with no events")
	}
}

func TestComputeOverview_CTRCappedAt100(t *testing.T) {
	t.Parallel()

	events := []model.AnalyticsEvent{
		ev(model.EventView, testNow, ""),
		ev(model.EventClick, testNow, ""),
		ev(model.EventClick, testNow, ""),
		ev(model.EventClick, testNow, ""),
	}

	ov := ComputeOverview(events, 7)
	if ov.CTR != 100 {
		t.Errorf("CTR = %v, want 100", ov.CTR)
	}
	if ov.BounceRate != 0 {
		t.Errorf("BounceRate = %v, want 0", ov.BounceRate)
	}
	// No visitor ids: unique counts fall back to totals
	if ov.UniqueViews != 1 || ov.UniqueClicks != 3 {
		t.Errorf("unique = %d/%d, want 1/3", ov.UniqueViews, ov.UniqueClicks)
	}
}

func TestComputeOverview_TopAndAverage(t *testing.T) {
	t.Parallel()

	c1 := ev(model.EventClick, testNow, "")
	c1.TimeToClickMs = intPtr(1000)
	c1.Referrer = strPtr("https://instagram.com/")
	c2 := ev(model.EventClick, testNow, "")
	c2.TimeToClickMs = intPtr(2001)
	c2.Referrer = strPtr("https://instagram.com/")
	c2.Country = strPtr("DE")
	v := ev(model.EventView, testNow, "")
	v.Referrer = strPtr("https://x.com/")
	v.Country = strPtr("US")

	ov := ComputeOverview([]model.AnalyticsEvent{c1, c2, v}, 7)

	if ov.AvgTimeToClickMs == nil || *ov.AvgTimeToClickMs != 1501 {
		t.Errorf("AvgTimeToClickMs = %v, want 1501", ov.AvgTimeToClickMs)
	}
	if ov.TopReferrer == nil || *ov.TopReferrer != "https://instagram.com/" {
		t.Errorf("TopReferrer = %v", ov.TopReferrer)
	}
	// DE and US tie at 1; name order decides
	if ov.TopCountry == nil || *ov.TopCountry != "DE" {
		t.Errorf("TopCountry = %v, want DE", ov.TopCountry)
	}
}

func TestBuildTimeseries(t *testing.T) {
	t.Parallel()

	events := []model.AnalyticsEvent{
		ev(model.EventView, testNow, ""),
		ev(model.EventClick, testNow.Add(-24*time.Hour), ""),
		ev(model.EventEmailCapture, testNow.Add(-6*24*time.Hour), ""),
		ev(model.EventView, testNow.Add(-30*24*time.Hour), ""),
	}

	buckets := BuildTimeseries(events, testNow, 7)

	if len(buckets) != 7 {
		t.Fatalf("len = %d, want 7", len(buckets))
	}
	if buckets[0].Date != "2026-03-09" || buckets[6].Date != "2026-03-15" {
		t.Errorf("range = %s..%s", buckets[0].Date, buckets[6].Date)
	}
	if buckets[6].Views != 1 || buckets[5].Clicks != 1 || buckets[0].EmailCaptures != 1 {
		t.Errorf("unexpected buckets: %+v", buckets)
	}

	total := 0
	for i, b := range buckets {
		if i > 0 && b.Date <= buckets[i-1].Date {
			t.Errorf("dates not strictly ascending at %d", i)
		}
		total += b.Views + b.Clicks + b.EmailCaptures
	}
	if total != 3 {
		t.Errorf("total = %d, want 3 (out-of-window event dropped)", total)
	}
}

func TestBuildTimeseries_NoEvents(t *testing.T) {
	t.Parallel()

	for _, days := range []int{7, 30, 90} {
		if got := len(BuildTimeseries(nil, testNow, days)); got != days {
			t.Errorf("days=%d: len = %d", days, got)
		}
	}
}

func TestBuildHourly(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC)
	events := []model.AnalyticsEvent{
		ev(model.EventView, at, ""),
		ev(model.EventClick, at, ""),
		ev(model.EventEmailCapture, at, ""),
		ev(model.EventView, at.In(time.FixedZone("X", 3600)), ""),
	}

	buckets := BuildHourly(events)

	if len(buckets) != 24 {
		t.Fatalf("len = %d, want 24", len(buckets))
	}
	for h, b := range buckets {
		if b.Hour != h {
			t.Errorf("bucket %d has hour %d", h, b.Hour)
		}
	}
	if buckets[23].Views != 2 || buckets[23].Clicks != 1 {
		t.Errorf("hour 23 = %+v, want 2 views 1 click", buckets[23])
	}
}

func TestBuildBreakdown(t *testing.T) {
	t.Parallel()

	var events []model.AnalyticsEvent
	for i := 0; i < 12; i++ {
		e := ev(model.EventView, testNow, "")
		e.Country = strPtr(string(rune('A'+i)) + "X")
		events = append(events, e)
	}
	withRef := ev(model.EventClick, testNow, "")
	withRef.Referrer = strPtr("https://t.co/")
	withRef.Browser = strPtr("Chrome")
	withRef.Device = strPtr(model.DeviceMobile)
	events = append(events, withRef)

	b := BuildBreakdown(events)

	if len(b.Referrers) != 2 || b.Referrers[0].Name != "Direct" || b.Referrers[0].Count != 12 {
		t.Errorf("Referrers = %+v", b.Referrers)
	}
	if len(b.Countries) != 10 {
		t.Errorf("Countries len = %d, want 10", len(b.Countries))
	}
	if b.Countries[0].Name != "AX" {
		t.Errorf("Countries[0] = %s, want AX", b.Countries[0].Name)
	}
	if len(b.Browsers) != 1 || len(b.Devices) != 1 {
		t.Errorf("Browsers/Devices = %+v / %+v", b.Browsers, b.Devices)
	}
}

func TestVelocity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		current, previous, want int
	}{
		{10, 5, 100},
		{5, 10, -50},
		{3, 0, 100},
		{0, 0, 0},
		{0, 4, -100},
		{4, 3, 33},
	}

	for _, tt := range tests {
		if got := Velocity(tt.current, tt.previous); got != tt.want {
			t.Errorf("Velocity(%d, %d) = %d, want %d", tt.current, tt.previous, got, tt.want)
		}
	}
}

func TestTopLinks_Ranking(t *testing.T) {
	t.Parallel()

	since := testNow.AddDate(0, 0, -7)
	click := func(link string, at time.Time) model.AnalyticsEvent {
		e := ev(model.EventClick, at, "")
		e.LinkID = &link
		return e
	}

	events := []model.AnalyticsEvent{
		click("l1", testNow),
		click("l1", testNow),
		click("l1", since.Add(-time.Hour)),
		click("l2", testNow),
		click("l3", testNow),
		click("l3", testNow),
		click("gone", testNow),
		click("old", since.Add(-time.Hour)),
	}

	current, previous := CountLinkClicks(events, since)
	ids := TopLinkIDs(current, topLinksLimit)
	meta := map[string]model.LinkMeta{
		"l1":  {ID: "l1", Title: "One", URL: "https://one"},
		"l2":  {ID: "l2", Title: "Two", URL: "https://two"},
		"l3":  {ID: "l3", Title: "Three", URL: "https://three"},
		"old": {ID: "old", Title: "Old", URL: "https://old"},
	}

	rows := RankTopLinks(ids, current, previous, meta)

	if len(rows) != 3 {
		t.Fatalf("rows = %+v, want 3", rows)
	}
	if rows[0].ID != "l1" || rows[1].ID != "l3" || rows[2].ID != "l2" {
		t.Errorf("order = %s,%s,%s", rows[0].ID, rows[1].ID, rows[2].ID)
	}
	if rows[0].VelocityPct != 100 {
		t.Errorf("l1 velocity = %d, want 100", rows[0].VelocityPct)
	}
	for _, r := range rows {
		if r.Clicks < 1 {
			t.Errorf("row %s has %d clicks", r.ID, r.Clicks)
		}
	}
}

func TestComputeShared(t *testing.T) {
	t.Parallel()

	page := &model.Page{ID: "p", Title: "Me", Slug: "me"}
	events := []model.AnalyticsEvent{
		ev(model.EventView, testNow, "a"),
		ev(model.EventView, testNow, "b"),
		ev(model.EventClick, testNow, "a"),
		ev(model.EventEmailCapture, testNow, "c"),
	}

	s := ComputeShared(page, events, 30)

	if s.Views != 2 || s.Clicks != 1 || s.UniqueVisitors != 3 || s.CTR != 50 {
		t.Errorf("summary = %+v", s)
	}
	if s.Slug != "me" || s.PeriodDays != 30 {
		t.Errorf("summary metadata = %+v", s)
	}
}
