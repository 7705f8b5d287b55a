package model

// Overview is the headline summary for a window.
// NewVisitors and ReturningVisitors are nil unless pro analytics is granted.
type Overview struct {
	Views             int     `json:"views"`
	Clicks            int     `json:"clicks"`
	EmailCaptures     int     `json:"email_captures"`
	UniqueViews       int     `json:"unique_views"`
	UniqueClicks      int     `json:"unique_clicks"`
	CTR               float64 `json:"ctr"`
	BounceRate        float64 `json:"bounce_rate"`
	AvgTimeToClickMs  *int    `json:"avg_time_to_click_ms"`
	TopReferrer       *string `json:"top_referrer"`
	TopCountry        *string `json:"top_country"`
	NewVisitors       *int    `json:"new_visitors"`
	ReturningVisitors *int    `json:"returning_visitors"`
	PeriodDays        int     `json:"period_days"`
}

// DailyBucket holds counts for one UTC date (YYYY-MM-DD).
type DailyBucket struct {
	Date          string `json:"date"`
	Views         int    `json:"views"`
	Clicks        int    `json:"clicks"`
	EmailCaptures int    `json:"email_captures"`
}

// HourlyBucket holds counts for one UTC hour of day.
type HourlyBucket struct {
	Hour   int `json:"hour"`
	Views  int `json:"views"`
	Clicks int `json:"clicks"`
}

// NamedCount is one row of a breakdown table.
type NamedCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Breakdown holds frequency tables over a window's events, each sorted by
// count descending and truncated to the top 10.
type Breakdown struct {
	Referrers []NamedCount `json:"referrers"`
	Countries []NamedCount `json:"countries"`
	Browsers  []NamedCount `json:"browsers"`
	Devices   []NamedCount `json:"devices"`
}

// TopLink is one row of the top-links ranking. VelocityPct is the percent
// change in clicks versus the preceding window of equal length.
type TopLink struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Clicks      int    `json:"clicks"`
	VelocityPct int    `json:"velocity_pct"`
}

// SharedSummary is the public view behind an analytics share token.
type SharedSummary struct {
	PageID         string  `json:"page_id"`
	Title          string  `json:"title"`
	Slug           string  `json:"slug"`
	Views          int     `json:"views"`
	Clicks         int     `json:"clicks"`
	UniqueVisitors int     `json:"unique_visitors"`
	CTR            float64 `json:"ctr"`
	PeriodDays     int     `json:"period_days"`
}
