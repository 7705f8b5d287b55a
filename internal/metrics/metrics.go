// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, tests, etc.
type Recorder interface {
	// Ingestion
	IncEventIngested(eventType string)
	IncEventRejected(reason string) // reason: "validation", "invalid_json", "rate_limited", "store_error"

	// Aggregations (name: overview, timeseries, hourly, breakdown, top_links, export, shared)
	ObserveAggregation(name string, duration time.Duration)
	IncAggregationError(name string)
	ObserveExportRows(rows int)

	// Live feed
	LiveSessionOpened()
	LiveSessionClosed()
	IncLiveFrame(kind string) // kind: "data" or "heartbeat"
	IncLivePollError()
	IncBreakerTransition(name, from, to string)

	// Caches (cache: auth, plan, link)
	IncCacheHit(cache string)
	IncCacheMiss(cache string)
}
