package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	EventsIngested     map[string]uint64
	EventsRejected     map[string]uint64
	Aggregations       map[string]uint64
	AggregationErrors  map[string]uint64
	ExportRowsTotal    uint64
	LiveSessionsActive int64
	LiveSessionsTotal  uint64
	LiveDataFrames     uint64
	LiveHeartbeats     uint64
	LivePollErrors     uint64
	BreakerTransitions uint64
	CacheHits          map[string]uint64
	CacheMisses        map[string]uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	exportRows         uint64
	liveActive         int64
	liveTotal          uint64
	liveData           uint64
	liveHeartbeats     uint64
	livePollErrors     uint64
	breakerTransitions uint64

	mu                sync.Mutex
	eventsIngested    map[string]uint64
	eventsRejected    map[string]uint64
	aggregations      map[string]uint64
	aggregationErrors map[string]uint64
	cacheHits         map[string]uint64
	cacheMisses       map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		eventsIngested:    map[string]uint64{},
		eventsRejected:    map[string]uint64{},
		aggregations:      map[string]uint64{},
		aggregationErrors: map[string]uint64{},
		cacheHits:         map[string]uint64{},
		cacheMisses:       map[string]uint64{},
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		EventsIngested:     copyCounts(m.eventsIngested),
		EventsRejected:     copyCounts(m.eventsRejected),
		Aggregations:       copyCounts(m.aggregations),
		AggregationErrors:  copyCounts(m.aggregationErrors),
		ExportRowsTotal:    atomic.LoadUint64(&m.exportRows),
		LiveSessionsActive: atomic.LoadInt64(&m.liveActive),
		LiveSessionsTotal:  atomic.LoadUint64(&m.liveTotal),
		LiveDataFrames:     atomic.LoadUint64(&m.liveData),
		LiveHeartbeats:     atomic.LoadUint64(&m.liveHeartbeats),
		LivePollErrors:     atomic.LoadUint64(&m.livePollErrors),
		BreakerTransitions: atomic.LoadUint64(&m.breakerTransitions),
		CacheHits:          copyCounts(m.cacheHits),
		CacheMisses:        copyCounts(m.cacheMisses),
	}
}

func (m *InMemoryRecorder) inc(counts map[string]uint64, label string) {
	m.mu.Lock()
	counts[label]++
	m.mu.Unlock()
}

func copyCounts(src map[string]uint64) map[string]uint64 {
	dst := make(map[string]uint64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// IncEventIngested increments the ingested counter for eventType.
func (m *InMemoryRecorder) IncEventIngested(eventType string) {
	m.inc(m.eventsIngested, eventType)
}

// IncEventRejected increments the rejected counter for reason.
func (m *InMemoryRecorder) IncEventRejected(reason string) {
	m.inc(m.eventsRejected, reason)
}

// ObserveAggregation counts a completed aggregation.
func (m *InMemoryRecorder) ObserveAggregation(name string, duration time.Duration) {
	m.inc(m.aggregations, name)
}

// IncAggregationError counts a failed aggregation.
func (m *InMemoryRecorder) IncAggregationError(name string) {
	m.inc(m.aggregationErrors, name)
}

// ObserveExportRows adds to the exported row total.
func (m *InMemoryRecorder) ObserveExportRows(rows int) {
	atomic.AddUint64(&m.exportRows, uint64(rows))
}

// LiveSessionOpened tracks a new live session.
func (m *InMemoryRecorder) LiveSessionOpened() {
	atomic.AddInt64(&m.liveActive, 1)
	atomic.AddUint64(&m.liveTotal, 1)
}

// LiveSessionClosed tracks a closed live session.
func (m *InMemoryRecorder) LiveSessionClosed() {
	atomic.AddInt64(&m.liveActive, -1)
}

// IncLiveFrame counts a frame written to a live stream.
func (m *InMemoryRecorder) IncLiveFrame(kind string) {
	if kind == "data" {
		atomic.AddUint64(&m.liveData, 1)
		return
	}
	atomic.AddUint64(&m.liveHeartbeats, 1)
}

// IncLivePollError counts a poll failure downgraded to a heartbeat.
func (m *InMemoryRecorder) IncLivePollError() {
	atomic.AddUint64(&m.livePollErrors, 1)
}

// IncBreakerTransition counts a circuit breaker state change.
func (m *InMemoryRecorder) IncBreakerTransition(name, from, to string) {
	atomic.AddUint64(&m.breakerTransitions, 1)
}

// IncCacheHit increments the hit counter for cache.
func (m *InMemoryRecorder) IncCacheHit(cache string) {
	m.inc(m.cacheHits, cache)
}

// IncCacheMiss increments the miss counter for cache.
func (m *InMemoryRecorder) IncCacheMiss(cache string) {
	m.inc(m.cacheMisses, cache)
}
