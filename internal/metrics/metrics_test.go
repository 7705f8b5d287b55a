package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Recorder = (*NoopRecorder)(nil)
	_ Recorder = (*InMemoryRecorder)(nil)
	_ Recorder = (*PrometheusRecorder)(nil)
)

func TestInMemoryRecorder_Snapshot(t *testing.T) {
	m := NewInMemory()

	m.IncEventIngested("view")
	m.IncEventIngested("view")
	m.IncEventRejected("validation")
	m.ObserveAggregation("overview", time.Millisecond)
	m.IncAggregationError("overview")
	m.ObserveExportRows(42)
	m.LiveSessionOpened()
	m.LiveSessionOpened()
	m.LiveSessionClosed()
	m.IncLiveFrame("data")
	m.IncLiveFrame("heartbeat")
	m.IncLiveFrame("heartbeat")
	m.IncLivePollError()
	m.IncCacheHit("plan")
	m.IncCacheMiss("link")

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.EventsIngested["view"])
	assert.Equal(t, uint64(1), snap.EventsRejected["validation"])
	assert.Equal(t, uint64(1), snap.Aggregations["overview"])
	assert.Equal(t, uint64(1), snap.AggregationErrors["overview"])
	assert.Equal(t, uint64(42), snap.ExportRowsTotal)
	assert.Equal(t, int64(1), snap.LiveSessionsActive)
	assert.Equal(t, uint64(2), snap.LiveSessionsTotal)
	assert.Equal(t, uint64(1), snap.LiveDataFrames)
	assert.Equal(t, uint64(2), snap.LiveHeartbeats)
	assert.Equal(t, uint64(1), snap.LivePollErrors)
	assert.Equal(t, uint64(1), snap.CacheHits["plan"])
	assert.Equal(t, uint64(1), snap.CacheMisses["link"])

	// Snapshots are copies.
	snap.EventsIngested["view"] = 100
	assert.Equal(t, uint64(2), m.Snapshot().EventsIngested["view"])
}

func TestPrometheusRecorder_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg)

	p.IncEventIngested("click")
	p.IncLivePollError()
	p.IncLivePollError()
	p.LiveSessionOpened()
	p.IncCacheHit("link")

	assert.Equal(t, 1.0, testutil.ToFloat64(p.eventsIngested.WithLabelValues("click")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.livePollErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.liveSessions))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.cacheRequests.WithLabelValues("link", "hit")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["portalo_live_poll_errors_total"])
	assert.True(t, names["portalo_events_ingested_total"])
}

func TestNoopRecorder(t *testing.T) {
	r := NewNoop()
	r.IncEventIngested("view")
	r.ObserveAggregation("hourly", time.Second)
	r.LiveSessionClosed()
}
