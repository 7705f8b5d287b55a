package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder exports metrics through a Prometheus registry.
type PrometheusRecorder struct {
	eventsIngested     *prometheus.CounterVec
	eventsRejected     *prometheus.CounterVec
	aggregationSeconds *prometheus.HistogramVec
	aggregationErrors  *prometheus.CounterVec
	exportRows         prometheus.Histogram
	liveSessions       prometheus.Gauge
	liveSessionsTotal  prometheus.Counter
	liveFrames         *prometheus.CounterVec
	livePollErrors     prometheus.Counter
	breakerTransitions *prometheus.CounterVec
	cacheRequests      *prometheus.CounterVec
}

// NewPrometheus registers the application metrics on reg.
func NewPrometheus(reg prometheus.Registerer) *PrometheusRecorder {
	f := promauto.With(reg)

	return &PrometheusRecorder{
		eventsIngested: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portalo_events_ingested_total",
			Help: "Analytics events written to the event store.",
		}, []string{"event_type"}),
		eventsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portalo_events_rejected_total",
			Help: "Tracking requests that did not produce an event.",
		}, []string{"reason"}),
		aggregationSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portalo_aggregation_duration_seconds",
			Help:    "Time spent computing an analytics aggregation, including store reads.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"aggregation"}),
		aggregationErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portalo_aggregation_errors_total",
			Help: "Aggregations that failed with a store error.",
		}, []string{"aggregation"}),
		exportRows: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "portalo_export_rows",
			Help:    "Rows written per CSV export.",
			Buckets: []float64{0, 10, 100, 1000, 5000, 10000},
		}),
		liveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "portalo_live_sessions",
			Help: "Currently open live feed streams.",
		}),
		liveSessionsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "portalo_live_sessions_total",
			Help: "Live feed streams opened.",
		}),
		liveFrames: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portalo_live_frames_total",
			Help: "Frames written to live feed streams.",
		}, []string{"kind"}),
		livePollErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "portalo_live_poll_errors_total",
			Help: "Live feed polls that failed and were sent as heartbeats.",
		}),
		breakerTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portalo_circuit_breaker_transitions_total",
			Help: "Circuit breaker state changes.",
		}, []string{"name", "from", "to"}),
		cacheRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portalo_cache_requests_total",
			Help: "Cache lookups by cache and result.",
		}, []string{"cache", "result"}),
	}
}

// IncEventIngested implements Recorder.
func (p *PrometheusRecorder) IncEventIngested(eventType string) {
	p.eventsIngested.WithLabelValues(eventType).Inc()
}

// IncEventRejected implements Recorder.
func (p *PrometheusRecorder) IncEventRejected(reason string) {
	p.eventsRejected.WithLabelValues(reason).Inc()
}

// ObserveAggregation implements Recorder.
func (p *PrometheusRecorder) ObserveAggregation(name string, duration time.Duration) {
	p.aggregationSeconds.WithLabelValues(name).Observe(duration.Seconds())
}

// IncAggregationError implements Recorder.
func (p *PrometheusRecorder) IncAggregationError(name string) {
	p.aggregationErrors.WithLabelValues(name).Inc()
}

// ObserveExportRows implements Recorder.
func (p *PrometheusRecorder) ObserveExportRows(rows int) {
	p.exportRows.Observe(float64(rows))
}

// LiveSessionOpened implements Recorder.
func (p *PrometheusRecorder) LiveSessionOpened() {
	p.liveSessions.Inc()
	p.liveSessionsTotal.Inc()
}

// LiveSessionClosed implements Recorder.
func (p *PrometheusRecorder) LiveSessionClosed() {
	p.liveSessions.Dec()
}

// IncLiveFrame implements Recorder.
func (p *PrometheusRecorder) IncLiveFrame(kind string) {
	p.liveFrames.WithLabelValues(kind).Inc()
}

// IncLivePollError implements Recorder.
func (p *PrometheusRecorder) IncLivePollError() {
	p.livePollErrors.Inc()
}

// IncBreakerTransition implements Recorder.
func (p *PrometheusRecorder) IncBreakerTransition(name, from, to string) {
	p.breakerTransitions.WithLabelValues(name, from, to).Inc()
}

// IncCacheHit implements Recorder.
func (p *PrometheusRecorder) IncCacheHit(cache string) {
	p.cacheRequests.WithLabelValues(cache, "hit").Inc()
}

// IncCacheMiss implements Recorder.
func (p *PrometheusRecorder) IncCacheMiss(cache string) {
	p.cacheRequests.WithLabelValues(cache, "miss").Inc()
}
