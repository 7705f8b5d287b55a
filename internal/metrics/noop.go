package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncEventIngested is a no-op.
func (n *NoopRecorder) IncEventIngested(eventType string) {}

// IncEventRejected is a no-op.
func (n *NoopRecorder) IncEventRejected(reason string) {}

// ObserveAggregation is a no-op.
func (n *NoopRecorder) ObserveAggregation(name string, duration time.Duration) {}

// IncAggregationError is a no-op.
func (n *NoopRecorder) IncAggregationError(name string) {}

// ObserveExportRows is a no-op.
func (n *NoopRecorder) ObserveExportRows(rows int) {}

// LiveSessionOpened is a no-op.
func (n *NoopRecorder) LiveSessionOpened() {}

// LiveSessionClosed is a no-op.
func (n *NoopRecorder) LiveSessionClosed() {}

// IncLiveFrame is a no-op.
func (n *NoopRecorder) IncLiveFrame(kind string) {}

// IncLivePollError is a no-op.
func (n *NoopRecorder) IncLivePollError() {}

// IncBreakerTransition is a no-op.
func (n *NoopRecorder) IncBreakerTransition(name, from, to string) {}

// IncCacheHit is a no-op.
func (n *NoopRecorder) IncCacheHit(cache string) {}

// IncCacheMiss is a no-op.
func (n *NoopRecorder) IncCacheMiss(cache string) {}
