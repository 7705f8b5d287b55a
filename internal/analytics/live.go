package analytics

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/portalo/portalo/internal/metrics"
	"github.com/portalo/portalo/internal/model"
	gobreaker "github.com/sony/gobreaker/v2"
)

// ErrHubClosed is returned when a session is attached during shutdown.
var ErrHubClosed = errors.New("live hub is shutting down")

// Frame is one server push. A frame without events is a heartbeat.
type Frame struct {
	Events []model.LiveEvent
}

// Heartbeat reports whether the frame carries no events.
func (f Frame) Heartbeat() bool {
	return len(f.Events) == 0
}

type liveSessionConfig struct {
	pageID   string
	events   EventStore
	breaker  *gobreaker.CircuitBreaker[[]model.AnalyticsEvent]
	interval time.Duration
	limit    int
	start    time.Time
	logger   *slog.Logger
	metrics  metrics.Recorder
}

// LiveSession is the per-connection live feed state. It is not safe for
// concurrent use; one request goroutine drives it.
type LiveSession struct {
	pageID   string
	events   EventStore
	breaker  *gobreaker.CircuitBreaker[[]model.AnalyticsEvent]
	interval time.Duration
	limit    int
	lastSeen time.Time
	logger   *slog.Logger
	metrics  metrics.Recorder
}

func newLiveSession(cfg liveSessionConfig) *LiveSession {
	return &LiveSession{
		pageID:   cfg.pageID,
		events:   cfg.events,
		breaker:  cfg.breaker,
		interval: cfg.interval,
		limit:    cfg.limit,
		lastSeen: cfg.start,
		logger:   cfg.logger.With("page_id", cfg.pageID),
		metrics:  cfg.metrics,
	}
}

// PageID returns the watched page.
func (s *LiveSession) PageID() string {
	return s.pageID
}

// LastSeen returns the created_at of the newest event pushed so far, or the
// session start time.
func (s *LiveSession) LastSeen() time.Time {
	return s.lastSeen
}

// Poll fetches events newer than LastSeen, newest first. Errors never
// escape: they are logged, counted and turned into a heartbeat.
func (s *LiveSession) Poll(ctx context.Context) Frame {
	events, err := s.breaker.Execute(func() ([]model.AnalyticsEvent, error) {
		return s.events.ListEventsAfter(ctx, s.pageID, s.lastSeen, s.limit)
	})
	if err != nil {
		if ctx.Err() == nil {
			s.metrics.IncLivePollError()
			s.logger.Warn("live poll failed, sending heartbeat", "error", err)
		}
		return Frame{}
	}
	if len(events) == 0 {
		return Frame{}
	}

	s.lastSeen = events[0].CreatedAt
	out := make([]model.LiveEvent, len(events))
	for i, e := range events {
		out[i] = e.ToLive()
	}
	return Frame{Events: out}
}

// Run polls immediately and then on every interval tick, passing each frame
// to emit. It returns nil when ctx is cancelled and emit's error when a
// write fails.
func (s *LiveSession) Run(ctx context.Context, emit func(Frame) error) error {
	s.metrics.LiveSessionOpened()
	defer s.metrics.LiveSessionClosed()

	send := func() error {
		f := s.Poll(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if f.Heartbeat() {
			s.metrics.IncLiveFrame("heartbeat")
		} else {
			s.metrics.IncLiveFrame("data")
		}
		return emit(f)
	}

	if err := send(); err != nil {
		return err
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := send(); err != nil {
				return err
			}
		}
	}
}

// newLiveBreaker guards live polling so a struggling database is not hit
// every few seconds by every open dashboard. While open, polls fail fast and
// sessions send heartbeats.
func newLiveBreaker(logger *slog.Logger, recorder metrics.Recorder) *gobreaker.CircuitBreaker[[]model.AnalyticsEvent] {
	return gobreaker.NewCircuitBreaker[[]model.AnalyticsEvent](gobreaker.Settings{
		Name:        "live-poll",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
			recorder.IncBreakerTransition(name, from.String(), to.String())
		},
	})
}

// LiveHub tracks open live sessions so shutdown can end them.
type LiveHub struct {
	mu       sync.Mutex
	sessions map[*LiveSession]context.CancelFunc
	closed   bool
	drained  chan struct{}
}

// NewLiveHub creates an empty LiveHub.
func NewLiveHub() *LiveHub {
	return &LiveHub{sessions: make(map[*LiveSession]context.CancelFunc)}
}

// Attach registers s and returns a context that is cancelled on shutdown,
// plus a detach func the caller must defer.
func (h *LiveHub) Attach(ctx context.Context, s *LiveSession) (context.Context, func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, nil, ErrHubClosed
	}

	sctx, cancel := context.WithCancel(ctx)
	h.sessions[s] = cancel

	detach := func() {
		cancel()
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.sessions, s)
		if h.closed && len(h.sessions) == 0 && h.drained != nil {
			close(h.drained)
			h.drained = nil
		}
	}
	return sctx, detach, nil
}

// Active returns the number of attached sessions.
func (h *LiveHub) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close refuses new sessions and cancels the open ones without waiting.
func (h *LiveHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closeLocked()
}

func (h *LiveHub) closeLocked() {
	if !h.closed {
		h.closed = true
		if len(h.sessions) > 0 {
			h.drained = make(chan struct{})
		}
	}
	for _, cancel := range h.sessions {
		cancel()
	}
}

// Shutdown cancels every session and waits for them to detach or for ctx.
func (h *LiveHub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closeLocked()
	drained := h.drained
	h.mu.Unlock()

	if drained == nil {
		return nil
	}

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
