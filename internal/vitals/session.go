package vitals

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultFlushDelay is how long after page-load the record is flushed. FCP and
// LCP typically settle within this window; CLS keeps accumulating until the
// flush and INP may still be zero if no interaction happened.
const DefaultFlushDelay = 5 * time.Second

// ErrUnsupported is returned when the host lacks performance observation.
// The pipeline degrades to a no-op: no observers, no submission.
var ErrUnsupported = errors.New("vitals: performance observation not supported")

// Flusher receives the finalized record. It is invoked exactly once per page
// view; delivery failures are its own concern and are never retried.
type Flusher interface {
	Flush(ctx context.Context, rec Record) error
}

// FlusherFunc adapts a function to the Flusher interface.
type FlusherFunc func(ctx context.Context, rec Record) error

func (f FlusherFunc) Flush(ctx context.Context, rec Record) error { return f(ctx, rec) }

// SessionConfig tunes a single page-view session.
type SessionConfig struct {
	// FlushDelay is the one-shot timer interval. Zero means DefaultFlushDelay.
	FlushDelay time.Duration

	// now overrides the clock in tests.
	now func() time.Time
}

// Session collects metrics for one page view. It owns the Record exclusively:
// every observer channel and the flush timer are drained by the single
// goroutine running Run, so no locking is needed.
type Session struct {
	src    Source
	flush  Flusher
	cfg    SessionConfig
	record *Record
	start  time.Time
}

// NewSession prepares a session over the given source. The record's TTFB is
// derived immediately from navigation timing, before any observer fires.
func NewSession(src Source, flush Flusher, cfg SessionConfig) *Session {
	if cfg.FlushDelay <= 0 {
		cfg.FlushDelay = DefaultFlushDelay
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	nav, haveNav := src.Navigation()
	return &Session{
		src:    src,
		flush:  flush,
		cfg:    cfg,
		record: NewRecord(nav, haveNav),
		start:  cfg.now(),
	}
}

// Run installs the observers, accumulates entries until the flush timer fires,
// snapshots the record and hands it to the Flusher, then returns. It runs at
// most one flush; cancelling ctx (page teardown) drops everything silently.
func (s *Session) Run(ctx context.Context) error {
	if !s.src.Supported() {
		log.Debug().Msg("vitals: host lacks performance observation, pipeline disabled")
		return ErrUnsupported
	}

	// Subscriptions request buffered replay, so entries recorded before this
	// point are not lost.
	paint := s.src.Subscribe(EntryPaint)
	lcp := s.src.Subscribe(EntryLargestContentfulPaint)
	event := s.src.Subscribe(EntryEvent)
	shift := s.src.Subscribe(EntryLayoutShift)

	timer := time.NewTimer(s.cfg.FlushDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-paint:
			if !ok {
				paint = nil
				continue
			}
			s.apply(e)
		case e, ok := <-lcp:
			if !ok {
				lcp = nil
				continue
			}
			s.apply(e)
		case e, ok := <-event:
			if !ok {
				event = nil
				continue
			}
			s.apply(e)
		case e, ok := <-shift:
			if !ok {
				shift = nil
				continue
			}
			s.apply(e)
		case <-timer.C:
			snapshot := *s.record
			if err := s.flush.Flush(ctx, snapshot); err != nil {
				// Best-effort telemetry: the submission is lost, nothing retries.
				log.Debug().Err(err).Msg("vitals: flush failed")
			}
			return nil
		}
	}
}

func (s *Session) apply(e Entry) {
	if s.record.Apply(e, s.cfg.now().Sub(s.start)) {
		log.Trace().
			Str("type", string(e.Type)).
			Str("name", e.Name).
			Float64("start_time", e.StartTime).
			Float64("value", e.Value).
			Msg("vitals: entry accepted")
	}
}

// Record returns the accumulator. Callers outside the Run goroutine must treat
// it as read-only until Run has returned.
func (s *Session) Record() *Record { return s.record }
