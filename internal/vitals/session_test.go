package vitals_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codesharp/webvitals/internal/vitals"
)

// recordingFlusher captures flushed records and counts invocations.
type recordingFlusher struct {
	calls   atomic.Int64
	flushed chan vitals.Record
}

func newRecordingFlusher() *recordingFlusher {
	return &recordingFlusher{flushed: make(chan vitals.Record, 4)}
}

func (f *recordingFlusher) Flush(_ context.Context, rec vitals.Record) error {
	f.calls.Add(1)
	f.flushed <- rec
	return nil
}

func TestSession_FiveMetricScenario(t *testing.T) {
	// Page loads, FCP at 800ms, LCP candidates at 1200ms then 1500ms, two
	// non-input layout shifts of 0.01 and 0.02. At flush the record holds the
	// navigation-derived TTFB, the last LCP and the shift sum; INP stays zero
	// because no interaction happened.
	src := vitals.NewReplaySource(vitals.NavigationTiming{RequestStart: 10, ResponseStart: 152.4})
	src.Publish(vitals.Entry{Type: vitals.EntryPaint, Name: vitals.FirstContentfulPaint, StartTime: 800})
	src.Publish(vitals.Entry{Type: vitals.EntryLargestContentfulPaint, StartTime: 1200})
	src.Publish(vitals.Entry{Type: vitals.EntryLargestContentfulPaint, StartTime: 1500})
	src.Publish(vitals.Entry{Type: vitals.EntryLayoutShift, Value: 0.01})
	src.Publish(vitals.Entry{Type: vitals.EntryLayoutShift, Value: 0.02})

	flusher := newRecordingFlusher()
	sess := vitals.NewSession(src, flusher, vitals.SessionConfig{FlushDelay: 50 * time.Millisecond})
	require.NoError(t, sess.Run(context.Background()))

	rec := <-flusher.flushed
	assert.InDelta(t, 142.4, rec.TTFB, 1e-9)
	assert.Equal(t, 800.0, rec.FCP)
	assert.Equal(t, 1500.0, rec.LCP)
	assert.InDelta(t, 0.03, rec.CLS, 1e-9)
	assert.Zero(t, rec.INP, "INP is zero without user interaction")
	assert.GreaterOrEqual(t, rec.MeasurementSeconds, 0.0)
}

func TestSession_FlushFiresExactlyOnceAfterDelay(t *testing.T) {
	src := vitals.NewReplaySource(vitals.NavigationTiming{})
	flusher := newRecordingFlusher()
	delay := 60 * time.Millisecond

	sess := vitals.NewSession(src, flusher, vitals.SessionConfig{FlushDelay: delay})

	start := time.Now()
	require.NoError(t, sess.Run(context.Background()))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, delay, "flush must not fire before the delay")
	assert.Equal(t, int64(1), flusher.calls.Load())

	// Run has returned; there is no path to a second flush.
	select {
	case <-flusher.flushed:
	default:
		t.Fatal("expected one flushed record")
	}
	select {
	case rec := <-flusher.flushed:
		t.Fatalf("unexpected second flush: %+v", rec)
	default:
	}
}

func TestSession_EntriesAfterSubscriptionStillCollected(t *testing.T) {
	src := vitals.NewReplaySource(vitals.NavigationTiming{})
	flusher := newRecordingFlusher()
	sess := vitals.NewSession(src, flusher, vitals.SessionConfig{FlushDelay: 100 * time.Millisecond})

	done := make(chan error, 1)
	go func() { done <- sess.Run(context.Background()) }()

	// Live entries land while the session is draining.
	time.Sleep(20 * time.Millisecond)
	src.Publish(vitals.Entry{Type: vitals.EntryLayoutShift, Value: 0.05})
	src.Publish(vitals.Entry{Type: vitals.EntryEvent, Name: vitals.InteractionToNextPaint, Duration: 90})

	require.NoError(t, <-done)
	rec := <-flusher.flushed
	assert.InDelta(t, 0.05, rec.CLS, 1e-9)
	assert.Equal(t, 90.0, rec.INP)
}

func TestSession_UnsupportedHostNeverSubmits(t *testing.T) {
	flusher := newRecordingFlusher()
	sess := vitals.NewSession(vitals.UnsupportedSource{}, flusher, vitals.SessionConfig{FlushDelay: 10 * time.Millisecond})

	err := sess.Run(context.Background())
	assert.ErrorIs(t, err, vitals.ErrUnsupported)

	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, flusher.calls.Load(), "no submission without performance observation")
}

func TestSession_PageTeardownCancelsFlush(t *testing.T) {
	src := vitals.NewReplaySource(vitals.NavigationTiming{})
	flusher := newRecordingFlusher()
	sess := vitals.NewSession(src, flusher, vitals.SessionConfig{FlushDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, flusher.calls.Load(), "teardown before the timer drops the record")
}

func TestSession_FlushErrorIsSwallowed(t *testing.T) {
	src := vitals.NewReplaySource(vitals.NavigationTiming{})
	failing := vitals.FlusherFunc(func(context.Context, vitals.Record) error {
		return assert.AnError
	})
	sess := vitals.NewSession(src, failing, vitals.SessionConfig{FlushDelay: 20 * time.Millisecond})

	// Best-effort delivery: a failed flush is logged, not propagated.
	assert.NoError(t, sess.Run(context.Background()))
}
