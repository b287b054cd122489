// Package monitoring - metrics.go provides simple counters.
//
// DESIGN: Lightweight in-memory counters for operational metrics:
//   - renders_issued:          Page-render correlation tokens handed out
//   - submissions_received:    Submissions hitting the collection endpoint
//   - submissions_accepted:    Submissions persisted
//   - submissions_rejected:    Submissions failing nonce or validation
//   - submissions_correlated:  Accepted submissions with a resolved token
//
// For production, export these to Prometheus or similar.
package monitoring

import "sync/atomic"

// MetricsCollector collects operational metrics for the collection server.
type MetricsCollector struct {
	rendersIssued         atomic.Int64
	submissionsReceived   atomic.Int64
	submissionsAccepted   atomic.Int64
	submissionsRejected   atomic.Int64
	submissionsCorrelated atomic.Int64
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

// RecordRenderIssued records a page-render token being issued.
func (mc *MetricsCollector) RecordRenderIssued() { mc.rendersIssued.Add(1) }

// RecordSubmission records one submission outcome.
func (mc *MetricsCollector) RecordSubmission(accepted, correlated bool) {
	mc.submissionsReceived.Add(1)
	if !accepted {
		mc.submissionsRejected.Add(1)
		return
	}
	mc.submissionsAccepted.Add(1)
	if correlated {
		mc.submissionsCorrelated.Add(1)
	}
}

// Stats returns current metrics.
func (mc *MetricsCollector) Stats() map[string]int64 {
	return map[string]int64{
		"renders_issued":         mc.rendersIssued.Load(),
		"submissions_received":   mc.submissionsReceived.Load(),
		"submissions_accepted":   mc.submissionsAccepted.Load(),
		"submissions_rejected":   mc.submissionsRejected.Load(),
		"submissions_correlated": mc.submissionsCorrelated.Load(),
	}
}
