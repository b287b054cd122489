package vitals

import "time"

// Record accumulates one page view's metrics. All fields start at zero and are
// written only by the owning Session; it is read exactly once, as a snapshot,
// when the flush fires.
type Record struct {
	TTFB               float64
	FCP                float64
	LCP                float64
	CLS                float64
	INP                float64
	MeasurementSeconds float64
}

// NewRecord creates a record with TTFB derived from navigation timing.
// TTFB is computed once here and never rewritten.
func NewRecord(nav NavigationTiming, haveNav bool) *Record {
	r := &Record{}
	if haveNav {
		r.TTFB = nav.TTFB()
	}
	return r
}

// Apply folds a single performance entry into the record and reports whether
// the entry was accepted. Accepted updates also recompute MeasurementSeconds
// from the elapsed collection time.
//
// Update rules:
//   - paint: only the "first-contentful-paint" entry; first occurrence wins.
//   - largest-contentful-paint: every candidate replaces the prior value,
//     since the browser reports progressively larger candidates.
//   - event: only the interaction-to-next-paint entry; its duration (not its
//     start time) becomes INP.
//   - layout-shift: the shift magnitude accumulates, unless the shift
//     followed recent user input.
func (r *Record) Apply(e Entry, elapsed time.Duration) bool {
	switch e.Type {
	case EntryPaint:
		if e.Name != FirstContentfulPaint || r.FCP != 0 {
			return false
		}
		r.FCP = e.StartTime
	case EntryLargestContentfulPaint:
		r.LCP = e.StartTime
	case EntryEvent:
		if e.Name != InteractionToNextPaint {
			return false
		}
		r.INP = e.Duration
	case EntryLayoutShift:
		if e.HadRecentInput {
			return false
		}
		r.CLS += e.Value
	default:
		return false
	}
	r.MeasurementSeconds = elapsed.Seconds()
	return true
}
