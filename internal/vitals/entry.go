// Package vitals implements the client-side web-vitals collection pipeline:
// performance entries arrive from a Source, a per-page-view Session folds them
// into a Record, and a one-shot flush hands the finished record to a Flusher.
//
// DESIGN: The browser's cooperative single-threaded model is expressed as one
// goroutine per Session. All entry channels and the flush timer are drained by
// that goroutine, so the Record needs no locking.
package vitals

// EntryType identifies a performance timeline category.
type EntryType string

const (
	EntryPaint                  EntryType = "paint"
	EntryLargestContentfulPaint EntryType = "largest-contentful-paint"
	EntryEvent                  EntryType = "event"
	EntryLayoutShift            EntryType = "layout-shift"
)

// Entry names accepted by the metric observers.
const (
	// FirstContentfulPaint is the paint entry accepted for the FCP metric.
	FirstContentfulPaint = "first-contentful-paint"
	// InteractionToNextPaint is the event entry accepted for the INP metric.
	InteractionToNextPaint = "interaction-to-next-paint"
)

// Entry is a single performance timeline entry.
//
// StartTime and Duration are milliseconds relative to navigation start.
// Value carries the shift magnitude for layout-shift entries and is zero
// otherwise. HadRecentInput marks layout shifts that followed user input;
// those are excluded from CLS.
type Entry struct {
	Type           EntryType `json:"type"`
	Name           string    `json:"name,omitempty"`
	StartTime      float64   `json:"startTime,omitempty"`
	Duration       float64   `json:"duration,omitempty"`
	Value          float64   `json:"value,omitempty"`
	HadRecentInput bool      `json:"hadRecentInput,omitempty"`
}

// NavigationTiming carries the request/response timestamps used to derive TTFB.
type NavigationTiming struct {
	RequestStart  float64 `json:"requestStart"`
	ResponseStart float64 `json:"responseStart"`
}

// TTFB returns the time-to-first-byte interval in milliseconds.
func (n NavigationTiming) TTFB() float64 {
	return n.ResponseStart - n.RequestStart
}
