// Package store persists page-render records and metric submissions.
//
// Two tables: page_renders is written once per server-side render (before the
// page is returned, so the correlation mapping always exists ahead of any
// echoing submission), vitals_logs is insert-only, one row per submission.
// There is no read-modify-write path; concurrent page views only ever append.
package store

import (
	"context"
	"time"
)

// PageRender is the correlation record created at render time.
type PageRender struct {
	UUID      string
	Path      string
	CreatedAt time.Time
}

// Submission is one accepted metrics payload. PageRenderUUID is empty for
// uncorrelated rows (absent or unknown token).
type Submission struct {
	PageRenderUUID     string
	LCP                float64
	CLS                float64
	TTFB               float64
	FCP                float64
	INP                float64
	MeasurementSeconds float64
	UserType           string
	URL                string
	UserAgent          string
}

// Averages holds the column means over all persisted rows.
type Averages struct {
	LCP                float64
	CLS                float64
	TTFB               float64
	FCP                float64
	INP                float64
	MeasurementSeconds float64
	Samples            int64
}

// Store is the persistence contract consumed by the collection server.
type Store interface {
	// CreatePageRender persists a correlation record.
	CreatePageRender(ctx context.Context, pr PageRender) error

	// PageRenderByUUID resolves a correlation token. The bool reports whether
	// the token is known; an unknown token is not an error.
	PageRenderByUUID(ctx context.Context, uuid string) (PageRender, bool, error)

	// InsertSubmission appends one metrics row and returns its id.
	InsertSubmission(ctx context.Context, s Submission) (int64, error)

	// AverageVitals computes the per-column averages over all rows.
	AverageVitals(ctx context.Context) (Averages, error)

	// Close releases the underlying database.
	Close() error
}
