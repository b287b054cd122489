package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS page_renders (
	uuid       TEXT PRIMARY KEY,
	path       TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS vitals_logs (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	page_render_uuid    TEXT,
	lcp                 REAL NOT NULL DEFAULT 0,
	cls                 REAL NOT NULL DEFAULT 0,
	ttfb                REAL NOT NULL DEFAULT 0,
	fcp                 REAL NOT NULL DEFAULT 0,
	inp                 REAL NOT NULL DEFAULT 0,
	measurement_seconds REAL NOT NULL DEFAULT 0,
	user_type           TEXT NOT NULL DEFAULT '',
	url                 TEXT NOT NULL,
	user_agent          TEXT NOT NULL DEFAULT '',
	created_at          TIMESTAMP NOT NULL
);
`

// SQLiteStore implements Store on a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) a SQLite database at path and ensures the
// schema exists. Use ":memory:" for an ephemeral database.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database '%s': %w", path, err)
	}
	// The sqlite driver serializes writes; a single connection avoids
	// SQLITE_BUSY on concurrent inserts.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// CreatePageRender persists a correlation record.
func (s *SQLiteStore) CreatePageRender(ctx context.Context, pr PageRender) error {
	if pr.CreatedAt.IsZero() {
		pr.CreatedAt = s.now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO page_renders (uuid, path, created_at) VALUES (?, ?, ?)`,
		pr.UUID, pr.Path, pr.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert page render: %w", err)
	}
	return nil
}

// PageRenderByUUID resolves a correlation token.
func (s *SQLiteStore) PageRenderByUUID(ctx context.Context, uuid string) (PageRender, bool, error) {
	var pr PageRender
	err := s.db.QueryRowContext(ctx,
		`SELECT uuid, path, created_at FROM page_renders WHERE uuid = ?`, uuid).
		Scan(&pr.UUID, &pr.Path, &pr.CreatedAt)
	if err == sql.ErrNoRows {
		return PageRender{}, false, nil
	}
	if err != nil {
		return PageRender{}, false, fmt.Errorf("query page render: %w", err)
	}
	return pr, true, nil
}

// InsertSubmission appends one metrics row. An empty PageRenderUUID is stored
// as NULL so uncorrelated rows stay distinguishable.
func (s *SQLiteStore) InsertSubmission(ctx context.Context, sub Submission) (int64, error) {
	var renderUUID any
	if sub.PageRenderUUID != "" {
		renderUUID = sub.PageRenderUUID
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO vitals_logs
			(page_render_uuid, lcp, cls, ttfb, fcp, inp, measurement_seconds,
			 user_type, url, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		renderUUID, sub.LCP, sub.CLS, sub.TTFB, sub.FCP, sub.INP,
		sub.MeasurementSeconds, sub.UserType, sub.URL, sub.UserAgent,
		s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("insert submission: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("submission id: %w", err)
	}
	return id, nil
}

// AverageVitals computes per-column averages over every persisted row.
func (s *SQLiteStore) AverageVitals(ctx context.Context) (Averages, error) {
	var a Averages
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(AVG(lcp), 0),
			COALESCE(AVG(cls), 0),
			COALESCE(AVG(ttfb), 0),
			COALESCE(AVG(fcp), 0),
			COALESCE(AVG(inp), 0),
			COALESCE(AVG(measurement_seconds), 0),
			COUNT(*)
		FROM vitals_logs`).
		Scan(&a.LCP, &a.CLS, &a.TTFB, &a.FCP, &a.INP, &a.MeasurementSeconds, &a.Samples)
	if err != nil {
		return Averages{}, fmt.Errorf("query averages: %w", err)
	}
	return a, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
