// Package monitoring - types.go defines shared types.
//
// DESIGN: These types are used by both server/ and monitoring/ packages.
// Defined here ONCE to avoid duplication and circular imports.
package monitoring

import "time"

// SubmissionEvent captures one metrics submission through the collection
// endpoint, accepted or not.
type SubmissionEvent struct {
	RequestID      string    `json:"request_id"`
	Timestamp      time.Time `json:"timestamp"`
	ClientIP       string    `json:"client_ip,omitempty"`
	Action         string    `json:"action"`
	PageRenderUUID string    `json:"page_render_uuid,omitempty"`
	Correlated     bool      `json:"correlated"`
	UserType       string    `json:"user_type,omitempty"`
	URL            string    `json:"url,omitempty"`
	TTFB           float64   `json:"ttfb"`
	FCP            float64   `json:"fcp"`
	LCP            float64   `json:"lcp"`
	CLS            float64   `json:"cls"`
	INP            float64   `json:"inp"`
	Accepted       bool      `json:"accepted"`
	Reason         string    `json:"reason,omitempty"`
}

// TelemetryConfig contains telemetry configuration.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	LogPath     string `yaml:"log_path"`
	LogToStdout bool   `yaml:"log_to_stdout"`
}

// LoggerConfig contains logging configuration.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
	Output string `yaml:"output"` // stdout, stderr, or file path
}
