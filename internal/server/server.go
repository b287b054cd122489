// Package server implements the collection endpoint, the page-render
// correlator and the admin aggregate report.
//
// ROUTES:
//   - POST /collect       Metric submissions (form-encoded, nonce-checked)
//   - GET  /page-config   Page-load configuration + fresh correlation token
//   - GET  /admin/vitals  Column averages as an HTML table
//   - GET  /healthz       Liveness probe with operational counters
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/codesharp/webvitals/internal/config"
	"github.com/codesharp/webvitals/internal/monitoring"
	"github.com/codesharp/webvitals/internal/nonce"
	"github.com/codesharp/webvitals/internal/store"
)

// HeaderRequestID carries the per-request trace ID.
const HeaderRequestID = "X-Request-ID"

// Server is the web-vitals collection server.
type Server struct {
	cfg         *config.Config
	store       store.Store
	nonces      *nonce.Issuer
	metrics     *monitoring.MetricsCollector
	telemetry   *monitoring.Tracker
	rateLimiter *rateLimiter
	httpSrv     *http.Server
}

// New creates a server over the given store.
func New(cfg *config.Config, st store.Store) (*Server, error) {
	tracker, err := monitoring.NewTracker(monitoring.TelemetryConfig{
		Enabled:     cfg.Monitoring.TelemetryEnabled,
		LogPath:     cfg.Monitoring.TelemetryPath,
		LogToStdout: cfg.Monitoring.LogToStdout,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		store:     st,
		nonces:    nonce.NewIssuer([]byte(cfg.Collection.NonceSecret), cfg.Collection.NonceLifetime),
		metrics:   monitoring.NewMetricsCollector(),
		telemetry: tracker,
	}
	if cfg.Server.RateLimit > 0 {
		s.rateLimiter = newRateLimiter(cfg.Server.RateLimit)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /collect", s.handleCollect)
	mux.HandleFunc("GET /page-config", s.handlePageConfig)
	mux.HandleFunc("GET /admin/vitals", s.handleAdminVitals)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	var handler http.Handler = mux
	handler = s.security(handler)
	handler = s.loggingMiddleware(handler)
	handler = s.rateLimit(handler)
	handler = s.panicRecovery(handler)

	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s, nil
}

// Start runs the HTTP server until Shutdown or failure.
func (s *Server) Start() error {
	log.Info().Str("addr", s.httpSrv.Addr).Msg("collection server listening")
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the telemetry tracker.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpSrv.Shutdown(ctx)
	if terr := s.telemetry.Close(); err == nil {
		err = terr
	}
	return err
}

// Handler exposes the full middleware-wrapped handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

// Metrics exposes the operational counters.
func (s *Server) Metrics() *monitoring.MetricsCollector { return s.metrics }

// Nonces exposes the anti-forgery issuer, for the replay client and tests.
func (s *Server) Nonces() *nonce.Issuer { return s.nonces }

// envelope is the JSON response body: {"success": bool, "data": <message>}.
type envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// respond writes the success/failure envelope. Both outcomes are HTTP 200;
// the discriminator lives in the body, as the client contract requires.
func (s *Server) respond(w http.ResponseWriter, success bool, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(envelope{Success: success, Data: data}); err != nil {
		log.Error().Err(err).Msg("write response failed")
	}
}

// writeError writes a plain failure envelope with an HTTP error status.
func (s *Server) writeError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Data: msg})
}

// handleHealth reports liveness plus the operational counters.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, true, s.metrics.Stats())
}
