// Collection endpoint and page-render correlator handlers.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/sjson"

	"github.com/codesharp/webvitals/internal/monitoring"
	"github.com/codesharp/webvitals/internal/reporter"
	"github.com/codesharp/webvitals/internal/store"
)

// NonceAction names the anti-forgery scope for metric submissions. Tokens are
// bound to this scope, not to the wire action discriminator, so V1 and V2+
// clients share one token.
const NonceAction = "web-vitals"

// handleCollect accepts one metrics submission: nonce check, presence
// validation, optional correlation resolution, single insert. Every outcome is
// a JSON envelope; nothing is ever retried server-side.
func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.reject(w, r, "", "malformed form body")
		return
	}

	action := r.PostFormValue("action")
	if action != reporter.ActionLogTTFB && action != reporter.ActionLogWebVitals {
		s.reject(w, r, action, "unknown action")
		return
	}

	if !s.nonces.Verify(r.PostFormValue("nonce"), NonceAction) {
		s.metrics.RecordSubmission(false, false)
		s.writeError(w, "invalid nonce", http.StatusForbidden)
		return
	}

	// TTFB and URL are the only required fields; everything else defaults.
	if !r.PostForm.Has("ttfb") || r.PostFormValue("url") == "" {
		s.reject(w, r, action, "Invalid data received.")
		return
	}

	sub := store.Submission{
		TTFB:      formFloat(r, "ttfb"),
		UserType:  r.PostFormValue("userType"),
		URL:       r.PostFormValue("url"),
		UserAgent: r.UserAgent(),
	}
	if action == reporter.ActionLogWebVitals {
		sub.LCP = formFloat(r, "lcp")
		sub.CLS = formFloat(r, "cls")
		sub.FCP = formFloat(r, "fcp")
		sub.INP = formFloat(r, "inp")
		sub.MeasurementSeconds = formFloat(r, "measurementSeconds")
	}

	// Correlation: an unknown or absent token yields an uncorrelated row, not
	// a rejection.
	correlated := false
	if token := r.PostFormValue("pageRenderUuid"); token != "" {
		_, known, err := s.store.PageRenderByUUID(r.Context(), token)
		if err != nil {
			s.storeFailure(w, r, action, err)
			return
		}
		if known {
			sub.PageRenderUUID = token
			correlated = true
		}
	}

	if _, err := s.store.InsertSubmission(r.Context(), sub); err != nil {
		s.storeFailure(w, r, action, err)
		return
	}

	s.metrics.RecordSubmission(true, correlated)
	s.telemetry.RecordSubmission(&monitoring.SubmissionEvent{
		RequestID:      monitoring.RequestIDFromContext(r.Context()),
		Timestamp:      time.Now().UTC(),
		ClientIP:       s.clientIP(r),
		Action:         action,
		PageRenderUUID: sub.PageRenderUUID,
		Correlated:     correlated,
		UserType:       sub.UserType,
		URL:            sub.URL,
		TTFB:           sub.TTFB,
		FCP:            sub.FCP,
		LCP:            sub.LCP,
		CLS:            sub.CLS,
		INP:            sub.INP,
		Accepted:       true,
	})
	s.respond(w, true, "Performance data logged successfully.")
}

// reject records and answers a validation failure. No partial write happens.
func (s *Server) reject(w http.ResponseWriter, r *http.Request, action, reason string) {
	s.metrics.RecordSubmission(false, false)
	s.telemetry.RecordSubmission(&monitoring.SubmissionEvent{
		RequestID: monitoring.RequestIDFromContext(r.Context()),
		Timestamp: time.Now().UTC(),
		ClientIP:  s.clientIP(r),
		Action:    action,
		Accepted:  false,
		Reason:    reason,
	})
	s.respond(w, false, reason)
}

// storeFailure surfaces a persistence error in the failure envelope. The
// submission is lost; the client will not retry.
func (s *Server) storeFailure(w http.ResponseWriter, r *http.Request, action string, err error) {
	log.Error().Err(err).Str("action", action).Msg("store failure")
	s.metrics.RecordSubmission(false, false)
	s.respond(w, false, "Error logging performance data. "+err.Error())
}

func formFloat(r *http.Request, name string) float64 {
	f, err := strconv.ParseFloat(r.PostFormValue(name), 64)
	if err != nil {
		return 0
	}
	return f
}

// handlePageConfig issues the page-load configuration: collection endpoint,
// flush delay, fresh anti-forgery token and a page-render correlation token.
// The render record is persisted BEFORE the response is written, so the
// mapping exists ahead of any submission echoing the token.
func (s *Server) handlePageConfig(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		path = "/"
	}

	renderUUID := uuid.New().String()
	if err := s.store.CreatePageRender(r.Context(), store.PageRender{
		UUID: renderUUID,
		Path: path,
	}); err != nil {
		log.Error().Err(err).Msg("persist page render failed")
		s.writeError(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.metrics.RecordRenderIssued()

	body := []byte(`{}`)
	body, _ = sjson.SetBytes(body, "endpointUrl", "/collect")
	body, _ = sjson.SetBytes(body, "flushDelayMs", s.cfg.Collection.FlushDelay.Milliseconds())
	body, _ = sjson.SetBytes(body, "nonce", s.nonces.Issue(NonceAction))
	body, _ = sjson.SetBytes(body, "pageRenderUuid", renderUUID)

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("write page config failed")
	}
}
