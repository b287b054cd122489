// Package reporter transmits a finished render record to the collection
// endpoint.
//
// The wire payload is a versioned, additive form-encoded schema (V1 through
// V4); V4 (five metrics plus the page-render correlation token) is canonical.
// Delivery is fire-and-forget: one POST per page view, failures are logged to
// the diagnostic channel and dropped, never retried.
package reporter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/codesharp/webvitals/internal/vitals"
)

// UserType is the two-valued user classification captured at page load.
type UserType string

const (
	UserGuest    UserType = "guest"
	UserLoggedIn UserType = "logged_in"
)

// Action discriminators understood by the collection endpoint.
const (
	ActionLogTTFB      = "log_ttfb"      // V1, TTFB-only schema
	ActionLogWebVitals = "log_webvitals" // V2 and later
)

// Version selects the wire schema. Later versions only add fields.
type Version int

const (
	V1 Version = iota + 1 // ttfb only
	V2                    // four metrics + measurementSeconds
	V3                    // adds inp
	V4                    // adds pageRenderUuid
)

// PageContext is the page-load configuration injected by the host before the
// pipeline starts. It is captured once and immutable for the page view: the
// submitted URL is the load-time URL even if the page navigates client-side
// before the flush.
type PageContext struct {
	EndpointURL string
	PageURL     string
	Nonce       string
	RenderUUID  string
	UserType    UserType
}

// Payload builds the form-encoded body for the given schema version.
func Payload(v Version, page PageContext, rec vitals.Record) url.Values {
	vals := url.Values{}
	vals.Set("ttfb", formatMetric(rec.TTFB))
	vals.Set("userType", string(page.UserType))
	vals.Set("url", page.PageURL)
	vals.Set("nonce", page.Nonce)

	if v == V1 {
		vals.Set("action", ActionLogTTFB)
		return vals
	}

	vals.Set("action", ActionLogWebVitals)
	vals.Set("lcp", formatMetric(rec.LCP))
	vals.Set("cls", formatMetric(rec.CLS))
	vals.Set("fcp", formatMetric(rec.FCP))
	vals.Set("measurementSeconds", formatMetric(rec.MeasurementSeconds))
	if v >= V3 {
		vals.Set("inp", formatMetric(rec.INP))
	}
	if v >= V4 {
		vals.Set("pageRenderUuid", page.RenderUUID)
	}
	return vals
}

func formatMetric(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Reporter sends one record per page view. It implements vitals.Flusher.
type Reporter struct {
	page    PageContext
	version Version
	client  *http.Client
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithVersion selects a wire schema version other than the canonical V4.
func WithVersion(v Version) Option {
	return func(r *Reporter) { r.version = v }
}

// WithHTTPClient substitutes the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Reporter) { r.client = c }
}

// New creates a reporter for one page view.
func New(page PageContext, opts ...Option) *Reporter {
	r := &Reporter{
		page:    page,
		version: V4,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Flush posts the record to the collection endpoint and interprets the JSON
// envelope. Application failures, transport failures and non-JSON responses
// are all treated the same: logged and dropped. The submission is lost.
func (r *Reporter) Flush(ctx context.Context, rec vitals.Record) error {
	body := Payload(r.version, r.page, rec).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.page.EndpointURL, strings.NewReader(body))
	if err != nil {
		return r.fail(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.client.Do(req)
	if err != nil {
		return r.fail(fmt.Errorf("post metrics: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return r.fail(fmt.Errorf("read response: %w", err))
	}

	success := gjson.GetBytes(raw, "success")
	if !success.Exists() {
		return r.fail(fmt.Errorf("malformed response (status %d)", resp.StatusCode))
	}
	if !success.Bool() {
		return r.fail(fmt.Errorf("endpoint rejected submission: %s", gjson.GetBytes(raw, "data").String()))
	}

	log.Debug().
		Str("url", r.page.PageURL).
		Str("render_uuid", r.page.RenderUUID).
		Msg("reporter: metrics logged")
	return nil
}

// fail surfaces the error on the diagnostic channel. No retry is scheduled.
func (r *Reporter) fail(err error) error {
	log.Warn().Err(err).Str("url", r.page.PageURL).Msg("reporter: submission lost")
	return err
}

var _ vitals.Flusher = (*Reporter)(nil)
