package server_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/codesharp/webvitals/internal/config"
	"github.com/codesharp/webvitals/internal/server"
	"github.com/codesharp/webvitals/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:         8080,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
		Store: config.StoreConfig{Path: ":memory:"},
		Collection: config.CollectionConfig{
			NonceSecret:   "test-secret",
			NonceLifetime: time.Hour,
			FlushDelay:    5 * time.Second,
		},
	}
}

type fixture struct {
	srv   *server.Server
	store *store.SQLiteStore
	ts    *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	srv, err := server.New(testConfig(), st)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &fixture{srv: srv, store: st, ts: ts}
}

// submit posts a form to /collect and returns the parsed envelope body.
func (f *fixture) submit(t *testing.T, vals url.Values) (int, string) {
	t.Helper()
	resp, err := http.Post(f.ts.URL+"/collect", "application/x-www-form-urlencoded",
		strings.NewReader(vals.Encode()))
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw)
}

func (f *fixture) validSubmission(t *testing.T) url.Values {
	t.Helper()
	return url.Values{
		"action":             {"log_webvitals"},
		"nonce":              {f.srv.Nonces().Issue(server.NonceAction)},
		"ttfb":               {"142.4"},
		"fcp":                {"800"},
		"lcp":                {"1500"},
		"cls":                {"0.03"},
		"inp":                {"120"},
		"measurementSeconds": {"5.01"},
		"userType":           {"guest"},
		"url":                {"https://example.com/"},
	}
}

func TestCollect_ValidSubmissionPersists(t *testing.T) {
	f := newFixture(t)

	status, body := f.submit(t, f.validSubmission(t))
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, gjson.Get(body, "success").Bool())

	avg, err := f.store.AverageVitals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), avg.Samples)
	assert.InDelta(t, 142.4, avg.TTFB, 1e-9)
	assert.InDelta(t, 0.03, avg.CLS, 1e-9)
}

func TestCollect_MissingURLRejectedWithoutRow(t *testing.T) {
	f := newFixture(t)

	vals := f.validSubmission(t)
	vals.Del("url")
	status, body := f.submit(t, vals)

	assert.Equal(t, http.StatusOK, status)
	assert.False(t, gjson.Get(body, "success").Bool())
	assert.Equal(t, "Invalid data received.", gjson.Get(body, "data").String())

	avg, err := f.store.AverageVitals(context.Background())
	require.NoError(t, err)
	assert.Zero(t, avg.Samples, "validation failure persists nothing")
}

func TestCollect_MissingTTFBRejectedWithoutRow(t *testing.T) {
	f := newFixture(t)

	vals := f.validSubmission(t)
	vals.Del("ttfb")
	_, body := f.submit(t, vals)

	assert.False(t, gjson.Get(body, "success").Bool())

	avg, err := f.store.AverageVitals(context.Background())
	require.NoError(t, err)
	assert.Zero(t, avg.Samples)
}

func TestCollect_InvalidNonceForbidden(t *testing.T) {
	f := newFixture(t)

	vals := f.validSubmission(t)
	vals.Set("nonce", "000000000000")
	status, body := f.submit(t, vals)

	assert.Equal(t, http.StatusForbidden, status)
	assert.False(t, gjson.Get(body, "success").Bool())
}

func TestCollect_UnknownActionRejected(t *testing.T) {
	f := newFixture(t)

	vals := f.validSubmission(t)
	vals.Set("action", "log_everything")
	_, body := f.submit(t, vals)

	assert.False(t, gjson.Get(body, "success").Bool())
}

func TestCollect_V1TTFBOnlyAccepted(t *testing.T) {
	f := newFixture(t)

	vals := url.Values{
		"action":   {"log_ttfb"},
		"nonce":    {f.srv.Nonces().Issue(server.NonceAction)},
		"ttfb":     {"99.5"},
		"userType": {"logged_in"},
		"url":      {"https://example.com/legacy"},
	}
	_, body := f.submit(t, vals)
	assert.True(t, gjson.Get(body, "success").Bool())

	avg, err := f.store.AverageVitals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), avg.Samples)
	assert.InDelta(t, 99.5, avg.TTFB, 1e-9)
	assert.Zero(t, avg.LCP)
}

func TestPageConfig_IssuesPersistedRenderToken(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.ts.URL + "/page-config?path=/article")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)

	renderUUID := gjson.Get(body, "pageRenderUuid").String()
	require.NotEmpty(t, renderUUID)
	assert.NotEmpty(t, gjson.Get(body, "nonce").String())
	assert.Equal(t, "/collect", gjson.Get(body, "endpointUrl").String())
	assert.Equal(t, int64(5000), gjson.Get(body, "flushDelayMs").Int(),
		"flush delay from collection config governs the client timer")

	// The mapping is persisted before the response is written.
	pr, known, err := f.store.PageRenderByUUID(context.Background(), renderUUID)
	require.NoError(t, err)
	assert.True(t, known)
	assert.Equal(t, "/article", pr.Path)
}

func TestCollect_KnownTokenCorrelates(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.store.CreatePageRender(context.Background(),
		store.PageRender{UUID: "render-7", Path: "/"}))

	vals := f.validSubmission(t)
	vals.Set("pageRenderUuid", "render-7")
	_, body := f.submit(t, vals)
	assert.True(t, gjson.Get(body, "success").Bool())

	stats := f.srv.Metrics().Stats()
	assert.Equal(t, int64(1), stats["submissions_accepted"])
	assert.Equal(t, int64(1), stats["submissions_correlated"])
}

func TestCollect_UnknownTokenStoredUncorrelated(t *testing.T) {
	f := newFixture(t)

	vals := f.validSubmission(t)
	vals.Set("pageRenderUuid", "never-issued")
	_, body := f.submit(t, vals)

	// An unknown token is not a rejection; the row is simply uncorrelated.
	assert.True(t, gjson.Get(body, "success").Bool())

	stats := f.srv.Metrics().Stats()
	assert.Equal(t, int64(1), stats["submissions_accepted"])
	assert.Zero(t, stats["submissions_correlated"])
}

func TestAdminVitals_EmptyTable(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.ts.URL + "/admin/vitals")
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "No data available.")
}

func TestAdminVitals_AveragesTable(t *testing.T) {
	f := newFixture(t)

	_, body := f.submit(t, f.validSubmission(t))
	require.True(t, gjson.Get(body, "success").Bool())

	resp, err := http.Get(f.ts.URL + "/admin/vitals")
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	page := string(raw)

	assert.Contains(t, page, "Web Vitals Averages")
	assert.Contains(t, page, "LCP")
	assert.Contains(t, page, "1500.00")
	assert.Contains(t, page, "142.40")
}

func TestHealthz_ReportsCounters(t *testing.T) {
	f := newFixture(t)

	_, body := f.submit(t, f.validSubmission(t))
	require.True(t, gjson.Get(body, "success").Bool())

	resp, err := http.Get(f.ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(server.HeaderRequestID), "middleware assigns request IDs")

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	health := string(raw)
	assert.True(t, gjson.Get(health, "success").Bool())
	assert.Equal(t, int64(1), gjson.Get(health, "data.submissions_received").Int())
	assert.Equal(t, int64(1), gjson.Get(health, "data.submissions_accepted").Int())
	assert.Zero(t, gjson.Get(health, "data.submissions_rejected").Int())
}

func TestRateLimit_ThrottlesBurst(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := testConfig()
	cfg.Server.RateLimit = 1
	srv, err := server.New(cfg, st)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	// The first request consumes the bucket's only token.
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// An immediate second request from the same IP is throttled.
	resp, err = http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.False(t, gjson.Get(string(raw), "success").Bool())
}
