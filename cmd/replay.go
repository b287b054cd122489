// The replay command: run the client collection pipeline from a recorded
// performance trace against a collection endpoint. One replayed page view
// performs the full path: page config, observers, one-shot flush, submission.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/codesharp/webvitals/internal/reporter"
	"github.com/codesharp/webvitals/internal/trace"
	"github.com/codesharp/webvitals/internal/vitals"
)

// runReplay drives one or more simulated page views from a trace file.
func runReplay(args []string) {
	loadEnvFiles()

	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	tracePath := fs.String("trace", "", "path to JSONL performance trace")
	serverURL := fs.String("server", "http://localhost:8080", "collection server base URL")
	pageURL := fs.String("url", "http://localhost/", "page URL to report")
	loggedIn := fs.Bool("logged-in", false, "report as a logged-in user")
	count := fs.Int("count", 1, "number of concurrent page views to replay")
	flushDelay := fs.Duration("flush-delay", 0, "override the server-provided flush delay")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)

	setupLogging(*debug)

	if *tracePath == "" {
		fmt.Fprintln(os.Stderr, "replay: --trace is required")
		os.Exit(2)
	}

	tr, err := trace.Load(*tracePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load trace")
	}

	userType := reporter.UserGuest
	if *loggedIn {
		userType = reporter.UserLoggedIn
	}

	timeout := 5 * time.Minute
	if *flushDelay > 0 {
		timeout = *flushDelay + 30*time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for range *count {
		g.Go(func() error {
			return replayPageView(ctx, tr, *serverURL, *pageURL, userType, *flushDelay)
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("replay failed")
	}
	log.Info().Int("page_views", *count).Msg("replay complete")
}

// replayPageView performs one page view: fetch the page-load configuration,
// run the session over the trace's entries, flush once. The flush delay comes
// from the page config unless overridden on the command line.
func replayPageView(ctx context.Context, tr *trace.Trace, serverURL, pageURL string, userType reporter.UserType, override time.Duration) error {
	page, flushDelay, err := fetchPageConfig(ctx, serverURL, pageURL)
	if err != nil {
		return err
	}
	page.UserType = userType

	if override > 0 {
		flushDelay = override
	}
	if flushDelay <= 0 {
		flushDelay = vitals.DefaultFlushDelay
	}

	sess := vitals.NewSession(tr.Source(), reporter.New(page), vitals.SessionConfig{
		FlushDelay: flushDelay,
	})
	if err := sess.Run(ctx); err != nil {
		return fmt.Errorf("page view: %w", err)
	}
	rec := sess.Record()
	log.Info().
		Str("render_uuid", page.RenderUUID).
		Float64("ttfb", rec.TTFB).
		Float64("fcp", rec.FCP).
		Float64("lcp", rec.LCP).
		Float64("cls", rec.CLS).
		Float64("inp", rec.INP).
		Msg("page view flushed")
	return nil
}

// fetchPageConfig asks the server for the injected page-load configuration:
// endpoint URL, flush delay, anti-forgery token and page-render correlation
// token.
func fetchPageConfig(ctx context.Context, serverURL, pageURL string) (reporter.PageContext, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverURL+"/page-config?path=/", nil)
	if err != nil {
		return reporter.PageContext{}, 0, fmt.Errorf("build page-config request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return reporter.PageContext{}, 0, fmt.Errorf("fetch page config: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return reporter.PageContext{}, 0, fmt.Errorf("read page config: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return reporter.PageContext{}, 0, fmt.Errorf("page config: status %d", resp.StatusCode)
	}

	page := reporter.PageContext{
		EndpointURL: serverURL + gjson.GetBytes(raw, "endpointUrl").String(),
		PageURL:     pageURL,
		Nonce:       gjson.GetBytes(raw, "nonce").String(),
		RenderUUID:  gjson.GetBytes(raw, "pageRenderUuid").String(),
	}
	flushDelay := time.Duration(gjson.GetBytes(raw, "flushDelayMs").Int()) * time.Millisecond
	return page, flushDelay, nil
}
