package fetcher

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"carspotter/config"
	"carspotter/utils"
)

const (
	requestTimeout = 30 * time.Second
	backoffBase    = 2 * time.Second

	// Bodies under this size are treated as anti-bot challenge pages or
	// failed server renders and retried as a soft failure.
	minBodySize = 500

	proxyEndpoint = "https://api.scraperapi.com"
)

// BlockedError means the upstream answered 401/403 on every attempt.
type BlockedError struct {
	Status   int
	Attempts int
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked: HTTP %d after %d attempts", e.Status, e.Attempts)
}

// UpstreamError is any non-block, non-2xx response. Not retried.
type UpstreamError struct {
	Status int
	URL    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.Status, e.URL)
}

// Fetcher performs stealth HTTP GETs: randomized browser fingerprints,
// jittered pacing before every attempt, and backoff on block signals.
type Fetcher struct {
	client     *http.Client
	logger     *utils.Logger
	useProxy   bool
	apiKey     string
	proxyURL   string
	maxRetries int
	minDelay   time.Duration
	maxDelay   time.Duration
	backoff    time.Duration
}

// New creates a Fetcher from the application config.
func New(cfg *config.Config, logger *utils.Logger) *Fetcher {
	return &Fetcher{
		client:     &http.Client{Timeout: requestTimeout},
		logger:     logger,
		useProxy:   cfg.ScraperStrategy == "proxy",
		apiKey:     cfg.ScraperAPIKey,
		proxyURL:   proxyEndpoint,
		maxRetries: max(1, cfg.MaxRetries),
		minDelay:   time.Duration(cfg.FetchMinDelayMs) * time.Millisecond,
		maxDelay:   time.Duration(cfg.FetchMaxDelayMs) * time.Millisecond,
		backoff:    backoffBase,
	}
}

// Fetch GETs rawURL and returns the page body. 401/403 responses are
// retried with exponential backoff and surface as *BlockedError once
// retries are exhausted; other non-2xx responses surface immediately as
// *UpstreamError. A 2xx body under the minimum size is retried as a soft
// failure, but on the last attempt it is returned as-is; the caller
// decides what to do with a degenerate page.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	fetchURL := rawURL
	if f.useProxy {
		wrapped, err := f.wrapWithProxy(rawURL)
		if err != nil {
			return "", err
		}
		fetchURL = wrapped
	}

	var lastErr error
	for attempt := 1; attempt <= f.maxRetries; attempt++ {
		// Jittered pre-request delay on every attempt, including the
		// first, so our cadence never looks machine-fixed.
		if err := f.pause(ctx, f.randomDelay()); err != nil {
			return "", err
		}

		f.logger.Debug("[fetcher] attempt %d/%d: %s", attempt, f.maxRetries, truncate(fetchURL, 80))

		body, status, err := f.doGET(ctx, fetchURL)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return "", err
			}
			f.logger.Warn("[fetcher] attempt %d failed: %v", attempt, err)
			if attempt < f.maxRetries {
				if err := f.pause(ctx, f.backoff*time.Duration(attempt)); err != nil {
					return "", err
				}
				continue
			}
			return "", lastErr
		}

		switch {
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			f.logger.Warn("[fetcher] blocked (%d) on attempt %d", status, attempt)
			if attempt < f.maxRetries {
				if err := f.pause(ctx, f.backoff*time.Duration(attempt)); err != nil {
					return "", err
				}
				continue
			}
			return "", &BlockedError{Status: status, Attempts: f.maxRetries}

		case status < 200 || status >= 300:
			return "", &UpstreamError{Status: status, URL: rawURL}
		}

		if len(strings.TrimSpace(body)) < minBodySize {
			f.logger.Warn("[fetcher] tiny body (%db) on attempt %d, suspected challenge page", len(body), attempt)
			if attempt < f.maxRetries {
				continue
			}
			// Last attempt: hand the degenerate body to the caller, it
			// may still be repairable.
			return body, nil
		}

		return body, nil
	}

	return "", lastErr
}

func (f *Fetcher) doGET(ctx context.Context, fetchURL string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return "", 0, fmt.Errorf("fetcher: build request: %w", err)
	}

	if !f.useProxy {
		// The rendering relay supplies its own headers; only direct
		// requests carry our fingerprint.
		req.Header = stealthHeaders()
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("fetcher: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("fetcher: read body: %w", err)
	}

	body, err := decode(raw, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("fetcher: decode body: %w", err)
	}
	return string(body), resp.StatusCode, nil
}

// decode reverses the Content-Encoding negotiated by stealthHeaders.
// "deflate" is served both zlib-wrapped and raw in the wild, so both
// framings are attempted.
func decode(raw []byte, encoding string) ([]byte, error) {
	switch strings.ToLower(encoding) {
	case "gzip":
		gz, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		return io.ReadAll(gz)

	case "deflate":
		if zr, err := zlib.NewReader(bytes.NewReader(raw)); err == nil {
			defer zr.Close()
			if out, err := io.ReadAll(zr); err == nil {
				return out, nil
			}
		}
		fr := flate.NewReader(bytes.NewReader(raw))
		defer fr.Close()
		out, err := io.ReadAll(fr)
		if err != nil {
			return nil, fmt.Errorf("deflate: %w", err)
		}
		return out, nil

	default:
		return raw, nil
	}
}

// wrapWithProxy rewrites the target URL into a rendering-relay query.
func (f *Fetcher) wrapWithProxy(target string) (string, error) {
	if f.apiKey == "" {
		return "", fmt.Errorf("fetcher: proxy strategy requires SCRAPER_API_KEY")
	}
	q := url.Values{}
	q.Set("api_key", f.apiKey)
	q.Set("url", target)
	q.Set("render", "true")
	return f.proxyURL + "?" + q.Encode(), nil
}

func (f *Fetcher) randomDelay() time.Duration {
	if f.maxDelay <= f.minDelay {
		return f.minDelay
	}
	return f.minDelay + time.Duration(rand.Int63n(int64(f.maxDelay-f.minDelay)))
}

func (f *Fetcher) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
