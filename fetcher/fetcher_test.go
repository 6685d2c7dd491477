package fetcher

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"carspotter/config"
	"carspotter/utils"
)

func newTestFetcher(maxRetries int, proxy bool) *Fetcher {
	cfg := &config.Config{
		ScraperStrategy: "direct",
		MaxRetries:      maxRetries,
		FetchMinDelayMs: 0,
		FetchMaxDelayMs: 0,
	}
	if proxy {
		cfg.ScraperStrategy = "proxy"
	}
	f := New(cfg, utils.NewLogger())
	f.backoff = time.Millisecond
	return f
}

func TestFetchBlockedAfterExactRetries(t *testing.T) {
	var attempts int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&attempts, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	const maxRetries = 3
	f := newTestFetcher(maxRetries, false)

	_, err := f.Fetch(context.Background(), srv.URL)

	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected BlockedError, got %v", err)
	}
	if blocked.Status != http.StatusForbidden {
		t.Errorf("BlockedError.Status = %d, want 403", blocked.Status)
	}
	if attempts != maxRetries {
		t.Errorf("upstream saw %d attempts, want exactly %d", attempts, maxRetries)
	}
}

func TestFetchUpstreamErrorNotRetried(t *testing.T) {
	var attempts int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newTestFetcher(3, false)

	_, err := f.Fetch(context.Background(), srv.URL)

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("non-block non-2xx should fail immediately, upstream saw %d attempts", attempts)
	}
}

func TestFetchTinyBodyReturnedOnFinalAttempt(t *testing.T) {
	var attempts int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&attempts, 1)
		w.Write([]byte("<html>challenge</html>"))
	}))
	defer srv.Close()

	const maxRetries = 3
	f := newTestFetcher(maxRetries, false)

	body, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("degenerate body is not an error, got %v", err)
	}
	if body != "<html>challenge</html>" {
		t.Errorf("final attempt should return the body as-is, got %q", body)
	}
	if attempts != maxRetries {
		t.Errorf("tiny body should be soft-retried %d times, upstream saw %d", maxRetries, attempts)
	}
}

func TestFetchSuccess(t *testing.T) {
	page := "<html>" + strings.Repeat("<div>listing</div>", 100) + "</html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("direct fetch should carry a user-agent")
		}
		w.Write([]byte(page))
	}))
	defer srv.Close()

	f := newTestFetcher(3, false)

	body, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body != page {
		t.Error("body mismatch")
	}
}

func TestFetchDecompressesEncodedBodies(t *testing.T) {
	page := "<html>" + strings.Repeat("<div>listing</div>", 100) + "</html>"

	gzipped := func(s string) []byte {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		zw.Write([]byte(s))
		zw.Close()
		return buf.Bytes()
	}
	rawDeflated := func(s string) []byte {
		var buf bytes.Buffer
		fw, _ := flate.NewWriter(&buf, flate.DefaultCompression)
		fw.Write([]byte(s))
		fw.Close()
		return buf.Bytes()
	}
	zlibDeflated := func(s string) []byte {
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		zw.Write([]byte(s))
		zw.Close()
		return buf.Bytes()
	}

	tests := []struct {
		name     string
		encoding string
		body     []byte
	}{
		{"gzip", "gzip", gzipped(page)},
		{"raw deflate", "deflate", rawDeflated(page)},
		{"zlib deflate", "deflate", zlibDeflated(page)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Encoding", tt.encoding)
				w.Write(tt.body)
			}))
			defer srv.Close()

			f := newTestFetcher(1, false)
			body, err := f.Fetch(context.Background(), srv.URL)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if body != page {
				t.Errorf("body not decoded: got %d bytes, first bytes %q", len(body), truncate(body, 20))
			}
		})
	}
}

func TestFetchProxyRewritesToRelay(t *testing.T) {
	page := "<html>" + strings.Repeat("<div>listing</div>", 100) + "</html>"
	target := "https://www.otomoto.pl/osobowe/bmw"

	var gotQuery map[string][]string
	var gotHeader http.Header
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotHeader = r.Header.Clone()
		w.Write([]byte(page))
	}))
	defer relay.Close()

	f := newTestFetcher(1, true)
	f.apiKey = "test-key"
	f.proxyURL = relay.URL

	body, err := f.Fetch(context.Background(), target)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body != page {
		t.Error("relay body not returned")
	}

	for key, want := range map[string]string{
		"api_key": "test-key",
		"url":     target,
		"render":  "true",
	} {
		if got := gotQuery[key]; len(got) != 1 || got[0] != want {
			t.Errorf("relay query %q = %v, want %q", key, got, want)
		}
	}

	// The relay supplies its own browser headers; our fingerprint must not
	// leak onto the wrapped request.
	if ua := gotHeader.Get("User-Agent"); strings.Contains(ua, "Mozilla") {
		t.Errorf("fingerprint user-agent leaked to the relay: %q", ua)
	}
	for _, h := range []string{"Sec-CH-UA", "Accept-Language", "Sec-Fetch-Mode"} {
		if v := gotHeader.Get(h); v != "" {
			t.Errorf("stealth header %s leaked to the relay: %q", h, v)
		}
	}
}

func TestFetchProxyRequiresKey(t *testing.T) {
	f := newTestFetcher(1, true)

	_, err := f.Fetch(context.Background(), "https://example.com")
	if err == nil || !strings.Contains(err.Error(), "SCRAPER_API_KEY") {
		t.Errorf("proxy mode without key should fail fast, got %v", err)
	}
}

func TestStealthHeadersConsistentFamily(t *testing.T) {
	// The hint headers are Chrome-only; a Firefox UA carrying them is a
	// worse fingerprint than no hints at all.
	for i := 0; i < 50; i++ {
		h := stealthHeaders()
		ua := h.Get("User-Agent")
		hasHints := h.Get("Sec-CH-UA") != ""
		isChrome := strings.Contains(ua, "Chrome") && !strings.Contains(ua, "Edg")

		if hasHints && !isChrome {
			t.Fatalf("non-Chrome UA %q carries Chrome client hints", ua)
		}
		if strings.Contains(ua, "Firefox") && h.Get("Accept") != acceptFirefox {
			t.Fatalf("Firefox UA %q with non-Firefox Accept header", ua)
		}
	}
}
