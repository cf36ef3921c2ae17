package server

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/llms-keep/llms-keep/internal/cachestore"
	"github.com/llms-keep/llms-keep/internal/config"
	"github.com/llms-keep/llms-keep/internal/fetcher"
	"github.com/llms-keep/llms-keep/internal/freshness"
)

func newTestApp(t *testing.T, upstreamURL string) *fiber.App {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.Config{
		SourceURL:    upstreamURL,
		OutputDir:    t.TempDir(),
		OutputFile:   "llms.txt",
		UserAgent:    "llms-keep-test",
		FetchTimeout: config.Duration(5 * time.Second),
		CacheTTL:     config.Duration(time.Hour),
		MaxRedirects: 5,
		ListenPort:   5000,
	}

	controller := freshness.NewController(fetcher.New(nil), cachestore.NewStore(), logger)
	app, err := NewApp(AppOptions{Logger: logger, Controller: controller, Config: cfg})
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	return app
}

func TestServeMirrorEnsuresAndStreams(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "served body")
	}))
	defer upstream.Close()

	app := newTestApp(t, upstream.URL)

	resp, err := app.Test(httptest.NewRequest("GET", "/llms.txt", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "served body" {
		t.Fatalf("body mismatch: %q", string(body))
	}
	if outcome := resp.Header.Get("X-Llms-Keep-Outcome"); outcome != "updated" {
		t.Fatalf("expected updated outcome on first request, got %q", outcome)
	}
	if reqID := resp.Header.Get("X-Request-ID"); reqID == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}

	// A second request inside the TTL must be answered from the local copy.
	resp, err = app.Test(httptest.NewRequest("GET", "/llms.txt", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if outcome := resp.Header.Get("X-Llms-Keep-Outcome"); outcome != "fresh" {
		t.Fatalf("expected fresh outcome on second request, got %q", outcome)
	}
}

func TestServeMirrorFailsWithoutCacheAndUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := upstream.URL
	upstream.Close()

	app := newTestApp(t, url)

	resp, err := app.Test(httptest.NewRequest("GET", "/llms.txt", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	app := newTestApp(t, "http://unused.example")

	resp, err := app.Test(httptest.NewRequest("GET", "/healthz", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestNewAppRejectsMissingDependencies(t *testing.T) {
	if _, err := NewApp(AppOptions{}); err == nil {
		t.Fatalf("missing logger must be rejected")
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	if _, err := NewApp(AppOptions{Logger: logger}); err == nil {
		t.Fatalf("missing controller must be rejected")
	}
}
