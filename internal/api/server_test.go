package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ishaanrender/scrapegoat-render/internal/cache"
	"github.com/ishaanrender/scrapegoat-render/internal/config"
	"github.com/ishaanrender/scrapegoat-render/internal/observability"
	"github.com/ishaanrender/scrapegoat-render/internal/ratelimit"
	"github.com/ishaanrender/scrapegoat-render/internal/tasks"
)

const testUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36"

func newTestServer(t *testing.T, rateLimited bool) *Server {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.RateLimit.Enabled = rateLimited
	cfg.Metrics.Enabled = false

	logger := slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
	artifactCache := cache.New(cfg.Cache, logger)
	limiter := ratelimit.New(cfg.RateLimit.MaxRequestSize)
	taskMgr := tasks.NewManager(100)
	metrics := observability.NewMetrics()

	// No browser pool, scraper, or batch service: these tests exercise
	// the gate (validation, headers, admission) which never dispatches.
	return New(cfg, logger, taskMgr, nil, nil, nil, artifactCache, limiter, metrics, nil)
}

func decodeEnvelope(t *testing.T, body io.Reader) Envelope {
	t.Helper()
	var env Envelope
	if err := json.NewDecoder(body).Decode(&env); err != nil {
		t.Fatalf("response is not a valid envelope: %v", err)
	}
	return env
}

func TestSecurityHeadersOnEveryResponse(t *testing.T) {
	s := newTestServer(t, false)

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("User-Agent", testUA)
	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	} {
		if got := resp.Header.Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if resp.Header.Get("Content-Security-Policy") == "" {
		t.Error("missing Content-Security-Policy header")
	}
}

func TestHealthEnvelope(t *testing.T) {
	s := newTestServer(t, false)

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("User-Agent", testUA)
	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	env := decodeEnvelope(t, resp.Body)
	if !env.Success {
		t.Error("health must report success")
	}
	data := env.Data.(map[string]any)
	for _, field := range []string{"api", "transform_provider", "database", "ml_pipeline"} {
		if _, ok := data[field]; !ok {
			t.Errorf("health payload missing %q", field)
		}
	}
}

func TestCreateTaskRejectsDangerousURL(t *testing.T) {
	s := newTestServer(t, false)

	req := httptest.NewRequest("POST", "/scrape",
		strings.NewReader(`{"url":"javascript:alert('x')","output_format":"text"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", testUA)
	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 422 {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	if env := decodeEnvelope(t, resp.Body); env.Success {
		t.Error("rejection must carry success:false")
	}
}

func TestCreateTaskRejectsPrivateTarget(t *testing.T) {
	s := newTestServer(t, false)

	req := httptest.NewRequest("POST", "/scrape",
		strings.NewReader(`{"url":"http://169.254.169.254/latest/meta-data","output_format":"text"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", testUA)
	resp, _ := s.App().Test(req)
	defer resp.Body.Close()

	if resp.StatusCode != 422 {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
}

func TestCreateTaskRejectsUnknownFormat(t *testing.T) {
	s := newTestServer(t, false)

	req := httptest.NewRequest("POST", "/scrape",
		strings.NewReader(`{"url":"https://example.com","output_format":"docx"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", testUA)
	resp, _ := s.App().Test(req)
	defer resp.Body.Close()

	if resp.StatusCode != 422 {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
}

func TestUnknownTaskReturns404(t *testing.T) {
	s := newTestServer(t, false)

	for _, path := range []string{
		"/scrape/not-a-uuid",
		"/scrape/9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d",
		"/scrape/9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d/result",
	} {
		req := httptest.NewRequest("GET", path, nil)
		req.Header.Set("User-Agent", testUA)
		resp, _ := s.App().Test(req)
		resp.Body.Close()
		if resp.StatusCode != 404 {
			t.Errorf("GET %s = %d, want 404", path, resp.StatusCode)
		}
	}
}

func TestBatchValidation(t *testing.T) {
	s := newTestServer(t, false)

	cases := []struct {
		name string
		body string
	}{
		{"empty urls", `{"urls":[],"output_format":"markdown"}`},
		{"bad url in list", `{"urls":["https://example.com","ftp://bad"],"output_format":"markdown"}`},
		{"bad format", `{"urls":["https://example.com"],"output_format":"pdf"}`},
	}

	for _, c := range cases {
		req := httptest.NewRequest("POST", "/scrape/batch", strings.NewReader(c.body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", testUA)
		resp, _ := s.App().Test(req)
		resp.Body.Close()
		if resp.StatusCode != 422 {
			t.Errorf("%s: status = %d, want 422", c.name, resp.StatusCode)
		}
	}
}

func TestBurstRefusalWithRetryAfter(t *testing.T) {
	s := newTestServer(t, true)
	rule := ratelimit.Rules[ratelimit.ClassDefault]

	var last int
	for i := 0; i < rule.Burst+1; i++ {
		req := httptest.NewRequest("GET", "/health", nil)
		req.Header.Set("User-Agent", testUA)
		resp, err := s.App().Test(req, int(5*time.Second/time.Millisecond))
		if err != nil {
			t.Fatal(err)
		}
		last = resp.StatusCode
		if i < rule.Burst && last != 200 {
			t.Fatalf("request %d within burst refused with %d", i+1, last)
		}
		if i < rule.Burst && resp.Header.Get("X-RateLimit-Limit") == "" {
			t.Error("admitted response missing X-RateLimit-Limit")
		}
		if last == 429 && resp.Header.Get("Retry-After") == "" {
			t.Error("refusal missing Retry-After header")
		}
		resp.Body.Close()
	}

	if last != 429 {
		t.Fatalf("request over burst = %d, want 429", last)
	}
}
