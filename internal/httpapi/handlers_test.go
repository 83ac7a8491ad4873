package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sitepulse/sitepulse/internal/alert"
	"github.com/sitepulse/sitepulse/internal/domain"
	"github.com/sitepulse/sitepulse/internal/metrics"
	"github.com/sitepulse/sitepulse/internal/ratelimit"
	"github.com/sitepulse/sitepulse/internal/repo/memory"
)

// ---- test helpers ----

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := zap.NewNop()
	store := memory.New(0)
	limiter, err := ratelimit.New(100, time.Hour, 0)
	if err != nil {
		t.Fatalf("ratelimit.New: %v", err)
	}
	engine := alert.NewEngine(log, store, store, metrics.NewEngine(store, store, log), limiter, nil)
	srv := NewServer(log, engine)

	// API rate limit disabled to avoid flakiness in tests.
	ts := httptest.NewServer(srv.Router(0, 0))
	t.Cleanup(ts.Close)
	return ts
}

func submitCheck(t *testing.T, ts *httptest.Server, url string, status domain.Status, at time.Time) {
	t.Helper()
	body, _ := json.Marshal(domain.CheckResult{
		URL: url, Status: status, HTTPStatus: 200, LatencyMS: 12.5, CheckedAt: at,
	})
	resp, err := http.Post(ts.URL+"/api/checks", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/checks: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("want 202, got %d", resp.StatusCode)
	}
}

func getJSON(t *testing.T, ts *httptest.Server, path string, v any) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp
}

// ---- tests ----

func TestSubmitAndSnapshot(t *testing.T) {
	ts := setupServer(t)
	now := time.Now().UTC()

	submitCheck(t, ts, "https://a", domain.StatusUp, now)
	submitCheck(t, ts, "https://b", domain.StatusDown, now)

	var snap map[string]domain.CheckResult
	getJSON(t, ts, "/api/status", &snap)
	if len(snap) != 2 {
		t.Fatalf("want 2 records, got %d", len(snap))
	}
	if snap["https://a"].Status != domain.StatusUp || snap["https://b"].Status != domain.StatusDown {
		t.Fatalf("snapshot wrong: %+v", snap)
	}
}

func TestSubmit_BadPayloads(t *testing.T) {
	ts := setupServer(t)

	for _, body := range []string{
		`not json`,
		`{"url":"","status":"up","checked_at":"2026-08-01T00:00:00Z"}`,
		`{"url":"https://a","status":"sideways","checked_at":"2026-08-01T00:00:00Z"}`,
		`{"url":"https://a","status":"up","latency_ms":-5,"checked_at":"2026-08-01T00:00:00Z"}`,
	} {
		resp, err := http.Post(ts.URL+"/api/checks", "application/json", bytes.NewReader([]byte(body)))
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("body %q: want 400, got %d", body, resp.StatusCode)
		}
	}
}

func TestLatestAndMetricsEndpoints(t *testing.T) {
	ts := setupServer(t)
	now := time.Now().UTC()

	submitCheck(t, ts, "https://a", domain.StatusUp, now)
	submitCheck(t, ts, "https://a", domain.StatusUp, now.Add(time.Minute))

	var latest domain.CheckResult
	getJSON(t, ts, "/api/status/latest?url=https%3A%2F%2Fa", &latest)
	if !latest.CheckedAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("latest not refreshed: %+v", latest)
	}

	var sm domain.SiteMetrics
	getJSON(t, ts, "/api/metrics/site?url=https%3A%2F%2Fa", &sm)
	if sm.TotalChecks != 2 || sm.UptimePercent != 100 {
		t.Fatalf("site metrics wrong: %+v", sm)
	}

	var sys domain.SystemMetrics
	getJSON(t, ts, "/api/metrics/system", &sys)
	if sys.TotalSites != 1 || sys.UpSites != 1 {
		t.Fatalf("system metrics wrong: %+v", sys)
	}

	if resp := getJSON(t, ts, "/api/status/latest?url=https%3A%2F%2Fnever", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown url: want 404, got %d", resp.StatusCode)
	}
	if resp := getJSON(t, ts, "/api/status/latest", nil); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing url param: want 400, got %d", resp.StatusCode)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	ts := setupServer(t)
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		submitCheck(t, ts, "https://a", domain.StatusUp, now.Add(time.Duration(i)*time.Second))
	}

	var hist []domain.CheckResult
	getJSON(t, ts, "/api/history?url=https%3A%2F%2Fa&limit=3", &hist)
	if len(hist) != 3 {
		t.Fatalf("want 3 entries, got %d", len(hist))
	}
	if !hist[0].CheckedAt.After(hist[1].CheckedAt) {
		t.Fatal("history must be most-recent-first")
	}

	if resp := getJSON(t, ts, "/api/history?limit=banana", nil); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad limit: want 400, got %d", resp.StatusCode)
	}
}

func TestClearEndpoint(t *testing.T) {
	ts := setupServer(t)
	submitCheck(t, ts, "https://a", domain.StatusUp, time.Now().UTC())

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/state", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("want 204, got %d", resp.StatusCode)
	}

	var snap map[string]domain.CheckResult
	getJSON(t, ts, "/api/status", &snap)
	if len(snap) != 0 {
		t.Fatalf("state not cleared: %+v", snap)
	}
}

func TestHealthz(t *testing.T) {
	ts := setupServer(t)
	resp := getJSON(t, ts, "/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
}

func TestAPIRateLimit(t *testing.T) {
	log := zap.NewNop()
	store := memory.New(0)
	limiter, _ := ratelimit.New(100, time.Hour, 0)
	engine := alert.NewEngine(log, store, store, metrics.NewEngine(store, store, log), limiter, nil)
	srv := NewServer(log, engine)

	// 60 rpm with burst 2: the third instant request is rejected.
	ts := httptest.NewServer(srv.Router(60, 2))
	defer ts.Close()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := http.Get(ts.URL + "/healthz")
		if err != nil {
			t.Fatalf("GET %d: %v", i, err)
		}
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Fatalf("first two requests should pass: %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Fatalf("third request should be limited: %v", codes)
	}
}
