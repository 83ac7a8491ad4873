package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPChecker_UpOn200(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}))
	defer ts.Close()

	c := NewHTTPChecker(2 * time.Second)
	out := c.Check(context.Background(), ts.URL)
	if !out.Up || out.StatusCode != 200 {
		t.Fatalf("want up/200, got %+v", out)
	}
	if out.LatencyMS <= 0 {
		t.Fatalf("latency should be measured, got %v", out.LatencyMS)
	}
}

func TestHTTPChecker_DownOn500(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer ts.Close()

	out := NewHTTPChecker(2 * time.Second).Check(context.Background(), ts.URL)
	if out.Up || out.StatusCode != 500 {
		t.Fatalf("want down/500, got %+v", out)
	}
}

func TestHTTPChecker_DownOnConnectionError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // now nothing is listening

	out := NewHTTPChecker(time.Second).Check(context.Background(), ts.URL)
	if out.Up || out.StatusCode != 0 {
		t.Fatalf("want down with no status, got %+v", out)
	}
	if out.Reason == "" {
		t.Fatal("transport errors should carry a reason")
	}
}
