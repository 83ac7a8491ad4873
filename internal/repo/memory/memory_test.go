package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/sitepulse/sitepulse/internal/domain"
)

func result(url string, status domain.Status, at time.Time) *domain.CheckResult {
	return &domain.CheckResult{URL: url, Status: status, LatencyMS: 10, CheckedAt: at}
}

func TestStore_SetLastOverwrites(t *testing.T) {
	ctx := context.Background()
	s := New(0)
	t0 := time.Now().UTC()

	if err := s.SetLast(ctx, result("https://a", domain.StatusUp, t0)); err != nil {
		t.Fatalf("SetLast: %v", err)
	}
	if err := s.SetLast(ctx, result("https://a", domain.StatusDown, t0.Add(time.Minute))); err != nil {
		t.Fatalf("SetLast: %v", err)
	}

	got, err := s.GetLast(ctx, "https://a")
	if err != nil {
		t.Fatalf("GetLast: %v", err)
	}
	if got.Status != domain.StatusDown {
		t.Fatalf("want overwrite to down, got %s", got.Status)
	}

	if missing, err := s.GetLast(ctx, "https://never"); err != nil || missing != nil {
		t.Fatalf("missing url: want nil,nil got %v,%v", missing, err)
	}
}

func TestStore_SnapshotIsDefensiveCopy(t *testing.T) {
	ctx := context.Background()
	s := New(0)
	t0 := time.Now().UTC()
	_ = s.SetLast(ctx, result("https://a", domain.StatusUp, t0))

	snap, _ := s.Snapshot(ctx)
	mutated := snap["https://a"]
	mutated.Status = domain.StatusDown
	snap["https://a"] = mutated

	got, _ := s.GetLast(ctx, "https://a")
	if got.Status != domain.StatusUp {
		t.Fatal("mutating the snapshot must not reach the store")
	}
}

func TestStore_HistoryCapIsGlobalNotPerSite(t *testing.T) {
	ctx := context.Background()
	s := New(3)
	t0 := time.Now().UTC()

	// (A),(A),(B),(B),(B): the two A entries fall off the front even
	// though site A only contributed two checks.
	for i, url := range []string{"https://a", "https://a", "https://b", "https://b", "https://b"} {
		if err := s.Append(ctx, result(url, domain.StatusUp, t0.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	all, err := s.History(ctx, "", 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("want 3 entries after cap, got %d", len(all))
	}
	for _, r := range all {
		if r.URL != "https://b" {
			t.Fatalf("expected only b entries to survive, saw %s", r.URL)
		}
	}

	onlyA, err := s.History(ctx, "https://a", 10)
	if err != nil {
		t.Fatalf("History(a): %v", err)
	}
	if len(onlyA) != 0 {
		t.Fatalf("a's entries should all be evicted, got %d", len(onlyA))
	}
}

func TestStore_HistoryMostRecentFirstAndLimit(t *testing.T) {
	ctx := context.Background()
	s := New(10)
	t0 := time.Now().UTC()

	for i := 0; i < 5; i++ {
		_ = s.Append(ctx, result("https://a", domain.StatusUp, t0.Add(time.Duration(i)*time.Second)))
	}

	got, _ := s.History(ctx, "https://a", 3)
	if len(got) != 3 {
		t.Fatalf("limit: want 3, got %d", len(got))
	}
	want := []time.Time{t0.Add(4 * time.Second), t0.Add(3 * time.Second), t0.Add(2 * time.Second)}
	for i, r := range got {
		if !r.CheckedAt.Equal(want[i]) {
			t.Fatalf("order wrong at %d: %v", i, r.CheckedAt)
		}
	}
}

func TestStore_MetricsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New(0)

	want := &domain.SiteMetrics{
		URL:              "https://a",
		TotalChecks:      4,
		SuccessfulChecks: 3,
		AvgLatencyMS:     12.5,
		MinLatencyMS:     5,
		MaxLatencyMS:     20,
		UptimePercent:    75,
	}
	if err := s.PutMetrics(ctx, want); err != nil {
		t.Fatalf("PutMetrics: %v", err)
	}
	got, err := s.GetMetrics(ctx, "https://a")
	if err != nil {
		t.Fatalf("GetMetrics: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("metrics mismatch (-want +got):\n%s", diff)
	}

	if missing, err := s.GetMetrics(ctx, "https://never"); err != nil || missing != nil {
		t.Fatalf("missing metrics: want nil,nil got %v,%v", missing, err)
	}
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	s := New(0)
	t0 := time.Now().UTC()

	_ = s.SetLast(ctx, result("https://a", domain.StatusUp, t0))
	_ = s.Append(ctx, result("https://a", domain.StatusUp, t0))
	_ = s.PutMetrics(ctx, &domain.SiteMetrics{URL: "https://a", TotalChecks: 1})

	if err := s.ClearStatus(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.ClearHistory(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.ClearMetrics(ctx); err != nil {
		t.Fatal(err)
	}

	if snap, _ := s.Snapshot(ctx); len(snap) != 0 {
		t.Fatal("status survived clear")
	}
	if hist, _ := s.History(ctx, "", 0); len(hist) != 0 {
		t.Fatal("history survived clear")
	}
	if all, _ := s.AllMetrics(ctx); len(all) != 0 {
		t.Fatal("metrics survived clear")
	}
}
