// Package metrics maintains per-site running aggregates and computes the
// fleet-wide rollup. All per-site updates are streaming: each check folds
// into the stored aggregate without replaying history.
package metrics

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/sitepulse/sitepulse/internal/domain"
	"github.com/sitepulse/sitepulse/internal/repo"
)

type Engine struct {
	store  repo.MetricsStore
	status repo.StatusStore
	log    *zap.Logger
}

func NewEngine(store repo.MetricsStore, status repo.StatusStore, log *zap.Logger) *Engine {
	return &Engine{store: store, status: status, log: log}
}

// RecordCheck folds one result into the site's aggregate and persists it.
// Deliberately not idempotent: replaying the same result counts twice.
func (e *Engine) RecordCheck(ctx context.Context, r *domain.CheckResult) error {
	m, err := e.store.GetMetrics(ctx, r.URL)
	if err != nil {
		return fmt.Errorf("load metrics for %s: %w", r.URL, err)
	}
	if m == nil {
		m = &domain.SiteMetrics{
			URL:           r.URL,
			UptimePercent: 100,
			MinLatencyMS:  math.Inf(1),
		}
	}

	m.TotalChecks++
	checkedAt := r.CheckedAt
	if r.Up() {
		m.SuccessfulChecks++
		m.ConsecutiveFailures = 0
		m.LastUpAt = &checkedAt
	} else {
		m.ConsecutiveFailures++
		m.LastDownAt = &checkedAt
	}

	// Streaming mean keeps the stored average exact without the history.
	m.AvgLatencyMS = (m.AvgLatencyMS*float64(m.TotalChecks-1) + r.LatencyMS) / float64(m.TotalChecks)
	m.MaxLatencyMS = math.Max(m.MaxLatencyMS, r.LatencyMS)
	m.MinLatencyMS = math.Min(m.MinLatencyMS, r.LatencyMS)
	m.UptimePercent = float64(m.SuccessfulChecks) / float64(m.TotalChecks) * 100

	if err := e.store.PutMetrics(ctx, m); err != nil {
		return fmt.Errorf("persist metrics for %s: %w", r.URL, err)
	}
	return nil
}

// Clear wipes every site aggregate.
func (e *Engine) Clear(ctx context.Context) error {
	return e.store.ClearMetrics(ctx)
}

// SiteMetrics returns the aggregate for one URL, or nil if never checked.
func (e *Engine) SiteMetrics(ctx context.Context, url string) (*domain.SiteMetrics, error) {
	return e.store.GetMetrics(ctx, url)
}

// AllMetrics returns every site aggregate keyed by URL.
func (e *Engine) AllMetrics(ctx context.Context) (map[string]domain.SiteMetrics, error) {
	return e.store.AllMetrics(ctx)
}

// SystemSnapshot rolls up the fleet using the unweighted arithmetic mean
// of each site's uptime percentage and average latency, so a site checked
// once counts the same as one checked a million times. Callers wanting
// check-count weighting use WeightedSystemSnapshot.
func (e *Engine) SystemSnapshot(ctx context.Context) (domain.SystemMetrics, error) {
	out, all, err := e.base(ctx)
	if err != nil {
		return out, err
	}
	if len(all) == 0 {
		return out, nil
	}
	var uptime, latency float64
	for _, m := range all {
		uptime += m.UptimePercent
		latency += m.AvgLatencyMS
	}
	n := float64(len(all))
	out.UptimePercent = uptime / n
	out.AvgLatencyMS = latency / n
	return out, nil
}

// WeightedSystemSnapshot is the traffic-weighted variant: each site
// contributes in proportion to its total check count.
func (e *Engine) WeightedSystemSnapshot(ctx context.Context) (domain.SystemMetrics, error) {
	out, all, err := e.base(ctx)
	if err != nil {
		return out, err
	}
	var total, success int64
	var latencySum float64
	for _, m := range all {
		total += m.TotalChecks
		success += m.SuccessfulChecks
		latencySum += m.AvgLatencyMS * float64(m.TotalChecks)
	}
	if total == 0 {
		return out, nil
	}
	out.UptimePercent = float64(success) / float64(total) * 100
	out.AvgLatencyMS = latencySum / float64(total)
	return out, nil
}

func (e *Engine) base(ctx context.Context) (domain.SystemMetrics, map[string]domain.SiteMetrics, error) {
	var out domain.SystemMetrics

	snap, err := e.status.Snapshot(ctx)
	if err != nil {
		return out, nil, fmt.Errorf("status snapshot: %w", err)
	}
	for _, r := range snap {
		if r.Up() {
			out.UpSites++
		} else {
			out.DownSites++
		}
		if r.CheckedAt.After(out.LastUpdate) {
			out.LastUpdate = r.CheckedAt
		}
	}

	all, err := e.store.AllMetrics(ctx)
	if err != nil {
		return out, nil, fmt.Errorf("all metrics: %w", err)
	}
	out.TotalSites = len(all)
	return out, all, nil
}
