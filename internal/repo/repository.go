package repo

import (
	"context"

	"github.com/sitepulse/sitepulse/internal/domain"
)

// Ports (interfaces) — swap in any storage adapter later.
//
// Lookups return (nil, nil) when no record exists for the URL; errors are
// reserved for storage failures. Reads reflect all writes that completed
// before them in this process. No atomicity is promised across the three
// stores: a crash between SetLast and Append may leave them inconsistent,
// which the decision layer accepts (the next successful check resyncs).

// StatusStore keeps exactly one last-known CheckResult per URL.
type StatusStore interface {
	GetLast(ctx context.Context, url string) (*domain.CheckResult, error)
	SetLast(ctx context.Context, r *domain.CheckResult) error
	// Snapshot returns a defensive copy of every current record.
	Snapshot(ctx context.Context) (map[string]domain.CheckResult, error)
	ClearStatus(ctx context.Context) error
}

// HistoryStore is an append-only log of check results with a global
// (not per-site) capacity: once full, the oldest entries are evicted
// first regardless of which URL they belong to.
type HistoryStore interface {
	Append(ctx context.Context, r *domain.CheckResult) error
	// History returns up to limit entries for url, most recent first.
	// An empty url matches every site.
	History(ctx context.Context, url string, limit int) ([]domain.CheckResult, error)
	ClearHistory(ctx context.Context) error
}

// MetricsStore keeps the per-site running aggregates.
type MetricsStore interface {
	GetMetrics(ctx context.Context, url string) (*domain.SiteMetrics, error)
	PutMetrics(ctx context.Context, m *domain.SiteMetrics) error
	AllMetrics(ctx context.Context) (map[string]domain.SiteMetrics, error)
	ClearMetrics(ctx context.Context) error
}

// Store is the full persistence surface backing the monitor.
type Store interface {
	StatusStore
	HistoryStore
	MetricsStore
	Close() error
}

// DefaultHistoryCap bounds the history log when the deployer does not
// configure one.
const DefaultHistoryCap = 1000
