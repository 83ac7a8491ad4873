package domain

import "time"

// Status is the binary reachability verdict of a single check.
type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

// CheckResult is one probe outcome for one site. It is produced by the
// probe/scheduler and immutable once submitted; the persisted last-known
// record for a URL is a copy of the most recent accepted CheckResult.
type CheckResult struct {
	URL        string    `json:"url"`
	Status     Status    `json:"status"`
	HTTPStatus int       `json:"http_status,omitempty"` // 0 when no HTTP response was obtained
	LatencyMS  float64   `json:"latency_ms"`
	Reason     string    `json:"reason,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}

// Up reports whether the result is an UP observation.
func (r *CheckResult) Up() bool { return r.Status == StatusUp }

// SiteMetrics is the running aggregate for one monitored URL.
// Invariant: UptimePercent == SuccessfulChecks/TotalChecks*100
// (100 by convention while TotalChecks is zero).
type SiteMetrics struct {
	URL                 string     `json:"url"`
	TotalChecks         int64      `json:"total_checks"`
	SuccessfulChecks    int64      `json:"successful_checks"`
	ConsecutiveFailures int64      `json:"consecutive_failures"`
	AvgLatencyMS        float64    `json:"avg_latency_ms"`
	MinLatencyMS        float64    `json:"min_latency_ms"`
	MaxLatencyMS        float64    `json:"max_latency_ms"`
	UptimePercent       float64    `json:"uptime_percent"`
	LastUpAt            *time.Time `json:"last_up_at,omitempty"`
	LastDownAt          *time.Time `json:"last_down_at,omitempty"`
}

// SystemMetrics is the fleet-wide rollup computed on demand.
// UptimePercent and AvgLatencyMS are unweighted arithmetic means of the
// per-site values; metrics.Engine also exposes a traffic-weighted variant.
type SystemMetrics struct {
	TotalSites    int       `json:"total_sites"`
	UpSites       int       `json:"up_sites"`
	DownSites     int       `json:"down_sites"`
	UptimePercent float64   `json:"uptime_percent"`
	AvgLatencyMS  float64   `json:"avg_latency_ms"`
	LastUpdate    time.Time `json:"last_update"`
}
