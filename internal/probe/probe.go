package probe

import "context"

// Outcome is the raw result of a single probe, before the scheduler turns
// it into a domain.CheckResult.
//
// StatusCode is the HTTP status when a response was obtained; 0 for
// transport/DNS errors.
type Outcome struct {
	Up         bool
	StatusCode int
	LatencyMS  float64
	Reason     string
}

// Checker performs a single check for a given target URL.
type Checker interface {
	Check(ctx context.Context, target string) Outcome
}
