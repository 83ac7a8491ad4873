package probe

import (
	"context"
	"time"
)

// RetryChecker re-runs the inner checker on failure so a single dropped
// packet does not flip a site to DOWN.
type RetryChecker struct {
	Inner    Checker
	Attempts int
	Backoff  time.Duration
}

func (r *RetryChecker) Check(ctx context.Context, target string) Outcome {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var last Outcome
	for i := 0; i < attempts; i++ {
		last = r.Inner.Check(ctx, target)
		if last.Up {
			return last
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return last
			case <-time.After(r.Backoff):
			}
		}
	}
	if attempts > 1 {
		last.Reason = last.Reason + " (after retries)"
	}
	return last
}
