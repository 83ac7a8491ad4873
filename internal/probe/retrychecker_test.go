package probe

import (
	"context"
	"testing"
)

type scriptedChecker struct {
	outcomes []Outcome
	calls    int
}

func (s *scriptedChecker) Check(ctx context.Context, target string) Outcome {
	out := s.outcomes[s.calls%len(s.outcomes)]
	s.calls++
	return out
}

func TestRetryChecker_StopsOnFirstSuccess(t *testing.T) {
	inner := &scriptedChecker{outcomes: []Outcome{
		{Up: false, Reason: "boom"},
		{Up: true, StatusCode: 200, Reason: "200 OK"},
	}}
	rc := &RetryChecker{Inner: inner, Attempts: 3}

	out := rc.Check(context.Background(), "https://a")
	if !out.Up {
		t.Fatalf("want eventual success, got %+v", out)
	}
	if inner.calls != 2 {
		t.Fatalf("want 2 attempts, got %d", inner.calls)
	}
}

func TestRetryChecker_AnnotatesExhaustedRetries(t *testing.T) {
	inner := &scriptedChecker{outcomes: []Outcome{{Up: false, Reason: "boom"}}}
	rc := &RetryChecker{Inner: inner, Attempts: 3}

	out := rc.Check(context.Background(), "https://a")
	if out.Up {
		t.Fatal("all attempts fail: result must be down")
	}
	if inner.calls != 3 {
		t.Fatalf("want 3 attempts, got %d", inner.calls)
	}
	if out.Reason != "boom (after retries)" {
		t.Fatalf("reason not annotated: %q", out.Reason)
	}
}

func TestRetryChecker_ZeroAttemptsStillChecksOnce(t *testing.T) {
	inner := &scriptedChecker{outcomes: []Outcome{{Up: true}}}
	rc := &RetryChecker{Inner: inner}

	rc.Check(context.Background(), "https://a")
	if inner.calls != 1 {
		t.Fatalf("want exactly 1 attempt, got %d", inner.calls)
	}
}
