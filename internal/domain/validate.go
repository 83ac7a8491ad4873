package domain

import (
	"errors"
	"fmt"
	"net/url"
)

// ValidationError rejects a malformed CheckResult before any store mutation.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid check result: %s %s", e.Field, e.Detail)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Validate checks the shape of an incoming result. Callers must not mutate
// any store when an error is returned.
func (r *CheckResult) Validate() error {
	if r.URL == "" {
		return &ValidationError{Field: "url", Detail: "is empty"}
	}
	u, err := url.Parse(r.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ValidationError{Field: "url", Detail: "is not an absolute URL"}
	}
	if r.Status != StatusUp && r.Status != StatusDown {
		return &ValidationError{Field: "status", Detail: fmt.Sprintf("must be %q or %q", StatusUp, StatusDown)}
	}
	if r.LatencyMS < 0 {
		return &ValidationError{Field: "latency_ms", Detail: "is negative"}
	}
	if r.CheckedAt.IsZero() {
		return &ValidationError{Field: "checked_at", Detail: "is missing"}
	}
	return nil
}
