package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sitepulse/sitepulse/internal/ratelimit"
)

// RateLimit returns a middleware that rate-limits by remote IP, backed by
// the same token bucket the alert engine uses.
// Example: RateLimit(120, 60) => 120 req/min with burst 60.
func RateLimit(reqPerMin int, burst int) func(http.Handler) http.Handler {
	if reqPerMin <= 0 {
		// disabled
		return func(next http.Handler) http.Handler { return next }
	}
	if burst <= 0 {
		burst = reqPerMin
	}
	// Refill burst tokens per window sized so the steady rate is rpm.
	window := time.Duration(burst) * time.Minute / time.Duration(reqPerMin)
	l, err := ratelimit.New(burst, window, 4096)
	if err != nil {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Consume(clientIP(r)) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	// honor X-Forwarded-For if behind a proxy
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
