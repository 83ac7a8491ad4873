package probe

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"
)

var dnsTimeout = 3 * time.Second

// ClassifyDNS resolves the host of target and returns a short class label
// ("NXDOMAIN", "NO_A_RECORD", "RESOLVES", "SERVFAIL_or_TIMEOUT",
// "INVALID_NAME") used to enrich the reason on DOWN results.
func ClassifyDNS(ctx context.Context, target string) string {
	host := extractHost(target)
	if host == "" {
		return "INVALID_NAME"
	}

	ctx, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()
	r := &net.Resolver{} // OS resolver

	ips, err := r.LookupIP(ctx, "ip", host)
	if err == nil {
		if len(ips) > 0 {
			return "RESOLVES"
		}
		return "NO_A_RECORD"
	}

	var de *net.DNSError
	if errors.As(err, &de) {
		if de.IsNotFound {
			return "NXDOMAIN"
		}
		if de.IsTemporary || de.Timeout() {
			return "SERVFAIL_or_TIMEOUT"
		}
	}
	return "NO_A_RECORD"
}

// extractHost pulls the hostname from a URL string.
func extractHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return strings.TrimSpace(raw)
	}
	return u.Hostname()
}
