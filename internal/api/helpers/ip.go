package helpers

import (
	"net"
	"net/http"
	"strings"
)

// GetRealIP extracts the client address for audit records: first valid entry
// of X-Forwarded-For, then X-Real-IP, then RemoteAddr. The headers are only
// as trustworthy as the proxy in front of the service; the reverse proxy is
// expected to strip client-supplied values.
func GetRealIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
				return ip.String()
			}
		}
	}

	if xr := r.Header.Get("X-Real-IP"); xr != "" {
		if ip := net.ParseIP(strings.TrimSpace(xr)); ip != nil {
			return ip.String()
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
