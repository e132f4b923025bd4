// Package utils provides common helper functions for request parsing and
// HTTP responses used across the application.
package utils

import (
	"net"
	"net/http"
	"strconv"
	"strings"
)

func GetRealIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// ParseFloat parses a query parameter, falling back to def when the value
// is empty or malformed.
func ParseFloat(value string, def float64) float64 {
	if value == "" {
		return def
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return f
}

// IsAllowedOrigin matches an Origin header against the configured
// whitelist. "*" allows everything; a leading "*." allows subdomains.
func IsAllowedOrigin(origin string, patterns []string) bool {
	if origin == "" {
		return false
	}
	host := origin
	if idx := strings.Index(host, "://"); idx >= 0 {
		host = host[idx+3:]
	}
	host = strings.SplitN(host, "/", 2)[0]
	host = strings.SplitN(host, ":", 2)[0]

	for _, pattern := range patterns {
		if pattern == "*" || pattern == origin {
			return true
		}
		if suffix, ok := strings.CutPrefix(pattern, "*."); ok {
			if host == suffix || strings.HasSuffix(host, "."+suffix) {
				return true
			}
		}
		if pattern == host {
			return true
		}
	}
	return false
}
