package utils

import (
	"net/url"
	"strings"
)

// HostFromURL extracts the canonical host name from a URL-like string.
// Bare hosts ("www.example.com", "example.com/path") are treated as https URLs.
// It returns "" when no host can be recovered.
func HostFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return CanonicalDNSName(u.Hostname())
}

// IsURLLike reports whether s looks like a URL or a www host.
func IsURLLike(s string) bool {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return true
	}
	return strings.HasPrefix(lower, "www.") && strings.Contains(lower[len("www."):], ".")
}
