package discovery

import (
	"net/url"
	"strings"
)

// NormalizeBase canonicalizes a raw website string into a scheme://host base
// URL. The scheme defaults to https when absent; path, query and fragment are
// stripped. Empty or malformed input yields "" and the store contributes no
// candidates. This is never an error.
func NormalizeBase(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// SameOrigin reports whether candidate lives on the base URL's host.
// Hostnames are compared case-insensitively; any parse failure counts as
// foreign.
func SameOrigin(base, candidate string) bool {
	bu, err := url.Parse(base)
	if err != nil || bu.Host == "" {
		return false
	}
	cu, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	return strings.EqualFold(bu.Host, cu.Host)
}

// Host extracts the hostname of a URL, or "" if it cannot be parsed.
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
