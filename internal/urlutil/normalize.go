// Package urlutil normalizes site and page URLs and decides which hosts a
// scan may touch.
package urlutil

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
)

var (
	// ErrInvalidURL is returned for input without a usable host.
	ErrInvalidURL = errors.New("invalid url")
	// ErrUnsupportedScheme rejects mailto:, javascript: and friends.
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
)

// trackingParams are dropped from every candidate URL. utm_* is matched by prefix.
var trackingParams = map[string]struct{}{
	"gclid":   {},
	"gclsrc":  {},
	"dclid":   {},
	"fbclid":  {},
	"msclkid": {},
	"mc_cid":  {},
	"mc_eid":  {},
	"_ga":     {},
	"yclid":   {},
}

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// NormalizeSite turns user input such as "Example.com/about" into the site
// root "https://example.com/". The leading "www." is kept in the URL so the
// request reaches the host the user typed; use Hostname for comparisons.
func NormalizeSite(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidURL)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Hostname() == "" || strings.ContainsAny(u.Hostname(), " _") {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidURL, raw)
	}

	return &url.URL{Scheme: "https", Host: normalizeHost(u, scheme), Path: "/"}, nil
}

// Normalize resolves ref against base (base may be nil for absolute refs),
// upgrades to https, drops fragments, default ports and tracking parameters,
// sorts the query and cleans the path without a trailing slash.
func Normalize(ref string, base *url.URL) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: empty input", ErrInvalidURL)
	}

	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if base != nil {
		u = base.ResolveReference(u)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: missing host in %q", ErrInvalidURL, ref)
	}

	u.Scheme = "https"
	u.Host = normalizeHost(u, scheme)
	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""
	u.RawQuery = cleanQuery(u.Query())
	u.Path = cleanPath(u.Path)
	u.RawPath = ""

	return u.String(), nil
}

// Hostname lowercases host and strips one leading "www.". A non-default
// port is preserved.
func Hostname(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimSuffix(host, ".")
	return strings.TrimPrefix(host, "www.")
}

// HostOf returns Hostname(u.Host) for a raw URL, or "" when it cannot be parsed.
func HostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return Hostname(normalizeHost(u, strings.ToLower(u.Scheme)))
}

func normalizeHost(u *url.URL, originalScheme string) string {
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if port == "" {
		return host
	}
	for _, scheme := range []string{originalScheme, "https"} {
		if def, ok := defaultPorts[scheme]; ok && def == port {
			return host
		}
	}
	return host + ":" + port
}

// IsTrackingParam reports whether key is stripped by Normalize.
func IsTrackingParam(key string) bool {
	key = strings.ToLower(key)
	if strings.HasPrefix(key, "utm_") {
		return true
	}
	_, ok := trackingParams[key]
	return ok
}

func cleanQuery(values url.Values) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		if !IsTrackingParam(key) {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	kept := make(url.Values, len(keys))
	for _, key := range keys {
		kept[key] = values[key]
	}
	return kept.Encode()
}

func cleanPath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	cleaned := path.Clean("/" + p)
	if cleaned == "/" {
		return cleaned
	}
	return strings.TrimRight(cleaned, "/")
}
