package urlutil

import (
	"net/url"
	"strings"
	"unicode"
)

// HostAllowed reports whether candidate belongs to target. Both are compared
// after Hostname. With allowSubdomains, candidate must end in "."+target so
// "notexample.com" never matches "example.com".
func HostAllowed(candidate, target string, allowSubdomains bool) bool {
	candidate = Hostname(candidate)
	target = Hostname(target)
	if candidate == "" || target == "" {
		return false
	}
	if candidate == target {
		return true
	}
	return allowSubdomains && strings.HasSuffix(candidate, "."+target)
}

// URLAllowed applies HostAllowed to a raw URL.
func URLAllowed(raw, target string, allowSubdomains bool) bool {
	return HostAllowed(HostOf(raw), target, allowSubdomains)
}

// Segments splits the URL path into non-empty segments.
func Segments(raw string) []string {
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	return strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
}

// Depth is the number of path segments.
func Depth(raw string) int {
	return len(Segments(raw))
}

// PathLength is the length of the escaped path, "/" for the root.
func PathLength(raw string) int {
	u, err := url.Parse(raw)
	if err != nil {
		return len(raw)
	}
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	return len(p)
}

// SlugTitle derives a readable title from the last path segment:
// "/blog/how-to-rank_fast.html" becomes "How To Rank Fast". Returns "" for the root.
func SlugTitle(raw string) string {
	segs := Segments(raw)
	if len(segs) == 0 {
		return ""
	}
	last, err := url.PathUnescape(segs[len(segs)-1])
	if err != nil {
		last = segs[len(segs)-1]
	}
	if dot := strings.LastIndexByte(last, '.'); dot > 0 {
		last = last[:dot]
	}

	words := strings.FieldsFunc(last, func(r rune) bool {
		return r == '-' || r == '_' || r == '+' || unicode.IsSpace(r)
	})
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
