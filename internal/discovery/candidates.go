package discovery

import (
	"net/url"

	"github.com/jonesrussell/seoscan/internal/urlutil"
)

// candidateSet deduplicates normalized URLs by first-seen type.
type candidateSet struct {
	target   string
	allowSub bool
	base     *url.URL

	seen  map[string]Kind
	blogs []string
	pages []string
}

func newCandidateSet(target string, allowSub bool, base *url.URL) *candidateSet {
	return &candidateSet{
		target:   target,
		allowSub: allowSub,
		base:     base,
		seen:     make(map[string]Kind),
	}
}

// addRaw normalizes and filters raw, classifying it when kind is unknown.
func (s *candidateSet) addRaw(raw string, kind Kind) {
	u, ok := s.accept(raw, s.base)
	if !ok {
		return
	}
	byPath := ClassifyURL(u)
	if byPath == KindIgnore {
		return
	}
	if kind == kindUnknown {
		kind = byPath
	}
	s.add(u, kind)
}

// accept returns the normalized URL when it belongs to the target host and
// is not an asset or junk path.
func (s *candidateSet) accept(raw string, base *url.URL) (string, bool) {
	u, err := urlutil.Normalize(raw, base)
	if err != nil {
		return "", false
	}
	if !urlutil.URLAllowed(u, s.target, s.allowSub) {
		return "", false
	}
	if urlutil.IsAssetPath(u) || urlutil.IsJunkPath(u) {
		return "", false
	}
	return u, true
}

func (s *candidateSet) add(u string, kind Kind) {
	if _, dup := s.seen[u]; dup {
		return
	}
	switch kind {
	case KindBlog:
		s.blogs = append(s.blogs, u)
	case KindPage:
		s.pages = append(s.pages, u)
	default:
		return
	}
	s.seen[u] = kind
}

func (s *candidateSet) ranked(limit int) (blogs, pages []string) {
	return rankAndLimit(s.blogs, KindBlog, limit), rankAndLimit(s.pages, KindPage, limit)
}

func (s *candidateSet) empty() bool {
	return len(s.seen) == 0
}
