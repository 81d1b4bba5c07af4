// Package discovery finds candidate blog posts and static pages for a site
// from its sitemaps, with crawl, blog-index and feed fallbacks.
package discovery

import (
	"path"
	"regexp"
	"strings"

	"github.com/jonesrussell/seoscan/internal/urlutil"
)

// Kind is the content type assigned to a sitemap or URL.
type Kind string

const (
	KindBlog   Kind = "blog"
	KindPage   Kind = "page"
	KindIgnore Kind = "ignore"

	// kindUnknown marks flat-urlset and crawled entries awaiting ClassifyURL.
	kindUnknown Kind = "unknown"
)

// minSlugWordCount is the hyphenated word count above which a slug reads like an article title.
const minSlugWordCount = 4

var sitemapTokenSplit = regexp.MustCompile(`[-_.]+`)

var ignoredSitemapTokens = map[string]struct{}{
	"category": {}, "categories": {}, "tag": {}, "tags": {}, "author": {}, "authors": {},
	"users": {}, "media": {}, "attachment": {}, "attachments": {}, "image": {}, "images": {},
	"video": {}, "videos": {}, "product": {}, "products": {}, "portfolio": {},
	"taxonomy": {}, "taxonomies": {}, "format": {},
}

var pageSitemapTokens = map[string]struct{}{
	"page": {}, "pages": {},
}

var blogSitemapTokens = map[string]struct{}{
	"post": {}, "posts": {}, "blog": {}, "blogs": {}, "article": {}, "articles": {},
	"news": {}, "insight": {}, "insights": {},
}

// listingSegments are section roots that list articles rather than hold one.
var listingSegments = map[string]struct{}{
	"blog": {}, "blogs": {}, "news": {}, "articles": {}, "insights": {},
	"posts": {}, "resources": {}, "stories": {},
}

// blogSegments mark the path of an individual post when followed by a slug.
var blogSegments = map[string]struct{}{
	"blog": {}, "blogs": {}, "post": {}, "posts": {}, "article": {}, "articles": {},
	"news": {}, "insight": {}, "insights": {},
}

// nonArticleSegments never start an article path, however long the slug.
var nonArticleSegments = map[string]struct{}{
	"about": {}, "contact": {}, "services": {}, "service": {}, "products": {}, "product": {},
	"shop": {}, "store": {}, "pricing": {}, "team": {}, "careers": {}, "jobs": {},
	"privacy": {}, "privacy-policy": {}, "terms": {}, "terms-of-service": {}, "legal": {},
	"faq": {}, "help": {}, "support": {}, "docs": {}, "events": {}, "locations": {},
}

var datePathPattern = regexp.MustCompile(`/(19|20)\d{2}/(0[1-9]|1[0-2])(/|$)`)

// ClassifySitemapURL assigns a type to a child sitemap from its file name.
// Ignore tokens win over page tokens, which win over blog tokens, so
// "wp-sitemap-posts-page-1.xml" is a page sitemap. Anything unrecognized is a page.
func ClassifySitemapURL(sitemapURL string) Kind {
	tokens := sitemapTokens(sitemapURL)
	switch {
	case hasToken(tokens, ignoredSitemapTokens):
		return KindIgnore
	case hasToken(tokens, pageSitemapTokens):
		return KindPage
	case hasToken(tokens, blogSitemapTokens):
		return KindBlog
	default:
		return KindPage
	}
}

func hasPageToken(sitemapURL string) bool {
	return hasToken(sitemapTokens(sitemapURL), pageSitemapTokens)
}

func sitemapTokens(sitemapURL string) []string {
	name := strings.TrimSpace(sitemapURL)
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	return sitemapTokenSplit.Split(strings.ToLower(path.Base(name)), -1)
}

func hasToken(tokens []string, set map[string]struct{}) bool {
	for _, tok := range tokens {
		if _, ok := set[tok]; ok {
			return true
		}
	}
	return false
}

// ClassifyURL assigns a type to a page URL from its path alone.
func ClassifyURL(raw string) Kind {
	if urlutil.IsAssetPath(raw) || urlutil.IsJunkPath(raw) {
		return KindIgnore
	}

	segs := urlutil.Segments(raw)
	if len(segs) == 0 {
		return KindPage
	}

	lower := make([]string, len(segs))
	for i, s := range segs {
		lower[i] = strings.ToLower(s)
	}

	if len(lower) == 1 {
		return KindPage
	}
	if datePathPattern.MatchString("/" + strings.Join(lower, "/")) {
		return KindBlog
	}
	for _, s := range lower[:len(lower)-1] {
		if _, ok := blogSegments[s]; ok {
			return KindBlog
		}
	}
	return KindPage
}

// IsBlogLike is ClassifyURL == KindBlog, or a long hyphenated slug outside
// the usual company sections.
func IsBlogLike(raw string) bool {
	switch ClassifyURL(raw) {
	case KindBlog:
		return true
	case KindIgnore:
		return false
	}

	segs := urlutil.Segments(raw)
	if len(segs) == 0 {
		return false
	}
	if _, ok := nonArticleSegments[strings.ToLower(segs[0])]; ok {
		return false
	}
	if _, ok := listingSegments[strings.ToLower(segs[len(segs)-1])]; ok {
		return false
	}

	slug := strings.TrimSuffix(segs[len(segs)-1], path.Ext(segs[len(segs)-1]))
	return len(strings.Split(slug, "-")) >= minSlugWordCount
}
