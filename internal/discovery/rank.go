package discovery

import (
	"sort"

	"github.com/jonesrussell/seoscan/internal/urlutil"
)

// Rank orders candidates deterministically: blog posts deepest first, pages
// shallowest first, then shorter path, then lexical. The input is not modified.
func Rank(urls []string, kind Kind) []string {
	type ranked struct {
		url    string
		depth  int
		length int
	}

	items := make([]ranked, 0, len(urls))
	for _, u := range urls {
		items = append(items, ranked{url: u, depth: urlutil.Depth(u), length: urlutil.PathLength(u)})
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.depth != b.depth {
			if kind == KindBlog {
				return a.depth > b.depth
			}
			return a.depth < b.depth
		}
		if a.length != b.length {
			return a.length < b.length
		}
		return a.url < b.url
	})

	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.url
	}
	return out
}

// rankAndLimit ranks urls and keeps at most limit of them. limit <= 0 keeps all.
func rankAndLimit(urls []string, kind Kind, limit int) []string {
	ranked := Rank(urls, kind)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
