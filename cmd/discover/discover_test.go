package discover_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/seoscan/cmd/discover"
	"github.com/jonesrussell/seoscan/internal/discovery"
)

func TestRenderResult(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		result   *discovery.Result
		contains []string
		excludes []string
	}{
		{
			name: "sitemap",
			result: &discovery.Result{
				Hostname: "example.com",
				SiteURL:  "https://example.com",
				BlogURLs: []string{"https://example.com/blog/one"},
				PageURLs: []string{"https://example.com/about"},
				Diagnostics: discovery.Diagnostics{
					SitemapsTried:   []string{"https://example.com/sitemap.xml"},
					SitemapFound:    "https://example.com/sitemap.xml",
					SitemapURLCount: 2,
				},
			},
			contains: []string{
				"example.com (https://example.com)",
				"https://example.com/blog/one",
				"https://example.com/about",
				"source: sitemap",
				"sitemap: https://example.com/sitemap.xml",
			},
			excludes: []string{"crawl error"},
		},
		{
			name: "crawl fallback with error",
			result: &discovery.Result{
				Hostname: "example.org",
				SiteURL:  "https://example.org",
				Diagnostics: discovery.Diagnostics{
					UsedFallback: true,
					CrawlVisited: 3,
					CrawlError:   "timeout",
				},
			},
			contains: []string{"source: crawl", "crawl visited: 3", "crawl error: timeout"},
			excludes: []string{"sitemap: "},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			discover.RenderResult(&buf, tt.result)

			out := buf.String()
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
			for _, unwanted := range tt.excludes {
				assert.NotContains(t, out, unwanted)
			}
		})
	}
}
