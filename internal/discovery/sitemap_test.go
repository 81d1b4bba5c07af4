package discovery_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/seoscan/internal/discovery"
)

func TestParseSitemap_URLSet(t *testing.T) {
	t.Parallel()

	body := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc> https://example.com/a </loc></url>
  <url><loc>https://example.com/b</loc><lastmod>2024-01-01</lastmod></url>
  <url><loc></loc></url>
</urlset>`)

	sm, err := discovery.ParseSitemap(body)
	require.NoError(t, err)
	assert.False(t, sm.IsIndex)
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, sm.URLs)
}

func TestParseSitemap_Index(t *testing.T) {
	t.Parallel()

	body := []byte(`<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://example.com/post-sitemap.xml</loc></sitemap>
  <sitemap><loc>https://example.com/page-sitemap.xml</loc></sitemap>
</sitemapindex>`)

	sm, err := discovery.ParseSitemap(body)
	require.NoError(t, err)
	assert.True(t, sm.IsIndex)
	assert.Len(t, sm.Children, 2)
}

func TestParseSitemap_RejectsHTML(t *testing.T) {
	t.Parallel()

	_, err := discovery.ParseSitemap([]byte(`<html><body><p>Not found</p></body></html>`))
	require.ErrorIs(t, err, discovery.ErrNotSitemap)
}
