package discovery_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/seoscan/internal/discovery"
)

func TestClassifySitemapURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want discovery.Kind
	}{
		{"https://example.com/post-sitemap.xml", discovery.KindBlog},
		{"https://example.com/post-sitemap2.xml", discovery.KindBlog},
		{"https://example.com/news-sitemap.xml.gz", discovery.KindBlog},
		{"https://example.com/page-sitemap.xml", discovery.KindPage},
		{"https://example.com/wp-sitemap-posts-post-1.xml", discovery.KindBlog},
		{"https://example.com/wp-sitemap-posts-page-1.xml", discovery.KindPage},
		{"https://example.com/category-sitemap.xml", discovery.KindIgnore},
		{"https://example.com/post_tag-sitemap.xml", discovery.KindIgnore},
		{"https://example.com/author-sitemap.xml", discovery.KindIgnore},
		{"https://example.com/wp-sitemap-users-1.xml", discovery.KindIgnore},
		{"https://example.com/wp-sitemap-taxonomies-category-1.xml", discovery.KindIgnore},
		{"https://example.com/product-sitemap.xml", discovery.KindIgnore},
		{"https://example.com/sitemap-misc.xml", discovery.KindPage},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, discovery.ClassifySitemapURL(tt.url), tt.url)
	}
}

func TestClassifyURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want discovery.Kind
	}{
		{"https://example.com/", discovery.KindPage},
		{"https://example.com/blog", discovery.KindPage},
		{"https://example.com/news", discovery.KindPage},
		{"https://example.com/about", discovery.KindPage},
		{"https://example.com/services/seo-audit", discovery.KindPage},
		{"https://example.com/blog/seo-basics", discovery.KindBlog},
		{"https://example.com/insights/2024-trends", discovery.KindBlog},
		{"https://example.com/en/news/launch", discovery.KindBlog},
		{"https://example.com/2024/05/hello-world", discovery.KindBlog},
		{"https://example.com/blog/page/2", discovery.KindIgnore},
		{"https://example.com/wp-admin/options.php", discovery.KindIgnore},
		{"https://example.com/images/hero.jpg", discovery.KindIgnore},
		{"https://example.com/cart", discovery.KindIgnore},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, discovery.ClassifyURL(tt.url), tt.url)
	}
}

func TestIsBlogLike(t *testing.T) {
	t.Parallel()

	assert.True(t, discovery.IsBlogLike("https://example.com/blog/seo-basics"))
	assert.True(t, discovery.IsBlogLike("https://example.com/how-to-improve-site-speed"))
	assert.False(t, discovery.IsBlogLike("https://example.com/about/our-company-and-team-history"))
	assert.False(t, discovery.IsBlogLike("https://example.com/contact"))
	assert.False(t, discovery.IsBlogLike("https://example.com/blog"))
	assert.False(t, discovery.IsBlogLike("https://example.com/"))
}

func TestRank(t *testing.T) {
	t.Parallel()

	urls := []string{
		"https://example.com/blog/a",
		"https://example.com/blog/2024/05/long-post",
		"https://example.com/blog/2024/05/post",
		"https://example.com/",
	}

	assert.Equal(t, []string{
		"https://example.com/blog/2024/05/post",
		"https://example.com/blog/2024/05/long-post",
		"https://example.com/blog/a",
		"https://example.com/",
	}, discovery.Rank(urls, discovery.KindBlog))

	assert.Equal(t, []string{
		"https://example.com/",
		"https://example.com/blog/a",
		"https://example.com/blog/2024/05/post",
		"https://example.com/blog/2024/05/long-post",
	}, discovery.Rank(urls, discovery.KindPage))
}
