package urlutil_test

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/seoscan/internal/urlutil"
)

func TestNormalizeSite(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "example.com", want: "https://example.com/"},
		{in: "HTTP://WWW.Example.com:80/about?x=1#top", want: "https://www.example.com/"},
		{in: "https://example.com:8443/", want: "https://example.com:8443/"},
		{in: "  https://blog.example.com/post  ", want: "https://blog.example.com/"},
	}
	for _, tt := range tests {
		got, err := urlutil.NormalizeSite(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got.String(), tt.in)
	}
}

func TestNormalizeSite_Invalid(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "   ", "ftp://example.com", "https://", "not a host"} {
		_, err := urlutil.NormalizeSite(in)
		require.Error(t, err, in)
		assert.True(t,
			errors.Is(err, urlutil.ErrInvalidURL) || errors.Is(err, urlutil.ErrUnsupportedScheme),
			"unexpected error for %q: %v", in, err)
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	base, err := url.Parse("https://example.com/blog/")
	require.NoError(t, err)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "relative", in: "post-one/", want: "https://example.com/blog/post-one"},
		{name: "tracking stripped", in: "/a?utm_source=x&gclid=1&fbclid=2&msclkid=3&page=2", want: "https://example.com/a?page=2"},
		{name: "fragment dropped", in: "/a#section", want: "https://example.com/a"},
		{name: "http upgraded", in: "http://Example.com:80/A", want: "https://example.com/A"},
		{name: "query sorted", in: "/s?b=2&a=1", want: "https://example.com/s?a=1&b=2"},
		{name: "dot segments", in: "../x/./y", want: "https://example.com/x/y"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, normErr := urlutil.Normalize(tt.in, base)
			require.NoError(t, normErr)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_RejectsSchemes(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"mailto:a@b.c", "javascript:void(0)", "tel:123"} {
		_, err := urlutil.Normalize(in, nil)
		require.ErrorIs(t, err, urlutil.ErrUnsupportedScheme, in)
	}
}

func TestHostAllowed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		candidate string
		target    string
		allowSub  bool
		want      bool
	}{
		{"example.com", "example.com", false, true},
		{"WWW.Example.com", "example.com", false, true},
		{"blog.example.com", "example.com", false, false},
		{"blog.example.com", "example.com", true, true},
		{"notexample.com", "example.com", true, false},
		{"example.com.evil.io", "example.com", true, false},
		{"", "example.com", true, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, urlutil.HostAllowed(tt.candidate, tt.target, tt.allowSub),
			"%s vs %s (allowSub=%v)", tt.candidate, tt.target, tt.allowSub)
	}
}

func TestURLAllowed_SubdomainLink(t *testing.T) {
	t.Parallel()

	link := "https://blog.example.com/post"
	assert.False(t, urlutil.URLAllowed(link, "example.com", false))
	assert.True(t, urlutil.URLAllowed(link, "example.com", true))
}

func TestDepthAndPathLength(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, urlutil.Depth("https://example.com/"))
	assert.Equal(t, 3, urlutil.Depth("https://example.com/blog/2024/post"))
	assert.Equal(t, 1, urlutil.PathLength("https://example.com"))
	assert.Less(t, urlutil.PathLength("https://example.com/a"), urlutil.PathLength("https://example.com/abc"))
}

func TestSlugTitle(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "How To Rank Fast", urlutil.SlugTitle("https://example.com/blog/how-to-rank_fast.html"))
	assert.Equal(t, "", urlutil.SlugTitle("https://example.com/"))
}

func TestIsAssetPath(t *testing.T) {
	t.Parallel()

	for raw, want := range map[string]bool{
		"https://example.com/logo.PNG":        true,
		"https://example.com/report.pdf":      true,
		"https://example.com/data.json":       true,
		"https://example.com/sitemap.xml":     true,
		"https://example.com/blog/post":       false,
		"https://example.com/blog/post.html":  false,
		"https://example.com/assets/app.js":   true,
		"https://example.com/styles/site.css": true,
	} {
		assert.Equal(t, want, urlutil.IsAssetPath(raw), raw)
	}
}

func TestIsJunkPath(t *testing.T) {
	t.Parallel()

	for raw, want := range map[string]bool{
		"https://example.com/wp-admin/edit.php": true,
		"https://example.com/cart":              true,
		"https://example.com/checkout/step-1":   true,
		"https://example.com/login":             true,
		"https://example.com/search":            true,
		"https://example.com/?s=seo":            true,
		"https://example.com/blog/feed":         true,
		"https://example.com/blog/post/amp":     true,
		"https://example.com/blog/page/2":       true,
		"https://example.com/tag/seo":           true,
		"https://example.com/blog/seo-basics":   false,
		"https://example.com/about":             false,
	} {
		assert.Equal(t, want, urlutil.IsJunkPath(raw), raw)
	}
}
