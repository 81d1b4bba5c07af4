package extract_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/seoscan/internal/extract"
)

func articlePage() string {
	para := strings.Repeat("Search engines reward pages that answer questions clearly and completely. ", 6)
	return `<html><head><title>Ranking Guide</title>
<meta name="description" content="A practical guide to ranking.">
</head><body>
<header><nav><a href="/">Home</a><a href="/about">About</a></nav></header>
<article>
<h1>Ranking Guide</h1>
<p>` + para + `</p>
<figure><img src="/hero.jpg" alt="hero"><figcaption>Hero</figcaption></figure>
<p>` + para + `</p>
<p>` + para + `</p>
</article>
<aside>Subscribe to our newsletter</aside>
<footer>Copyright</footer>
<script>track()</script>
</body></html>`
}

func TestExtract_Readability(t *testing.T) {
	t.Parallel()

	res, err := extract.Extract(articlePage(), "https://example.com/blog/ranking-guide")
	require.NoError(t, err)

	assert.Equal(t, extract.MethodReadability, res.Method)
	assert.Contains(t, res.Title, "Ranking Guide")
	assert.Equal(t, "A practical guide to ranking.", res.Description)
	assert.Contains(t, res.ContentHTML, "Search engines reward pages")
	assert.NotContains(t, res.ContentHTML, "<img")
	assert.NotContains(t, res.ContentHTML, "newsletter")
	assert.NotContains(t, res.ContentHTML, "track()")
	assert.Greater(t, res.WordCount, 150)
}

func TestExtract_MainFallback(t *testing.T) {
	t.Parallel()

	page := `<html><head><title>Contact</title><meta property="og:description" content="Reach us"></head>
<body><nav>Menu</nav><main><h1>Contact</h1><p>Call us today.</p></main><footer>f</footer></body></html>`

	res, err := extract.Extract(page, "https://example.com/contact")
	require.NoError(t, err)

	assert.Equal(t, extract.MethodMain, res.Method)
	assert.Equal(t, "<h1>Contact</h1><p>Call us today.</p>", res.ContentHTML)
	assert.Equal(t, "Contact Call us today.", res.Text)
	assert.Equal(t, 4, res.WordCount)
	assert.Equal(t, "Reach us", res.Description)
}

func TestExtract_BodyFallbackAndSlugTitle(t *testing.T) {
	t.Parallel()

	page := `<html><body><div class="wrap"><p>Short note.</p></div></body></html>`

	res, err := extract.Extract(page, "https://example.com/services/seo-audit_basics")
	require.NoError(t, err)

	assert.Equal(t, extract.MethodBody, res.Method)
	assert.Equal(t, "Seo Audit Basics", res.Title)
	assert.Equal(t, `<div><p>Short note.</p></div>`, res.ContentHTML)
	assert.Equal(t, 2, res.WordCount)
}

func TestExtract_Empty(t *testing.T) {
	t.Parallel()

	_, err := extract.Extract("  ", "https://example.com/")
	require.ErrorIs(t, err, extract.ErrEmptyDocument)
}
