// Package extract isolates the main content of a page and reduces it to a
// safe HTML subset.
package extract

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/jonesrussell/seoscan/internal/urlutil"
)

// MinReadabilityText is the readability text length below which the
// <main>/<article> region is used instead.
const MinReadabilityText = 300

const maxDescriptionLength = 320

// ErrEmptyDocument is returned for blank input.
var ErrEmptyDocument = errors.New("empty html document")

// Method records which region produced the content.
type Method string

const (
	MethodReadability Method = "readability"
	MethodMain        Method = "main"
	MethodBody        Method = "body"
)

// boilerplateSelector is removed before any extraction.
const boilerplateSelector = "header, nav, footer, aside, script, style, noscript, iframe, svg, canvas"

// Result is the extracted content of one page.
type Result struct {
	Title       string
	Description string
	ContentHTML string
	Text        string
	WordCount   int
	Method      Method
}

// Extract runs readability over rawHTML with <main>/<article> and <body>
// fallbacks, then sanitizes the chosen region.
func Extract(rawHTML, pageURL string) (*Result, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, ErrEmptyDocument
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	pageTitle := collapse(doc.Find("title").First().Text())
	metaDescription := metaContent(doc, `meta[name="description"]`, `meta[property="og:description"]`, `meta[name="og:description"]`)

	doc.Find(boilerplateSelector).Remove()
	cleaned, err := doc.Html()
	if err != nil {
		return nil, fmt.Errorf("render cleaned html: %w", err)
	}

	res := &Result{}
	var article readability.Article
	if parsed, parseErr := url.Parse(pageURL); parseErr == nil {
		if a, readErr := readability.FromReader(strings.NewReader(cleaned), parsed); readErr == nil {
			article = a
		}
	}

	var candidate string
	articleText := collapse(article.TextContent)
	if utf8.RuneCountInString(articleText) >= MinReadabilityText {
		candidate = article.Content
		res.Text = articleText
		res.Method = MethodReadability
	} else if sel := mainRegion(doc); sel != nil {
		candidate, _ = sel.Html()
		res.Method = MethodMain
	} else {
		candidate, _ = doc.Find("body").First().Html()
		res.Method = MethodBody
	}

	res.ContentHTML = Sanitize(candidate)
	if res.Text == "" {
		res.Text = PlainText(res.ContentHTML)
	}
	res.WordCount = CountWords(res.Text)
	res.Title = firstNonEmpty(collapse(article.Title), pageTitle, urlutil.SlugTitle(pageURL), pageURL)
	res.Description = truncateDescription(firstNonEmpty(metaDescription, collapse(article.Excerpt)))

	return res, nil
}

func mainRegion(doc *goquery.Document) *goquery.Selection {
	for _, selector := range []string{"main", "article", `[role="main"]`} {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			return sel
		}
	}
	return nil
}

func metaContent(doc *goquery.Document, selectors ...string) string {
	for _, selector := range selectors {
		if v, ok := doc.Find(selector).First().Attr("content"); ok {
			if v = collapse(v); v != "" {
				return v
			}
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncateDescription(s string) string {
	if utf8.RuneCountInString(s) <= maxDescriptionLength {
		return s
	}
	return strings.TrimSpace(truncateRunes(s, maxDescriptionLength-1)) + "…"
}
