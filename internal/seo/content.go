package seo

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/seoscan/internal/extract"
	"github.com/jonesrussell/seoscan/internal/fetcher"
	"github.com/jonesrussell/seoscan/internal/urlutil"
)

const topTermLimit = 25

// PageFetcher loads a page's HTML.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (*fetcher.Page, error)
}

// Content reads the target page with the service's own fetcher.
type Content struct {
	pages PageFetcher
}

// NewContent builds the content provider.
func NewContent(pages PageFetcher) *Content {
	return &Content{pages: pages}
}

func (c *Content) Name() string { return ProviderContent }

func (c *Content) Decode(raw []byte) (any, error) { return decodeAs[ContentResult](raw) }

func (c *Content) Fetch(ctx context.Context, t Target) (any, error) {
	page, err := c.pages.Fetch(ctx, t.URL)
	if err != nil {
		return nil, err
	}
	extracted, err := extract.Extract(page.HTML, page.URL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	result := &ContentResult{
		URL:         page.URL,
		StatusCode:  page.StatusCode,
		Source:      string(page.Source),
		Title:       extracted.Title,
		Description: extracted.Description,
		WordCount:   extracted.WordCount,
		Method:      string(extracted.Method),
		H1:          []string{},
		Text:        extracted.Text,
	}
	result.Canonical, _ = doc.Find(`link[rel="canonical"]`).First().Attr("href")
	result.Lang, _ = doc.Find("html").First().Attr("lang")

	doc.Find("h1").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			result.H1 = append(result.H1, text)
		}
	})
	result.H2Count = doc.Find("h2").Length()

	base, err := url.Parse(page.URL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		abs, normErr := urlutil.Normalize(href, base)
		if normErr != nil {
			return
		}
		if urlutil.URLAllowed(abs, t.Domain, true) {
			result.Links.Internal++
		} else {
			result.Links.External++
		}
	})

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		result.Images.Total++
		if alt, ok := s.Attr("alt"); !ok || strings.TrimSpace(alt) == "" {
			result.Images.MissingAlt++
		}
	})

	result.TopTerms = TopTerms(extracted.Text, topTermLimit)
	return result, nil
}

// stopWords are skipped when counting terms.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {}, "you": {}, "your": {},
	"all": {}, "any": {}, "can": {}, "had": {}, "her": {}, "was": {}, "one": {}, "our": {},
	"out": {}, "has": {}, "have": {}, "his": {}, "how": {}, "its": {}, "may": {}, "new": {},
	"now": {}, "see": {}, "two": {}, "who": {}, "did": {}, "get": {}, "use": {}, "that": {},
	"with": {}, "this": {}, "from": {}, "they": {}, "will": {}, "would": {}, "there": {},
	"their": {}, "what": {}, "about": {}, "which": {}, "when": {}, "make": {}, "like": {},
	"been": {}, "into": {}, "than": {}, "them": {}, "then": {}, "some": {}, "more": {},
	"also": {}, "were": {}, "these": {}, "those": {}, "just": {}, "only": {}, "over": {},
	"such": {}, "very": {}, "each": {}, "most": {}, "other": {}, "could": {}, "should": {},
}

// Terms lowercases text and splits it into words of three or more letters.
func Terms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '-'
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "-")
		if len([]rune(f)) >= 3 {
			out = append(out, f)
		}
	}
	return out
}

// TopTerms returns the most frequent non-stop-word terms in text, ties
// broken alphabetically.
func TopTerms(text string, limit int) []TermCount {
	counts := make(map[string]int)
	for _, term := range Terms(text) {
		if _, stop := stopWords[term]; stop {
			continue
		}
		counts[term]++
	}

	terms := make([]TermCount, 0, len(counts))
	for term, n := range counts {
		terms = append(terms, TermCount{Term: term, Count: n})
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Count != terms[j].Count {
			return terms[i].Count > terms[j].Count
		}
		return terms[i].Term < terms[j].Term
	})
	if len(terms) > limit {
		terms = terms[:limit]
	}
	return terms
}
