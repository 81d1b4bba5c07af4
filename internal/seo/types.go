// Package seo fans one page URL out to several SEO data providers and rolls
// their answers into a single report.
package seo

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonesrussell/seoscan/internal/urlutil"
)

// Provider names accepted in Request.Providers.
const (
	ProviderPerformance = "performance"
	ProviderAuthority   = "authority"
	ProviderSERP        = "serp"
	ProviderDataForSEO  = "dataforseo"
	ProviderContent     = "content"
	ProviderFAQs        = "faqs"
	ProviderKeywords    = "keywords"

	// StepBacklinks names the fallback backlink lookup in events, timings and errors.
	StepBacklinks = "backlinks"
)

// AllProviders is the default request order.
var AllProviders = []string{
	ProviderPerformance,
	ProviderAuthority,
	ProviderSERP,
	ProviderDataForSEO,
	ProviderContent,
	ProviderFAQs,
	ProviderKeywords,
}

const (
	DefaultCountryCode  = "us"
	DefaultLanguageCode = "en"
	DefaultDepth        = 20
	MaxDepth            = 100
)

var (
	// ErrInvalidURL rejects a request whose url cannot be normalized.
	ErrInvalidURL = errors.New("invalid url")
	// ErrKeywordRequired rejects keywordsOnly requests without a keyword.
	ErrKeywordRequired = errors.New("keyword is required when keywordsOnly is set")
	// ErrNotConfigured is recorded for requested providers without credentials.
	ErrNotConfigured = errors.New("provider not configured")
	// ErrUnknownProvider is recorded for names outside AllProviders.
	ErrUnknownProvider = errors.New("unknown provider")
)

// Request asks for an SEO report on one URL.
type Request struct {
	URL          string   `json:"url"`
	Keyword      string   `json:"keyword,omitempty"`
	CountryCode  string   `json:"countryCode,omitempty"`
	LanguageCode string   `json:"languageCode,omitempty"`
	Depth        int      `json:"depth,omitempty"`
	Providers    []string `json:"providers,omitempty"`
	KeywordsOnly bool     `json:"keywordsOnly,omitempty"`
	Stream       bool     `json:"stream,omitempty"`
}

// Target is a validated Request as providers see it.
type Target struct {
	URL          string
	Domain       string
	Keyword      string
	CountryCode  string
	LanguageCode string
	Depth        int
	KeywordsOnly bool
}

// NewTarget normalizes req.URL and applies request defaults.
func NewTarget(req Request) (Target, error) {
	raw := strings.TrimSpace(req.URL)
	if raw != "" && !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	pageURL, err := urlutil.Normalize(raw, nil)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	t := Target{
		URL:          pageURL,
		Domain:       urlutil.HostOf(pageURL),
		Keyword:      strings.TrimSpace(req.Keyword),
		CountryCode:  strings.ToLower(strings.TrimSpace(req.CountryCode)),
		LanguageCode: strings.ToLower(strings.TrimSpace(req.LanguageCode)),
		Depth:        req.Depth,
		KeywordsOnly: req.KeywordsOnly,
	}
	if t.KeywordsOnly && t.Keyword == "" {
		return Target{}, ErrKeywordRequired
	}
	if t.CountryCode == "" {
		t.CountryCode = DefaultCountryCode
	}
	if t.LanguageCode == "" {
		t.LanguageCode = DefaultLanguageCode
	}
	switch {
	case t.Depth <= 0:
		t.Depth = DefaultDepth
	case t.Depth > MaxDepth:
		t.Depth = MaxDepth
	}
	return t, nil
}

// Query is the search phrase: the keyword, or the domain without one.
func (t Target) Query() string {
	if t.Keyword != "" {
		return t.Keyword
	}
	return t.Domain
}

func (t Target) cacheKey(provider string) string {
	return strings.Join([]string{
		provider, t.URL, strings.ToLower(t.Keyword), t.CountryCode, t.LanguageCode,
		fmt.Sprint(t.Depth), fmt.Sprint(t.KeywordsOnly),
	}, "|")
}

// Response is the unified report. Provider sections are nil when the
// provider was not requested or failed; failures are listed in Errors.
type Response struct {
	URL          string            `json:"url"`
	Domain       string            `json:"domain"`
	TechnicalSEO *PerformanceResult `json:"technicalSeo,omitempty"`
	Authority    *AuthorityResult   `json:"authority,omitempty"`
	SERP         *SERPResult        `json:"serp,omitempty"`
	DataForSEO   *DataForSEOResult  `json:"dataForSeo,omitempty"`
	Content      *ContentResult     `json:"content,omitempty"`
	FAQs         *FAQResult         `json:"faqs,omitempty"`
	Keywords     *KeywordsResult    `json:"keywords,omitempty"`
	Issues       *Issues            `json:"issues,omitempty"`
	IssuesGrowth map[string]float64 `json:"issuesGrowth,omitempty"`
	InfoPanel    *InfoPanel         `json:"infoPanel,omitempty"`
	Errors       map[string]string  `json:"_errors"`
	Meta         Meta               `json:"_meta"`
}

// Meta describes how the report was assembled.
type Meta struct {
	StartedAt    time.Time        `json:"startedAt"`
	DurationMs   int64            `json:"durationMs"`
	Providers    []string         `json:"providers"`
	Timings      map[string]int64 `json:"timings"`
	CacheHits    []string         `json:"cacheHits"`
	KeywordsOnly bool             `json:"keywordsOnly"`
}

// PerformanceResult is a Lighthouse run from PageSpeed Insights.
type PerformanceResult struct {
	Strategy      string             `json:"strategy"`
	Scores        map[string]int     `json:"scores"`
	FailingAudits []Audit            `json:"failingAudits"`
	Vitals        map[string]float64 `json:"vitals"`
}

// Audit is one Lighthouse audit below the passing score.
type Audit struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Score        float64 `json:"score"`
	DisplayValue string  `json:"displayValue,omitempty"`
}

// AuthorityResult is the domain's OpenPageRank entry.
type AuthorityResult struct {
	Domain          string  `json:"domain"`
	PageRank        float64 `json:"pageRank"`
	PageRankInteger int     `json:"pageRankInteger"`
	Rank            int64   `json:"rank,omitempty"`
}

// SERPResult is one Google results page for Target.Query.
type SERPResult struct {
	Query           string      `json:"query"`
	Position        int         `json:"position"`
	Organic         []SERPEntry `json:"organic"`
	PeopleAlsoAsk   []Question  `json:"peopleAlsoAsk"`
	RelatedSearches []string    `json:"relatedSearches"`
}

// SERPEntry is one organic result.
type SERPEntry struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet,omitempty"`
}

// Question is a "people also ask" box.
type Question struct {
	Question string `json:"question"`
	Snippet  string `json:"snippet,omitempty"`
	Link     string `json:"link,omitempty"`
}

// DataForSEOResult holds the backlink summary and keyword ideas.
type DataForSEOResult struct {
	Backlinks *BacklinkSummary `json:"backlinks,omitempty"`
	Keywords  []KeywordIdea    `json:"keywords,omitempty"`
}

// BacklinkSummary counts links pointing at the domain.
type BacklinkSummary struct {
	Backlinks        int64  `json:"backlinks"`
	ReferringDomains int64  `json:"referringDomains"`
	Rank             int    `json:"rank,omitempty"`
	Source           string `json:"source"`
}

// Empty reports whether the summary carries no link counts.
func (b *BacklinkSummary) Empty() bool {
	return b == nil || (b.Backlinks == 0 && b.ReferringDomains == 0)
}

// KeywordIdea is a related search term with its market data.
type KeywordIdea struct {
	Keyword          string  `json:"keyword"`
	SearchVolume     int64   `json:"searchVolume"`
	Competition      float64 `json:"competition"`
	CompetitionLevel string  `json:"competitionLevel,omitempty"`
	CPC              float64 `json:"cpc"`
	Difficulty       int     `json:"difficulty,omitempty"`
}

// ContentResult is the on-page read of Target.URL.
type ContentResult struct {
	URL         string      `json:"url"`
	StatusCode  int         `json:"statusCode"`
	Source      string      `json:"source"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Canonical   string      `json:"canonical,omitempty"`
	Lang        string      `json:"lang,omitempty"`
	WordCount   int         `json:"wordCount"`
	Method      string      `json:"method"`
	H1          []string    `json:"h1"`
	H2Count     int         `json:"h2Count"`
	Links       LinkCounts  `json:"links"`
	Images      ImageCounts `json:"images"`
	TopTerms    []TermCount `json:"topTerms"`

	// Text is the extracted body, used for keyword presence.
	Text string `json:"-"`
}

// LinkCounts splits anchors by host.
type LinkCounts struct {
	Internal int `json:"internal"`
	External int `json:"external"`
}

// ImageCounts counts <img> tags and those without alt text.
type ImageCounts struct {
	Total      int `json:"total"`
	MissingAlt int `json:"missingAlt"`
}

// TermCount is a word and its frequency in the page body.
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// FAQResult is a generated question list.
type FAQResult struct {
	Topic     string   `json:"topic"`
	Items     []FAQ    `json:"items"`
	Citations []string `json:"citations,omitempty"`
}

// FAQ is one question with its answer.
type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// KeywordsResult ranks keyword opportunities for the page.
type KeywordsResult struct {
	Seed          string               `json:"seed,omitempty"`
	Source        string               `json:"source"`
	Opportunities []KeywordOpportunity `json:"opportunities"`
}

// KeywordOpportunity is a keyword and whether the page already targets it.
type KeywordOpportunity struct {
	Keyword      string  `json:"keyword"`
	SearchVolume int64   `json:"searchVolume,omitempty"`
	Competition  float64 `json:"competition,omitempty"`
	CPC          float64 `json:"cpc,omitempty"`
	Difficulty   int     `json:"difficulty,omitempty"`
	Occurrences  int     `json:"occurrences,omitempty"`
	OnPage       bool    `json:"onPage"`
}

// Issues counts problems found across providers.
type Issues struct {
	FailingAudits      int `json:"failingAudits"`
	MissingTitle       int `json:"missingTitle"`
	MissingDescription int `json:"missingDescription"`
	ThinContent        int `json:"thinContent"`
	LowAuthority       int `json:"lowAuthority"`
	Total              int `json:"total"`
}

// InfoPanel summarizes domain authority for display.
type InfoPanel struct {
	Domain           string  `json:"domain"`
	PageRank         float64 `json:"pageRank"`
	GlobalRank       int64   `json:"globalRank,omitempty"`
	AuthorityLevel   string  `json:"authorityLevel"`
	Backlinks        int64   `json:"backlinks,omitempty"`
	ReferringDomains int64   `json:"referringDomains,omitempty"`
}
