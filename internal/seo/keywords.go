package seo

import (
	"errors"
	"sort"
	"strings"
)

// ErrNoKeywordData is recorded when neither keyword ideas nor page content
// were available.
var ErrNoKeywordData = errors.New("no keyword ideas or page content to derive keywords from")

const (
	keywordSourceDataForSEO = "dataforseo"
	keywordSourceContent    = "content"
)

// BuildKeywords ranks keyword opportunities. Keyword ideas are checked
// against the page text and the ones the page misses come first, by
// volume. Without ideas the page's own top terms are reported.
func BuildKeywords(t Target, dfs *DataForSEOResult, content *ContentResult) (*KeywordsResult, error) {
	if dfs != nil && len(dfs.Keywords) > 0 {
		return fromIdeas(t, dfs.Keywords, content), nil
	}
	if content != nil && len(content.TopTerms) > 0 {
		return fromTerms(t, content), nil
	}
	return nil, ErrNoKeywordData
}

func fromIdeas(t Target, ideas []KeywordIdea, content *ContentResult) *KeywordsResult {
	var haystack string
	if content != nil {
		haystack = strings.ToLower(strings.Join(
			append([]string{content.Title, content.Description, content.Text}, content.H1...), " "))
	}

	opps := make([]KeywordOpportunity, 0, len(ideas))
	for _, idea := range ideas {
		kw := strings.ToLower(strings.TrimSpace(idea.Keyword))
		n := 0
		if haystack != "" && kw != "" {
			n = strings.Count(haystack, kw)
		}
		opps = append(opps, KeywordOpportunity{
			Keyword:      idea.Keyword,
			SearchVolume: idea.SearchVolume,
			Competition:  idea.Competition,
			CPC:          idea.CPC,
			Difficulty:   idea.Difficulty,
			Occurrences:  n,
			OnPage:       n > 0,
		})
	}
	sort.SliceStable(opps, func(i, j int) bool {
		if opps[i].OnPage != opps[j].OnPage {
			return !opps[i].OnPage
		}
		return opps[i].SearchVolume > opps[j].SearchVolume
	})
	if len(opps) > t.Depth {
		opps = opps[:t.Depth]
	}
	return &KeywordsResult{Seed: t.Keyword, Source: keywordSourceDataForSEO, Opportunities: opps}
}

func fromTerms(t Target, content *ContentResult) *KeywordsResult {
	terms := content.TopTerms
	if len(terms) > t.Depth {
		terms = terms[:t.Depth]
	}
	opps := make([]KeywordOpportunity, 0, len(terms))
	for _, term := range terms {
		opps = append(opps, KeywordOpportunity{Keyword: term.Term, Occurrences: term.Count, OnPage: true})
	}
	return &KeywordsResult{Seed: t.Keyword, Source: keywordSourceContent, Opportunities: opps}
}
