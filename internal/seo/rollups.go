package seo

import "math"

const (
	thinContentWords  = 300
	lowAuthorityScore = 3.0
	highAuthority     = 6.0
)

// issueBaselines are the counts a typical small site shows; growth is
// reported against them.
var issueBaselines = map[string]int{
	"failingAudits":      8,
	"missingTitle":       1,
	"missingDescription": 1,
	"thinContent":        1,
	"lowAuthority":       1,
	"total":              12,
}

// BuildIssues counts problems in whichever sections are present.
func BuildIssues(r *Response) *Issues {
	issues := &Issues{}
	if r.TechnicalSEO != nil {
		issues.FailingAudits = len(r.TechnicalSEO.FailingAudits)
	}
	if r.Content != nil {
		if r.Content.Title == "" {
			issues.MissingTitle = 1
		}
		if r.Content.Description == "" {
			issues.MissingDescription = 1
		}
		if r.Content.WordCount < thinContentWords {
			issues.ThinContent = 1
		}
	}
	if r.Authority != nil && r.Authority.PageRank < lowAuthorityScore {
		issues.LowAuthority = 1
	}
	issues.Total = issues.FailingAudits + issues.MissingTitle + issues.MissingDescription +
		issues.ThinContent + issues.LowAuthority
	return issues
}

// IssuesGrowth is the percentage change of each count against its baseline,
// rounded to one decimal.
func IssuesGrowth(issues *Issues) map[string]float64 {
	current := map[string]int{
		"failingAudits":      issues.FailingAudits,
		"missingTitle":       issues.MissingTitle,
		"missingDescription": issues.MissingDescription,
		"thinContent":        issues.ThinContent,
		"lowAuthority":       issues.LowAuthority,
		"total":              issues.Total,
	}
	growth := make(map[string]float64, len(current))
	for name, n := range current {
		base := issueBaselines[name]
		pct := float64(n-base) / float64(base) * 100
		growth[name] = math.Round(pct*10) / 10
	}
	return growth
}

// BuildInfoPanel summarizes authority; nil when authority is missing.
func BuildInfoPanel(r *Response) *InfoPanel {
	if r.Authority == nil {
		return nil
	}
	panel := &InfoPanel{
		Domain:         r.Domain,
		PageRank:       r.Authority.PageRank,
		GlobalRank:     r.Authority.Rank,
		AuthorityLevel: AuthorityLevel(r.Authority.PageRank),
	}
	if r.DataForSEO != nil && r.DataForSEO.Backlinks != nil {
		panel.Backlinks = r.DataForSEO.Backlinks.Backlinks
		panel.ReferringDomains = r.DataForSEO.Backlinks.ReferringDomains
	}
	return panel
}

// AuthorityLevel buckets an OpenPageRank score (0-10).
func AuthorityLevel(pageRank float64) string {
	switch {
	case pageRank < lowAuthorityScore:
		return "low"
	case pageRank < highAuthority:
		return "medium"
	default:
		return "high"
	}
}
