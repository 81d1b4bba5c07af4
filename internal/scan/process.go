package scan

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	infralogger "github.com/jonesrussell/seoscan/infrastructure/logger"
	"github.com/jonesrussell/seoscan/internal/extract"
	"github.com/jonesrussell/seoscan/internal/observability"
	"github.com/jonesrussell/seoscan/internal/plagiarism"
	"github.com/jonesrussell/seoscan/internal/store"
	"github.com/jonesrussell/seoscan/internal/urlutil"
)

// ErrHostNotAllowed rejects a candidate outside the scanned host.
var ErrHostNotAllowed = errors.New("candidate host not allowed")

const (
	categoryBlog = "blog"
	categoryPage = "page"
)

type candidate struct {
	url      string
	category string
}

type processStats struct {
	processed        int
	failed           int
	plagiarismChecks int
}

// processAll fetches and extracts every candidate on a bounded pool. Failed
// candidates are logged and left out.
func (o *Orchestrator) processAll(ctx context.Context, scan *store.Scan, blogs, pages []string, log infralogger.Logger) (blogItems, pageItems []store.ContentItem, stats processStats) {
	candidates := make([]candidate, 0, len(blogs)+len(pages))
	for _, u := range blogs {
		candidates = append(candidates, candidate{url: u, category: categoryBlog})
	}
	for _, u := range pages {
		candidates = append(candidates, candidate{url: u, category: categoryPage})
	}

	budget := plagiarism.NewBudget(o.cfg.PlagiarismBudget)
	results := make([]*store.ContentItem, len(candidates))

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(o.cfg.Workers)
	for i, c := range candidates {
		g.Go(func() error {
			item, err := o.process(ctx, scan, c, budget, log)
			if err != nil {
				log.Warn("Candidate skipped",
					infralogger.URL(c.url),
					infralogger.String("category", c.category),
					infralogger.Error(err),
				)
				mu.Lock()
				stats.failed++
				mu.Unlock()
				return nil
			}
			results[i] = item
			return nil
		})
	}
	_ = g.Wait()

	blogItems, pageItems = []store.ContentItem{}, []store.ContentItem{}
	for i, item := range results {
		if item == nil {
			continue
		}
		stats.processed++
		if candidates[i].category == categoryBlog {
			blogItems = append(blogItems, *item)
		} else {
			pageItems = append(pageItems, *item)
		}
	}
	stats.plagiarismChecks = budget.Used()
	return blogItems, pageItems, stats
}

func (o *Orchestrator) process(ctx context.Context, scan *store.Scan, c candidate, budget *plagiarism.Budget, log infralogger.Logger) (item *store.ContentItem, err error) {
	ctx, span := o.tracer.PageSpan(ctx, c.url, c.category)
	defer func() {
		observability.RecordError(span, err)
		span.End()
	}()

	if !urlutil.URLAllowed(c.url, scan.Hostname, scan.AllowSubdomains) {
		o.metrics.PagesProcessed.WithLabelValues("rejected", "").Inc()
		return nil, fmt.Errorf("%w: %s", ErrHostNotAllowed, c.url)
	}

	page, err := o.fetcher.Fetch(ctx, c.url)
	if err != nil {
		o.metrics.PagesProcessed.WithLabelValues("fetch_error", "").Inc()
		return nil, fmt.Errorf("fetch: %w", err)
	}
	if page.URL != "" && !urlutil.URLAllowed(page.URL, scan.Hostname, scan.AllowSubdomains) {
		o.metrics.PagesProcessed.WithLabelValues("rejected", string(page.Source)).Inc()
		return nil, fmt.Errorf("%w: %s", ErrHostNotAllowed, page.URL)
	}

	res, err := extract.Extract(page.HTML, c.url)
	if err != nil {
		o.metrics.PagesProcessed.WithLabelValues("extract_error", string(page.Source)).Inc()
		return nil, fmt.Errorf("extract: %w", err)
	}
	o.metrics.PagesProcessed.WithLabelValues("ok", string(page.Source)).Inc()

	item = &store.ContentItem{
		URL:         c.url,
		Title:       res.Title,
		Description: res.Description,
		WordCount:   res.WordCount,
		ContentHTML: res.ContentHTML,
	}
	o.checkPlagiarism(ctx, item, res.Text, budget, log)
	return item, nil
}

// checkPlagiarism spends one budget unit per attempted check, successful or not.
func (o *Orchestrator) checkPlagiarism(ctx context.Context, item *store.ContentItem, text string, budget *plagiarism.Budget, log infralogger.Logger) {
	if o.checker == nil {
		return
	}
	if item.WordCount < o.cfg.MinWords || utf8.RuneCountInString(item.ContentHTML) < o.cfg.MinHTML {
		return
	}
	if !budget.TryConsume() {
		o.metrics.PlagiarismChecks.WithLabelValues("budget_exhausted").Inc()
		return
	}

	report, err := o.checker.Check(ctx, item.URL, text)
	if err != nil {
		o.metrics.PlagiarismChecks.WithLabelValues("error").Inc()
		log.Warn("Plagiarism check failed", infralogger.URL(item.URL), infralogger.Error(err))
		return
	}
	o.metrics.PlagiarismChecks.WithLabelValues("ok").Inc()

	score := report.Score
	checkedAt := report.CheckedAt
	item.Plagiarism = &score
	item.PlagiarismCheckedAt = &checkedAt
	item.PlagiarismSources = make([]store.PlagiarismSource, 0, len(report.Sources))
	for _, s := range report.Sources {
		item.PlagiarismSources = append(item.PlagiarismSources, store.PlagiarismSource{
			URL:          s.URL,
			Title:        s.Title,
			Percent:      s.Percent,
			MatchedWords: s.MatchedWords,
		})
	}
}

// SelectTop returns the n best items: more words first, then the shorter
// URL path, then the lexically smaller URL.
func SelectTop(items []store.ContentItem, n int) []store.ContentItem {
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b store.ContentItem) int {
		if c := cmp.Compare(b.WordCount, a.WordCount); c != 0 {
			return c
		}
		if c := cmp.Compare(urlutil.PathLength(a.URL), urlutil.PathLength(b.URL)); c != 0 {
			return c
		}
		return strings.Compare(a.URL, b.URL)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	if sorted == nil {
		sorted = []store.ContentItem{}
	}
	return sorted
}
