package scan

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	infraevents "github.com/jonesrussell/seoscan/infrastructure/events"
	infralogger "github.com/jonesrussell/seoscan/infrastructure/logger"
	"github.com/jonesrussell/seoscan/internal/crawl"
	"github.com/jonesrussell/seoscan/internal/discovery"
	"github.com/jonesrussell/seoscan/internal/observability"
	"github.com/jonesrussell/seoscan/internal/store"
)

// Recovery values recorded in diagnostics when discovery found no blogs.
const (
	RecoveryNone     = ""
	RecoveryInferred = "inferred_from_pages"
	RecoveryCrawl    = "crawl"
)

// ErrPanic wraps a panic recovered from a scan.
var ErrPanic = errors.New("scan panicked")

func (o *Orchestrator) run(e *entry, key store.Key) {
	defer o.wg.Done()
	defer o.release(key, e)

	scan := e.scan
	ctx, cancel := context.WithTimeout(o.runCtx, o.cfg.ScanTimeout)
	defer cancel()

	ctx, span := o.tracer.ScanSpan(ctx, scan.ID, scan.Hostname)
	defer span.End()

	log := o.log.With(infralogger.ScanID(scan.ID), infralogger.Hostname(scan.Hostname))
	start := time.Now()
	o.metrics.ScansRunning.Inc()
	defer o.metrics.ScansRunning.Dec()

	err := o.execute(ctx, e, log)
	o.metrics.ScanDuration.Observe(time.Since(start).Seconds())
	if err == nil {
		observability.SetSuccess(span)
		o.metrics.ScansFinished.WithLabelValues(string(store.StatusComplete)).Inc()
		return
	}

	observability.RecordError(span, err)
	o.metrics.ScansFinished.WithLabelValues(string(store.StatusFailed)).Inc()
	o.fail(ctx, e, err, log)
}

// execute runs the scan with a panic boundary.
func (o *Orchestrator) execute(ctx context.Context, e *entry, log infralogger.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Scan panicked",
				infralogger.Any("panic", r),
				infralogger.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return o.perform(ctx, e, log)
}

func (o *Orchestrator) perform(ctx context.Context, e *entry, log infralogger.Logger) error {
	scan := e.scan
	running, err := o.store.StartScan(ctx, scan.ID)
	if err != nil {
		return fmt.Errorf("start scan: %w", err)
	}
	o.setStatus(e, store.StatusRunning)
	o.publish(ctx, infraevents.ScanRunning, running, nil, "")

	if err = o.patchSnapshot(ctx, &scan, store.SnapshotPatch{
		Status:      store.StatusRunning,
		Diagnostics: map[string]any{"stage": "discovery"},
	}); err != nil {
		return err
	}

	disc, err := o.discoverer.DiscoverWithLimit(ctx, scan.WebsiteURL, scan.AllowSubdomains, o.cfg.MaxCandidates)
	if err != nil {
		return fmt.Errorf("discovery: %w", err)
	}

	blogs, pages, recovery := o.recoverBlogs(ctx, &scan, disc, log)
	blogs = capURLs(blogs, o.cfg.MaxCandidates)
	pages = capURLs(pages, o.cfg.MaxCandidates)

	diagnostics := disc.Diagnostics.Map()
	diagnostics["stage"] = "content"
	diagnostics["recovery"] = recovery
	diagnostics["blogCandidates"] = len(blogs)
	diagnostics["pageCandidates"] = len(pages)
	if _, err = o.store.UpdateScan(ctx, scan.ID, diagnostics); err != nil {
		return fmt.Errorf("update scan: %w", err)
	}
	if err = o.patchSnapshot(ctx, &scan, store.SnapshotPatch{Diagnostics: diagnostics}); err != nil {
		return err
	}

	blogItems, pageItems, stats := o.processAll(ctx, &scan, blogs, pages, log)
	if err = ctx.Err(); err != nil {
		return fmt.Errorf("scan deadline: %w", err)
	}

	selectedBlogs := SelectTop(blogItems, o.cfg.TopN)
	selectedPages := SelectTop(pageItems, o.cfg.TopN)

	final := map[string]any{
		"stage":            "complete",
		"usedFallback":     disc.Diagnostics.UsedFallback,
		"recovery":         recovery,
		"blogsSelected":    len(selectedBlogs),
		"pagesSelected":    len(selectedPages),
		"processed":        stats.processed,
		"failed":           stats.failed,
		"plagiarismChecks": stats.plagiarismChecks,
	}
	if err = o.patchSnapshot(ctx, &scan, store.SnapshotPatch{
		Status:      store.StatusComplete,
		Diagnostics: final,
		Blogs:       selectedBlogs,
		Pages:       selectedPages,
	}); err != nil {
		return err
	}

	done, err := o.store.CompleteScan(ctx, scan.ID, final)
	if err != nil {
		return fmt.Errorf("complete scan: %w", err)
	}
	o.setStatus(e, store.StatusComplete)
	o.publish(ctx, infraevents.ScanComplete, done, final, "")

	log.Info("Scan complete",
		infralogger.Int("blogs", len(selectedBlogs)),
		infralogger.Int("pages", len(selectedPages)),
		infralogger.Int("processed", stats.processed),
		infralogger.Int("failed", stats.failed),
		infralogger.Int("plagiarism_checks", stats.plagiarismChecks),
		infralogger.String("recovery", recovery),
	)
	return nil
}

// fail records err on the snapshot and the scan. It uses a fresh deadline so
// a scan that timed out still gets its failure written.
func (o *Orchestrator) fail(ctx context.Context, e *entry, cause error, log infralogger.Logger) {
	scan := e.scan
	msg := cause.Error()
	log.Error("Scan failed", infralogger.Error(cause))

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalWriteTimeout)
	defer cancel()

	diagnostics := map[string]any{"stage": "failed", "error": msg}
	if err := o.patchSnapshot(writeCtx, &scan, store.SnapshotPatch{
		Status:      store.StatusFailed,
		Diagnostics: diagnostics,
		Blogs:       []store.ContentItem{},
		Pages:       []store.ContentItem{},
	}); err != nil {
		log.Error("Failed to write failed snapshot", infralogger.Error(err))
	}

	failed, err := o.store.FailScan(writeCtx, scan.ID, msg, diagnostics)
	if err != nil {
		log.Error("Failed to mark scan failed", infralogger.Error(err))
		failed = &scan
	}
	o.setStatus(e, store.StatusFailed)
	o.publish(writeCtx, infraevents.ScanFailed, failed, diagnostics, msg)
}

func (o *Orchestrator) patchSnapshot(ctx context.Context, scan *store.Scan, patch store.SnapshotPatch) error {
	patch.Mode = string(scan.Mode)
	patch.AllowSubdomains = scan.AllowSubdomains
	patch.ScanID = scan.ID
	if _, err := o.store.UpsertSnapshot(ctx, scan.Hostname, patch); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// recoverBlogs escalates when discovery found no blogs: first blog-like
// paths among the pages, then a direct crawl of the host.
func (o *Orchestrator) recoverBlogs(ctx context.Context, scan *store.Scan, disc *discovery.Result, log infralogger.Logger) (blogs, pages []string, recovery string) {
	blogs, pages = disc.BlogURLs, disc.PageURLs
	if len(blogs) > 0 {
		return blogs, pages, RecoveryNone
	}

	inferred, rest := splitBlogLike(pages)
	if len(inferred) > 0 {
		o.metrics.Recoveries.WithLabelValues(RecoveryInferred).Inc()
		log.Info("Inferred blog candidates from pages", infralogger.Int("count", len(inferred)))
		return discovery.Rank(inferred, discovery.KindBlog), rest, RecoveryInferred
	}

	if o.crawler == nil {
		return blogs, pages, RecoveryNone
	}
	res, err := o.crawler.Crawl(ctx, scan.Hostname, crawl.Options{
		Seed:            scan.WebsiteURL,
		MaxPages:        o.cfg.RecoveryPages,
		AllowSubdomains: scan.AllowSubdomains,
	})
	if err != nil {
		log.Warn("Recovery crawl failed", infralogger.Error(err))
		return blogs, pages, RecoveryNone
	}

	known := make(map[string]struct{}, len(pages))
	for _, p := range pages {
		known[p] = struct{}{}
	}
	var found []string
	for _, u := range res.URLs {
		if _, dup := known[u]; dup {
			continue
		}
		if discovery.IsBlogLike(u) {
			found = append(found, u)
		}
	}
	if len(found) == 0 {
		return blogs, pages, RecoveryNone
	}

	o.metrics.Recoveries.WithLabelValues(RecoveryCrawl).Inc()
	log.Info("Recovered blog candidates by crawl",
		infralogger.Int("count", len(found)),
		infralogger.Int("visited", res.Visited),
	)
	return discovery.Rank(found, discovery.KindBlog), pages, RecoveryCrawl
}

func splitBlogLike(urls []string) (blogLike, rest []string) {
	rest = make([]string, 0, len(urls))
	for _, u := range urls {
		if discovery.IsBlogLike(u) {
			blogLike = append(blogLike, u)
			continue
		}
		rest = append(rest, u)
	}
	return blogLike, rest
}

func capURLs(urls []string, limit int) []string {
	if len(urls) > limit {
		return urls[:limit]
	}
	return urls
}
