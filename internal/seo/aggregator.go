package seo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	infralogger "github.com/jonesrussell/seoscan/infrastructure/logger"
	"github.com/jonesrussell/seoscan/infrastructure/sse"
	"github.com/jonesrussell/seoscan/internal/observability"
)

// Stream event types.
const (
	EventProviderStart = "provider:start"
	EventProviderDone  = "provider:done"
	EventProviderError = "provider:error"
	EventComplete      = "complete"
)

// uncached providers read live state on every request.
var uncached = map[string]bool{ProviderContent: true}

// ProviderEvent is the payload of provider:* stream events.
type ProviderEvent struct {
	Provider   string `json:"provider"`
	DurationMs int64  `json:"durationMs,omitempty"`
	Cached     bool   `json:"cached,omitempty"`
	Error      string `json:"error,omitempty"`
	Data       any    `json:"data,omitempty"`
}

// Emit receives stream events. It may be nil.
type Emit func(sse.Event)

// Aggregator runs providers concurrently and merges their answers.
type Aggregator struct {
	providers map[string]Provider
	backlinks Provider
	limiters  map[string]*rate.Limiter
	cache     *Cache
	metrics   *observability.Metrics
	tracer    *observability.Tracer
	log       infralogger.Logger
	now       func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithBacklinkFallback sets the provider consulted when the DataForSEO
// backlink summary is empty.
func WithBacklinkFallback(p Provider) Option {
	return func(a *Aggregator) { a.backlinks = p }
}

// WithCache enables the provider response cache.
func WithCache(c *Cache) Option {
	return func(a *Aggregator) { a.cache = c }
}

// WithRateLimits installs a token bucket per provider name.
func WithRateLimits(limits map[string]RateLimit) Option {
	return func(a *Aggregator) {
		for name, l := range limits {
			if l.RPS > 0 {
				a.limiters[name] = rate.NewLimiter(rate.Limit(l.RPS), max(l.Burst, 1))
			}
		}
	}
}

// WithMetrics records provider calls on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// WithTracer sets the span source.
func WithTracer(t *observability.Tracer) Option {
	return func(a *Aggregator) { a.tracer = t }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// NewAggregator indexes providers by name. Later duplicates win.
func NewAggregator(providers []Provider, log infralogger.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		providers: make(map[string]Provider, len(providers)),
		limiters:  make(map[string]*rate.Limiter),
		log:       log.With(infralogger.Component("seo")),
		now:       time.Now,
	}
	for _, p := range providers {
		a.providers[p.Name()] = p
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.tracer == nil {
		a.tracer = observability.NewTracer()
	}
	return a
}

// Configured lists the provider names this aggregator can serve, in
// request order.
func (a *Aggregator) Configured() []string {
	names := make([]string, 0, len(AllProviders))
	for _, name := range AllProviders {
		if a.available(name) {
			names = append(names, name)
		}
	}
	return names
}

func (a *Aggregator) available(name string) bool {
	if name == ProviderKeywords {
		return true
	}
	_, ok := a.providers[name]
	return ok
}

// resolve picks the providers to run. Names that cannot run are returned
// with the reason.
func (a *Aggregator) resolve(req Request) ([]string, map[string]string) {
	skipped := make(map[string]string)
	if req.KeywordsOnly {
		names := []string{ProviderKeywords}
		if a.available(ProviderDataForSEO) {
			names = []string{ProviderDataForSEO, ProviderKeywords}
		} else {
			skipped[ProviderDataForSEO] = ErrNotConfigured.Error()
		}
		return names, skipped
	}
	if len(req.Providers) == 0 {
		return a.Configured(), skipped
	}

	names := []string{}
	for _, raw := range req.Providers {
		name := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case name == "" || slices.Contains(names, name):
		case !slices.Contains(AllProviders, name):
			skipped[name] = ErrUnknownProvider.Error()
		case !a.available(name):
			skipped[name] = ErrNotConfigured.Error()
		default:
			names = append(names, name)
		}
	}
	return names, skipped
}

type outcome struct {
	value   any
	cached  bool
	err     error
	elapsed time.Duration
}

// Aggregate builds the report for req. Only request validation fails the
// call; provider failures are reported in Response.Errors. When emit is
// non-nil it receives provider events and a final complete event.
func (a *Aggregator) Aggregate(ctx context.Context, req Request, emit Emit) (*Response, error) {
	target, err := NewTarget(req)
	if err != nil {
		return nil, err
	}
	send := a.sender(emit)

	started := a.now()
	names, skipped := a.resolve(req)
	resp := &Response{
		URL:    target.URL,
		Domain: target.Domain,
		Errors: skipped,
		Meta: Meta{
			StartedAt:    started.UTC(),
			Providers:    names,
			Timings:      make(map[string]int64),
			CacheHits:    []string{},
			KeywordsOnly: target.KeywordsOnly,
		},
	}

	var (
		mu       sync.Mutex
		outcomes = make(map[string]outcome, len(names))
		g        errgroup.Group
	)
	for _, name := range names {
		p, ok := a.providers[name]
		if !ok {
			continue
		}
		g.Go(func() error {
			out := a.call(ctx, p, target, send)
			mu.Lock()
			outcomes[name] = out
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for name, out := range outcomes {
		a.record(resp, name, out)
		if out.err == nil {
			resp.set(out.value)
		}
	}

	if slices.Contains(names, ProviderDataForSEO) && !target.KeywordsOnly && a.backlinks != nil &&
		needsBacklinkFallback(resp.DataForSEO) {
		out := a.call(ctx, a.backlinks, target, send)
		a.record(resp, StepBacklinks, out)
		if summary, ok := out.value.(*BacklinkSummary); ok && out.err == nil {
			if resp.DataForSEO == nil {
				resp.DataForSEO = &DataForSEOResult{}
			}
			resp.DataForSEO.Backlinks = summary
		}
	}

	if slices.Contains(names, ProviderKeywords) {
		a.record(resp, ProviderKeywords, a.keywords(target, resp, send))
	}

	resp.Issues = BuildIssues(resp)
	resp.IssuesGrowth = IssuesGrowth(resp.Issues)
	resp.InfoPanel = BuildInfoPanel(resp)
	resp.Meta.DurationMs = a.now().Sub(started).Milliseconds()
	slices.Sort(resp.Meta.CacheHits)

	send(EventComplete, resp)
	return resp, nil
}

func (a *Aggregator) keywords(t Target, resp *Response, send func(string, any)) outcome {
	start := a.now()
	send(EventProviderStart, ProviderEvent{Provider: ProviderKeywords})
	result, err := BuildKeywords(t, resp.DataForSEO, resp.Content)
	out := outcome{value: result, err: err, elapsed: a.now().Sub(start)}
	if err != nil {
		send(EventProviderError, ProviderEvent{Provider: ProviderKeywords, Error: err.Error(), DurationMs: out.elapsed.Milliseconds()})
		return out
	}
	resp.Keywords = result
	send(EventProviderDone, ProviderEvent{Provider: ProviderKeywords, DurationMs: out.elapsed.Milliseconds(), Data: result})
	return out
}

func (a *Aggregator) record(resp *Response, name string, out outcome) {
	resp.Meta.Timings[name] = out.elapsed.Milliseconds()
	if out.cached {
		resp.Meta.CacheHits = append(resp.Meta.CacheHits, name)
	}
	if out.err != nil {
		resp.Errors[name] = out.err.Error()
	}
}

// call runs one provider through cache, rate limiter and tracing.
func (a *Aggregator) call(ctx context.Context, p Provider, t Target, send func(string, any)) outcome {
	name := p.Name()
	start := a.now()
	send(EventProviderStart, ProviderEvent{Provider: name})

	ctx, span := a.tracer.ProviderSpan(ctx, name, t.URL)
	defer span.End()

	key := t.cacheKey(name)
	if a.cache != nil && !uncached[name] {
		if raw, ok := a.cache.Get(key); ok {
			if value, err := p.Decode(raw); err == nil {
				out := outcome{value: value, cached: true, elapsed: a.now().Sub(start)}
				if a.metrics != nil {
					a.metrics.ProviderCacheHit.WithLabelValues(name).Inc()
				}
				observability.SetSuccess(span)
				send(EventProviderDone, ProviderEvent{Provider: name, Cached: true, DurationMs: out.elapsed.Milliseconds(), Data: value})
				return out
			}
		}
	}

	value, err := a.fetch(ctx, p, t)
	out := outcome{value: value, err: err, elapsed: a.now().Sub(start)}
	if a.metrics != nil {
		result := "success"
		if err != nil {
			result = "error"
		}
		a.metrics.ProviderRequests.WithLabelValues(name, result).Inc()
		a.metrics.ProviderDuration.WithLabelValues(name).Observe(out.elapsed.Seconds())
	}

	if err != nil {
		observability.RecordError(span, err)
		a.log.Warn("SEO provider failed",
			infralogger.Provider(name),
			infralogger.URL(t.URL),
			infralogger.Error(err),
		)
		send(EventProviderError, ProviderEvent{Provider: name, Error: err.Error(), DurationMs: out.elapsed.Milliseconds()})
		return out
	}

	observability.SetSuccess(span)
	if a.cache != nil && !uncached[name] {
		a.store(key, name, value)
	}
	send(EventProviderDone, ProviderEvent{Provider: name, DurationMs: out.elapsed.Milliseconds(), Data: value})
	return out
}

func (a *Aggregator) fetch(ctx context.Context, p Provider, t Target) (value any, err error) {
	if lim := a.limiters[p.Name()]; lim != nil {
		if err = lim.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}
	defer func() {
		if r := recover(); r != nil {
			value, err = nil, fmt.Errorf("provider %s panicked: %v", p.Name(), r)
		}
	}()
	return p.Fetch(ctx, t)
}

func (a *Aggregator) store(key, name string, value any) {
	raw, err := json.Marshal(value)
	if err == nil {
		err = a.cache.Set(key, raw)
	}
	if err != nil {
		a.log.Debug("Provider response not cached", infralogger.Provider(name), infralogger.Error(err))
	}
}

// sender serializes emit calls from provider goroutines.
func (a *Aggregator) sender(emit Emit) func(string, any) {
	if emit == nil {
		return func(string, any) {}
	}
	var mu sync.Mutex
	return func(eventType string, data any) {
		mu.Lock()
		defer mu.Unlock()
		emit(sse.Event{Type: eventType, Data: data})
	}
}

func needsBacklinkFallback(r *DataForSEOResult) bool {
	return r == nil || r.Backlinks.Empty()
}

// set stores a provider result in its section.
func (r *Response) set(value any) {
	switch v := value.(type) {
	case *PerformanceResult:
		r.TechnicalSEO = v
	case *AuthorityResult:
		r.Authority = v
	case *SERPResult:
		r.SERP = v
	case *DataForSEOResult:
		r.DataForSEO = v
	case *ContentResult:
		r.Content = v
	case *FAQResult:
		r.FAQs = v
	case *KeywordsResult:
		r.Keywords = v
	}
}

// IsValidationError reports whether err came from request validation.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidURL) || errors.Is(err, ErrKeywordRequired)
}
