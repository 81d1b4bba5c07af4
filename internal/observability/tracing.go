package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName identifies spans from this service.
const TracerName = "github.com/jonesrussell/seoscan"

// Tracer starts the service's spans.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer uses the global tracer provider.
func NewTracer() *Tracer {
	return &Tracer{tracer: otel.Tracer(TracerName)}
}

// ScanSpan covers one scan run. Caller ends the span.
//
//nolint:spancheck // span is returned to caller who manages its lifecycle
func (t *Tracer) ScanSpan(ctx context.Context, scanID, hostname string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "scan.run",
		trace.WithAttributes(
			attribute.String("scan.id", scanID),
			attribute.String("scan.hostname", hostname),
		),
	)
}

// PageSpan covers fetching and extracting one candidate. Caller ends the span.
//
//nolint:spancheck // span is returned to caller who manages its lifecycle
func (t *Tracer) PageSpan(ctx context.Context, pageURL, category string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "scan.page",
		trace.WithAttributes(
			attribute.String("page.url", pageURL),
			attribute.String("page.category", category),
		),
	)
}

// ProviderSpan covers one SEO provider call. Caller ends the span.
//
//nolint:spancheck // span is returned to caller who manages its lifecycle
func (t *Tracer) ProviderSpan(ctx context.Context, provider, target string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "seo.provider."+provider,
		trace.WithAttributes(
			attribute.String("seo.provider", provider),
			attribute.String("seo.target", target),
		),
	)
}

// RecordError marks span failed when err is non-nil.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSuccess marks span ok.
func SetSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "success")
}
