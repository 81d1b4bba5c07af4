package observability_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/seoscan/internal/observability"
)

func TestNewMetrics_RegistersOnGivenRegistry(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)

	m.ScansEnqueued.WithLabelValues("created").Inc()
	m.ScansEnqueued.WithLabelValues("created").Inc()
	m.ProviderRequests.WithLabelValues("serp", "ok").Inc()

	assert.InDelta(t, 2, testutil.ToFloat64(m.ScansEnqueued.WithLabelValues("created")), 0)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "seoscan_scan_enqueued_total")
	assert.Contains(t, names, "seoscan_seo_provider_requests_total")
}

func TestNewMetrics_TwoRegistries(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() {
		observability.NewMetrics(prometheus.NewRegistry())
		observability.NewMetrics(prometheus.NewRegistry())
	})
}

func TestTracer_NoopProvider(t *testing.T) {
	t.Parallel()

	tracer := observability.NewTracer()
	ctx, span := tracer.ScanSpan(context.Background(), "scan-1", "example.com")
	require.NotNil(t, ctx)
	observability.RecordError(span, errors.New("boom"))
	observability.RecordError(span, nil)
	observability.SetSuccess(span)
	span.End()
}
