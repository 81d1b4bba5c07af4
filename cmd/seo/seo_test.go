package seo_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	cmdseo "github.com/jonesrussell/seoscan/cmd/seo"
	"github.com/jonesrussell/seoscan/infrastructure/sse"
	"github.com/jonesrussell/seoscan/internal/seo"
)

func TestRenderSummary(t *testing.T) {
	t.Parallel()

	resp := &seo.Response{
		URL:    "https://example.com/",
		Domain: "example.com",
		Errors: map[string]string{"serp": "provider not configured"},
		Meta: seo.Meta{
			DurationMs: 42,
			Timings:    map[string]int64{"performance": 40, "content": 7},
			CacheHits:  []string{"content"},
		},
	}

	var buf bytes.Buffer
	cmdseo.RenderSummary(&buf, resp)

	out := buf.String()
	assert.Contains(t, out, "https://example.com/ (example.com) in 42ms")
	assert.Contains(t, out, "performance")
	assert.Contains(t, out, "provider not configured")
	assert.Contains(t, out, "yes")
}

func TestProgressPrinter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	emit := cmdseo.ProgressPrinter(&buf)

	emit(sse.Event{Type: seo.EventProviderStart, Data: seo.ProviderEvent{Provider: "serp"}})
	emit(sse.Event{Type: seo.EventProviderDone, Data: seo.ProviderEvent{Provider: "serp", DurationMs: 12}})
	emit(sse.Event{Type: seo.EventProviderError, Data: seo.ProviderEvent{Provider: "authority", Error: "rate limited"}})
	emit(sse.Event{Type: seo.EventComplete, Data: &seo.Response{}})

	assert.Equal(t,
		"provider:start serp\nprovider:done serp (12ms)\nprovider:error authority: rate limited\ncomplete\n",
		buf.String())
}
