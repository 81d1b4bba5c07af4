package scan_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cmdscan "github.com/jonesrussell/seoscan/cmd/scan"
	internalscan "github.com/jonesrussell/seoscan/internal/scan"
	"github.com/jonesrussell/seoscan/internal/store"
)

type sequenceReader struct {
	mu       sync.Mutex
	statuses []store.Status
	errMsg   string
	calls    int
}

func (r *sequenceReader) Status(_ context.Context, scanID string) (*store.Scan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.calls
	if idx >= len(r.statuses) {
		idx = len(r.statuses) - 1
	}
	r.calls++

	scan := &store.Scan{ID: scanID, Status: r.statuses[idx]}
	if r.errMsg != "" {
		scan.Error = &r.errMsg
	}
	return scan, nil
}

type errReader struct{}

func (errReader) Status(context.Context, string) (*store.Scan, error) {
	return nil, store.ErrNotFound
}

func TestWait(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		reader     cmdscan.StatusReader
		wantStatus store.Status
		wantErr    error
	}{
		{
			name:       "completes after running",
			reader:     &sequenceReader{statuses: []store.Status{store.StatusQueued, store.StatusRunning, store.StatusComplete}},
			wantStatus: store.StatusComplete,
		},
		{
			name:       "failed scan",
			reader:     &sequenceReader{statuses: []store.Status{store.StatusRunning, store.StatusFailed}, errMsg: "no content"},
			wantStatus: store.StatusFailed,
			wantErr:    cmdscan.ErrScanFailed,
		},
		{
			name:    "unknown scan",
			reader:  errReader{},
			wantErr: store.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			scan, err := cmdscan.Wait(context.Background(), tt.reader, "scan-1", time.Millisecond)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), err.Error())
			} else {
				require.NoError(t, err)
			}
			if tt.wantStatus != "" {
				require.NotNil(t, scan)
				assert.Equal(t, tt.wantStatus, scan.Status)
			}
		})
	}
}

func TestWait_ContextDeadline(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	reader := &sequenceReader{statuses: []store.Status{store.StatusRunning}}
	_, err := cmdscan.Wait(ctx, reader, "scan-1", 5*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRenderOpportunities(t *testing.T) {
	t.Parallel()

	score := 12
	resp := &internalscan.Response{
		Hostname: "example.com",
		Blogs: []store.ContentItem{
			{URL: "https://example.com/blog/go-tips", Title: "Go Tips", WordCount: 812, Plagiarism: &score},
		},
		Pages: []store.ContentItem{
			{URL: "https://example.com/pricing", Title: "Pricing", WordCount: 240},
		},
		Source: internalscan.Source{ScanID: "scan-1", Status: store.StatusComplete},
	}

	var buf bytes.Buffer
	require.NoError(t, cmdscan.RenderOpportunities(&buf, resp))

	out := buf.String()
	assert.Contains(t, out, "example.com (scan scan-1, complete)")
	assert.Contains(t, out, "https://example.com/blog/go-tips")
	assert.Contains(t, out, "12%")
	assert.Contains(t, out, "https://example.com/pricing")
	assert.NotContains(t, out, "No opportunities found.")
}

func TestRenderOpportunities_Empty(t *testing.T) {
	t.Parallel()

	resp := &internalscan.Response{Hostname: "example.com", Source: internalscan.Source{ScanID: "scan-2", Status: store.StatusComplete}}

	var buf bytes.Buffer
	require.NoError(t, cmdscan.RenderOpportunities(&buf, resp))
	assert.Contains(t, buf.String(), "No opportunities found.")
}
