package plagiarism_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infralogger "github.com/jonesrussell/seoscan/infrastructure/logger"
	"github.com/jonesrussell/seoscan/internal/plagiarism"
)

func TestBudget_ConcurrentConsumers(t *testing.T) {
	t.Parallel()

	b := plagiarism.NewBudget(12)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.TryConsume() {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 12, granted)
	assert.Equal(t, 0, b.Remaining())
	assert.Equal(t, 12, b.Used())
	assert.False(t, b.TryConsume())
}

func TestBudget_Zero(t *testing.T) {
	t.Parallel()

	assert.False(t, plagiarism.NewBudget(0).TryConsume())
	assert.False(t, plagiarism.NewBudget(-3).TryConsume())
}

func TestClient_Check(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "https://example.com/post", body["url"])
		assert.Equal(t, "some draft text", body["text"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"percentPlagiarized":"12.6","checkedAt":"2024-05-01T10:00:00Z",
			"sources":[{"url":"https://copy.example/a","title":"Copy","percent":9.5}]}`))
	}))
	t.Cleanup(ts.Close)

	c := plagiarism.NewClient(ts.Client(), plagiarism.Config{Endpoint: ts.URL, APIKey: "key"}, infralogger.NewNop())
	rep, err := c.Check(context.Background(), "https://example.com/post", "some draft text")
	require.NoError(t, err)

	assert.Equal(t, 13, rep.Score)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), rep.CheckedAt)
	require.Len(t, rep.Sources, 1)
	assert.Equal(t, "https://copy.example/a", rep.Sources[0].URL)
	assert.InDelta(t, 9.5, rep.Sources[0].Percent, 0.001)
}

func TestClient_Errors(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":"out of credits"}`))
	}))
	t.Cleanup(ts.Close)

	c := plagiarism.NewClient(ts.Client(), plagiarism.Config{Endpoint: ts.URL}, infralogger.NewNop())
	_, err := c.Check(context.Background(), "https://example.com/post", "text")
	require.ErrorContains(t, err, "out of credits")

	disabled := plagiarism.NewClient(ts.Client(), plagiarism.Config{}, infralogger.NewNop())
	assert.False(t, disabled.Enabled())
	_, err = disabled.Check(context.Background(), "https://example.com/post", "text")
	require.ErrorIs(t, err, plagiarism.ErrNotConfigured)
}

func TestClient_CheckClampsScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "not a number", body: `{"score":"NaN"}`, want: 0},
		{name: "negative", body: `{"score":-5}`, want: 0},
		{name: "above range", body: `{"percentPlagiarized":150}`, want: 100},
		{name: "rounds down", body: `{"plagiarism":42.4}`, want: 42},
		{name: "rounds half up", body: `{"score":"42.5"}`, want: 43},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(ts.Close)

			c := plagiarism.NewClient(ts.Client(), plagiarism.Config{Endpoint: ts.URL}, infralogger.NewNop())
			rep, err := c.Check(context.Background(), "https://example.com/post", "text")
			require.NoError(t, err)
			assert.Equal(t, tt.want, rep.Score)
		})
	}
}
