package janitor_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infralogger "github.com/jonesrussell/seoscan/infrastructure/logger"
	"github.com/jonesrussell/seoscan/internal/janitor"
	"github.com/jonesrussell/seoscan/internal/store"
)

type fakeSweeper struct {
	calls     atomic.Int32
	olderThan atomic.Int64
	err       error
}

func (f *fakeSweeper) SweepExpired(_ context.Context, olderThan time.Duration) (int, error) {
	f.calls.Add(1)
	f.olderThan.Store(int64(olderThan))
	return 3, f.err
}

func TestNew_RejectsBadSchedule(t *testing.T) {
	t.Parallel()

	_, err := janitor.New(&fakeSweeper{}, janitor.Config{Schedule: "every now and then"}, infralogger.NewNop())
	require.Error(t, err)
}

func TestRunOnce(t *testing.T) {
	t.Parallel()

	sweeper := &fakeSweeper{}
	j, err := janitor.New(sweeper, janitor.Config{Retention: time.Hour}, infralogger.NewNop())
	require.NoError(t, err)

	removed, err := j.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	assert.Equal(t, int64(time.Hour), sweeper.olderThan.Load())

	sweeper.err = errors.New("db down")
	_, err = j.RunOnce(context.Background())
	require.Error(t, err)
}

func TestStart_RunsOnSchedule(t *testing.T) {
	t.Parallel()

	sweeper := &fakeSweeper{}
	j, err := janitor.New(sweeper, janitor.Config{Schedule: "@every 1s"}, infralogger.NewNop())
	require.NoError(t, err)
	require.NoError(t, j.Start(context.Background()))
	defer j.Stop()

	require.Eventually(t, func() bool { return sweeper.calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, int64(janitor.DefaultRetention), sweeper.olderThan.Load())
}

func TestRunOnce_WithStore(t *testing.T) {
	t.Parallel()

	st := store.New(store.NewMemoryBackend(), store.WithClock(func() time.Time {
		return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	}))
	_, err := st.UpsertSnapshot(context.Background(), "example.com", store.SnapshotPatch{})
	require.NoError(t, err)

	j, err := janitor.New(st, janitor.Config{Retention: time.Hour}, infralogger.NewNop())
	require.NoError(t, err)

	removed, err := j.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, removed)
}
