package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/seoscan/internal/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newStore(t *testing.T) (*store.Store, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	return store.New(store.NewMemoryBackend(), store.WithClock(clock.Now)), clock
}

func TestUpsertSnapshot_MergesPatches(t *testing.T) {
	t.Parallel()
	s, _ := newStore(t)
	ctx := context.Background()

	_, err := s.UpsertSnapshot(ctx, "WWW.Example.com", store.SnapshotPatch{
		ScanID:      "scan-1",
		Status:      store.StatusQueued,
		Diagnostics: map[string]any{"stage": "queued"},
		Pages:       []store.ContentItem{{URL: " https://example.com/about ", Title: "About"}},
	})
	require.NoError(t, err)

	snap, err := s.UpsertSnapshot(ctx, "example.com", store.SnapshotPatch{
		Status:      store.StatusRunning,
		Diagnostics: map[string]any{"stage": "discovery"},
		Blogs:       []store.ContentItem{{URL: "https://example.com/blog/post", WordCount: -3}},
	})
	require.NoError(t, err)

	assert.Equal(t, "example.com", snap.Hostname)
	assert.Equal(t, "scan-1", snap.ScanID)
	assert.Equal(t, store.StatusRunning, snap.Status)
	assert.Equal(t, "discovery", snap.Diagnostics["stage"])
	require.Len(t, snap.Pages, 1)
	assert.Equal(t, "https://example.com/about", snap.Pages[0].URL)
	require.Len(t, snap.Blogs, 1)
	assert.Zero(t, snap.Blogs[0].WordCount)
	assert.False(t, snap.Blogs[0].IsDraft)
	assert.NotNil(t, snap.Blogs[0].PlagiarismSources)
}

func TestUpsertSnapshot_EmptySliceClears(t *testing.T) {
	t.Parallel()
	s, _ := newStore(t)
	ctx := context.Background()

	_, err := s.UpsertSnapshot(ctx, "example.com", store.SnapshotPatch{
		Blogs: []store.ContentItem{{URL: "https://example.com/blog/a"}},
	})
	require.NoError(t, err)

	snap, err := s.UpsertSnapshot(ctx, "example.com", store.SnapshotPatch{Blogs: []store.ContentItem{}})
	require.NoError(t, err)
	assert.Empty(t, snap.Blogs)
	assert.NotNil(t, snap.Blogs)
	assert.NotNil(t, snap.Pages)
}

func TestUpsertSnapshot_ModesAreSeparateKeys(t *testing.T) {
	t.Parallel()
	s, _ := newStore(t)
	ctx := context.Background()

	draft, err := s.UpsertSnapshot(ctx, "example.com", store.SnapshotPatch{
		Mode:  "Draft",
		Pages: []store.ContentItem{{URL: "https://example.com/wip"}},
	})
	require.NoError(t, err)
	assert.Equal(t, store.ModeDraft, draft.Mode)
	assert.True(t, draft.Pages[0].IsDraft)

	published, err := s.GetLatest(ctx, "example.com", store.LatestOptions{Mode: "bogus"})
	require.NoError(t, err)
	assert.Nil(t, published)
}

func TestUpsertSnapshot_EmptyHostname(t *testing.T) {
	t.Parallel()
	s, _ := newStore(t)

	_, err := s.UpsertSnapshot(context.Background(), "  ", store.SnapshotPatch{})
	require.Error(t, err)
}

func TestGetLatest_TTL(t *testing.T) {
	t.Parallel()
	s, clock := newStore(t)
	ctx := context.Background()

	_, err := s.UpsertSnapshot(ctx, "example.com", store.SnapshotPatch{Status: store.StatusComplete})
	require.NoError(t, err)

	clock.Advance(time.Hour)
	snap, err := s.GetLatest(ctx, "example.com", store.LatestOptions{TTL: 2 * time.Hour})
	require.NoError(t, err)
	require.NotNil(t, snap)

	clock.Advance(2 * time.Hour)
	snap, err = s.GetLatest(ctx, "example.com", store.LatestOptions{TTL: 2 * time.Hour})
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestGetLatest_OverlaysScanStatus(t *testing.T) {
	t.Parallel()
	s, _ := newStore(t)
	ctx := context.Background()

	scan, err := s.CreateScan(ctx, store.NewScan{WebsiteURL: "https://example.com", Hostname: "example.com"})
	require.NoError(t, err)
	_, err = s.UpsertSnapshot(ctx, "example.com", store.SnapshotPatch{ScanID: scan.ID, Status: store.StatusQueued})
	require.NoError(t, err)

	_, err = s.StartScan(ctx, scan.ID)
	require.NoError(t, err)

	snap, err := s.GetLatest(ctx, "example.com", store.LatestOptions{})
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, store.StatusRunning, snap.Status)
}

func TestScanLifecycle(t *testing.T) {
	t.Parallel()
	s, _ := newStore(t)
	ctx := context.Background()

	scan, err := s.CreateScan(ctx, store.NewScan{WebsiteURL: "https://Example.com/", Hostname: "Example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, scan.ID)
	assert.Equal(t, store.StatusQueued, scan.Status)
	assert.Equal(t, store.KindOpportunities, scan.Kind)
	assert.Equal(t, store.ModePublished, scan.Mode)
	assert.Equal(t, "example.com", scan.Hostname)

	_, err = s.CompleteScan(ctx, scan.ID, nil)
	require.ErrorIs(t, err, store.ErrInvalidTransition)

	_, err = s.StartScan(ctx, scan.ID)
	require.NoError(t, err)

	_, err = s.UpdateScan(ctx, scan.ID, map[string]any{"stage": "content"})
	require.NoError(t, err)

	done, err := s.CompleteScan(ctx, scan.ID, map[string]any{"processed": 4})
	require.NoError(t, err)
	assert.Equal(t, store.StatusComplete, done.Status)
	assert.Equal(t, "content", done.Diagnostics["stage"])
	assert.Equal(t, 4, done.Diagnostics["processed"])
	assert.Nil(t, done.Error)

	_, err = s.FailScan(ctx, scan.ID, "late", nil)
	require.ErrorIs(t, err, store.ErrInvalidTransition)
}

func TestFailScan_RecordsError(t *testing.T) {
	t.Parallel()
	s, _ := newStore(t)
	ctx := context.Background()

	scan, err := s.CreateScan(ctx, store.NewScan{Hostname: "example.com"})
	require.NoError(t, err)

	failed, err := s.FailScan(ctx, scan.ID, "discovery failed", map[string]any{"stage": "discovery"})
	require.NoError(t, err)
	require.NotNil(t, failed.Error)
	assert.Equal(t, "discovery failed", *failed.Error)
	assert.Equal(t, "discovery failed", failed.Diagnostics["error"])

	got, err := s.GetScan(ctx, scan.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, got.Status)
}

func TestGetScan_Unknown(t *testing.T) {
	t.Parallel()
	s, _ := newStore(t)

	_, err := s.GetScan(context.Background(), "missing")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to store.Status
		want     bool
	}{
		{store.StatusQueued, store.StatusRunning, true},
		{store.StatusQueued, store.StatusFailed, true},
		{store.StatusQueued, store.StatusComplete, false},
		{store.StatusRunning, store.StatusComplete, true},
		{store.StatusRunning, store.StatusFailed, true},
		{store.StatusRunning, store.StatusQueued, false},
		{store.StatusComplete, store.StatusFailed, false},
		{store.StatusFailed, store.StatusRunning, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, store.CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestSweepExpired(t *testing.T) {
	t.Parallel()
	s, clock := newStore(t)
	ctx := context.Background()

	old, err := s.CreateScan(ctx, store.NewScan{Hostname: "old.example"})
	require.NoError(t, err)
	_, err = s.FailScan(ctx, old.ID, "boom", nil)
	require.NoError(t, err)
	_, err = s.UpsertSnapshot(ctx, "old.example", store.SnapshotPatch{ScanID: old.ID})
	require.NoError(t, err)

	active, err := s.CreateScan(ctx, store.NewScan{Hostname: "busy.example"})
	require.NoError(t, err)

	clock.Advance(48 * time.Hour)
	_, err = s.UpsertSnapshot(ctx, "new.example", store.SnapshotPatch{})
	require.NoError(t, err)

	removed, err := s.SweepExpired(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = s.GetScan(ctx, old.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetScan(ctx, active.ID)
	require.NoError(t, err)

	snap, err := s.GetLatest(ctx, "new.example", store.LatestOptions{})
	require.NoError(t, err)
	assert.NotNil(t, snap)
}

func TestMemoryBackend_ReturnsCopies(t *testing.T) {
	t.Parallel()
	s, _ := newStore(t)
	ctx := context.Background()

	snap, err := s.UpsertSnapshot(ctx, "example.com", store.SnapshotPatch{
		Diagnostics: map[string]any{"stage": "queued"},
	})
	require.NoError(t, err)
	snap.Diagnostics["stage"] = "tampered"

	again, err := s.GetLatest(ctx, "example.com", store.LatestOptions{})
	require.NoError(t, err)
	assert.Equal(t, "queued", again.Diagnostics["stage"])
}

// gatedBackend blocks snapshot reads for one hostname until release closes.
type gatedBackend struct {
	*store.MemoryBackend
	hostname string
	entered  chan struct{}
	release  chan struct{}
	once     sync.Once
}

func (b *gatedBackend) GetSnapshot(ctx context.Context, key store.Key) (*store.Snapshot, error) {
	if key.Hostname == b.hostname {
		b.once.Do(func() { close(b.entered) })
		<-b.release
	}
	return b.MemoryBackend.GetSnapshot(ctx, key)
}

func TestUpsertSnapshot_KeysDoNotContend(t *testing.T) {
	t.Parallel()

	backend := &gatedBackend{
		MemoryBackend: store.NewMemoryBackend(),
		hostname:      "slow.example",
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	st := store.New(backend)
	ctx := context.Background()

	slowDone := make(chan error, 1)
	go func() {
		_, err := st.UpsertSnapshot(ctx, "slow.example", store.SnapshotPatch{Status: store.StatusQueued})
		slowDone <- err
	}()
	<-backend.entered

	fastDone := make(chan error, 1)
	go func() {
		_, err := st.UpsertSnapshot(ctx, "fast.example", store.SnapshotPatch{Status: store.StatusQueued})
		fastDone <- err
	}()

	select {
	case err := <-fastDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("upsert for an unrelated key waited on a blocked key")
	}

	close(backend.release)
	require.NoError(t, <-slowDone)
}

func TestKeyedMutex(t *testing.T) {
	t.Parallel()

	var km store.KeyedMutex

	unlockA := km.Lock("a")
	unlockB := km.Lock("b")
	assert.Equal(t, 2, km.Len())

	acquired := make(chan struct{})
	go func() {
		unlock := km.Lock("a")
		close(acquired)
		unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a locked key")
	case <-time.After(20 * time.Millisecond):
	}

	unlockA()
	<-acquired
	unlockB()
	require.Eventually(t, func() bool { return km.Len() == 0 }, time.Second, time.Millisecond)
}
