package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/seoscan/internal/urlutil"
)

// DefaultSnapshotTTL is how long a snapshot stays fresh.
const DefaultSnapshotTTL = 24 * time.Hour

// Backend is the storage behind a Store. Values passed in and returned
// are owned by the caller.
type Backend interface {
	GetScan(ctx context.Context, id string) (*Scan, error)
	PutScan(ctx context.Context, scan *Scan) error
	GetSnapshot(ctx context.Context, key Key) (*Snapshot, error)
	PutSnapshot(ctx context.Context, snap *Snapshot) error
	// Sweep deletes snapshots and terminal scans last updated before cutoff.
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
	Ping(ctx context.Context) error
}

// Store implements the merge and state-machine rules over a Backend.
// Read-modify-write cycles are serialized per snapshot key and per scan ID
// within the process; across processes the scan orchestrator's enqueue lock
// keeps one writer per key.
type Store struct {
	backend Backend
	now     func() time.Time
	locks   KeyedMutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New wraps backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{backend: backend, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks the backend.
func (s *Store) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// UpsertSnapshot merges patch onto the snapshot for (hostname, patch.Mode,
// patch.AllowSubdomains) and stamps UpdatedAt.
func (s *Store) UpsertSnapshot(ctx context.Context, hostname string, patch SnapshotPatch) (*Snapshot, error) {
	key := NewKey(hostname, patch.Mode, patch.AllowSubdomains)
	if key.Hostname == "" {
		return nil, fmt.Errorf("upsert snapshot: %w: empty hostname", urlutil.ErrInvalidURL)
	}

	defer s.locks.Lock("snapshot:" + key.String())()

	prev, err := s.backend.GetSnapshot(ctx, key)
	switch {
	case errors.Is(err, ErrNotFound):
		prev = &Snapshot{
			Hostname:        key.Hostname,
			Mode:            key.Mode,
			AllowSubdomains: key.AllowSubdomains,
			Blogs:           []ContentItem{},
			Pages:           []ContentItem{},
		}
	case err != nil:
		return nil, fmt.Errorf("load snapshot %s: %w", key, err)
	}

	next := mergeSnapshot(prev, patch, key)
	next.UpdatedAt = s.now().UTC()

	if err = s.backend.PutSnapshot(ctx, next); err != nil {
		return nil, fmt.Errorf("save snapshot %s: %w", key, err)
	}
	return next, nil
}

func mergeSnapshot(prev *Snapshot, patch SnapshotPatch, key Key) *Snapshot {
	next := cloneSnapshot(prev)
	next.Hostname, next.Mode, next.AllowSubdomains = key.Hostname, key.Mode, key.AllowSubdomains

	if patch.ScanID != "" {
		next.ScanID = patch.ScanID
	}
	if patch.Status != "" {
		next.Status = patch.Status
	}
	if patch.Diagnostics != nil {
		if next.Diagnostics == nil {
			next.Diagnostics = make(map[string]any, len(patch.Diagnostics))
		}
		maps.Copy(next.Diagnostics, patch.Diagnostics)
	}
	if patch.Blogs != nil {
		next.Blogs = normalizeItems(patch.Blogs, key.Mode)
	}
	if patch.Pages != nil {
		next.Pages = normalizeItems(patch.Pages, key.Mode)
	}
	if next.Blogs == nil {
		next.Blogs = []ContentItem{}
	}
	if next.Pages == nil {
		next.Pages = []ContentItem{}
	}
	return next
}

func normalizeItems(items []ContentItem, mode Mode) []ContentItem {
	out := cloneItems(items)
	for i := range out {
		out[i].URL = strings.TrimSpace(out[i].URL)
		out[i].Title = strings.TrimSpace(out[i].Title)
		out[i].Description = strings.TrimSpace(out[i].Description)
		if out[i].WordCount < 0 {
			out[i].WordCount = 0
		}
		out[i].IsDraft = mode == ModeDraft
		if out[i].PlagiarismSources == nil {
			out[i].PlagiarismSources = []PlagiarismSource{}
		}
	}
	return out
}

// LatestOptions select and age-check a snapshot. Mode defaults to published.
type LatestOptions struct {
	TTL             time.Duration
	Mode            string
	AllowSubdomains bool
}

// GetLatest returns the snapshot for the key, or nil when there is none or
// it is older than TTL. Status is overlaid from the linked scan when that
// scan still exists.
func (s *Store) GetLatest(ctx context.Context, hostname string, opts LatestOptions) (*Snapshot, error) {
	if opts.TTL <= 0 {
		opts.TTL = DefaultSnapshotTTL
	}
	key := NewKey(hostname, opts.Mode, opts.AllowSubdomains)

	snap, err := s.backend.GetSnapshot(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", key, err)
	}
	if s.now().Sub(snap.UpdatedAt) > opts.TTL {
		return nil, nil
	}

	if snap.ScanID != "" {
		scan, scanErr := s.backend.GetScan(ctx, snap.ScanID)
		switch {
		case scanErr == nil:
			snap.Status = scan.Status
		case !errors.Is(scanErr, ErrNotFound):
			return nil, fmt.Errorf("load scan %s: %w", snap.ScanID, scanErr)
		}
	}
	return snap, nil
}

// CreateScan stores a new queued scan with a fresh ID.
func (s *Store) CreateScan(ctx context.Context, in NewScan) (*Scan, error) {
	hostname := urlutil.Hostname(in.Hostname)
	if hostname == "" {
		return nil, fmt.Errorf("create scan: %w: empty hostname", urlutil.ErrInvalidURL)
	}
	now := s.now().UTC()
	scan := &Scan{
		ID:              uuid.NewString(),
		Kind:            KindOpportunities,
		WebsiteURL:      in.WebsiteURL,
		Hostname:        hostname,
		AllowSubdomains: in.AllowSubdomains,
		Mode:            NormalizeMode(in.Mode),
		Provider:        in.Provider,
		Status:          StatusQueued,
		CreatedAt:       now,
		UpdatedAt:       now,
		Diagnostics:     map[string]any{},
	}
	if err := s.backend.PutScan(ctx, scan); err != nil {
		return nil, fmt.Errorf("save scan: %w", err)
	}
	return scan, nil
}

// GetScan returns ErrNotFound for unknown IDs.
func (s *Store) GetScan(ctx context.Context, id string) (*Scan, error) {
	return s.backend.GetScan(ctx, id)
}

// StartScan moves a queued scan to running.
func (s *Store) StartScan(ctx context.Context, id string) (*Scan, error) {
	return s.transition(ctx, id, StatusRunning, nil, "")
}

// CompleteScan moves a running scan to complete, merging diagnostics.
func (s *Store) CompleteScan(ctx context.Context, id string, diagnostics map[string]any) (*Scan, error) {
	return s.transition(ctx, id, StatusComplete, diagnostics, "")
}

// FailScan moves a queued or running scan to failed with message.
func (s *Store) FailScan(ctx context.Context, id, message string, diagnostics map[string]any) (*Scan, error) {
	return s.transition(ctx, id, StatusFailed, diagnostics, message)
}

// UpdateScan merges diagnostics into a scan without changing its status.
func (s *Store) UpdateScan(ctx context.Context, id string, diagnostics map[string]any) (*Scan, error) {
	defer s.locks.Lock("scan:" + id)()

	scan, err := s.backend.GetScan(ctx, id)
	if err != nil {
		return nil, err
	}
	mergeDiagnostics(scan, diagnostics)
	scan.UpdatedAt = s.now().UTC()
	if err = s.backend.PutScan(ctx, scan); err != nil {
		return nil, fmt.Errorf("save scan %s: %w", id, err)
	}
	return scan, nil
}

func (s *Store) transition(ctx context.Context, id string, to Status, diagnostics map[string]any, message string) (*Scan, error) {
	defer s.locks.Lock("scan:" + id)()

	scan, err := s.backend.GetScan(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(scan.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, scan.Status, to)
	}

	scan.Status = to
	scan.UpdatedAt = s.now().UTC()
	mergeDiagnostics(scan, diagnostics)
	if message != "" {
		scan.Error = &message
		mergeDiagnostics(scan, map[string]any{"error": message})
	}

	if err = s.backend.PutScan(ctx, scan); err != nil {
		return nil, fmt.Errorf("save scan %s: %w", id, err)
	}
	return scan, nil
}

func mergeDiagnostics(scan *Scan, diagnostics map[string]any) {
	if len(diagnostics) == 0 {
		return
	}
	if scan.Diagnostics == nil {
		scan.Diagnostics = make(map[string]any, len(diagnostics))
	}
	maps.Copy(scan.Diagnostics, diagnostics)
}

// SweepExpired removes snapshots and terminal scans not updated within olderThan.
func (s *Store) SweepExpired(ctx context.Context, olderThan time.Duration) (int, error) {
	return s.backend.Sweep(ctx, s.now().Add(-olderThan))
}
