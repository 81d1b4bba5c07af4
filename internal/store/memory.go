package store

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend keeps everything in process. It is not shared across instances.
type MemoryBackend struct {
	mu        sync.RWMutex
	scans     map[string]*Scan
	snapshots map[Key]*Snapshot
}

// NewMemoryBackend returns an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		scans:     make(map[string]*Scan),
		snapshots: make(map[Key]*Snapshot),
	}
}

func (m *MemoryBackend) GetScan(_ context.Context, id string) (*Scan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	scan, ok := m.scans[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneScan(scan), nil
}

func (m *MemoryBackend) PutScan(_ context.Context, scan *Scan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans[scan.ID] = cloneScan(scan)
	return nil
}

func (m *MemoryBackend) GetSnapshot(_ context.Context, key Key) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.snapshots[key]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSnapshot(snap), nil
}

func (m *MemoryBackend) PutSnapshot(_ context.Context, snap *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[snap.Key()] = cloneSnapshot(snap)
	return nil
}

func (m *MemoryBackend) Sweep(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, snap := range m.snapshots {
		if snap.UpdatedAt.Before(cutoff) {
			delete(m.snapshots, key)
			removed++
		}
	}
	for id, scan := range m.scans {
		if scan.Status.IsTerminal() && scan.UpdatedAt.Before(cutoff) {
			delete(m.scans, id)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryBackend) Ping(context.Context) error {
	return nil
}
