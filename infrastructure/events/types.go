// Package events defines the scan lifecycle envelope shared by the NATS,
// Redis stream and SSE publishers.
package events

import (
	"time"

	"github.com/google/uuid"
)

// StreamName is the Redis stream scan events are appended to.
const StreamName = "scan-events"

// DefaultSubjectPrefix prefixes NATS subjects: "<prefix>.<status>".
const DefaultSubjectPrefix = "seoscan.scan"

// EventType names a lifecycle step. Values double as SSE event names.
type EventType string

const (
	ScanQueued   EventType = "scan:queued"
	ScanRunning  EventType = "scan:running"
	ScanComplete EventType = "scan:complete"
	ScanFailed   EventType = "scan:failed"
)

// Status returns the part after "scan:".
func (t EventType) Status() string {
	const prefix = "scan:"
	s := string(t)
	if len(s) > len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):]
	}
	return s
}

// ScanEvent is the envelope for every scan lifecycle event.
type ScanEvent struct {
	EventID         uuid.UUID      `json:"event_id"`
	EventType       EventType      `json:"event_type"`
	ScanID          string         `json:"scan_id"`
	Hostname        string         `json:"hostname"`
	AllowSubdomains bool           `json:"allow_subdomains"`
	Timestamp       time.Time      `json:"timestamp"`
	Diagnostics     map[string]any `json:"diagnostics,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// NewScanEvent stamps a fresh ID and the current time.
func NewScanEvent(eventType EventType, scanID, hostname string, allowSubdomains bool) ScanEvent {
	return ScanEvent{
		EventID:         uuid.New(),
		EventType:       eventType,
		ScanID:          scanID,
		Hostname:        hostname,
		AllowSubdomains: allowSubdomains,
		Timestamp:       time.Now().UTC(),
	}
}

// Subject is the NATS subject for the event under prefix.
func (e ScanEvent) Subject(prefix string) string {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return prefix + "." + e.EventType.Status()
}
