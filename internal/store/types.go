// Package store persists scans and the latest opportunity snapshot per
// (hostname, mode, allowSubdomains) key.
package store

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jonesrussell/seoscan/internal/urlutil"
)

var (
	// ErrNotFound is returned for unknown scan IDs or snapshot keys.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition rejects a status change the state machine does not allow.
	ErrInvalidTransition = errors.New("invalid scan status transition")
)

// KindOpportunities is the only scan kind today.
const KindOpportunities = "opportunities"

// Status is a scan's lifecycle state.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

var transitions = map[Status][]Status{
	StatusQueued:  {StatusRunning, StatusFailed},
	StatusRunning: {StatusComplete, StatusFailed},
}

// IsTerminal reports complete or failed.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// IsActive reports queued or running.
func (s Status) IsActive() bool {
	return s == StatusQueued || s == StatusRunning
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Mode distinguishes published content from drafts.
type Mode string

const (
	ModePublished Mode = "published"
	ModeDraft     Mode = "draft"
)

// NormalizeMode maps anything but "draft" to published.
func NormalizeMode(m string) Mode {
	if strings.EqualFold(strings.TrimSpace(m), string(ModeDraft)) {
		return ModeDraft
	}
	return ModePublished
}

// Key identifies a snapshot and the in-flight scan that produces it.
type Key struct {
	Hostname        string
	Mode            Mode
	AllowSubdomains bool
}

// NewKey normalizes hostname and mode.
func NewKey(hostname string, mode string, allowSubdomains bool) Key {
	return Key{Hostname: urlutil.Hostname(hostname), Mode: NormalizeMode(mode), AllowSubdomains: allowSubdomains}
}

func (k Key) String() string {
	return k.Hostname + "|" + string(k.Mode) + "|" + strconv.FormatBool(k.AllowSubdomains)
}

// Scan is one orchestrated run.
type Scan struct {
	ID              string         `json:"scanId"`
	Kind            string         `json:"kind"`
	WebsiteURL      string         `json:"websiteUrl"`
	Hostname        string         `json:"hostname"`
	AllowSubdomains bool           `json:"allowSubdomains"`
	Mode            Mode           `json:"mode"`
	Provider        *string        `json:"provider"`
	Status          Status         `json:"status"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	Diagnostics     map[string]any `json:"diagnostics"`
	Error           *string        `json:"error"`
}

// Key returns the scan's composite key.
func (s *Scan) Key() Key {
	return Key{Hostname: s.Hostname, Mode: s.Mode, AllowSubdomains: s.AllowSubdomains}
}

// PlagiarismSource is a page the checked content matched.
type PlagiarismSource struct {
	URL          string  `json:"url"`
	Title        string  `json:"title,omitempty"`
	Percent      float64 `json:"percent,omitempty"`
	MatchedWords int     `json:"matchedWords,omitempty"`
}

// ContentItem is one discovered URL and its extracted content.
type ContentItem struct {
	URL                 string             `json:"url"`
	Title               string             `json:"title"`
	Description         string             `json:"description"`
	WordCount           int                `json:"wordCount"`
	ContentHTML         string             `json:"contentHtml"`
	IsDraft             bool               `json:"isDraft"`
	Plagiarism          *int               `json:"plagiarism"`
	PlagiarismCheckedAt *time.Time         `json:"plagiarismCheckedAt"`
	PlagiarismSources   []PlagiarismSource `json:"plagiarismSources"`
}

// Snapshot is the latest result set for a key.
type Snapshot struct {
	Hostname        string         `json:"hostname"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	ScanID          string         `json:"scanId"`
	Status          Status         `json:"status"`
	Diagnostics     map[string]any `json:"diagnostics"`
	Mode            Mode           `json:"mode"`
	AllowSubdomains bool           `json:"allowSubdomains"`
	Blogs           []ContentItem  `json:"blogs"`
	Pages           []ContentItem  `json:"pages"`
}

// Key returns the snapshot's composite key.
func (s *Snapshot) Key() Key {
	return Key{Hostname: s.Hostname, Mode: s.Mode, AllowSubdomains: s.AllowSubdomains}
}

// SnapshotPatch is merged onto the stored snapshot. Zero-valued ScanID and
// Status and nil Diagnostics, Blogs or Pages leave the stored field alone;
// a non-nil empty slice clears it.
type SnapshotPatch struct {
	Mode            string
	AllowSubdomains bool
	ScanID          string
	Status          Status
	// Diagnostics keys are merged onto the stored map.
	Diagnostics map[string]any
	Blogs       []ContentItem
	Pages       []ContentItem
}

// NewScan describes a scan to create.
type NewScan struct {
	WebsiteURL      string
	Hostname        string
	AllowSubdomains bool
	Mode            string
	Provider        *string
}
