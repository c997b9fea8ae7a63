package core

import (
	"strings"
	"time"
)

// SyncMode selects how a run treats existing downstream data.
type SyncMode string

const (
	// ModeIncremental upserts changed records and reconciles deletions
	// after a complete pass over the source.
	ModeIncremental SyncMode = "incremental"
	// ModeFull upserts everything the source reports but never deletes.
	// Used when the source export cannot be trusted to be complete.
	ModeFull SyncMode = "full"
	// ModeForceRebuild clears all tenant data in both stores first,
	// then runs as full.
	ModeForceRebuild SyncMode = "force_rebuild"
)

// ParseSyncMode converts a string into a SyncMode.
func ParseSyncMode(s string) (SyncMode, error) {
	switch SyncMode(strings.ToLower(s)) {
	case ModeIncremental:
		return ModeIncremental, nil
	case ModeFull:
		return ModeFull, nil
	case ModeForceRebuild:
		return ModeForceRebuild, nil
	default:
		return "", ErrInvalidMode
	}
}

// RunStatus is the lifecycle state of a sync run.
type RunStatus string

const (
	StatusPending             RunStatus = "pending"
	StatusRunning             RunStatus = "running"
	StatusPaused              RunStatus = "paused"
	StatusCompleted           RunStatus = "completed"
	StatusCompletedWithErrors RunStatus = "completed_with_errors"
	StatusFailed              RunStatus = "failed"
	StatusCancelled           RunStatus = "cancelled"
)

// Terminal reports whether the status is final. A run in a terminal
// state never transitions again and does not block new runs for its
// tenant.
func (s RunStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCompletedWithErrors, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IndexState tracks whether an object's search-index write has caught
// up with its record-store write. The record store is the source of
// truth; the index is allowed to lag.
type IndexState string

const (
	// IndexStatePending means the record store holds the object but the
	// search index does not yet reflect it.
	IndexStatePending IndexState = "pending"
	// IndexStateIndexed means both stores agree.
	IndexStateIndexed IndexState = "indexed"
)

// ObjectKey is the globally unique composite identity of an
// IntegratedObject.
type ObjectKey struct {
	TenantID   string
	Platform   string
	ObjectType string
	OriginalID string
}

// UID returns the run-scoped identifier of the object: unique within
// one (tenant, platform) pair. Change sets and reconciliation operate
// on UIDs.
func (k ObjectKey) UID() string {
	return k.ObjectType + "/" + k.OriginalID
}

// String returns the full composite key, unique across all tenants.
// Used as the document ID in the search index.
func (k ObjectKey) String() string {
	return k.TenantID + ":" + k.Platform + ":" + k.UID()
}

// ThreadEntry is one reply in a record's conversation thread.
type ThreadEntry struct {
	Author   string
	Body     string
	PostedAt time.Time
}

// AttachmentMeta describes an attachment without carrying its bytes.
type AttachmentMeta struct {
	Name        string
	ContentType string
	Size        int64
}

// NormalizedContent is the canonical, index-ready form of a source
// record merged with its auxiliary parts. It contains only logical
// content: every field participates in the content hash.
type NormalizedContent struct {
	Title       string
	Body        string
	Author      string
	Labels      map[string]string
	Thread      []ThreadEntry
	Attachments []AttachmentMeta
}

// SearchText flattens the content into a single string suitable for
// embedding and full-text indexing.
func (c *NormalizedContent) SearchText() string {
	var sb strings.Builder
	sb.WriteString(c.Title)
	if c.Body != "" {
		sb.WriteString("\n")
		sb.WriteString(c.Body)
	}
	for _, entry := range c.Thread {
		sb.WriteString("\n")
		if entry.Author != "" {
			sb.WriteString(entry.Author)
			sb.WriteString(": ")
		}
		sb.WriteString(entry.Body)
	}
	for _, att := range c.Attachments {
		sb.WriteString("\n[attachment] ")
		sb.WriteString(att.Name)
	}
	return sb.String()
}

// IntegratedObject is the unit of synchronization: a normalized source
// record plus its auxiliary parts, ready for hashing and indexing.
type IntegratedObject struct {
	Key         ObjectKey
	ContentHash string
	Content     NormalizedContent
	RawPayload  []byte // opaque source-specific payload, excluded from hashing
	IndexState  IndexState
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Counts aggregates the outcome of one run.
type Counts struct {
	Fetched   int
	Added     int
	Updated   int
	Unchanged int
	Deleted   int
	Errors    int
}

// Add accumulates another Counts into this one.
func (c *Counts) Add(other Counts) {
	c.Fetched += other.Fetched
	c.Added += other.Added
	c.Updated += other.Updated
	c.Unchanged += other.Unchanged
	c.Deleted += other.Deleted
	c.Errors += other.Errors
}

// Run is one execution of the sync orchestrator for a
// (tenant, platform) pair.
type Run struct {
	ID        string
	TenantID  string
	Platform  string
	Mode      SyncMode
	Status    RunStatus
	Counts    Counts
	StartedAt time.Time
	EndedAt   time.Time
	LastError string
}

// RunProgress is the resumable checkpoint of an in-flight run: the
// page cursor plus every UID seen so far. Deletion reconciliation
// requires the complete seen set, so it is persisted alongside the
// cursor.
type RunProgress struct {
	RunID     string
	Cursor    string
	SeenUIDs  []string
	Counts    Counts
	UpdatedAt time.Time
}

// SyncState is the durable per-(tenant, platform) synchronization
// state. Owned exclusively by the orchestrator.
type SyncState struct {
	TenantID       string
	Platform       string
	LastRunAt      time.Time
	LastCursor     string
	KnownIDCount   int
	ModeInProgress SyncMode
}
