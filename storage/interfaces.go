package storage

import (
	"context"

	"github.com/meridianhq/syncline/core"
)

// RecordStore is the primary record store, the system's source of
// truth. All operations are scoped by (tenant, platform); keys of
// different tenants are disjoint by construction, so no cross-tenant
// locking is required.
// Implementations must be thread-safe and support concurrent access.
type RecordStore interface {
	// Upsert writes objects keyed by their full composite identity.
	// An object whose stored content hash equals the incoming hash is
	// left untouched (CreatedAt preserved, UpdatedAt not bumped):
	// writing the same object twice is a no-op.
	// Returns the number of objects actually written.
	Upsert(ctx context.Context, objects ...*core.IntegratedObject) (int, error)

	// Get retrieves a single object. Returns ErrNotFound if absent.
	Get(ctx context.Context, tenantID, platform, uid string) (*core.IntegratedObject, error)

	// Delete removes objects by UID. Missing UIDs are skipped, not
	// errors: deletion is idempotent so that reconciliation can be
	// safely retried. Returns the number of objects actually removed.
	Delete(ctx context.Context, tenantID, platform string, uids ...string) (int, error)

	// KnownHashes returns the complete UID -> content hash map for a
	// (tenant, platform) pair. The result is exact, never sampled:
	// deletion reconciliation depends on it having no false entries.
	KnownHashes(ctx context.Context, tenantID, platform string) (map[string]string, error)

	// ListUIDs returns all UIDs for a (tenant, platform) pair.
	ListUIDs(ctx context.Context, tenantID, platform string) ([]string, error)

	// MarkIndexState updates the index state of the given UIDs.
	// Missing UIDs are skipped.
	MarkIndexState(ctx context.Context, tenantID, platform string, state core.IndexState, uids ...string) error

	// ListPendingIndex returns the objects whose search-index write is
	// still outstanding.
	ListPendingIndex(ctx context.Context, tenantID, platform string) ([]*core.IntegratedObject, error)

	// ClearTenant removes every object for a (tenant, platform) pair.
	// Returns the number of objects removed.
	ClearTenant(ctx context.Context, tenantID, platform string) (int, error)

	// Count returns the number of objects stored for a (tenant,
	// platform) pair.
	Count(ctx context.Context, tenantID, platform string) (int, error)

	// Close closes the store and releases resources.
	Close() error
}

// RunRepository persists run records and resumable run progress.
type RunRepository interface {
	// SaveRun inserts or updates a run record.
	SaveRun(ctx context.Context, run *core.Run) error

	// GetRun retrieves a run by ID. Returns ErrNotFound if absent.
	GetRun(ctx context.Context, runID string) (*core.Run, error)

	// ListRuns returns all runs for a (tenant, platform) pair, most
	// recently started first. Runs are retained after completion for
	// audit.
	ListRuns(ctx context.Context, tenantID, platform string) ([]*core.Run, error)

	// ActiveRun returns the single non-terminal run for a (tenant,
	// platform) pair, or nil if none exists.
	ActiveRun(ctx context.Context, tenantID, platform string) (*core.Run, error)

	// SaveProgress persists the resumable checkpoint of an in-flight run.
	SaveProgress(ctx context.Context, progress *core.RunProgress) error

	// LoadProgress retrieves a run's checkpoint. Returns nil, nil if
	// none was saved.
	LoadProgress(ctx context.Context, runID string) (*core.RunProgress, error)

	// DeleteProgress removes a run's checkpoint once the run reaches a
	// terminal state.
	DeleteProgress(ctx context.Context, runID string) error
}

// SyncStateRepository persists per-(tenant, platform) sync state.
type SyncStateRepository interface {
	// Save inserts or updates the sync state.
	Save(ctx context.Context, state *core.SyncState) error

	// Get retrieves the sync state. Returns nil, nil if the pair has
	// never been synced.
	Get(ctx context.Context, tenantID, platform string) (*core.SyncState, error)
}
