package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"

	"github.com/meridianhq/syncline/core"
	"github.com/meridianhq/syncline/storage"
)

// SyncStateRepository implements storage.SyncStateRepository for
// BadgerDB.
type SyncStateRepository struct {
	backend *Backend
}

var _ storage.SyncStateRepository = (*SyncStateRepository)(nil)

// NewSyncStateRepository creates a SyncStateRepository on the given
// backend.
func NewSyncStateRepository(backend *Backend) *SyncStateRepository {
	return &SyncStateRepository{backend: backend}
}

// Save inserts or updates the sync state for a (tenant, platform) pair.
func (r *SyncStateRepository) Save(ctx context.Context, state *core.SyncState) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeSyncStateKey(state.TenantID, state.Platform)
		if err := tx.Set(key, storage.MarshalSyncState(state)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Get retrieves the sync state. Returns nil, nil if the pair has never
// been synced.
func (r *SyncStateRepository) Get(ctx context.Context, tenantID, platform string) (*core.SyncState, error) {
	var result *core.SyncState
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeSyncStateKey(tenantID, platform))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			result, unmarshalErr = storage.UnmarshalSyncState(val)
			return unmarshalErr
		})
	}, false)
	return result, err
}
