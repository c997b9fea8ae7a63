// Copyright 2026 Meridian Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger

import (
	"context"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/meridianhq/syncline/core"
	"github.com/meridianhq/syncline/storage"
)

// clearTenantBatchSize bounds the number of deletes per transaction so
// that clearing a large tenant never exceeds Badger's transaction size.
const clearTenantBatchSize = 1000

// RecordStore implements storage.RecordStore for BadgerDB.
type RecordStore struct {
	backend *Backend
}

var _ storage.RecordStore = (*RecordStore)(nil)

// NewRecordStore creates a RecordStore on the given backend.
func NewRecordStore(backend *Backend) *RecordStore {
	return &RecordStore{backend: backend}
}

// Close is a no-op; the backend owns the database lifecycle.
func (s *RecordStore) Close() error {
	return nil
}

// Upsert writes objects keyed by their full composite identity.
// Objects whose stored hash matches are left untouched.
func (s *RecordStore) Upsert(ctx context.Context, objects ...*core.IntegratedObject) (int, error) {
	written := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		for _, obj := range objects {
			if err := obj.Validate(); err != nil {
				return err
			}

			key := makeObjectKey(obj.Key.TenantID, obj.Key.Platform, obj.Key.UID())
			existing, err := readObject(tx, key)
			if err != nil {
				return err
			}

			if existing != nil && existing.ContentHash == obj.ContentHash {
				// Semantically equivalent: never rewritten.
				continue
			}

			now := time.Now().UTC()
			if existing != nil {
				obj.CreatedAt = existing.CreatedAt
			} else {
				obj.CreatedAt = now
			}
			obj.UpdatedAt = now

			if err := tx.Set(key, storage.MarshalObject(obj)); err != nil {
				return err
			}
			written++
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}
	return written, nil
}

// Get retrieves a single object by UID.
func (s *RecordStore) Get(ctx context.Context, tenantID, platform, uid string) (*core.IntegratedObject, error) {
	var result *core.IntegratedObject
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		obj, err := readObject(tx, makeObjectKey(tenantID, platform, uid))
		if err != nil {
			return err
		}
		if obj == nil {
			return storage.ErrNotFound
		}
		result = obj
		return nil
	}, false)
	return result, err
}

// Delete removes objects by UID. Missing UIDs are skipped.
func (s *RecordStore) Delete(ctx context.Context, tenantID, platform string, uids ...string) (int, error) {
	removed := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		for _, uid := range uids {
			key := makeObjectKey(tenantID, platform, uid)
			_, err := tx.Get(key)
			if err == badger.ErrKeyNotFound {
				continue
			}
			if err != nil {
				return err
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
			removed++
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// KnownHashes returns the complete UID -> content hash map for a
// (tenant, platform) pair by scanning the full tenant prefix.
func (s *RecordStore) KnownHashes(ctx context.Context, tenantID, platform string) (map[string]string, error) {
	known := make(map[string]string)
	err := s.forEachObject(tenantID, platform, func(obj *core.IntegratedObject) error {
		known[obj.Key.UID()] = obj.ContentHash
		return nil
	})
	if err != nil {
		return nil, err
	}
	return known, nil
}

// ListUIDs returns all UIDs for a (tenant, platform) pair.
func (s *RecordStore) ListUIDs(ctx context.Context, tenantID, platform string) ([]string, error) {
	prefix := makeObjectScopePrefix(tenantID, platform)
	var uids []string

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			key := string(iter.Item().Key())
			uids = append(uids, strings.TrimPrefix(key, string(prefix)))
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return uids, nil
}

// MarkIndexState updates the index state of the given UIDs. The
// content timestamps are preserved: index state is bookkeeping, not a
// content change.
func (s *RecordStore) MarkIndexState(ctx context.Context, tenantID, platform string, state core.IndexState, uids ...string) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		for _, uid := range uids {
			key := makeObjectKey(tenantID, platform, uid)
			obj, err := readObject(tx, key)
			if err != nil {
				return err
			}
			if obj == nil {
				continue
			}
			if obj.IndexState == state {
				continue
			}
			obj.IndexState = state
			if err := tx.Set(key, storage.MarshalObject(obj)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// ListPendingIndex returns the objects whose index write is outstanding.
func (s *RecordStore) ListPendingIndex(ctx context.Context, tenantID, platform string) ([]*core.IntegratedObject, error) {
	var pending []*core.IntegratedObject
	err := s.forEachObject(tenantID, platform, func(obj *core.IntegratedObject) error {
		if obj.IndexState == core.IndexStatePending {
			pending = append(pending, obj)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

// ClearTenant removes every object for a (tenant, platform) pair in
// bounded batches.
func (s *RecordStore) ClearTenant(ctx context.Context, tenantID, platform string) (int, error) {
	uids, err := s.ListUIDs(ctx, tenantID, platform)
	if err != nil {
		return 0, err
	}

	removed := 0
	for start := 0; start < len(uids); start += clearTenantBatchSize {
		end := start + clearTenantBatchSize
		if end > len(uids) {
			end = len(uids)
		}
		n, err := s.Delete(ctx, tenantID, platform, uids[start:end]...)
		if err != nil {
			return removed, err
		}
		removed += n
	}
	return removed, nil
}

// Count returns the number of objects stored for a (tenant, platform) pair.
func (s *RecordStore) Count(ctx context.Context, tenantID, platform string) (int, error) {
	prefix := makeObjectScopePrefix(tenantID, platform)
	count := 0

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// forEachObject iterates over all objects of a (tenant, platform) pair.
func (s *RecordStore) forEachObject(tenantID, platform string, fn func(*core.IntegratedObject) error) error {
	prefix := makeObjectScopePrefix(tenantID, platform)

	return s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var obj *core.IntegratedObject
			err := iter.Item().Value(func(val []byte) error {
				var unmarshalErr error
				obj, unmarshalErr = storage.UnmarshalObject(val)
				return unmarshalErr
			})
			if err != nil {
				return err
			}
			if err := fn(obj); err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// readObject reads an object from the transaction. Returns nil, nil if
// the key is absent.
func readObject(tx *badger.Txn, key []byte) (*core.IntegratedObject, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var obj *core.IntegratedObject
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		obj, unmarshalErr = storage.UnmarshalObject(val)
		return unmarshalErr
	})
	return obj, err
}
