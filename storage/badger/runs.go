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

	"github.com/dgraph-io/badger/v4"

	"github.com/meridianhq/syncline/core"
	"github.com/meridianhq/syncline/storage"
)

// RunRepository implements storage.RunRepository for BadgerDB. Runs
// are stored under their ID with a secondary index keyed by (tenant,
// platform, start time) so that per-tenant listings come back in
// chronological key order without a sort.
type RunRepository struct {
	backend *Backend
}

var _ storage.RunRepository = (*RunRepository)(nil)

// NewRunRepository creates a RunRepository on the given backend.
func NewRunRepository(backend *Backend) *RunRepository {
	return &RunRepository{backend: backend}
}

// SaveRun inserts or updates a run record and its index entry. The
// index key is derived from the start time, which never changes after
// the run is created, so updates land on the same entry.
func (r *RunRepository) SaveRun(ctx context.Context, run *core.Run) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeRunKey(run.ID), storage.MarshalRun(run)); err != nil {
			return err
		}
		indexKey := makeRunIndexKey(run.TenantID, run.Platform, run.StartedAt, run.ID)
		if err := tx.Set(indexKey, []byte(run.ID)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetRun retrieves a run by ID.
func (r *RunRepository) GetRun(ctx context.Context, runID string) (*core.Run, error) {
	var result *core.Run
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		run, err := readRun(tx, runID)
		if err != nil {
			return err
		}
		if run == nil {
			return storage.ErrNotFound
		}
		result = run
		return nil
	}, false)
	return result, err
}

// ListRuns returns all runs for a (tenant, platform) pair, most
// recently started first.
func (r *RunRepository) ListRuns(ctx context.Context, tenantID, platform string) ([]*core.Run, error) {
	var runs []*core.Run

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeRunIndexPrefix(tenantID, platform)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var runID string
			err := iter.Item().Value(func(val []byte) error {
				runID = string(val)
				return nil
			})
			if err != nil {
				return err
			}
			run, err := readRun(tx, runID)
			if err != nil {
				return err
			}
			if run == nil {
				// Stale index entry, skip.
				continue
			}
			runs = append(runs, run)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Index order is oldest first.
	for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
		runs[i], runs[j] = runs[j], runs[i]
	}
	return runs, nil
}

// ActiveRun returns the single non-terminal run for a (tenant,
// platform) pair, or nil if every run has finished.
func (r *RunRepository) ActiveRun(ctx context.Context, tenantID, platform string) (*core.Run, error) {
	runs, err := r.ListRuns(ctx, tenantID, platform)
	if err != nil {
		return nil, err
	}
	for _, run := range runs {
		if !run.Status.Terminal() {
			return run, nil
		}
	}
	return nil, nil
}

// SaveProgress persists the resumable checkpoint of an in-flight run.
func (r *RunRepository) SaveProgress(ctx context.Context, progress *core.RunProgress) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeProgressKey(progress.RunID), storage.MarshalProgress(progress)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LoadProgress retrieves a run's checkpoint. Returns nil, nil if none
// was saved.
func (r *RunRepository) LoadProgress(ctx context.Context, runID string) (*core.RunProgress, error) {
	var result *core.RunProgress
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeProgressKey(runID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			result, unmarshalErr = storage.UnmarshalProgress(val)
			return unmarshalErr
		})
	}, false)
	return result, err
}

// DeleteProgress removes a run's checkpoint. Deleting an absent
// checkpoint is not an error.
func (r *RunRepository) DeleteProgress(ctx context.Context, runID string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeProgressKey(runID)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// readRun reads a run from the transaction. Returns nil, nil if the
// run is absent.
func readRun(tx *badger.Txn, runID string) (*core.Run, error) {
	item, err := tx.Get(makeRunKey(runID))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var run *core.Run
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		run, unmarshalErr = storage.UnmarshalRun(val)
		return unmarshalErr
	})
	return run, err
}
