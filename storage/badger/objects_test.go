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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/syncline/core"
	"github.com/meridianhq/syncline/storage"
)

func newTestStores(t *testing.T) *Stores {
	t.Helper()
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { _ = stores.Close() })
	return stores
}

func newTestObject(tenantID, platform, objectType, originalID, body string) *core.IntegratedObject {
	key := core.ObjectKey{
		TenantID:   tenantID,
		Platform:   platform,
		ObjectType: objectType,
		OriginalID: originalID,
	}
	content := core.NormalizedContent{
		Title:  "obj " + originalID,
		Body:   body,
		Author: "tester",
	}
	return &core.IntegratedObject{
		Key:         key,
		ContentHash: core.ContentHash(key, &content),
		Content:     content,
		IndexState:  core.IndexStatePending,
	}
}

func TestRecordStore_UpsertAndGet(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	obj := newTestObject("acme", "helpdesk", "ticket", "1", "hello")
	written, err := stores.Records.Upsert(ctx, obj)
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	got, err := stores.Records.Get(ctx, "acme", "helpdesk", obj.Key.UID())
	require.NoError(t, err)
	assert.Equal(t, obj.Key, got.Key)
	assert.Equal(t, obj.ContentHash, got.ContentHash)
	assert.Equal(t, "hello", got.Content.Body)
	assert.False(t, got.CreatedAt.IsZero())
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestRecordStore_Get_NotFound(t *testing.T) {
	stores := newTestStores(t)

	_, err := stores.Records.Get(context.Background(), "acme", "helpdesk", "ticket/999")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRecordStore_Upsert_SameHashSkipped(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	obj := newTestObject("acme", "helpdesk", "ticket", "1", "hello")
	_, err := stores.Records.Upsert(ctx, obj)
	require.NoError(t, err)

	first, err := stores.Records.Get(ctx, "acme", "helpdesk", obj.Key.UID())
	require.NoError(t, err)

	again := newTestObject("acme", "helpdesk", "ticket", "1", "hello")
	written, err := stores.Records.Upsert(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, 0, written)

	second, err := stores.Records.Get(ctx, "acme", "helpdesk", obj.Key.UID())
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)
}

func TestRecordStore_Upsert_ChangedContentPreservesCreatedAt(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	obj := newTestObject("acme", "helpdesk", "ticket", "1", "hello")
	_, err := stores.Records.Upsert(ctx, obj)
	require.NoError(t, err)

	first, err := stores.Records.Get(ctx, "acme", "helpdesk", obj.Key.UID())
	require.NoError(t, err)

	changed := newTestObject("acme", "helpdesk", "ticket", "1", "hello again")
	written, err := stores.Records.Upsert(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	second, err := stores.Records.Get(ctx, "acme", "helpdesk", obj.Key.UID())
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, "hello again", second.Content.Body)
	assert.NotEqual(t, first.ContentHash, second.ContentHash)
}

func TestRecordStore_Upsert_InvalidObject(t *testing.T) {
	stores := newTestStores(t)

	obj := newTestObject("", "helpdesk", "ticket", "1", "hello")
	_, err := stores.Records.Upsert(context.Background(), obj)
	assert.ErrorIs(t, err, core.ErrEmptyTenantID)
}

func TestRecordStore_Delete_Idempotent(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	obj := newTestObject("acme", "helpdesk", "ticket", "1", "hello")
	_, err := stores.Records.Upsert(ctx, obj)
	require.NoError(t, err)

	removed, err := stores.Records.Delete(ctx, "acme", "helpdesk", obj.Key.UID(), "ticket/missing")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	removed, err = stores.Records.Delete(ctx, "acme", "helpdesk", obj.Key.UID())
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestRecordStore_KnownHashes(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	a := newTestObject("acme", "helpdesk", "ticket", "1", "a")
	b := newTestObject("acme", "helpdesk", "ticket", "2", "b")
	other := newTestObject("globex", "helpdesk", "ticket", "1", "other tenant")
	_, err := stores.Records.Upsert(ctx, a, b, other)
	require.NoError(t, err)

	known, err := stores.Records.KnownHashes(ctx, "acme", "helpdesk")
	require.NoError(t, err)
	require.Len(t, known, 2)
	assert.Equal(t, a.ContentHash, known["ticket/1"])
	assert.Equal(t, b.ContentHash, known["ticket/2"])
}

func TestRecordStore_ListUIDs_TenantIsolation(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	_, err := stores.Records.Upsert(ctx,
		newTestObject("acme", "helpdesk", "ticket", "1", "a"),
		newTestObject("acme", "wiki", "article", "1", "b"),
		newTestObject("globex", "helpdesk", "ticket", "1", "c"),
	)
	require.NoError(t, err)

	uids, err := stores.Records.ListUIDs(ctx, "acme", "helpdesk")
	require.NoError(t, err)
	assert.Equal(t, []string{"ticket/1"}, uids)

	uids, err = stores.Records.ListUIDs(ctx, "acme", "wiki")
	require.NoError(t, err)
	assert.Equal(t, []string{"article/1"}, uids)
}

func TestRecordStore_MarkIndexState(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	obj := newTestObject("acme", "helpdesk", "ticket", "1", "a")
	_, err := stores.Records.Upsert(ctx, obj)
	require.NoError(t, err)

	before, err := stores.Records.Get(ctx, "acme", "helpdesk", obj.Key.UID())
	require.NoError(t, err)

	err = stores.Records.MarkIndexState(ctx, "acme", "helpdesk", core.IndexStateIndexed, obj.Key.UID(), "ticket/missing")
	require.NoError(t, err)

	after, err := stores.Records.Get(ctx, "acme", "helpdesk", obj.Key.UID())
	require.NoError(t, err)
	assert.Equal(t, core.IndexStateIndexed, after.IndexState)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
}

func TestRecordStore_ListPendingIndex(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	a := newTestObject("acme", "helpdesk", "ticket", "1", "a")
	b := newTestObject("acme", "helpdesk", "ticket", "2", "b")
	_, err := stores.Records.Upsert(ctx, a, b)
	require.NoError(t, err)

	err = stores.Records.MarkIndexState(ctx, "acme", "helpdesk", core.IndexStateIndexed, a.Key.UID())
	require.NoError(t, err)

	pending, err := stores.Records.ListPendingIndex(ctx, "acme", "helpdesk")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, b.Key, pending[0].Key)
}

func TestRecordStore_ClearTenant(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		obj := newTestObject("acme", "helpdesk", "ticket", fmt.Sprintf("%d", i), "body")
		_, err := stores.Records.Upsert(ctx, obj)
		require.NoError(t, err)
	}
	keep := newTestObject("globex", "helpdesk", "ticket", "1", "keep")
	_, err := stores.Records.Upsert(ctx, keep)
	require.NoError(t, err)

	removed, err := stores.Records.ClearTenant(ctx, "acme", "helpdesk")
	require.NoError(t, err)
	assert.Equal(t, 50, removed)

	count, err := stores.Records.Count(ctx, "acme", "helpdesk")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	count, err = stores.Records.Count(ctx, "globex", "helpdesk")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
