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

package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aimock "github.com/meridianhq/syncline/ai/mock"
	"github.com/meridianhq/syncline/core"
	"github.com/meridianhq/syncline/index"
	"github.com/meridianhq/syncline/index/memindex"
	"github.com/meridianhq/syncline/source"
	badgerstore "github.com/meridianhq/syncline/storage/badger"
)

func rec(id, body string) source.RawRecord {
	return source.RawRecord{
		OriginalID: id,
		ObjectType: "ticket",
		Title:      "ticket " + id,
		Body:       body,
		Author:     "reporter",
	}
}

type testEnv struct {
	fetcher  *source.StaticFetcher
	stores   *badgerstore.Stores
	idx      index.SearchIndex
	embedder *aimock.MockEmbedder
	orch     *Orchestrator
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	return newTestEnvWith(t, nil, nil, opts...)
}

// newTestEnvWith allows swapping the fetcher and index; nil selects the
// defaults (static fetcher paging by 2, in-memory index).
func newTestEnvWith(t *testing.T, fetcher source.Fetcher, idx index.SearchIndex, opts ...Option) *testEnv {
	t.Helper()

	stores, err := badgerstore.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { _ = stores.Close() })

	static := source.NewStaticFetcher(2)
	if fetcher == nil {
		fetcher = static
	}
	if idx == nil {
		idx = memindex.New()
	}
	embedder := aimock.NewMockEmbedder()

	base := []Option{
		WithChunkSize(2),
		WithPoolSize(2),
		WithMaxRetries(2),
		WithRetryDelay(time.Millisecond),
	}
	orch, err := NewOrchestrator(fetcher, stores.Records, stores.Runs, stores.States, idx, embedder,
		append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(orch.Release)

	return &testEnv{
		fetcher:  static,
		stores:   stores,
		idx:      idx,
		embedder: embedder,
		orch:     orch,
	}
}

func waitForTerminal(t *testing.T, orch *Orchestrator, runID string) *core.Run {
	t.Helper()
	var run *core.Run
	require.Eventually(t, func() bool {
		r, err := orch.GetRunStatus(context.Background(), runID)
		if err != nil || !r.Status.Terminal() {
			return false
		}
		run = r
		return true
	}, 10*time.Second, 5*time.Millisecond)
	return run
}

func (e *testEnv) runAndWait(t *testing.T, mode core.SyncMode) *core.Run {
	t.Helper()
	runID, err := e.orch.StartRun(context.Background(), "acme", "helpdesk", mode)
	require.NoError(t, err)
	return waitForTerminal(t, e.orch, runID)
}

func TestOrchestrator_FirstRunAddsEverything(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.SetRecords("acme", "helpdesk", []source.RawRecord{
		rec("1", "a"), rec("2", "b"), rec("3", "c"), rec("4", "d"), rec("5", "e"),
	})

	run := env.runAndWait(t, core.ModeIncremental)

	assert.Equal(t, core.StatusCompleted, run.Status)
	assert.Equal(t, 5, run.Counts.Fetched)
	assert.Equal(t, 5, run.Counts.Added)
	assert.Equal(t, 0, run.Counts.Updated)
	assert.Equal(t, 0, run.Counts.Deleted)
	assert.Equal(t, 0, run.Counts.Errors)

	ctx := context.Background()
	count, err := env.stores.Records.Count(ctx, "acme", "helpdesk")
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	indexed, err := env.idx.Count(ctx, "acme", "helpdesk")
	require.NoError(t, err)
	assert.Equal(t, 5, indexed)

	// Sync state reflects the completed run.
	state, err := env.stores.States.Get(ctx, "acme", "helpdesk")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, 5, state.KnownIDCount)
	assert.Empty(t, state.ModeInProgress)
}

func TestOrchestrator_SecondRunIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	records := []source.RawRecord{rec("1", "a"), rec("2", "b"), rec("3", "c")}
	env.fetcher.SetRecords("acme", "helpdesk", records)

	first := env.runAndWait(t, core.ModeIncremental)
	require.Equal(t, core.StatusCompleted, first.Status)

	ctx := context.Background()
	before, err := env.stores.Records.Get(ctx, "acme", "helpdesk", "ticket/2")
	require.NoError(t, err)

	second := env.runAndWait(t, core.ModeIncremental)
	assert.Equal(t, core.StatusCompleted, second.Status)
	assert.Equal(t, 0, second.Counts.Added)
	assert.Equal(t, 0, second.Counts.Updated)
	assert.Equal(t, 3, second.Counts.Unchanged)
	assert.Equal(t, 0, second.Counts.Deleted)

	// The stored object was not rewritten.
	after, err := env.stores.Records.Get(ctx, "acme", "helpdesk", "ticket/2")
	require.NoError(t, err)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
}

func TestOrchestrator_SingleFieldChangeUpdatesExactlyOne(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.SetRecords("acme", "helpdesk", []source.RawRecord{
		rec("1", "a"), rec("2", "b"), rec("3", "c"),
	})
	env.runAndWait(t, core.ModeIncremental)

	env.fetcher.SetRecords("acme", "helpdesk", []source.RawRecord{
		rec("1", "a"), rec("2", "b edited"), rec("3", "c"),
	})
	run := env.runAndWait(t, core.ModeIncremental)

	assert.Equal(t, core.StatusCompleted, run.Status)
	assert.Equal(t, 0, run.Counts.Added)
	assert.Equal(t, 1, run.Counts.Updated)
	assert.Equal(t, 2, run.Counts.Unchanged)

	got, err := env.stores.Records.Get(context.Background(), "acme", "helpdesk", "ticket/2")
	require.NoError(t, err)
	assert.Equal(t, "b edited", got.Content.Body)
}

func TestOrchestrator_DeletionReconciliation(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.SetRecords("acme", "helpdesk", []source.RawRecord{
		rec("1", "a"), rec("2", "b"), rec("3", "c"),
	})
	env.runAndWait(t, core.ModeIncremental)

	// 2 disappears, 3 changes, 4 appears.
	env.fetcher.SetRecords("acme", "helpdesk", []source.RawRecord{
		rec("1", "a"), rec("3", "c changed"), rec("4", "d"),
	})
	run := env.runAndWait(t, core.ModeIncremental)

	assert.Equal(t, core.StatusCompleted, run.Status)
	assert.Equal(t, 1, run.Counts.Added)
	assert.Equal(t, 1, run.Counts.Updated)
	assert.Equal(t, 1, run.Counts.Unchanged)
	assert.Equal(t, 1, run.Counts.Deleted)

	ctx := context.Background()
	uids, err := env.stores.Records.ListUIDs(ctx, "acme", "helpdesk")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ticket/1", "ticket/3", "ticket/4"}, uids)

	ok, err := env.idx.Has(ctx, "acme:helpdesk:ticket/2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOrchestrator_FullModeNeverDeletes(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.SetRecords("acme", "helpdesk", []source.RawRecord{
		rec("1", "a"), rec("2", "b"),
	})
	env.runAndWait(t, core.ModeIncremental)

	// Partial export: only record 1. Full mode must not delete 2.
	env.fetcher.SetRecords("acme", "helpdesk", []source.RawRecord{rec("1", "a")})
	run := env.runAndWait(t, core.ModeFull)

	assert.Equal(t, core.StatusCompleted, run.Status)
	assert.Equal(t, 0, run.Counts.Deleted)

	count, err := env.stores.Records.Count(context.Background(), "acme", "helpdesk")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestOrchestrator_ForceRebuild(t *testing.T) {
	env := newTestEnv(t)
	many := make([]source.RawRecord, 40)
	for i := range many {
		many[i] = rec(fmt.Sprintf("%d", i), "body")
	}
	env.fetcher.SetRecords("acme", "helpdesk", many)
	env.runAndWait(t, core.ModeIncremental)

	env.fetcher.SetRecords("acme", "helpdesk", []source.RawRecord{
		rec("100", "x"), rec("101", "y"), rec("102", "z"),
	})
	run := env.runAndWait(t, core.ModeForceRebuild)

	assert.Equal(t, core.StatusCompleted, run.Status)
	assert.Equal(t, 3, run.Counts.Added)

	ctx := context.Background()
	count, err := env.stores.Records.Count(ctx, "acme", "helpdesk")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	indexed, err := env.idx.Count(ctx, "acme", "helpdesk")
	require.NoError(t, err)
	assert.Equal(t, 3, indexed)
}

func TestOrchestrator_TenantIsolation(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.SetRecords("acme", "helpdesk", []source.RawRecord{rec("1", "acme data")})
	env.fetcher.SetRecords("globex", "helpdesk", []source.RawRecord{rec("1", "globex data")})

	env.runAndWait(t, core.ModeIncremental)

	runID, err := env.orch.StartRun(context.Background(), "globex", "helpdesk", core.ModeIncremental)
	require.NoError(t, err)
	waitForTerminal(t, env.orch, runID)

	// Empty acme export deletes acme's object, never globex's.
	env.fetcher.SetRecords("acme", "helpdesk", nil)
	run := env.runAndWait(t, core.ModeIncremental)
	assert.Equal(t, 1, run.Counts.Deleted)

	ctx := context.Background()
	count, err := env.stores.Records.Count(ctx, "acme", "helpdesk")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	got, err := env.stores.Records.Get(ctx, "globex", "helpdesk", "ticket/1")
	require.NoError(t, err)
	assert.Equal(t, "globex data", got.Content.Body)

	ok, err := env.idx.Has(ctx, "globex:helpdesk:ticket/1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOrchestrator_MalformedRecordsSkipped(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.SetRecords("acme", "helpdesk", []source.RawRecord{
		rec("1", "good"),
		{OriginalID: "", ObjectType: "ticket", Title: "orphan"},
		rec("3", "also good"),
	})

	run := env.runAndWait(t, core.ModeIncremental)

	assert.Equal(t, core.StatusCompletedWithErrors, run.Status)
	assert.Equal(t, 3, run.Counts.Fetched)
	assert.Equal(t, 2, run.Counts.Added)
	assert.Equal(t, 1, run.Counts.Errors)
}

func TestOrchestrator_PartialBatchFailure(t *testing.T) {
	env := newTestEnv(t, WithChunkSize(1))
	env.fetcher.SetRecords("acme", "helpdesk", []source.RawRecord{
		rec("1", "fine"), rec("2", "poison"), rec("3", "fine too"),
	})

	env.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		for _, text := range texts {
			if text == "ticket 2\npoison" {
				return nil, errors.New("embedding rejected")
			}
		}
		vectors := make([][]float32, len(texts))
		for i := range texts {
			vectors[i] = make([]float32, 4)
		}
		return vectors, nil
	}

	run := env.runAndWait(t, core.ModeIncremental)

	assert.Equal(t, core.StatusCompletedWithErrors, run.Status)
	assert.Equal(t, 2, run.Counts.Added)
	assert.Equal(t, 1, run.Counts.Errors)

	// Sibling chunks landed despite the failed one.
	ctx := context.Background()
	uids, err := env.stores.Records.ListUIDs(ctx, "acme", "helpdesk")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ticket/1", "ticket/3"}, uids)
}

func TestOrchestrator_IndexOutageFlushedBeforeFinish(t *testing.T) {
	idx := &flakyIndex{Index: memindex.New()}
	idx.failures.Store(1)
	env := newTestEnvWith(t, nil, idx, WithChunkSize(10), WithMaxRetries(1))
	env.fetcher.SetRecords("acme", "helpdesk", []source.RawRecord{rec("1", "a")})

	run := env.runAndWait(t, core.ModeIncremental)

	// The failed index write was flushed by the end-of-run retry pass.
	assert.Equal(t, core.StatusCompleted, run.Status)
	assert.Equal(t, 1, run.Counts.Added)

	ctx := context.Background()
	got, err := env.stores.Records.Get(ctx, "acme", "helpdesk", "ticket/1")
	require.NoError(t, err)
	assert.Equal(t, core.IndexStateIndexed, got.IndexState)

	ok, err := env.idx.Has(ctx, "acme:helpdesk:ticket/1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOrchestrator_ConcurrentRunRejected(t *testing.T) {
	gate := newGatedFetcher(source.NewStaticFetcher(2))
	env := newTestEnvWith(t, gate, nil)
	gate.inner.SetRecords("acme", "helpdesk", []source.RawRecord{
		rec("1", "a"), rec("2", "b"), rec("3", "c"), rec("4", "d"),
	})

	ctx := context.Background()
	gate.block()
	runID, err := env.orch.StartRun(ctx, "acme", "helpdesk", core.ModeIncremental)
	require.NoError(t, err)

	_, err = env.orch.StartRun(ctx, "acme", "helpdesk", core.ModeIncremental)
	assert.ErrorIs(t, err, ErrConcurrentRun)

	// A different tenant is unaffected.
	otherID, err := env.orch.StartRun(ctx, "globex", "helpdesk", core.ModeIncremental)
	require.NoError(t, err)

	gate.releaseAll()
	waitForTerminal(t, env.orch, otherID)
	run := waitForTerminal(t, env.orch, runID)
	assert.Equal(t, core.StatusCompleted, run.Status)

	// Once terminal, the scope is free again.
	lastID, err := env.orch.StartRun(ctx, "acme", "helpdesk", core.ModeIncremental)
	require.NoError(t, err)
	waitForTerminal(t, env.orch, lastID)
}

func TestOrchestrator_CancelNeverDeletes(t *testing.T) {
	gate := newGatedFetcher(source.NewStaticFetcher(2))
	env := newTestEnvWith(t, gate, nil)
	ctx := context.Background()

	// Seed an object that the next source export no longer contains.
	gate.inner.SetRecords("acme", "helpdesk", []source.RawRecord{rec("stale", "old")})
	runID, err := env.orch.StartRun(ctx, "acme", "helpdesk", core.ModeIncremental)
	require.NoError(t, err)
	gate.releaseAll()
	waitForTerminal(t, env.orch, runID)

	gate.block()
	gate.inner.SetRecords("acme", "helpdesk", []source.RawRecord{
		rec("1", "a"), rec("2", "b"), rec("3", "c"), rec("4", "d"),
	})
	runID, err = env.orch.StartRun(ctx, "acme", "helpdesk", core.ModeIncremental)
	require.NoError(t, err)

	// First page is in flight or done; cancel before the pass completes.
	require.NoError(t, env.orch.ControlRun(ctx, runID, ActionCancel))
	gate.releaseAll()
	run := waitForTerminal(t, env.orch, runID)

	assert.Equal(t, core.StatusCancelled, run.Status)
	assert.Equal(t, 0, run.Counts.Deleted)

	// The stale object survived: an incomplete pass never deletes.
	got, err := env.stores.Records.Get(ctx, "acme", "helpdesk", "ticket/stale")
	require.NoError(t, err)
	assert.Equal(t, "old", got.Content.Body)
}

func TestOrchestrator_PauseAndResume(t *testing.T) {
	gate := newGatedFetcher(source.NewStaticFetcher(2))
	env := newTestEnvWith(t, gate, nil)
	ctx := context.Background()

	gate.block()
	gate.inner.SetRecords("acme", "helpdesk", []source.RawRecord{
		rec("1", "a"), rec("2", "b"), rec("3", "c"), rec("4", "d"), rec("5", "e"),
	})
	runID, err := env.orch.StartRun(ctx, "acme", "helpdesk", core.ModeIncremental)
	require.NoError(t, err)

	// Let the first page through, then request a pause.
	gate.release(1)
	require.Eventually(t, func() bool {
		return gate.calls.Load() >= 1
	}, 5*time.Second, time.Millisecond)
	require.NoError(t, env.orch.ControlRun(ctx, runID, ActionPause))
	gate.release(1)

	require.Eventually(t, func() bool {
		r, statusErr := env.orch.GetRunStatus(ctx, runID)
		return statusErr == nil && r.Status == core.StatusPaused
	}, 10*time.Second, 5*time.Millisecond)

	// Checkpoint exists while paused.
	progress, err := env.stores.Runs.LoadProgress(ctx, runID)
	require.NoError(t, err)
	require.NotNil(t, progress)
	assert.NotEmpty(t, progress.SeenUIDs)

	// A new run is still blocked by the paused one.
	_, err = env.orch.StartRun(ctx, "acme", "helpdesk", core.ModeIncremental)
	assert.ErrorIs(t, err, ErrConcurrentRun)

	gate.releaseAll()
	require.NoError(t, env.orch.ControlRun(ctx, runID, ActionResume))
	run := waitForTerminal(t, env.orch, runID)

	assert.Equal(t, core.StatusCompleted, run.Status)
	assert.Equal(t, 5, run.Counts.Added)

	count, err := env.stores.Records.Count(ctx, "acme", "helpdesk")
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	// Terminal runs drop their checkpoint.
	progress, err = env.stores.Runs.LoadProgress(ctx, runID)
	require.NoError(t, err)
	assert.Nil(t, progress)
}

func TestOrchestrator_FetchFailureFailsRun(t *testing.T) {
	failing := &failingFetcher{}
	env := newTestEnvWith(t, failing, nil)

	runID, err := env.orch.StartRun(context.Background(), "acme", "helpdesk", core.ModeIncremental)
	require.NoError(t, err)
	run := waitForTerminal(t, env.orch, runID)

	assert.Equal(t, core.StatusFailed, run.Status)
	assert.Contains(t, run.LastError, "fetching page")
	// Retries happened before giving up.
	assert.GreaterOrEqual(t, failing.calls.Load(), int32(2))
}

func TestOrchestrator_ResumeFailedRunFromCheckpoint(t *testing.T) {
	fetcher := &recoveringFetcher{inner: source.NewStaticFetcher(2)}
	fetcher.fail.Store(true)
	env := newTestEnvWith(t, fetcher, nil)
	ctx := context.Background()

	fetcher.inner.SetRecords("acme", "helpdesk", []source.RawRecord{
		rec("1", "a"), rec("2", "b"), rec("3", "c"), rec("4", "d"), rec("5", "e"),
	})

	runID, err := env.orch.StartRun(ctx, "acme", "helpdesk", core.ModeIncremental)
	require.NoError(t, err)
	run := waitForTerminal(t, env.orch, runID)

	require.Equal(t, core.StatusFailed, run.Status)
	assert.Contains(t, run.LastError, "fetching page")
	assert.Equal(t, 2, run.Counts.Added)

	// The cursor survived the failure.
	progress, err := env.stores.Runs.LoadProgress(ctx, runID)
	require.NoError(t, err)
	require.NotNil(t, progress)
	assert.Equal(t, "2", progress.Cursor)

	// Source recovers; the failed run resumes from its checkpoint.
	fetcher.fail.Store(false)
	require.NoError(t, env.orch.ControlRun(ctx, runID, ActionResume))
	run = waitForTerminal(t, env.orch, runID)

	assert.Equal(t, core.StatusCompleted, run.Status)
	assert.Equal(t, 5, run.Counts.Added)
	assert.Empty(t, run.LastError)

	count, err := env.stores.Records.Count(ctx, "acme", "helpdesk")
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	progress, err = env.stores.Runs.LoadProgress(ctx, runID)
	require.NoError(t, err)
	assert.Nil(t, progress)
}

func TestOrchestrator_HungFetchTimesOut(t *testing.T) {
	hanging := &hangingFetcher{}
	env := newTestEnvWith(t, hanging, nil, WithCallTimeout(20*time.Millisecond))

	runID, err := env.orch.StartRun(context.Background(), "acme", "helpdesk", core.ModeIncremental)
	require.NoError(t, err)
	run := waitForTerminal(t, env.orch, runID)

	assert.Equal(t, core.StatusFailed, run.Status)
	assert.Contains(t, run.LastError, "context deadline exceeded")
	// The timed-out call was retried before the run gave up.
	assert.GreaterOrEqual(t, hanging.calls.Load(), int32(2))
}

func TestOrchestrator_PerRunChunkSize(t *testing.T) {
	gate := newGatedFetcher(source.NewStaticFetcher(2))
	env := newTestEnvWith(t, gate, nil)
	ctx := context.Background()

	gate.block()
	gate.inner.SetRecords("acme", "helpdesk", []source.RawRecord{
		rec("1", "a"), rec("2", "b"), rec("3", "c"), rec("4", "d"), rec("5", "e"),
	})

	runID, err := env.orch.StartRun(ctx, "acme", "helpdesk", core.ModeIncremental, WithRunChunkSize(1))
	require.NoError(t, err)

	// Before the first fetch completes the run is pending or running,
	// never terminal.
	run, err := env.orch.GetRunStatus(ctx, runID)
	require.NoError(t, err)
	assert.Contains(t, []core.RunStatus{core.StatusPending, core.StatusRunning}, run.Status)
	assert.False(t, run.Status.Terminal())

	gate.releaseAll()
	run = waitForTerminal(t, env.orch, runID)

	assert.Equal(t, core.StatusCompleted, run.Status)
	assert.Equal(t, 5, run.Counts.Added)

	count, err := env.stores.Records.Count(ctx, "acme", "helpdesk")
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestOrchestrator_StartRun_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.orch.StartRun(ctx, "", "helpdesk", core.ModeIncremental)
	assert.ErrorIs(t, err, core.ErrEmptyTenantID)

	_, err = env.orch.StartRun(ctx, "bad:tenant", "helpdesk", core.ModeIncremental)
	assert.ErrorIs(t, err, core.ErrInvalidKeyCharacter)

	_, err = env.orch.StartRun(ctx, "acme", "helpdesk", core.SyncMode("yolo"))
	assert.ErrorIs(t, err, core.ErrInvalidMode)
}

func TestOrchestrator_ControlRun_Errors(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.SetRecords("acme", "helpdesk", []source.RawRecord{rec("1", "a")})
	run := env.runAndWait(t, core.ModeIncremental)
	ctx := context.Background()

	assert.ErrorIs(t, env.orch.ControlRun(ctx, run.ID, ActionPause), ErrRunNotActive)
	assert.ErrorIs(t, env.orch.ControlRun(ctx, run.ID, ActionCancel), ErrRunNotActive)
	assert.ErrorIs(t, env.orch.ControlRun(ctx, run.ID, RunAction("explode")), ErrUnknownAction)
}

// gatedFetcher wraps a StaticFetcher and optionally blocks FetchPage
// until tokens are released, to make pause/cancel timing deterministic.
type gatedFetcher struct {
	inner   *source.StaticFetcher
	tokens  chan struct{}
	blocked atomic.Bool
	calls   atomic.Int32
}

func newGatedFetcher(inner *source.StaticFetcher) *gatedFetcher {
	return &gatedFetcher{
		inner:  inner,
		tokens: make(chan struct{}, 1024),
	}
}

// block makes subsequent fetches wait for tokens, draining any tokens
// left over from an earlier releaseAll.
func (g *gatedFetcher) block() {
	g.blocked.Store(true)
	for {
		select {
		case <-g.tokens:
		default:
			return
		}
	}
}

func (g *gatedFetcher) release(n int) {
	for i := 0; i < n; i++ {
		g.tokens <- struct{}{}
	}
}

func (g *gatedFetcher) releaseAll() {
	g.blocked.Store(false)
	// Unblock any fetch already waiting.
	g.release(64)
}

func (g *gatedFetcher) FetchPage(ctx context.Context, tenantID, platform, cursor string) (*source.Page, error) {
	if g.blocked.Load() {
		select {
		case <-g.tokens:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	g.calls.Add(1)
	return g.inner.FetchPage(ctx, tenantID, platform, cursor)
}

type failingFetcher struct {
	calls atomic.Int32
}

func (f *failingFetcher) FetchPage(ctx context.Context, tenantID, platform, cursor string) (*source.Page, error) {
	f.calls.Add(1)
	return nil, errors.New("source unreachable")
}

// recoveringFetcher serves the first page, then fails while the fail
// flag is set. Clearing the flag lets later pages through.
type recoveringFetcher struct {
	inner *source.StaticFetcher
	fail  atomic.Bool
}

func (f *recoveringFetcher) FetchPage(ctx context.Context, tenantID, platform, cursor string) (*source.Page, error) {
	if cursor != "" && f.fail.Load() {
		return nil, errors.New("source unreachable")
	}
	return f.inner.FetchPage(ctx, tenantID, platform, cursor)
}

// hangingFetcher never returns until the call context ends.
type hangingFetcher struct {
	calls atomic.Int32
}

func (f *hangingFetcher) FetchPage(ctx context.Context, tenantID, platform, cursor string) (*source.Page, error) {
	f.calls.Add(1)
	<-ctx.Done()
	return nil, ctx.Err()
}
