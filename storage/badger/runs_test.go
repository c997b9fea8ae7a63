package badger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/syncline/core"
	"github.com/meridianhq/syncline/storage"
)

func newTestRun(id, tenantID string, startedAt time.Time, status core.RunStatus) *core.Run {
	return &core.Run{
		ID:        id,
		TenantID:  tenantID,
		Platform:  "helpdesk",
		Mode:      core.ModeIncremental,
		Status:    status,
		StartedAt: startedAt,
	}
}

func TestRunRepository_SaveAndGet(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	run := newTestRun("run-1", "acme", time.Now().UTC(), core.StatusRunning)
	require.NoError(t, stores.Runs.SaveRun(ctx, run))

	got, err := stores.Runs.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, core.StatusRunning, got.Status)

	run.Status = core.StatusCompleted
	run.EndedAt = time.Now().UTC()
	require.NoError(t, stores.Runs.SaveRun(ctx, run))

	got, err = stores.Runs.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, got.Status)
}

func TestRunRepository_GetRun_NotFound(t *testing.T) {
	stores := newTestStores(t)

	_, err := stores.Runs.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunRepository_ListRuns_MostRecentFirst(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		run := newTestRun(fmt.Sprintf("run-%d", i), "acme", base.Add(time.Duration(i)*time.Hour), core.StatusCompleted)
		require.NoError(t, stores.Runs.SaveRun(ctx, run))
	}
	other := newTestRun("run-other", "globex", base, core.StatusCompleted)
	require.NoError(t, stores.Runs.SaveRun(ctx, other))

	runs, err := stores.Runs.ListRuns(ctx, "acme", "helpdesk")
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, "run-1", runs[1].ID)
	assert.Equal(t, "run-0", runs[2].ID)
}

func TestRunRepository_ActiveRun(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, stores.Runs.SaveRun(ctx, newTestRun("run-done", "acme", base, core.StatusCompleted)))

	active, err := stores.Runs.ActiveRun(ctx, "acme", "helpdesk")
	require.NoError(t, err)
	assert.Nil(t, active)

	require.NoError(t, stores.Runs.SaveRun(ctx, newTestRun("run-live", "acme", base.Add(time.Hour), core.StatusRunning)))

	active, err = stores.Runs.ActiveRun(ctx, "acme", "helpdesk")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "run-live", active.ID)
}

func TestRunRepository_Progress(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	got, err := stores.Runs.LoadProgress(ctx, "run-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	progress := &core.RunProgress{
		RunID:     "run-1",
		Cursor:    "page-2",
		SeenUIDs:  []string{"ticket/1", "ticket/2"},
		Counts:    core.Counts{Fetched: 20, Added: 2},
		UpdatedAt: time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC),
	}
	require.NoError(t, stores.Runs.SaveProgress(ctx, progress))

	got, err = stores.Runs.LoadProgress(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, progress, got)

	require.NoError(t, stores.Runs.DeleteProgress(ctx, "run-1"))

	got, err = stores.Runs.LoadProgress(ctx, "run-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting again is fine.
	require.NoError(t, stores.Runs.DeleteProgress(ctx, "run-1"))
}
