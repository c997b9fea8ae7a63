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
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/meridianhq/syncline/ai"
	"github.com/meridianhq/syncline/core"
	"github.com/meridianhq/syncline/index"
	"github.com/meridianhq/syncline/source"
	"github.com/meridianhq/syncline/storage"
)

// RunAction is a control action on an in-flight run.
type RunAction string

const (
	ActionPause  RunAction = "pause"
	ActionResume RunAction = "resume"
	ActionCancel RunAction = "cancel"
)

// ParseRunAction converts a string into a RunAction.
func ParseRunAction(s string) (RunAction, error) {
	switch RunAction(s) {
	case ActionPause, ActionResume, ActionCancel:
		return RunAction(s), nil
	default:
		return "", ErrUnknownAction
	}
}

// runHandle is the in-memory control surface of one executing run.
// The flags are polled by the run goroutine between pages and between
// chunks; they request a stop, they never force one mid-write.
type runHandle struct {
	run      *core.Run
	settings runSettings
	cancel   atomic.Bool
	pause    atomic.Bool
}

// runSettings are per-run overrides of engine defaults. They live on
// the handle only; a resumed run falls back to the defaults.
type runSettings struct {
	chunkSize int
}

// RunOption adjusts a single run without touching the engine
// configuration.
type RunOption func(*runSettings)

// WithRunChunkSize overrides the write batch size for one run.
func WithRunChunkSize(size int) RunOption {
	return func(s *runSettings) {
		if size >= 1 {
			s.chunkSize = size
		}
	}
}

// Orchestrator drives sync runs: it pages through the source, detects
// changes against stored hashes, fans chunk writes out to a worker
// pool, reconciles deletions after a complete incremental pass, and
// checkpoints progress after every page so a run can pause, resume and
// survive a crash.
//
// At most one run is active per (tenant, platform) pair, enforced both
// in memory and against persisted non-terminal runs.
type Orchestrator struct {
	fetcher    source.Fetcher
	normalizer *source.Normalizer
	store      storage.RecordStore
	runs       storage.RunRepository
	states     storage.SyncStateRepository
	idx        index.SearchIndex
	detector   *Detector
	writer     *Writer
	reconciler *Reconciler
	pool       *ants.Pool
	config     *Config
	progress   io.Writer
	logger     *slog.Logger

	mu     sync.Mutex
	active map[string]*runHandle // scope key -> handle
	byID   map[string]*runHandle
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithPoolSize sets the worker pool size for concurrent chunk writes.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(o *Orchestrator) error {
		if size < 1 {
			size = 1
		}
		if o.pool != nil {
			o.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		o.pool = pool
		o.config.PoolSize = size
		return nil
	}
}

// WithChunkSize sets the write/delete batch size.
func WithChunkSize(size int) Option {
	return func(o *Orchestrator) error {
		if size < 1 {
			size = 1
		}
		o.config.ChunkSize = size
		return nil
	}
}

// WithMaxRetries sets the attempt budget for fetch and embedding calls.
func WithMaxRetries(attempts int) Option {
	return func(o *Orchestrator) error {
		if attempts < 1 {
			attempts = 1
		}
		o.config.MaxRetries = attempts
		return nil
	}
}

// WithRetryDelay sets the base backoff delay.
func WithRetryDelay(delay time.Duration) Option {
	return func(o *Orchestrator) error {
		o.config.RetryDelay = delay
		return nil
	}
}

// WithCallTimeout bounds every external call (fetch, embed, store and
// index operations). A timed-out call is a retriable failure.
// Non-positive disables the bound.
func WithCallTimeout(timeout time.Duration) Option {
	return func(o *Orchestrator) error {
		o.config.CallTimeout = timeout
		return nil
	}
}

// WithVerifyWrites enables read-back verification of index writes.
func WithVerifyWrites(verify bool) Option {
	return func(o *Orchestrator) error {
		o.config.VerifyWrites = verify
		return nil
	}
}

// WithProgressWriter enables progress reporting to the given writer.
func WithProgressWriter(w io.Writer) Option {
	return func(o *Orchestrator) error {
		o.progress = w
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// NewOrchestrator creates an Orchestrator over the given collaborators.
func NewOrchestrator(
	fetcher source.Fetcher,
	store storage.RecordStore,
	runs storage.RunRepository,
	states storage.SyncStateRepository,
	idx index.SearchIndex,
	embedder ai.Embedder,
	opts ...Option,
) (*Orchestrator, error) {
	if fetcher == nil {
		return nil, ErrFetcherRequired
	}
	if store == nil {
		return nil, ErrRecordStoreRequired
	}
	if runs == nil {
		return nil, ErrRunRepositoryRequired
	}
	if states == nil {
		return nil, ErrSyncStateRepositoryRequired
	}
	if idx == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	config := DefaultConfig()
	pool, err := ants.NewPool(config.PoolSize)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		fetcher:    fetcher,
		normalizer: source.NewNormalizer(),
		store:      store,
		runs:       runs,
		states:     states,
		idx:        idx,
		detector:   NewDetector(),
		pool:       pool,
		config:     config,
		logger:     slog.Default(),
		active:     make(map[string]*runHandle),
		byID:       make(map[string]*runHandle),
	}

	for _, opt := range opts {
		if optErr := opt(o); optErr != nil {
			o.Release()
			return nil, optErr
		}
	}

	// Built after options so they see the final config.
	o.writer = NewWriter(store, idx, embedder, o.config, o.logger)
	o.reconciler = NewReconciler(store, idx, o.config.ChunkSize, o.config.CallTimeout, o.logger)

	return o, nil
}

// Release releases the worker pool. In-flight runs should be paused or
// cancelled first.
func (o *Orchestrator) Release() {
	if o.pool != nil {
		o.pool.Release()
	}
}

func scopeKey(tenantID, platform string) string {
	return tenantID + ":" + platform
}

// StartRun begins a new sync run for a (tenant, platform) pair and
// returns its ID. The run executes asynchronously; use GetRunStatus to
// observe it and ControlRun to pause, resume or cancel it. Returns
// ErrConcurrentRun while any run for the pair is non-terminal.
func (o *Orchestrator) StartRun(ctx context.Context, tenantID, platform string, mode core.SyncMode, opts ...RunOption) (string, error) {
	if err := core.ValidateScope(tenantID, platform); err != nil {
		return "", err
	}
	if _, err := core.ParseSyncMode(string(mode)); err != nil {
		return "", err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	key := scopeKey(tenantID, platform)
	if _, ok := o.active[key]; ok {
		return "", ErrConcurrentRun
	}
	persisted, err := o.runs.ActiveRun(ctx, tenantID, platform)
	if err != nil {
		return "", err
	}
	if persisted != nil {
		return "", fmt.Errorf("run %s is %s: %w", persisted.ID, persisted.Status, ErrConcurrentRun)
	}

	settings := runSettings{chunkSize: o.config.ChunkSize}
	for _, opt := range opts {
		opt(&settings)
	}

	// Born pending; the run goroutine moves it to running.
	run := &core.Run{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Platform:  platform,
		Mode:      mode,
		Status:    core.StatusPending,
		StartedAt: time.Now().UTC(),
	}
	if err := o.runs.SaveRun(ctx, run); err != nil {
		return "", err
	}
	if err := o.markModeInProgress(ctx, run); err != nil {
		o.logger.Warn("saving sync state failed", "err", err)
	}

	handle := &runHandle{run: run, settings: settings}
	o.active[key] = handle
	o.byID[run.ID] = handle
	go o.executeRun(handle, nil)

	return run.ID, nil
}

// GetRunStatus returns the persisted state of a run. For executing
// runs the counts are refreshed after every page.
func (o *Orchestrator) GetRunStatus(ctx context.Context, runID string) (*core.Run, error) {
	return o.runs.GetRun(ctx, runID)
}

// ListRuns returns the run history of a (tenant, platform) pair, most
// recent first.
func (o *Orchestrator) ListRuns(ctx context.Context, tenantID, platform string) ([]*core.Run, error) {
	return o.runs.ListRuns(ctx, tenantID, platform)
}

// FlushPending retries outstanding index writes for a (tenant,
// platform) pair outside of a run, for example after an index outage
// outlasted a run's own flush. Returns the number of objects flushed
// and the number still pending.
func (o *Orchestrator) FlushPending(ctx context.Context, tenantID, platform string) (flushed, remaining int, err error) {
	if err := core.ValidateScope(tenantID, platform); err != nil {
		return 0, 0, err
	}
	return o.writer.FlushPending(ctx, tenantID, platform, o.config.ChunkSize)
}

// ControlRun applies a control action to a run.
//
// Pause asks an executing run to checkpoint and stop; it takes effect
// at the next page boundary. Resume restarts a paused or failed run
// (or one orphaned by a crash) from its checkpoint. Cancel stops a run
// permanently; a cancelled run never deletes downstream data.
func (o *Orchestrator) ControlRun(ctx context.Context, runID string, action RunAction) error {
	switch action {
	case ActionPause:
		handle := o.handleFor(runID)
		if handle == nil {
			return ErrRunNotActive
		}
		handle.pause.Store(true)
		return nil

	case ActionCancel:
		if handle := o.handleFor(runID); handle != nil {
			handle.cancel.Store(true)
			return nil
		}
		// Not executing here: cancel the persisted run directly.
		run, err := o.runs.GetRun(ctx, runID)
		if err != nil {
			return err
		}
		if run.Status.Terminal() {
			return ErrRunNotActive
		}
		run.Status = core.StatusCancelled
		run.EndedAt = time.Now().UTC()
		if err := o.runs.SaveRun(ctx, run); err != nil {
			return err
		}
		if err := o.clearModeInProgress(ctx, run); err != nil {
			o.logger.Warn("saving sync state failed", "err", err)
		}
		return o.runs.DeleteProgress(ctx, runID)

	case ActionResume:
		return o.resumeRun(ctx, runID)

	default:
		return ErrUnknownAction
	}
}

// resumeRun adopts a paused or failed run (or one orphaned by a crash,
// still marked pending or running) and continues it from its
// checkpoint. Failed runs keep their checkpoint exactly for this:
// once the source recovers, the run picks up at the preserved cursor.
func (o *Orchestrator) resumeRun(ctx context.Context, runID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.byID[runID]; ok {
		// Already executing here.
		return ErrRunNotActive
	}

	run, err := o.runs.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	switch run.Status {
	case core.StatusPending, core.StatusRunning, core.StatusPaused, core.StatusFailed:
	default:
		return fmt.Errorf("run %s is %s: %w", runID, run.Status, ErrRunNotActive)
	}

	key := scopeKey(run.TenantID, run.Platform)
	if _, ok := o.active[key]; ok {
		return ErrConcurrentRun
	}

	progress, err := o.runs.LoadProgress(ctx, runID)
	if err != nil {
		return err
	}

	run.Status = core.StatusRunning
	run.LastError = ""
	run.EndedAt = time.Time{}
	if err := o.runs.SaveRun(ctx, run); err != nil {
		return err
	}
	if err := o.markModeInProgress(ctx, run); err != nil {
		o.logger.Warn("saving sync state failed", "err", err)
	}

	handle := &runHandle{run: run, settings: runSettings{chunkSize: o.config.ChunkSize}}
	o.active[key] = handle
	o.byID[runID] = handle
	go o.executeRun(handle, progress)

	return nil
}

func (o *Orchestrator) handleFor(runID string) *runHandle {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.byID[runID]
}

func (o *Orchestrator) unregister(handle *runHandle) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, scopeKey(handle.run.TenantID, handle.run.Platform))
	delete(o.byID, handle.run.ID)
}

// executeRun is the run loop. It owns the run record exclusively until
// the run parks (pause) or reaches a terminal state.
func (o *Orchestrator) executeRun(handle *runHandle, resume *core.RunProgress) {
	// Runs outlive the StartRun caller.
	ctx := context.Background()
	run := handle.run
	logger := o.logger.With("run_id", run.ID, "tenant_id", run.TenantID, "platform", run.Platform, "mode", run.Mode)
	logger.Info("sync run started", "resumed", resume != nil)

	if run.Status == core.StatusPending {
		run.Status = core.StatusRunning
		if err := o.runs.SaveRun(ctx, run); err != nil {
			logger.Warn("saving run failed", "err", err)
		}
	}

	var tracker *ProgressTracker
	if o.progress != nil {
		tracker = NewProgressTracker(o.progress, handle.settings.chunkSize)
		tracker.Start()
		defer tracker.Finish()
	}

	if run.Mode == core.ModeForceRebuild && resume == nil {
		if err := o.clearScope(ctx, run); err != nil {
			o.finalize(ctx, handle, core.StatusFailed, err)
			return
		}
	}

	known, err := o.store.KnownHashes(ctx, run.TenantID, run.Platform)
	if err != nil {
		o.finalize(ctx, handle, core.StatusFailed, err)
		return
	}

	seen := make(map[string]struct{})
	cursor := ""
	if resume != nil {
		cursor = resume.Cursor
		for _, uid := range resume.SeenUIDs {
			seen[uid] = struct{}{}
		}
		run.Counts = resume.Counts
	}

	for {
		if handle.cancel.Load() {
			o.finalize(ctx, handle, core.StatusCancelled, nil)
			return
		}
		if handle.pause.Load() {
			o.checkpoint(ctx, run, cursor, seen)
			o.park(ctx, handle)
			return
		}

		var page *source.Page
		err := RetryWithBackoff(ctx, func() error {
			fctx, cancel := callCtx(ctx, o.config.CallTimeout)
			defer cancel()
			p, fetchErr := o.fetcher.FetchPage(fctx, run.TenantID, run.Platform, cursor)
			if fetchErr != nil {
				return fetchErr
			}
			page = p
			return nil
		}, o.config.MaxRetries, o.config.RetryDelay)
		if err != nil {
			// Checkpoint first: the cursor survives for diagnosis and
			// for resuming before the run is declared failed.
			o.checkpoint(ctx, run, cursor, seen)
			o.finalize(ctx, handle, core.StatusFailed, fmt.Errorf("fetching page: %w", err))
			return
		}

		o.processPage(ctx, handle, page, known, seen, tracker)

		if page.Done {
			break
		}
		cursor = page.NextCursor
		o.checkpoint(ctx, run, cursor, seen)
		if err := o.runs.SaveRun(ctx, run); err != nil {
			logger.Warn("saving run counts failed", "err", err)
		}
	}

	if handle.cancel.Load() {
		o.finalize(ctx, handle, core.StatusCancelled, nil)
		return
	}

	// Deletion reconciliation requires a complete pass and runs only in
	// incremental mode. Full mode never deletes; force_rebuild already
	// cleared the scope.
	if run.Mode == core.ModeIncremental {
		var stale []string
		for uid := range known {
			if _, ok := seen[uid]; !ok {
				stale = append(stale, uid)
			}
		}
		if len(stale) > 0 {
			sort.Strings(stale)
			logger.Info("reconciling deletions", "count", len(stale))
			res := o.reconciler.Reconcile(ctx, run.TenantID, run.Platform, stale)
			run.Counts.Deleted += res.Deleted
			run.Counts.Errors += len(res.Failed)
		}
	}

	_, remaining, err := o.writer.FlushPending(ctx, run.TenantID, run.Platform, handle.settings.chunkSize)
	if err != nil {
		logger.Warn("flushing pending index writes failed", "err", err)
	}

	status := core.StatusCompleted
	if run.Counts.Errors > 0 || remaining > 0 {
		status = core.StatusCompletedWithErrors
	}
	o.finalize(ctx, handle, status, nil)
}

// processPage normalizes, classifies and writes one page of records.
// known is updated in place with the hashes of successfully stored
// objects so that duplicate UIDs later in the run classify correctly.
func (o *Orchestrator) processPage(ctx context.Context, handle *runHandle, page *source.Page, known map[string]string, seen map[string]struct{}, tracker *ProgressTracker) {
	run := handle.run
	run.Counts.Fetched += len(page.Records)

	batch := make([]*core.IntegratedObject, 0, len(page.Records))
	for i := range page.Records {
		obj, err := o.normalizer.Normalize(run.TenantID, run.Platform, &page.Records[i])
		if err != nil {
			run.Counts.Errors++
			o.logger.Warn("skipping malformed record",
				"run_id", run.ID, "original_id", page.Records[i].OriginalID, "err", err)
			continue
		}
		batch = append(batch, obj)
		seen[obj.Key.UID()] = struct{}{}
	}

	changes := o.detector.Detect(known, batch)

	// Changed objects only; duplicates within the page collapse to the
	// last occurrence.
	byUID := make(map[string]*core.IntegratedObject)
	var order []string
	for _, obj := range batch {
		uid := obj.Key.UID()
		if _, added := changes.Added[uid]; !added {
			if _, updated := changes.Updated[uid]; !updated {
				continue
			}
		}
		if _, dup := byUID[uid]; !dup {
			order = append(order, uid)
		}
		byUID[uid] = obj
	}

	pageRes := &WriteResult{}
	var resMu sync.Mutex
	var wg sync.WaitGroup

	chunkSize := handle.settings.chunkSize
	for start := 0; start < len(order); start += chunkSize {
		end := start + chunkSize
		if end > len(order) {
			end = len(order)
		}
		chunk := make([]*core.IntegratedObject, 0, end-start)
		for _, uid := range order[start:end] {
			chunk = append(chunk, byUID[uid])
		}

		wg.Add(1)
		submitErr := o.pool.Submit(func() {
			defer wg.Done()
			if handle.cancel.Load() {
				return
			}
			res := o.writer.ApplyChunk(ctx, chunk)
			resMu.Lock()
			pageRes.Merge(res)
			resMu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			resMu.Lock()
			for _, obj := range chunk {
				pageRes.Failed = append(pageRes.Failed, obj.Key.UID())
			}
			pageRes.Errs = append(pageRes.Errs, submitErr)
			resMu.Unlock()
		}
	}
	wg.Wait()

	stored := make([]string, 0, len(pageRes.Applied)+len(pageRes.Pending))
	stored = append(stored, pageRes.Applied...)
	stored = append(stored, pageRes.Pending...)
	for _, uid := range stored {
		if _, ok := changes.Added[uid]; ok {
			run.Counts.Added++
		} else {
			run.Counts.Updated++
		}
		known[uid] = byUID[uid].ContentHash
	}
	run.Counts.Unchanged += len(changes.Unchanged)
	run.Counts.Errors += len(pageRes.Failed)
	for _, err := range pageRes.Errs {
		o.logger.Warn("chunk write error", "run_id", run.ID, "err", err)
	}

	if tracker != nil {
		tracker.Increment(len(page.Records))
	}
}

// clearScope wipes a (tenant, platform) pair from both stores before a
// force rebuild. Index first, mirroring the deletion write order.
func (o *Orchestrator) clearScope(ctx context.Context, run *core.Run) error {
	uids, err := o.store.ListUIDs(ctx, run.TenantID, run.Platform)
	if err != nil {
		return fmt.Errorf("listing objects for rebuild: %w", err)
	}
	if len(uids) == 0 {
		return nil
	}

	o.logger.Info("force rebuild: clearing scope",
		"run_id", run.ID, "tenant_id", run.TenantID, "platform", run.Platform, "count", len(uids))

	for start := 0; start < len(uids); start += o.config.ChunkSize {
		end := start + o.config.ChunkSize
		if end > len(uids) {
			end = len(uids)
		}
		ids := make([]string, 0, end-start)
		for _, uid := range uids[start:end] {
			ids = append(ids, compositeID(run.TenantID, run.Platform, uid))
		}
		if err := o.idx.Delete(ctx, ids...); err != nil {
			return fmt.Errorf("clearing index for rebuild: %w", err)
		}
	}

	if _, err := o.store.ClearTenant(ctx, run.TenantID, run.Platform); err != nil {
		return fmt.Errorf("clearing record store for rebuild: %w", err)
	}
	return nil
}

func (o *Orchestrator) checkpoint(ctx context.Context, run *core.Run, cursor string, seen map[string]struct{}) {
	uids := make([]string, 0, len(seen))
	for uid := range seen {
		uids = append(uids, uid)
	}
	sort.Strings(uids)

	progress := &core.RunProgress{
		RunID:     run.ID,
		Cursor:    cursor,
		SeenUIDs:  uids,
		Counts:    run.Counts,
		UpdatedAt: time.Now().UTC(),
	}
	if err := o.runs.SaveProgress(ctx, progress); err != nil {
		o.logger.Warn("saving run progress failed", "run_id", run.ID, "err", err)
	}
}

// park stops a paused run, leaving its checkpoint in place for resume.
func (o *Orchestrator) park(ctx context.Context, handle *runHandle) {
	run := handle.run
	run.Status = core.StatusPaused
	if err := o.runs.SaveRun(ctx, run); err != nil {
		o.logger.Error("saving paused run failed", "run_id", run.ID, "err", err)
	}
	o.unregister(handle)
	o.logger.Info("sync run paused", "run_id", run.ID, "fetched", run.Counts.Fetched)
}

// finalize moves a run to a terminal state and releases its scope.
func (o *Orchestrator) finalize(ctx context.Context, handle *runHandle, status core.RunStatus, runErr error) {
	run := handle.run
	run.Status = status
	run.EndedAt = time.Now().UTC()
	if runErr != nil {
		run.LastError = runErr.Error()
	}

	if err := o.runs.SaveRun(ctx, run); err != nil {
		o.logger.Error("saving finished run failed", "run_id", run.ID, "err", err)
	}

	// Failed runs keep their checkpoint for diagnosis; everything else
	// cleans up.
	if status != core.StatusFailed {
		if err := o.runs.DeleteProgress(ctx, run.ID); err != nil {
			o.logger.Warn("deleting run progress failed", "run_id", run.ID, "err", err)
		}
	}

	if err := o.saveSyncState(ctx, run); err != nil {
		o.logger.Warn("saving sync state failed", "run_id", run.ID, "err", err)
	}

	o.unregister(handle)
	o.logger.Info("sync run finished",
		"run_id", run.ID,
		"status", run.Status,
		"fetched", run.Counts.Fetched,
		"added", run.Counts.Added,
		"updated", run.Counts.Updated,
		"unchanged", run.Counts.Unchanged,
		"deleted", run.Counts.Deleted,
		"errors", run.Counts.Errors,
	)
}

func (o *Orchestrator) markModeInProgress(ctx context.Context, run *core.Run) error {
	state, err := o.states.Get(ctx, run.TenantID, run.Platform)
	if err != nil {
		return err
	}
	if state == nil {
		state = &core.SyncState{TenantID: run.TenantID, Platform: run.Platform}
	}
	state.ModeInProgress = run.Mode
	return o.states.Save(ctx, state)
}

func (o *Orchestrator) clearModeInProgress(ctx context.Context, run *core.Run) error {
	state, err := o.states.Get(ctx, run.TenantID, run.Platform)
	if err != nil || state == nil {
		return err
	}
	state.ModeInProgress = ""
	return o.states.Save(ctx, state)
}

func (o *Orchestrator) saveSyncState(ctx context.Context, run *core.Run) error {
	state, err := o.states.Get(ctx, run.TenantID, run.Platform)
	if err != nil {
		return err
	}
	if state == nil {
		state = &core.SyncState{TenantID: run.TenantID, Platform: run.Platform}
	}
	state.ModeInProgress = ""
	if run.Status == core.StatusCompleted || run.Status == core.StatusCompletedWithErrors {
		state.LastRunAt = run.EndedAt
		state.LastCursor = ""
		count, countErr := o.store.Count(ctx, run.TenantID, run.Platform)
		if countErr != nil {
			return countErr
		}
		state.KnownIDCount = count
	}
	return o.states.Save(ctx, state)
}
