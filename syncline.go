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

package syncline

import (
	"context"
	"log/slog"

	"github.com/meridianhq/syncline/ai"
	"github.com/meridianhq/syncline/ai/openai"
	"github.com/meridianhq/syncline/core"
	"github.com/meridianhq/syncline/engine"
	"github.com/meridianhq/syncline/index"
	"github.com/meridianhq/syncline/index/memindex"
	"github.com/meridianhq/syncline/index/sqlitevec"
	"github.com/meridianhq/syncline/source"
	"github.com/meridianhq/syncline/storage"
	"github.com/meridianhq/syncline/storage/badger"
)

// System bundles the record store, the search index, the embedder and
// the sync orchestrator behind one handle.
type System struct {
	stores   *badger.Stores
	idx      index.SearchIndex
	embedder ai.Embedder
	orch     *engine.Orchestrator
	logger   *slog.Logger
}

// SystemOption configures a System.
type SystemOption func(*systemOptions)

type systemOptions struct {
	aiConfig   *ai.Config
	embedder   ai.Embedder
	indexPath  string
	engineOpts []engine.Option
}

// WithAIConfig sets the embedding service configuration.
func WithAIConfig(cfg *ai.Config) SystemOption {
	return func(o *systemOptions) {
		o.aiConfig = cfg
	}
}

// WithEmbedder injects an embedder directly, bypassing the AI config.
// Useful for tests and offline runs.
func WithEmbedder(e ai.Embedder) SystemOption {
	return func(o *systemOptions) {
		o.embedder = e
	}
}

// WithIndexPath places the search index in a SQLite database at the
// given path. Without it the index is held in memory and lost on Close.
func WithIndexPath(path string) SystemOption {
	return func(o *systemOptions) {
		o.indexPath = path
	}
}

// WithEngineOptions forwards options to the sync orchestrator.
func WithEngineOptions(opts ...engine.Option) SystemOption {
	return func(o *systemOptions) {
		o.engineOpts = append(o.engineOpts, opts...)
	}
}

// NewSystem opens the record store at dbPath and wires the index, the
// embedder and the orchestrator onto it. The fetcher supplies source
// records for sync runs.
func NewSystem(dbPath string, fetcher source.Fetcher, opts ...SystemOption) (*System, error) {
	// Apply options
	options := &systemOptions{
		aiConfig: ai.DefaultConfig(), // Default if not provided
	}
	for _, opt := range opts {
		opt(options)
	}

	// Open record store and run repositories
	stores, err := badger.OpenStores(dbPath, false)
	if err != nil {
		return nil, err
	}

	// Open search index
	var idx index.SearchIndex
	if options.indexPath != "" {
		idx, err = sqlitevec.Open(options.indexPath, options.aiConfig.Dimensions)
		if err != nil {
			stores.Close()
			return nil, err
		}
	} else {
		idx = memindex.New()
	}

	// Create embedder with configured settings
	embedder := options.embedder
	if embedder == nil {
		embedder, err = openai.NewEmbedder(options.aiConfig)
		if err != nil {
			idx.Close()
			stores.Close()
			return nil, err
		}
	}

	// Create orchestrator
	orch, err := engine.NewOrchestrator(fetcher, stores.Records, stores.Runs, stores.States, idx, embedder, options.engineOpts...)
	if err != nil {
		idx.Close()
		stores.Close()
		return nil, err
	}

	return &System{
		stores:   stores,
		idx:      idx,
		embedder: embedder,
		orch:     orch,
		logger:   slog.Default(),
	}, nil
}

func (s *System) Close() error {
	// Release the worker pool first
	s.orch.Release()

	// Close the search index
	if err := s.idx.Close(); err != nil {
		s.logger.Error("error closing search index", "err", err)
		return err
	}

	// Close backend storage
	if err := s.stores.Close(); err != nil {
		s.logger.Error("error closing record store", "err", err)
		return err
	}
	return nil
}

// StartRun begins an asynchronous sync run. See engine.Orchestrator.
func (s *System) StartRun(ctx context.Context, tenantID, platform string, mode core.SyncMode, opts ...engine.RunOption) (string, error) {
	return s.orch.StartRun(ctx, tenantID, platform, mode, opts...)
}

// GetRunStatus returns the persisted state of a run.
func (s *System) GetRunStatus(ctx context.Context, runID string) (*core.Run, error) {
	return s.orch.GetRunStatus(ctx, runID)
}

// ListRuns returns the run history of a (tenant, platform) pair, most
// recent first.
func (s *System) ListRuns(ctx context.Context, tenantID, platform string) ([]*core.Run, error) {
	return s.orch.ListRuns(ctx, tenantID, platform)
}

// ControlRun pauses, resumes or cancels a run.
func (s *System) ControlRun(ctx context.Context, runID string, action engine.RunAction) error {
	return s.orch.ControlRun(ctx, runID, action)
}

// FlushPending retries outstanding index writes for a (tenant,
// platform) pair outside of a run.
func (s *System) FlushPending(ctx context.Context, tenantID, platform string) (flushed, remaining int, err error) {
	return s.orch.FlushPending(ctx, tenantID, platform)
}

// SyncState returns the durable per-scope sync state, or nil if the
// pair has never been synced.
func (s *System) SyncState(ctx context.Context, tenantID, platform string) (*core.SyncState, error) {
	return s.stores.States.Get(ctx, tenantID, platform)
}

// Search embeds the query text and returns the k nearest indexed
// documents for a (tenant, platform) pair, closest first.
func (s *System) Search(ctx context.Context, tenantID, platform, query string, k int) ([]index.Result, error) {
	if err := core.ValidateScope(tenantID, platform); err != nil {
		return nil, err
	}
	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.idx.Search(ctx, tenantID, platform, vector, k)
}

// RecordStore exposes the primary record store.
func (s *System) RecordStore() storage.RecordStore {
	return s.stores.Records
}

// Index exposes the search index.
func (s *System) Index() index.SearchIndex {
	return s.idx
}
