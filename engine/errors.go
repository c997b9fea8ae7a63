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

import "errors"

var (
	// ErrConcurrentRun indicates a second run was requested for a
	// (tenant, platform) pair that already has a non-terminal run.
	ErrConcurrentRun = errors.New("a run is already active for this tenant and platform")

	// ErrRunNotActive indicates a control action on a run that is not
	// currently executing.
	ErrRunNotActive = errors.New("run is not active")

	// ErrUnknownAction indicates an unrecognized run control action.
	ErrUnknownAction = errors.New("unknown run control action")

	// ErrInvalidMaxAttempts indicates a retry call with a non-positive
	// attempt budget.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than zero")

	// ErrEmbeddingCountMismatch indicates the embedder returned a
	// different number of vectors than texts submitted.
	ErrEmbeddingCountMismatch = errors.New("embedder returned wrong number of vectors")

	// ErrFetcherRequired indicates a nil fetcher was passed to the
	// orchestrator constructor.
	ErrFetcherRequired = errors.New("fetcher is required")

	// ErrRecordStoreRequired indicates a nil record store was passed to
	// the orchestrator constructor.
	ErrRecordStoreRequired = errors.New("record store is required")

	// ErrRunRepositoryRequired indicates a nil run repository was
	// passed to the orchestrator constructor.
	ErrRunRepositoryRequired = errors.New("run repository is required")

	// ErrSyncStateRepositoryRequired indicates a nil sync state
	// repository was passed to the orchestrator constructor.
	ErrSyncStateRepositoryRequired = errors.New("sync state repository is required")

	// ErrIndexRequired indicates a nil search index was passed to the
	// orchestrator constructor.
	ErrIndexRequired = errors.New("search index is required")

	// ErrEmbedderRequired indicates a nil embedder was passed to the
	// orchestrator constructor.
	ErrEmbedderRequired = errors.New("embedder is required")
)
