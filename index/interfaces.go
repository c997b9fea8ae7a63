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

package index

import "context"

// Document is one indexed object. ID is the object's fully scoped
// identity (tenant:platform:uid), so IDs of different tenants never
// collide and scoped deletion needs no extra bookkeeping.
type Document struct {
	ID        string
	TenantID  string
	Platform  string
	Text      string
	Embedding []float32
}

// Result is one search hit. Score is a distance, lower is closer.
type Result struct {
	ID    string
	Text  string
	Score float64
}

// SearchIndex is the semantic search side of the dual-store pair.
// Implementations must be thread-safe. Upsert and Delete are
// idempotent so that sync retries and reconciliation replays are safe.
type SearchIndex interface {
	// Upsert inserts or replaces documents by ID.
	Upsert(ctx context.Context, docs ...Document) error

	// Delete removes documents by ID. Missing IDs are skipped.
	Delete(ctx context.Context, ids ...string) error

	// Has reports whether a document is present. Used to verify
	// dual-store consistency after writes.
	Has(ctx context.Context, id string) (bool, error)

	// Search returns the k nearest documents for a (tenant, platform)
	// pair, closest first.
	Search(ctx context.Context, tenantID, platform string, query []float32, k int) ([]Result, error)

	// Count returns the number of documents indexed for a (tenant,
	// platform) pair.
	Count(ctx context.Context, tenantID, platform string) (int, error)

	// Close releases index resources.
	Close() error
}
