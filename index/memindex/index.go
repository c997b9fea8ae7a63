// Package memindex implements the search index in process memory.
// It exists for tests and for small single-process deployments where
// pulling in SQLite is not worth it. Distances are Euclidean, matching
// the default metric of the SQLite-backed index.
package memindex

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/meridianhq/syncline/index"
)

var _ index.SearchIndex = (*Index)(nil)

// Index is an in-memory SearchIndex.
type Index struct {
	mu     sync.RWMutex
	docs   map[string]index.Document
	closed bool
}

// New creates an empty in-memory index.
func New() *Index {
	return &Index{docs: make(map[string]index.Document)}
}

// Upsert inserts or replaces documents by ID.
func (x *Index) Upsert(ctx context.Context, docs ...index.Document) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return index.ErrIndexClosed
	}
	for _, doc := range docs {
		if doc.ID == "" {
			return index.ErrEmptyDocumentID
		}
		stored := doc
		stored.Embedding = make([]float32, len(doc.Embedding))
		copy(stored.Embedding, doc.Embedding)
		x.docs[doc.ID] = stored
	}
	return nil
}

// Delete removes documents by ID. Missing IDs are skipped.
func (x *Index) Delete(ctx context.Context, ids ...string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return index.ErrIndexClosed
	}
	for _, id := range ids {
		delete(x.docs, id)
	}
	return nil
}

// Has reports whether a document is present.
func (x *Index) Has(ctx context.Context, id string) (bool, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return false, index.ErrIndexClosed
	}
	_, ok := x.docs[id]
	return ok, nil
}

// Search returns the k nearest documents for a (tenant, platform)
// pair, closest first.
func (x *Index) Search(ctx context.Context, tenantID, platform string, query []float32, k int) ([]index.Result, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return nil, index.ErrIndexClosed
	}

	var results []index.Result
	for _, doc := range x.docs {
		if doc.TenantID != tenantID || doc.Platform != platform {
			continue
		}
		if len(doc.Embedding) != len(query) {
			return nil, index.ErrDimensionMismatch
		}
		results = append(results, index.Result{
			ID:    doc.ID,
			Text:  doc.Text,
			Score: euclidean(query, doc.Embedding),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score < results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Count returns the number of documents indexed for a (tenant,
// platform) pair.
func (x *Index) Count(ctx context.Context, tenantID, platform string) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return 0, index.ErrIndexClosed
	}
	count := 0
	for _, doc := range x.docs {
		if doc.TenantID == tenantID && doc.Platform == platform {
			count++
		}
	}
	return count, nil
}

// Close marks the index closed. Further operations fail.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.closed = true
	return nil
}

func euclidean(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
