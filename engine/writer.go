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
	"log/slog"
	"time"

	"github.com/meridianhq/syncline/ai"
	"github.com/meridianhq/syncline/core"
	"github.com/meridianhq/syncline/index"
	"github.com/meridianhq/syncline/storage"
)

// Writer applies one chunk of changed objects to both stores in the
// required order: embed, record store, then search index. The record
// store is written first so that an index failure leaves a consistent
// system (object stored, index write outstanding), never the reverse.
type Writer struct {
	store        storage.RecordStore
	index        index.SearchIndex
	embedder     ai.Embedder
	maxRetries   int
	retryDelay   time.Duration
	callTimeout  time.Duration
	verifyWrites bool
	logger       *slog.Logger
}

// NewWriter creates a Writer.
func NewWriter(store storage.RecordStore, idx index.SearchIndex, embedder ai.Embedder, cfg *Config, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		store:        store,
		index:        idx,
		embedder:     embedder,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		callTimeout:  cfg.CallTimeout,
		verifyWrites: cfg.VerifyWrites,
		logger:       logger,
	}
}

// WriteResult reports the outcome of one chunk, by UID. Applied means
// both stores hold the object. Pending means the record store holds it
// but the index write is outstanding. Failed means neither store was
// updated.
type WriteResult struct {
	Applied []string
	Pending []string
	Failed  []string
	Errs    []error
}

// Merge folds another result into this one.
func (r *WriteResult) Merge(other *WriteResult) {
	r.Applied = append(r.Applied, other.Applied...)
	r.Pending = append(r.Pending, other.Pending...)
	r.Failed = append(r.Failed, other.Failed...)
	r.Errs = append(r.Errs, other.Errs...)
}

// ApplyChunk writes one chunk of objects through both stores. All
// objects in a chunk must belong to the same (tenant, platform) pair.
// A failure affects only this chunk; sibling chunks proceed.
func (w *Writer) ApplyChunk(ctx context.Context, objs []*core.IntegratedObject) *WriteResult {
	res := &WriteResult{}
	if len(objs) == 0 {
		return res
	}

	uids := make([]string, len(objs))
	texts := make([]string, len(objs))
	for i, obj := range objs {
		uids[i] = obj.Key.UID()
		texts[i] = obj.Content.SearchText()
	}

	vectors, err := w.embed(ctx, texts)
	if err != nil {
		res.Failed = uids
		res.Errs = append(res.Errs, err)
		return res
	}

	// Record store first: on any later failure the stored object is
	// marked pending and retried, never lost.
	sctx, scancel := callCtx(ctx, w.callTimeout)
	_, storeErr := w.store.Upsert(sctx, objs...)
	scancel()
	if storeErr != nil {
		res.Failed = uids
		res.Errs = append(res.Errs, storeErr)
		return res
	}

	docs := make([]index.Document, len(objs))
	for i, obj := range objs {
		docs[i] = index.Document{
			ID:        obj.Key.String(),
			TenantID:  obj.Key.TenantID,
			Platform:  obj.Key.Platform,
			Text:      texts[i],
			Embedding: vectors[i],
		}
	}

	ictx, icancel := callCtx(ctx, w.callTimeout)
	indexErr := w.index.Upsert(ictx, docs...)
	icancel()
	if indexErr != nil {
		w.logger.Warn("index write failed, objects left pending", "count", len(objs), "err", indexErr)
		res.Pending = uids
		res.Errs = append(res.Errs, indexErr)
		return res
	}

	indexed := uids
	if w.verifyWrites {
		indexed = indexed[:0]
		for i, doc := range docs {
			hctx, hcancel := callCtx(ctx, w.callTimeout)
			ok, hasErr := w.index.Has(hctx, doc.ID)
			hcancel()
			if hasErr != nil || !ok {
				w.logger.Warn("index read-back missed document", "id", doc.ID, "err", hasErr)
				res.Pending = append(res.Pending, uids[i])
				continue
			}
			indexed = append(indexed, uids[i])
		}
	}

	if len(indexed) > 0 {
		scope := objs[0].Key
		mctx, mcancel := callCtx(ctx, w.callTimeout)
		markErr := w.store.MarkIndexState(mctx, scope.TenantID, scope.Platform, core.IndexStateIndexed, indexed...)
		mcancel()
		if markErr != nil {
			// Objects stay pending and are retried by FlushPending.
			w.logger.Warn("marking index state failed", "err", markErr)
			res.Pending = append(res.Pending, indexed...)
			res.Errs = append(res.Errs, markErr)
			return res
		}
	}

	res.Applied = indexed
	return res
}

// FlushPending retries the index write for every object of the
// (tenant, platform) pair whose earlier index write failed. Returns
// the number of objects flushed and the number still pending.
func (w *Writer) FlushPending(ctx context.Context, tenantID, platform string, chunkSize int) (flushed, remaining int, err error) {
	lctx, lcancel := callCtx(ctx, w.callTimeout)
	pending, err := w.store.ListPendingIndex(lctx, tenantID, platform)
	lcancel()
	if err != nil {
		return 0, 0, err
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}
	if chunkSize < 1 {
		chunkSize = 1
	}

	for start := 0; start < len(pending); start += chunkSize {
		end := start + chunkSize
		if end > len(pending) {
			end = len(pending)
		}
		chunk := pending[start:end]

		uids := make([]string, len(chunk))
		texts := make([]string, len(chunk))
		for i, obj := range chunk {
			uids[i] = obj.Key.UID()
			texts[i] = obj.Content.SearchText()
		}

		vectors, embedErr := w.embed(ctx, texts)
		if embedErr != nil {
			w.logger.Warn("pending flush: embedding failed", "count", len(chunk), "err", embedErr)
			remaining += len(chunk)
			continue
		}

		docs := make([]index.Document, len(chunk))
		for i, obj := range chunk {
			docs[i] = index.Document{
				ID:        obj.Key.String(),
				TenantID:  obj.Key.TenantID,
				Platform:  obj.Key.Platform,
				Text:      texts[i],
				Embedding: vectors[i],
			}
		}

		ictx, icancel := callCtx(ctx, w.callTimeout)
		indexErr := w.index.Upsert(ictx, docs...)
		icancel()
		if indexErr != nil {
			w.logger.Warn("pending flush: index write failed", "count", len(chunk), "err", indexErr)
			remaining += len(chunk)
			continue
		}

		mctx, mcancel := callCtx(ctx, w.callTimeout)
		markErr := w.store.MarkIndexState(mctx, tenantID, platform, core.IndexStateIndexed, uids...)
		mcancel()
		if markErr != nil {
			w.logger.Warn("pending flush: marking index state failed", "err", markErr)
			remaining += len(chunk)
			continue
		}
		flushed += len(chunk)
	}

	return flushed, remaining, nil
}

func (w *Writer) embed(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32
	err := RetryWithBackoff(ctx, func() error {
		ectx, cancel := callCtx(ctx, w.callTimeout)
		defer cancel()
		v, embedErr := w.embedder.EmbedTexts(ectx, texts)
		if embedErr != nil {
			return embedErr
		}
		vectors = v
		return nil
	}, w.maxRetries, w.retryDelay)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, ErrEmbeddingCountMismatch
	}
	return vectors, nil
}
