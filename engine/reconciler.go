package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/meridianhq/syncline/index"
	"github.com/meridianhq/syncline/storage"
)

// Reconciler removes objects that disappeared from the source. Deletes
// run in bounded chunks, index first: a record must never linger in the
// index after it left the record store, but the reverse (record without
// index document) is the normal pending state and resolves itself.
type Reconciler struct {
	store       storage.RecordStore
	index       index.SearchIndex
	chunkSize   int
	callTimeout time.Duration
	logger      *slog.Logger
}

// NewReconciler creates a Reconciler. A non-positive callTimeout
// leaves delete calls unbounded.
func NewReconciler(store storage.RecordStore, idx index.SearchIndex, chunkSize int, callTimeout time.Duration, logger *slog.Logger) *Reconciler {
	if chunkSize < 1 {
		chunkSize = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:       store,
		index:       idx,
		chunkSize:   chunkSize,
		callTimeout: callTimeout,
		logger:      logger,
	}
}

// ReconcileResult reports the outcome of one reconciliation pass.
type ReconcileResult struct {
	Deleted int
	Failed  []string
	Errs    []error
}

// Reconcile deletes the given UIDs from both stores. Each chunk fails
// independently; a failed chunk's UIDs remain in place and are picked
// up again by the next complete run.
func (r *Reconciler) Reconcile(ctx context.Context, tenantID, platform string, uids []string) *ReconcileResult {
	res := &ReconcileResult{}

	for start := 0; start < len(uids); start += r.chunkSize {
		end := start + r.chunkSize
		if end > len(uids) {
			end = len(uids)
		}
		chunk := uids[start:end]

		ids := make([]string, len(chunk))
		for i, uid := range chunk {
			ids[i] = compositeID(tenantID, platform, uid)
		}

		ictx, icancel := callCtx(ctx, r.callTimeout)
		indexErr := r.index.Delete(ictx, ids...)
		icancel()
		if indexErr != nil {
			r.logger.Warn("reconcile: index delete failed", "count", len(chunk), "err", indexErr)
			res.Failed = append(res.Failed, chunk...)
			res.Errs = append(res.Errs, indexErr)
			continue
		}

		sctx, scancel := callCtx(ctx, r.callTimeout)
		n, err := r.store.Delete(sctx, tenantID, platform, chunk...)
		scancel()
		if err != nil {
			r.logger.Warn("reconcile: record store delete failed", "count", len(chunk), "err", err)
			res.Failed = append(res.Failed, chunk...)
			res.Errs = append(res.Errs, err)
			continue
		}
		res.Deleted += n
	}

	return res
}

// compositeID rebuilds the index document ID from a UID. It must
// match core.ObjectKey.String.
func compositeID(tenantID, platform, uid string) string {
	return tenantID + ":" + platform + ":" + uid
}
