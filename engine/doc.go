// Package engine implements the synchronization engine: change
// detection against stored content hashes, ordered dual-store writes,
// bounded-batch deletion reconciliation, and the run orchestrator that
// drives the fetch loop with pause, resume and cancellation.
package engine
