// Package source defines the external-source boundary of the sync engine.
//
// A Fetcher is a paged producer of raw records for one (tenant, platform)
// pair; one implementation exists per external platform and the engine
// depends only on the interface. The Normalizer merges a raw record with
// its auxiliary parts (reply thread, attachment metadata) into a single
// core.IntegratedObject whose content hash drives change detection.
//
// Normalization is deterministic and performs no I/O: the same raw input
// always produces the same normalized content and therefore the same hash.
package source
