// Package ai defines the embedding service contract and its
// configuration. Embeddings are the only AI dependency of the sync
// engine; they turn normalized object text into vectors for the
// search index.
package ai
