// Package index defines the search index contract. The index is the
// secondary downstream store: it holds one embedded document per
// integrated object and answers nearest-neighbor queries over them.
// The record store remains the source of truth; everything in the
// index can be rebuilt from it.
package index
