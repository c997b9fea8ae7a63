package index

import "errors"

var (
	// ErrDimensionMismatch indicates an embedding whose dimension does
	// not match the index configuration.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmptyDocumentID indicates a document submitted without an ID.
	ErrEmptyDocumentID = errors.New("document ID cannot be empty")

	// ErrIndexClosed indicates an operation on a closed index.
	ErrIndexClosed = errors.New("search index is closed")
)
