package core

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimited is returned (wrapped) by embedding providers when the backend throttles the caller.
	ErrRateLimited = errors.New("rate limited")

	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrEmptyText         = errors.New("empty text")
	ErrNotFound          = errors.New("not found")

	// ErrStorageInvariant marks persistence failures that leave state undefined. Callers treat it as fatal.
	ErrStorageInvariant = errors.New("storage invariant violated")
)

// IsRateLimited reports whether err carries the rate-limit signal.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// ExtractionError is returned when a stored file cannot be turned into text.
// It is fatal for the document and never retried.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// EmbeddingError is returned once a batch has exhausted its rate-limit retries
// or failed with a non-retryable error.
type EmbeddingError struct {
	Attempts int
	Err      error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// IndexingError wraps a vector store failure.
type IndexingError struct {
	Op         string
	TenantID   string
	DocumentID string
	Err        error
}

func (e *IndexingError) Error() string {
	if e.DocumentID == "" {
		return fmt.Sprintf("index %s tenant=%s: %v", e.Op, e.TenantID, e.Err)
	}
	return fmt.Sprintf("index %s tenant=%s document=%s: %v", e.Op, e.TenantID, e.DocumentID, e.Err)
}

func (e *IndexingError) Unwrap() error { return e.Err }
