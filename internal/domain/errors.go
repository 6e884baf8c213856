package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrDocumentNotFound signals a missing indexed tender.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingModelMismatch signals an index built with a different embedding model.
	ErrEmbeddingModelMismatch = errors.New("embedding model mismatch")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrCompletionProviderError signals a chat completion provider failure.
	ErrCompletionProviderError = errors.New("completion provider error")
	// ErrContextCacheUnavailable signals that a provider cannot cache shared prompt context.
	ErrContextCacheUnavailable = errors.New("context cache unavailable")
	// ErrInvalidMetadata signals metadata that cannot be stored as flat scalars.
	ErrInvalidMetadata = errors.New("invalid metadata")
	// ErrInvalidQuery signals an empty or malformed search request.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrIngestBusy signals that an ingestion run is already in progress.
	ErrIngestBusy = errors.New("ingestion already running")
	// ErrJobNotFound signals an unknown ingestion job id.
	ErrJobNotFound = errors.New("job not found")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
)

// ModelMismatchError wraps ErrEmbeddingModelMismatch with the stored and configured models.
type ModelMismatchError struct {
	IndexModel      string
	IndexDimensions int
	Model           string
	Dimensions      int
}

func (e *ModelMismatchError) Error() string {
	return fmt.Sprintf("%s: index built with %s/%d, configured %s/%d",
		ErrEmbeddingModelMismatch.Error(), e.IndexModel, e.IndexDimensions, e.Model, e.Dimensions)
}

func (e *ModelMismatchError) Unwrap() error { return ErrEmbeddingModelMismatch }
