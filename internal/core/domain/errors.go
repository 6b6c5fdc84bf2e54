package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedFormat indicates a file extension with no extractor.
	// Rejected at the request boundary before the pipeline runs.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrStaleDocument indicates a write with an outdated revision token.
	// The writer must re-read the document or abandon its run.
	ErrStaleDocument = errors.New("stale document revision")

	// ErrDocumentNotReady indicates a download request for a document
	// that is still pending or processing.
	ErrDocumentNotReady = errors.New("document not ready")

	// ErrBlobMissing indicates a completed document whose original file
	// was never stored (blob upload failed during ingestion).
	ErrBlobMissing = errors.New("stored file missing")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured. Ingestion and search both require it.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrSearchIndexUnavailable indicates the search index is not configured.
	ErrSearchIndexUnavailable = errors.New("search index unavailable")

	// ErrGenerationUnavailable indicates the answer generation service is
	// not configured.
	ErrGenerationUnavailable = errors.New("generation service unavailable")
)
