package driving

import (
	"context"
	"time"

	"github.com/shokudev/kura/internal/core/domain"
	"github.com/shokudev/kura/internal/core/ports/driven"
)

// IngestService owns the document lifecycle: upload, background
// processing, reprocessing, deletion, and the stale-document sweep.
type IngestService interface {
	// Upload validates the file, creates a pending document, schedules
	// background processing, and returns immediately.
	Upload(ctx context.Context, filename string, content []byte) (*domain.Document, error)

	// Reprocess fetches the stored original, resets the document to
	// pending, and re-enters the pipeline. Fails only if the blob fetch
	// itself fails.
	Reprocess(ctx context.Context, documentID string) error

	// Delete removes a document: search index entries and blob
	// best-effort, then the record (cascading chunks).
	Delete(ctx context.Context, documentID string) error

	// Get retrieves one document.
	Get(ctx context.Context, documentID string) (*domain.Document, error)

	// List returns one page of documents plus the total count.
	List(ctx context.Context, opts driven.ListOptions) ([]domain.Document, int, error)

	// DownloadURL returns a time-limited URL for the stored original.
	// Pending/processing documents yield domain.ErrDocumentNotReady;
	// completed documents without a blob yield domain.ErrBlobMissing.
	DownloadURL(ctx context.Context, documentID string) (string, error)

	// SweepStale marks documents stuck in pending/processing longer than
	// threshold as errored. Returns the number reclaimed.
	SweepStale(ctx context.Context, threshold time.Duration) (int, error)
}
