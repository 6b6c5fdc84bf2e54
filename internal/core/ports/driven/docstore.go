package driven

import (
	"context"
	"time"

	"github.com/shokudev/kura/internal/core/domain"
)

// ListOptions configures document listing.
type ListOptions struct {
	// Page is the 1-based page number.
	Page int

	// PageSize is the number of documents per page.
	PageSize int

	// Status filters to a single lifecycle state when non-empty.
	Status domain.Status
}

// DocumentStore persists documents, chunks, and search history.
// Backed by SQLite for metadata storage.
type DocumentStore interface {
	// SaveDocument inserts a new document with revision 1.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// UpdateDocument persists doc guarded by its revision: the write
	// succeeds only if the stored revision equals doc.Revision, and
	// increments it, leaving the new revision in doc.Revision.
	// Returns domain.ErrStaleDocument otherwise.
	UpdateDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// ListDocuments returns one page of documents, newest first, plus
	// the total count matching the filter.
	ListDocuments(ctx context.Context, opts ListOptions) ([]domain.Document, int, error)

	// ListStale returns documents still pending or processing whose last
	// update is older than cutoff.
	ListStale(ctx context.Context, cutoff time.Time) ([]domain.Document, error)

	// DeleteDocument removes a document, cascading its chunks.
	DeleteDocument(ctx context.Context, id string) error

	// SaveChunks stores chunk rows for a document.
	SaveChunks(ctx context.Context, chunks []domain.Chunk) error

	// GetChunks retrieves all chunks for a document ordered by index.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// AddSearchHistory appends one query event.
	AddSearchHistory(ctx context.Context, entry domain.SearchHistoryEntry) error

	// ListSearchHistory returns a user's most recent queries, newest first.
	ListSearchHistory(ctx context.Context, userID string, limit int) ([]domain.SearchHistoryEntry, error)

	// Facets returns the distinct non-empty metadata values across documents.
	Facets(ctx context.Context) (*domain.Facets, error)

	// Stats returns knowledge base counters.
	Stats(ctx context.Context) (*domain.Stats, error)
}
