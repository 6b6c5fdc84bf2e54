package domain

import "time"

// Status is the processing lifecycle state of a Document.
type Status string

// Document lifecycle states. A document moves pending -> processing and
// ends in completed or error. A reprocess request moves error back to
// pending and re-enters the same machine.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusError:
		return true
	}
	return false
}

// Document represents one uploaded artifact.
// It is owned exclusively by the ingestion orchestrator while processing;
// the retrieval engine only reads it.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// StorageName is the generated blob name (uuid + original extension).
	StorageName string

	// OriginalFilename is the filename as uploaded.
	OriginalFilename string

	// FileType is the detected type from the extension ("xlsx", "pdf", ...).
	FileType string

	// FileSize is the upload size in bytes.
	FileSize int64

	// BlobURL is the location of the stored original.
	// Non-empty only after a successful blob upload.
	BlobURL string

	// Meta holds the metadata parsed from the filename convention.
	Meta FileMetadata

	// Status is the processing lifecycle state.
	Status Status

	// ErrorMessage describes the failure when Status is error.
	ErrorMessage string

	// ExtractedText is the full plain text after extraction.
	ExtractedText string

	// Structured is the format-specific extraction payload.
	Structured *StructuredData

	// Revision is a monotonic fencing token. Every persisted update
	// increments it; a writer holding a stale revision is rejected.
	Revision int64

	// CreatedAt is when the document was uploaded.
	CreatedAt time.Time

	// UpdatedAt is when the document was last modified.
	UpdatedAt time.Time

	// IndexedAt is set when processing first reaches completed.
	IndexedAt *time.Time
}

// Chunk represents a bounded slice of a document's extracted text.
// Chunks are the unit of embedding and retrieval.
type Chunk struct {
	// DocumentID links to the parent Document.
	DocumentID string

	// Index is the zero-based position within the document.
	Index int

	// Content is the chunk text.
	Content string

	// SheetName labels the worksheet the chunk came from, when known.
	SheetName string

	// SearchID is the identifier in the external search index,
	// formed as "{documentID}_{index}".
	SearchID string

	// CreatedAt is when the chunk was persisted.
	CreatedAt time.Time
}

// SearchHistoryEntry records one query event. Entries are append-only.
type SearchHistoryEntry struct {
	// ID is the unique identifier for the entry.
	ID string

	// UserID identifies the querying principal.
	UserID string

	// Query is the raw query text.
	Query string

	// ResultCount is the number of candidates the index returned.
	ResultCount int

	// TopScore is the best relevance score, 0 when there were no results.
	TopScore float64

	// LatencyMS is the wall-clock search latency in milliseconds.
	LatencyMS int64

	// CreatedAt is when the query ran.
	CreatedAt time.Time
}
