package driven

import "context"

// SearchRecord is one chunk's entry in the external search index: the
// embedding vector plus document metadata denormalised for filtering and
// display.
type SearchRecord struct {
	// ID is "{documentID}_{chunkIndex}".
	ID string `json:"id"`

	DocumentID string `json:"document_id"`
	Content    string `json:"content"`

	// Title is the original filename.
	Title string `json:"title"`

	Application string `json:"application,omitempty"`
	Issue       string `json:"issue,omitempty"`
	Ingredient  string `json:"ingredient,omitempty"`
	Customer    string `json:"customer,omitempty"`
	TrialID     string `json:"trial_id,omitempty"`
	SheetName   string `json:"sheet_name,omitempty"`
	ChunkIndex  int    `json:"chunk_index"`

	// Metadata is the denormalised fields JSON-encoded as one string.
	Metadata string `json:"metadata"`

	// CreatedAt is an RFC 3339 timestamp.
	CreatedAt string `json:"created_at"`

	// ContentVector is the chunk embedding.
	ContentVector []float32 `json:"content_vector"`
}

// QueryRequest is one combined keyword+vector search.
type QueryRequest struct {
	// Text is the full-text query.
	Text string

	// Vector is the query embedding for nearest-neighbour search.
	Vector []float32

	// K is the maximum number of candidates.
	K int

	// Filter is an equality-conjunction predicate such as
	// "application eq 'PAN' and issue eq '離水'". Empty means no filter.
	Filter string
}

// QueryHit is one scored candidate from the index. Display fields are
// denormalised; no secondary lookup is needed to present them.
type QueryHit struct {
	ID          string
	DocumentID  string
	Content     string
	Title       string
	Application string
	Issue       string
	Ingredient  string
	Customer    string
	TrialID     string
	SheetName   string
	ChunkIndex  int

	// Score is the combined base relevance score.
	Score float64

	// RerankerScore is the semantic re-ranker score when available.
	RerankerScore *float64
}

// SearchIndex is the external vector+text index.
// Ordering of query results is owned entirely by the index.
type SearchIndex interface {
	// EnsureSchema creates or updates the index definition, including
	// the vector and semantic ranking configuration. Idempotent.
	EnsureSchema(ctx context.Context) error

	// Upload adds or replaces records in one batch.
	Upload(ctx context.Context, records []SearchRecord) error

	// Delete removes records by ID. Missing IDs are not an error.
	Delete(ctx context.Context, ids []string) error

	// Query issues one combined text+vector+semantic search.
	Query(ctx context.Context, req QueryRequest) ([]QueryHit, error)
}
