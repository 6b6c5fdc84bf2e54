package domain

// SearchFilters narrows a search to documents matching the given facet
// values. Empty fields are ignored.
type SearchFilters struct {
	Application string
	Issue       string
	Ingredient  string
	Customer    string
}

// Empty reports whether no filter is set.
func (f SearchFilters) Empty() bool {
	return f.Application == "" && f.Issue == "" && f.Ingredient == "" && f.Customer == ""
}

// SearchOptions configures a query.
type SearchOptions struct {
	// TopK is the maximum number of candidates requested from the index.
	// Zero means the configured default.
	TopK int

	// Filters restricts candidates by facet equality.
	Filters SearchFilters

	// UserID, when non-empty, causes the query to be recorded in the
	// search history.
	UserID string
}

// SearchResult is one formatted candidate returned to the caller.
// Display fields come denormalised from the search index; BlobURL comes
// from the backing document record.
type SearchResult struct {
	SearchID    string   `json:"id"`
	DocumentID  string   `json:"document_id"`
	Filename    string   `json:"filename"`
	Application string   `json:"application,omitempty"`
	Issue       string   `json:"issue,omitempty"`
	Ingredient  string   `json:"ingredient,omitempty"`
	Customer    string   `json:"customer,omitempty"`
	TrialID     string   `json:"trial_id,omitempty"`
	SheetName   string   `json:"sheet_name,omitempty"`
	ChunkIndex  int      `json:"chunk_index"`
	Preview     string   `json:"content_preview"`
	Score       float64  `json:"score"`
	// RerankerScore is the semantic re-ranker score when the index
	// provided one.
	RerankerScore *float64 `json:"reranker_score,omitempty"`
	BlobURL       string   `json:"blob_url"`
}

// Answer is the complete response to a query: the generated text plus the
// formatted candidates it was grounded on.
type Answer struct {
	Query        string         `json:"query"`
	Response     string         `json:"response"`
	Results      []SearchResult `json:"results"`
	TotalResults int            `json:"total_results"`
	LatencyMS    int64          `json:"response_time_ms"`
}

// Facets lists the distinct filterable metadata values present in the
// record store.
type Facets struct {
	Applications []string `json:"applications"`
	Issues       []string `json:"issues"`
	Ingredients  []string `json:"ingredients"`
}

// Stats summarises the state of the knowledge base.
type Stats struct {
	TotalDocuments    int     `json:"total_documents"`
	IndexedDocuments  int     `json:"indexed_documents"`
	PendingDocuments  int     `json:"pending_documents"`
	ErrorDocuments    int     `json:"error_documents"`
	TotalSearches     int     `json:"total_searches"`
	AvgResponseTimeMS float64 `json:"avg_response_time_ms"`
}
