// Package azure provides the Azure AI Search implementation of the
// search index, using the service's REST API directly.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shokudev/kura/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.SearchIndex = (*Index)(nil)

// Default configuration values.
const (
	DefaultIndexName  = "kura-chunks"
	DefaultDimensions = 1536
	DefaultTimeout    = 60 * time.Second

	apiVersion = "2024-07-01"

	vectorProfile  = "vector-profile"
	hnswAlgorithm  = "hnsw-algorithm"
	semanticConfig = "semantic-config"
)

// selectFields are the fields hydrated into query hits. The embedding
// itself is never read back.
var selectFields = strings.Join([]string{
	"id", "document_id", "content", "title", "application", "issue",
	"ingredient", "customer", "trial_id", "sheet_name", "chunk_index",
}, ",")

// Config holds configuration for the Azure AI Search index.
type Config struct {
	// Endpoint is the search service endpoint, e.g.
	// "https://myservice.search.windows.net" (required).
	Endpoint string

	// APIKey is the admin or query key (required).
	APIKey string

	// IndexName is the target index (default: kura-chunks).
	IndexName string

	// Dimensions is the embedding vector size (default: 1536).
	Dimensions int

	// Timeout is the request timeout (default: 60s).
	Timeout time.Duration
}

// Index talks to one Azure AI Search index.
type Index struct {
	client     *http.Client
	endpoint   string
	apiKey     string
	name       string
	dimensions int
}

// NewIndex creates a new Azure AI Search index adapter.
func NewIndex(cfg Config) (*Index, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("azure search: endpoint is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("azure search: API key is required")
	}
	if cfg.IndexName == "" {
		cfg.IndexName = DefaultIndexName
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Index{
		client:     &http.Client{Timeout: cfg.Timeout},
		endpoint:   strings.TrimSuffix(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		name:       cfg.IndexName,
		dimensions: cfg.Dimensions,
	}, nil
}

// EnsureSchema creates or updates the index definition. Idempotent.
func (x *Index) EnsureSchema(ctx context.Context) error {
	url := fmt.Sprintf("%s/indexes/%s?api-version=%s", x.endpoint, x.name, apiVersion)
	_, err := x.do(ctx, http.MethodPut, url, x.schema())
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Upload adds or replaces records in one batch.
func (x *Index) Upload(ctx context.Context, records []driven.SearchRecord) error {
	if len(records) == 0 {
		return nil
	}

	actions := make([]uploadAction, len(records))
	for i, rec := range records {
		actions[i] = uploadAction{Action: "mergeOrUpload", SearchRecord: rec}
	}

	url := fmt.Sprintf("%s/indexes/%s/docs/index?api-version=%s", x.endpoint, x.name, apiVersion)
	if _, err := x.do(ctx, http.MethodPost, url, map[string]any{"value": actions}); err != nil {
		return fmt.Errorf("upload records: %w", err)
	}
	return nil
}

// Delete removes records by ID. Missing IDs are not an error: the
// service reports them as succeeded deletes.
func (x *Index) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	actions := make([]deleteAction, len(ids))
	for i, id := range ids {
		actions[i] = deleteAction{Action: "delete", ID: id}
	}

	url := fmt.Sprintf("%s/indexes/%s/docs/index?api-version=%s", x.endpoint, x.name, apiVersion)
	if _, err := x.do(ctx, http.MethodPost, url, map[string]any{"value": actions}); err != nil {
		return fmt.Errorf("delete records: %w", err)
	}
	return nil
}

// Query issues one combined text+vector+semantic search.
func (x *Index) Query(ctx context.Context, req driven.QueryRequest) ([]driven.QueryHit, error) {
	body := map[string]any{
		"search":                req.Text,
		"select":                selectFields,
		"top":                   req.K,
		"queryType":             "semantic",
		"semanticConfiguration": semanticConfig,
		"vectorQueries": []map[string]any{{
			"kind":   "vector",
			"vector": req.Vector,
			"fields": "content_vector",
			"k":      req.K,
		}},
	}
	if req.Filter != "" {
		body["filter"] = req.Filter
	}

	url := fmt.Sprintf("%s/indexes/%s/docs/search?api-version=%s", x.endpoint, x.name, apiVersion)
	respBody, err := x.do(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	var resp searchResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("query: decode response: %w", err)
	}

	hits := make([]driven.QueryHit, 0, len(resp.Value))
	for _, h := range resp.Value {
		hits = append(hits, driven.QueryHit{
			ID:            h.ID,
			DocumentID:    h.DocumentID,
			Content:       h.Content,
			Title:         h.Title,
			Application:   h.Application,
			Issue:         h.Issue,
			Ingredient:    h.Ingredient,
			Customer:      h.Customer,
			TrialID:       h.TrialID,
			SheetName:     h.SheetName,
			ChunkIndex:    h.ChunkIndex,
			Score:         h.Score,
			RerankerScore: h.RerankerScore,
		})
	}
	return hits, nil
}

// do sends one JSON request and returns the response body on 2xx.
func (x *Index) do(ctx context.Context, method, url string, payload any) ([]byte, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", x.apiKey)

	resp, err := x.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("azure search returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// schema is the index definition: the denormalised record fields, HNSW
// vector search, and a semantic configuration prioritising content with
// the facet fields as keywords.
func (x *Index) schema() map[string]any {
	str := "Edm.String"
	field := func(name, typ string, attrs map[string]any) map[string]any {
		f := map[string]any{"name": name, "type": typ}
		for k, v := range attrs {
			f[k] = v
		}
		return f
	}

	return map[string]any{
		"name": x.name,
		"fields": []map[string]any{
			field("id", str, map[string]any{"key": true}),
			field("document_id", str, map[string]any{"filterable": true}),
			field("content", str, map[string]any{"searchable": true}),
			field("title", str, map[string]any{"searchable": true, "filterable": true}),
			field("application", str, map[string]any{"searchable": true, "filterable": true, "facetable": true}),
			field("issue", str, map[string]any{"searchable": true, "filterable": true, "facetable": true}),
			field("ingredient", str, map[string]any{"searchable": true, "filterable": true, "facetable": true}),
			field("customer", str, map[string]any{"filterable": true}),
			field("trial_id", str, map[string]any{"filterable": true}),
			field("sheet_name", str, map[string]any{"searchable": true, "filterable": true}),
			field("chunk_index", "Edm.Int32", nil),
			field("metadata", str, nil),
			field("created_at", str, map[string]any{"filterable": true, "sortable": true}),
			field("content_vector", "Collection(Edm.Single)", map[string]any{
				"searchable":          true,
				"dimensions":          x.dimensions,
				"vectorSearchProfile": vectorProfile,
			}),
		},
		"vectorSearch": map[string]any{
			"algorithms": []map[string]any{{"name": hnswAlgorithm, "kind": "hnsw"}},
			"profiles": []map[string]any{{
				"name":      vectorProfile,
				"algorithm": hnswAlgorithm,
			}},
		},
		"semantic": map[string]any{
			"configurations": []map[string]any{{
				"name": semanticConfig,
				"prioritizedFields": map[string]any{
					"prioritizedContentFields": []map[string]any{{"fieldName": "content"}},
					"prioritizedKeywordsFields": []map[string]any{
						{"fieldName": "application"},
						{"fieldName": "issue"},
						{"fieldName": "ingredient"},
					},
				},
			}},
		},
	}
}

// uploadAction is one record plus its batch action.
type uploadAction struct {
	Action string `json:"@search.action"`
	driven.SearchRecord
}

// deleteAction removes one record by key.
type deleteAction struct {
	Action string `json:"@search.action"`
	ID     string `json:"id"`
}

// searchResponse is the docs/search response format.
type searchResponse struct {
	Value []searchHit `json:"value"`
}

// searchHit is one scored result row.
type searchHit struct {
	ID            string   `json:"id"`
	DocumentID    string   `json:"document_id"`
	Content       string   `json:"content"`
	Title         string   `json:"title"`
	Application   string   `json:"application"`
	Issue         string   `json:"issue"`
	Ingredient    string   `json:"ingredient"`
	Customer      string   `json:"customer"`
	TrialID       string   `json:"trial_id"`
	SheetName     string   `json:"sheet_name"`
	ChunkIndex    int      `json:"chunk_index"`
	Score         float64  `json:"@search.score"`
	RerankerScore *float64 `json:"@search.rerankerScore"`
}
