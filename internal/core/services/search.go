package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shokudev/kura/internal/core/domain"
	"github.com/shokudev/kura/internal/core/ports/driven"
	"github.com/shokudev/kura/internal/core/ports/driving"
	"github.com/shokudev/kura/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.QueryService = (*RetrievalService)(nil)

// DefaultTopK is the candidate count when the caller does not specify one.
const DefaultTopK = 10

// contextResultLimit caps how many candidates feed the generation context.
const contextResultLimit = 5

// contextContentLimit caps the characters of one candidate's content in
// the generation context.
const contextContentLimit = 1000

// previewLimit caps the content preview attached to a formatted result.
const previewLimit = 300

// noResultsMessage is returned in place of a generated answer when the
// index yields no candidates.
const noResultsMessage = "申し訳ございません。該当する過去データが見つかりませんでした。検索キーワードを変えてお試しください。"

// RetrievalService answers natural-language queries with the
// retrieval-augmented flow: embed, hybrid search, context assembly,
// answer generation.
type RetrievalService struct {
	docStore   driven.DocumentStore
	index      driven.SearchIndex
	embeddings driven.EmbeddingService
	generator  driven.GenerationService

	topK int
}

// NewRetrievalService creates a new retrieval service.
func NewRetrievalService(
	docStore driven.DocumentStore,
	index driven.SearchIndex,
	embeddings driven.EmbeddingService,
	generator driven.GenerationService,
) *RetrievalService {
	return &RetrievalService{
		docStore:   docStore,
		index:      index,
		embeddings: embeddings,
		generator:  generator,
		topK:       DefaultTopK,
	}
}

// SetTopK overrides the default candidate count.
func (s *RetrievalService) SetTopK(k int) {
	if k > 0 {
		s.topK = k
	}
}

// Search runs one query end to end and records it in the history when
// a user is identified.
func (s *RetrievalService) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) (*domain.Answer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if s.embeddings == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if s.index == nil {
		return nil, domain.ErrSearchIndexUnavailable
	}

	start := time.Now()
	topK := opts.TopK
	if topK <= 0 {
		topK = s.topK
	}

	vector, err := s.embeddings.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := s.index.Query(ctx, driven.QueryRequest{
		Text:   query,
		Vector: vector,
		K:      topK,
		Filter: buildFilterString(opts.Filters),
	})
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	logger.Debug("index returned %d candidates", len(hits))

	response := noResultsMessage
	if searchContext := buildContext(hits); searchContext != "" {
		if s.generator == nil {
			return nil, domain.ErrGenerationUnavailable
		}
		response, err = s.generator.Generate(ctx, query, searchContext, "")
		if err != nil {
			return nil, fmt.Errorf("generate answer: %w", err)
		}
	}

	results, err := s.formatResults(ctx, hits)
	if err != nil {
		return nil, err
	}

	latency := time.Since(start).Milliseconds()
	if opts.UserID != "" {
		s.recordHistory(ctx, opts.UserID, query, hits, latency)
	}

	return &domain.Answer{
		Query:        query,
		Response:     response,
		Results:      results,
		TotalResults: len(hits),
		LatencyMS:    latency,
	}, nil
}

// History returns a user's most recent queries.
func (s *RetrievalService) History(
	ctx context.Context, userID string, limit int,
) ([]domain.SearchHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.docStore.ListSearchHistory(ctx, userID, limit)
}

// Facets returns the available filter values.
func (s *RetrievalService) Facets(ctx context.Context) (*domain.Facets, error) {
	return s.docStore.Facets(ctx)
}

// Stats returns knowledge base counters.
func (s *RetrievalService) Stats(ctx context.Context) (*domain.Stats, error) {
	return s.docStore.Stats(ctx)
}

// recordHistory appends the query event. History is advisory; a write
// failure does not fail the search.
func (s *RetrievalService) recordHistory(
	ctx context.Context, userID, query string, hits []driven.QueryHit, latency int64,
) {
	var topScore float64
	if len(hits) > 0 {
		topScore = hits[0].Score
	}

	err := s.docStore.AddSearchHistory(ctx, domain.SearchHistoryEntry{
		ID:          uuid.New().String(),
		UserID:      userID,
		Query:       query,
		ResultCount: len(hits),
		TopScore:    topScore,
		LatencyMS:   latency,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		logger.Warn("search history write failed: %v", err)
	}
}

// formatResults shapes the candidates for the caller, dropping any
// whose backing document is not fully available: not completed, or
// missing its stored original.
func (s *RetrievalService) formatResults(
	ctx context.Context, hits []driven.QueryHit,
) ([]domain.SearchResult, error) {
	var results []domain.SearchResult
	docs := make(map[string]*domain.Document)

	for _, hit := range hits {
		doc, ok := docs[hit.DocumentID]
		if !ok {
			var err error
			doc, err = s.docStore.GetDocument(ctx, hit.DocumentID)
			if err != nil {
				doc = nil
			}
			docs[hit.DocumentID] = doc
		}
		if doc == nil || doc.Status != domain.StatusCompleted || doc.BlobURL == "" {
			continue
		}

		results = append(results, domain.SearchResult{
			SearchID:      hit.ID,
			DocumentID:    hit.DocumentID,
			Filename:      hit.Title,
			Application:   hit.Application,
			Issue:         hit.Issue,
			Ingredient:    hit.Ingredient,
			Customer:      hit.Customer,
			TrialID:       hit.TrialID,
			SheetName:     hit.SheetName,
			ChunkIndex:    hit.ChunkIndex,
			Preview:       preview(hit.Content),
			Score:         round3(hit.Score),
			RerankerScore: roundScore(hit.RerankerScore),
			BlobURL:       doc.BlobURL,
		})
	}
	return results, nil
}

// buildFilterString renders the facet filters as an equality
// conjunction, e.g. "application eq 'PAN' and issue eq '離水'".
func buildFilterString(f domain.SearchFilters) string {
	var conditions []string
	if f.Application != "" {
		conditions = append(conditions, fmt.Sprintf("application eq '%s'", escapeFilterValue(f.Application)))
	}
	if f.Issue != "" {
		conditions = append(conditions, fmt.Sprintf("issue eq '%s'", escapeFilterValue(f.Issue)))
	}
	if f.Ingredient != "" {
		conditions = append(conditions, fmt.Sprintf("ingredient eq '%s'", escapeFilterValue(f.Ingredient)))
	}
	if f.Customer != "" {
		conditions = append(conditions, fmt.Sprintf("customer eq '%s'", escapeFilterValue(f.Customer)))
	}
	return strings.Join(conditions, " and ")
}

// escapeFilterValue doubles single quotes per the OData literal rules.
func escapeFilterValue(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}

// buildContext assembles the generation context from the top
// candidates. Empty when there are no candidates.
func buildContext(hits []driven.QueryHit) string {
	var blocks []string

	for i, hit := range hits {
		if i >= contextResultLimit {
			break
		}
		blocks = append(blocks, fmt.Sprintf(`--- 案件 %d ---
ファイル名: %s
アプリケーション: %s
課題: %s
使用原料: %s
関連度スコア: %.2f

内容:
%s`,
			i+1,
			hit.Title,
			orUnknown(hit.Application),
			orUnknown(hit.Issue),
			orUnknown(hit.Ingredient),
			hit.Score,
			truncateRunes(hit.Content, contextContentLimit),
		))
	}
	return strings.Join(blocks, "\n\n")
}

// orUnknown substitutes the placeholder for missing metadata.
func orUnknown(v string) string {
	if v == "" {
		return "不明"
	}
	return v
}

// preview truncates content for display, appending an ellipsis when
// anything was cut.
func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLimit {
		return content
	}
	return string(runes[:previewLimit]) + "..."
}

// truncateRunes bounds a string by rune count.
func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// round3 rounds a score to three decimal places.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// roundScore rounds an optional score to three decimal places.
func roundScore(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := round3(*v)
	return &r
}
