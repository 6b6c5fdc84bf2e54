package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shokudev/kura/internal/adapters/driven/storage/memory"
	"github.com/shokudev/kura/internal/core/domain"
	"github.com/shokudev/kura/internal/core/ports/driven"
)

// mockGenerator is a test double for GenerationService. It records the
// context it was given.
type mockGenerator struct {
	answer      string
	err         error
	lastContext string
}

func (m *mockGenerator) Generate(_ context.Context, _, context_, _ string) (string, error) {
	m.lastContext = context_
	if m.err != nil {
		return "", m.err
	}
	return m.answer, nil
}

// queryIndex is a SearchIndex double that records the query request.
type queryIndex struct {
	mockSearchIndex
	lastRequest driven.QueryRequest
	queryErr    error
}

func (q *queryIndex) Query(_ context.Context, req driven.QueryRequest) ([]driven.QueryHit, error) {
	q.lastRequest = req
	if q.queryErr != nil {
		return nil, q.queryErr
	}
	return q.hits, nil
}

// searchFixture bundles a retrieval service with its test doubles.
type searchFixture struct {
	svc       *RetrievalService
	store     *memory.DocumentStore
	index     *queryIndex
	generator *mockGenerator
}

func newSearchFixture() *searchFixture {
	f := &searchFixture{
		store:     memory.NewDocumentStore(),
		index:     &queryIndex{},
		generator: &mockGenerator{answer: "ペクチンを0.3%追加した事例があります。"},
	}
	f.svc = NewRetrievalService(f.store, f.index, &mockEmbedder{}, f.generator)
	return f
}

// addCompletedDocument seeds a completed document with a blob URL so its
// hits survive result formatting.
func (f *searchFixture) addCompletedDocument(t *testing.T, id string) {
	t.Helper()
	err := f.store.SaveDocument(context.Background(), &domain.Document{
		ID:               id,
		OriginalFilename: id + ".xlsx",
		BlobURL:          "https://blobs.test/" + id,
		Status:           domain.StatusCompleted,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	})
	require.NoError(t, err)
}

func hit(id, docID, content string, score float64) driven.QueryHit {
	return driven.QueryHit{
		ID:         id,
		DocumentID: docID,
		Content:    content,
		Title:      docID + ".xlsx",
		Score:      score,
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	f := newSearchFixture()

	_, err := f.svc.Search(context.Background(), "  ", domain.SearchOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSearch_AnswerAndResults(t *testing.T) {
	f := newSearchFixture()
	f.addCompletedDocument(t, "doc1")
	f.index.hits = []driven.QueryHit{
		hit("doc1_0", "doc1", "ペクチンHM 0.3%で離水が改善した。", 0.91237),
	}

	answer, err := f.svc.Search(context.Background(), "離水 対策", domain.SearchOptions{})
	require.NoError(t, err)

	assert.Equal(t, "離水 対策", answer.Query)
	assert.Equal(t, "ペクチンを0.3%追加した事例があります。", answer.Response)
	assert.Equal(t, 1, answer.TotalResults)

	require.Len(t, answer.Results, 1)
	r := answer.Results[0]
	assert.Equal(t, "doc1_0", r.SearchID)
	assert.Equal(t, "doc1.xlsx", r.Filename)
	assert.Equal(t, 0.912, r.Score)
	assert.Equal(t, "https://blobs.test/doc1", r.BlobURL)
	assert.Nil(t, r.RerankerScore)
}

func TestSearch_NoResultsFallbackMessage(t *testing.T) {
	f := newSearchFixture()

	answer, err := f.svc.Search(context.Background(), "存在しない課題", domain.SearchOptions{})
	require.NoError(t, err)

	assert.Equal(t, noResultsMessage, answer.Response)
	assert.Empty(t, answer.Results)
	assert.Zero(t, answer.TotalResults)
	// The generator must not run without context.
	assert.Empty(t, f.generator.lastContext)
}

func TestSearch_FilterString(t *testing.T) {
	f := newSearchFixture()

	_, err := f.svc.Search(context.Background(), "離水", domain.SearchOptions{
		Filters: domain.SearchFilters{
			Application: "PAN",
			Issue:       "離水",
			Customer:    "A's Bakery",
		},
	})
	require.NoError(t, err)

	assert.Equal(t,
		"application eq 'PAN' and issue eq '離水' and customer eq 'A''s Bakery'",
		f.index.lastRequest.Filter)
}

func TestSearch_TopKDefaulting(t *testing.T) {
	f := newSearchFixture()

	_, err := f.svc.Search(context.Background(), "離水", domain.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, DefaultTopK, f.index.lastRequest.K)

	_, err = f.svc.Search(context.Background(), "離水", domain.SearchOptions{TopK: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, f.index.lastRequest.K)
}

func TestSearch_ContextLimits(t *testing.T) {
	f := newSearchFixture()
	f.addCompletedDocument(t, "doc1")

	long := strings.Repeat("あ", 1200)
	for i := 0; i < 7; i++ {
		f.index.hits = append(f.index.hits,
			hit("doc1_"+string(rune('0'+i)), "doc1", long, 0.9))
	}

	_, err := f.svc.Search(context.Background(), "離水", domain.SearchOptions{})
	require.NoError(t, err)

	// Only the top five candidates feed the context, each capped at
	// 1000 characters.
	assert.Equal(t, 5, strings.Count(f.generator.lastContext, "--- 案件 "))
	assert.Contains(t, f.generator.lastContext, "--- 案件 5 ---")
	assert.NotContains(t, f.generator.lastContext, "--- 案件 6 ---")
	assert.NotContains(t, f.generator.lastContext, strings.Repeat("あ", 1001))
}

func TestSearch_ContextShowsUnknownPlaceholders(t *testing.T) {
	f := newSearchFixture()
	f.addCompletedDocument(t, "doc1")
	f.index.hits = []driven.QueryHit{hit("doc1_0", "doc1", "内容", 0.8)}

	_, err := f.svc.Search(context.Background(), "離水", domain.SearchOptions{})
	require.NoError(t, err)

	assert.Contains(t, f.generator.lastContext, "アプリケーション: 不明")
	assert.Contains(t, f.generator.lastContext, "関連度スコア: 0.80")
}

func TestSearch_DropsUnavailableDocuments(t *testing.T) {
	f := newSearchFixture()
	f.addCompletedDocument(t, "good")

	ctx := context.Background()
	require.NoError(t, f.store.SaveDocument(ctx, &domain.Document{
		ID:     "noblob",
		Status: domain.StatusCompleted,
	}))
	require.NoError(t, f.store.SaveDocument(ctx, &domain.Document{
		ID:      "failed",
		BlobURL: "https://blobs.test/failed",
		Status:  domain.StatusError,
	}))

	f.index.hits = []driven.QueryHit{
		hit("good_0", "good", "内容", 0.9),
		hit("noblob_0", "noblob", "内容", 0.8),
		hit("failed_0", "failed", "内容", 0.7),
		hit("gone_0", "gone", "内容", 0.6),
	}

	answer, err := f.svc.Search(ctx, "離水", domain.SearchOptions{})
	require.NoError(t, err)

	// TotalResults reflects the index; formatted results only what the
	// caller can actually open.
	assert.Equal(t, 4, answer.TotalResults)
	require.Len(t, answer.Results, 1)
	assert.Equal(t, "good_0", answer.Results[0].SearchID)
}

func TestSearch_PreviewTruncation(t *testing.T) {
	f := newSearchFixture()
	f.addCompletedDocument(t, "doc1")
	f.index.hits = []driven.QueryHit{
		hit("doc1_0", "doc1", strings.Repeat("か", 350), 0.9),
	}

	answer, err := f.svc.Search(context.Background(), "離水", domain.SearchOptions{})
	require.NoError(t, err)

	require.Len(t, answer.Results, 1)
	preview := answer.Results[0].Preview
	assert.True(t, strings.HasSuffix(preview, "..."))
	assert.Equal(t, 300, len([]rune(strings.TrimSuffix(preview, "..."))))
}

func TestSearch_RecordsHistory(t *testing.T) {
	f := newSearchFixture()
	f.addCompletedDocument(t, "doc1")
	f.index.hits = []driven.QueryHit{hit("doc1_0", "doc1", "内容", 0.87)}

	_, err := f.svc.Search(context.Background(), "離水 改善",
		domain.SearchOptions{UserID: "u1"})
	require.NoError(t, err)

	entries, err := f.svc.History(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "離水 改善", entries[0].Query)
	assert.Equal(t, 1, entries[0].ResultCount)
	assert.Equal(t, 0.87, entries[0].TopScore)
	assert.NotEmpty(t, entries[0].ID)
}

func TestSearch_AnonymousQueryNotRecorded(t *testing.T) {
	f := newSearchFixture()

	_, err := f.svc.Search(context.Background(), "離水", domain.SearchOptions{})
	require.NoError(t, err)

	stats, err := f.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalSearches)
}

func TestSearch_GeneratorFailure(t *testing.T) {
	f := newSearchFixture()
	f.addCompletedDocument(t, "doc1")
	f.index.hits = []driven.QueryHit{hit("doc1_0", "doc1", "内容", 0.9)}
	f.generator.err = errors.New("model overloaded")

	_, err := f.svc.Search(context.Background(), "離水", domain.SearchOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generate answer")
}

func TestSearch_IndexFailure(t *testing.T) {
	f := newSearchFixture()
	f.index.queryErr = errors.New("503")

	_, err := f.svc.Search(context.Background(), "離水", domain.SearchOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search index")
}

func TestSearch_MissingServices(t *testing.T) {
	store := memory.NewDocumentStore()

	svc := NewRetrievalService(store, nil, &mockEmbedder{}, &mockGenerator{})
	_, err := svc.Search(context.Background(), "離水", domain.SearchOptions{})
	assert.ErrorIs(t, err, domain.ErrSearchIndexUnavailable)

	svc = NewRetrievalService(store, &queryIndex{}, nil, &mockGenerator{})
	_, err = svc.Search(context.Background(), "離水", domain.SearchOptions{})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestBuildFilterString_Empty(t *testing.T) {
	assert.Empty(t, buildFilterString(domain.SearchFilters{}))
}

func TestRerankerScoreRounding(t *testing.T) {
	v := 2.34567
	rounded := roundScore(&v)
	require.NotNil(t, rounded)
	assert.Equal(t, 2.346, *rounded)
	assert.Nil(t, roundScore(nil))
}
