package sqlite

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shokudev/kura/internal/core/domain"
	"github.com/shokudev/kura/internal/core/ports/driven"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "kura-test-*")
	require.NoError(t, err)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, os.RemoveAll(tempDir))
	}
	return store, cleanup
}

// testDocument builds a document ready for SaveDocument.
func testDocument(id string) *domain.Document {
	return &domain.Document{
		ID:               id,
		StorageName:      id + ".xlsx",
		OriginalFilename: "PAN_離水_ペクチン_" + id + ".xlsx",
		FileType:         "xlsx",
		FileSize:         1024,
		Meta: domain.FileMetadata{
			Application: "PAN",
			Issue:       "離水",
			Ingredient:  "ペクチン",
		},
		Status:    domain.StatusPending,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

func TestStore_MigrationsAreIdempotent(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "kura-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening must not re-run applied migrations.
	store, err = NewStore(tempDir)
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestDocumentStore_SaveAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	docs := store.DocumentStore()
	ctx := context.Background()

	doc := testDocument("d1")
	doc.Structured = &domain.StructuredData{
		Sheets: []domain.SheetData{{Name: "配合表", Content: []string{"ペクチン | 2.5"}}},
	}
	require.NoError(t, docs.SaveDocument(ctx, doc))
	assert.Equal(t, int64(1), doc.Revision)

	got, err := docs.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "PAN", got.Meta.Application)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, int64(1), got.Revision)
	assert.Nil(t, got.IndexedAt)
	require.NotNil(t, got.Structured)
	require.Len(t, got.Structured.Sheets, 1)
	assert.Equal(t, "配合表", got.Structured.Sheets[0].Name)
}

func TestDocumentStore_GetNotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.DocumentStore().GetDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_UpdateIncrementsRevision(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	docs := store.DocumentStore()
	ctx := context.Background()

	doc := testDocument("d1")
	require.NoError(t, docs.SaveDocument(ctx, doc))

	now := time.Now().UTC()
	doc.Status = domain.StatusCompleted
	doc.IndexedAt = &now
	require.NoError(t, docs.UpdateDocument(ctx, doc))
	assert.Equal(t, int64(2), doc.Revision)

	got, err := docs.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, int64(2), got.Revision)
	assert.NotNil(t, got.IndexedAt)
}

func TestDocumentStore_UpdateRejectsStaleRevision(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	docs := store.DocumentStore()
	ctx := context.Background()

	doc := testDocument("d1")
	require.NoError(t, docs.SaveDocument(ctx, doc))

	// Two writers holding revision 1; only the first wins.
	first, err := docs.GetDocument(ctx, "d1")
	require.NoError(t, err)
	second, err := docs.GetDocument(ctx, "d1")
	require.NoError(t, err)

	first.Status = domain.StatusProcessing
	require.NoError(t, docs.UpdateDocument(ctx, first))

	second.Status = domain.StatusError
	err = docs.UpdateDocument(ctx, second)
	assert.ErrorIs(t, err, domain.ErrStaleDocument)

	got, err := docs.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, got.Status)
}

func TestDocumentStore_UpdateMissing(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	doc := testDocument("ghost")
	doc.Revision = 1
	err := store.DocumentStore().UpdateDocument(context.Background(), doc)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_ListDocuments(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	docs := store.DocumentStore()
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		doc := testDocument(fmt.Sprintf("d%d", i))
		doc.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		doc.UpdatedAt = doc.CreatedAt
		if i%2 == 0 {
			doc.Status = domain.StatusCompleted
		}
		require.NoError(t, docs.SaveDocument(ctx, doc))
	}

	page, total, err := docs.ListDocuments(ctx, driven.ListOptions{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	// Newest first.
	assert.Equal(t, "d4", page[0].ID)
	assert.Equal(t, "d3", page[1].ID)

	completed, total, err := docs.ListDocuments(ctx, driven.ListOptions{
		Page: 1, PageSize: 10, Status: domain.StatusCompleted,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, completed, 3)
}

func TestDocumentStore_ListStale(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	docs := store.DocumentStore()
	ctx := context.Background()

	old := testDocument("old")
	old.Status = domain.StatusProcessing
	old.UpdatedAt = time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, docs.SaveDocument(ctx, old))

	fresh := testDocument("fresh")
	fresh.Status = domain.StatusProcessing
	require.NoError(t, docs.SaveDocument(ctx, fresh))

	done := testDocument("done")
	done.Status = domain.StatusCompleted
	done.UpdatedAt = time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, docs.SaveDocument(ctx, done))

	stale, err := docs.ListStale(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "old", stale[0].ID)
}

func TestDocumentStore_DeleteCascadesChunks(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	docs := store.DocumentStore()
	ctx := context.Background()

	require.NoError(t, docs.SaveDocument(ctx, testDocument("d1")))
	require.NoError(t, docs.SaveChunks(ctx, []domain.Chunk{
		{DocumentID: "d1", Index: 0, Content: "一", SearchID: "d1_0"},
		{DocumentID: "d1", Index: 1, Content: "二", SearchID: "d1_1", SheetName: "配合表"},
	}))

	chunks, err := docs.GetChunks(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "d1_0", chunks[0].SearchID)
	assert.Equal(t, "配合表", chunks[1].SheetName)

	require.NoError(t, docs.DeleteDocument(ctx, "d1"))

	chunks, err = docs.GetChunks(ctx, "d1")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	assert.ErrorIs(t, docs.DeleteDocument(ctx, "d1"), domain.ErrNotFound)
}

func TestDocumentStore_SaveChunksIsIdempotent(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	docs := store.DocumentStore()
	ctx := context.Background()

	require.NoError(t, docs.SaveDocument(ctx, testDocument("d1")))

	chunk := domain.Chunk{DocumentID: "d1", Index: 0, Content: "初版", SearchID: "d1_0"}
	require.NoError(t, docs.SaveChunks(ctx, []domain.Chunk{chunk}))

	chunk.Content = "再処理版"
	require.NoError(t, docs.SaveChunks(ctx, []domain.Chunk{chunk}))

	chunks, err := docs.GetChunks(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "再処理版", chunks[0].Content)
}

func TestDocumentStore_SearchHistory(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	docs := store.DocumentStore()
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		require.NoError(t, docs.AddSearchHistory(ctx, domain.SearchHistoryEntry{
			ID:          fmt.Sprintf("h%d", i),
			UserID:      "u1",
			Query:       fmt.Sprintf("query %d", i),
			ResultCount: i,
			TopScore:    0.5,
			LatencyMS:   int64(100 * (i + 1)),
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, docs.AddSearchHistory(ctx, domain.SearchHistoryEntry{
		ID: "other", UserID: "u2", Query: "別ユーザー", CreatedAt: base,
	}))

	entries, err := docs.ListSearchHistory(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "query 2", entries[0].Query)
	assert.Equal(t, "query 1", entries[1].Query)
}

func TestDocumentStore_Facets(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	docs := store.DocumentStore()
	ctx := context.Background()

	a := testDocument("a")
	a.Meta = domain.FileMetadata{Application: "PAN", Issue: "離水", Ingredient: "ペクチン"}
	require.NoError(t, docs.SaveDocument(ctx, a))

	b := testDocument("b")
	b.Meta = domain.FileMetadata{Application: "GUMI", Issue: "離水"}
	require.NoError(t, docs.SaveDocument(ctx, b))

	facets, err := docs.Facets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"GUMI", "PAN"}, facets.Applications)
	assert.Equal(t, []string{"離水"}, facets.Issues)
	assert.Equal(t, []string{"ペクチン"}, facets.Ingredients)
}

func TestDocumentStore_Stats(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	docs := store.DocumentStore()
	ctx := context.Background()

	for i, status := range []domain.Status{
		domain.StatusCompleted, domain.StatusCompleted,
		domain.StatusPending, domain.StatusError,
	} {
		doc := testDocument(fmt.Sprintf("d%d", i))
		doc.Status = status
		require.NoError(t, docs.SaveDocument(ctx, doc))
	}
	require.NoError(t, docs.AddSearchHistory(ctx, domain.SearchHistoryEntry{
		ID: "h1", UserID: "u1", Query: "q", LatencyMS: 100,
	}))
	require.NoError(t, docs.AddSearchHistory(ctx, domain.SearchHistoryEntry{
		ID: "h2", UserID: "u1", Query: "q", LatencyMS: 300,
	}))

	stats, err := docs.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalDocuments)
	assert.Equal(t, 2, stats.IndexedDocuments)
	assert.Equal(t, 1, stats.PendingDocuments)
	assert.Equal(t, 1, stats.ErrorDocuments)
	assert.Equal(t, 2, stats.TotalSearches)
	assert.InDelta(t, 200, stats.AvgResponseTimeMS, 0.001)
}
