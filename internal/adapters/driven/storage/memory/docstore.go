// Package memory provides in-memory driven adapters, used in tests and
// as a fallback when no data directory is configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shokudev/kura/internal/core/domain"
	"github.com/shokudev/kura/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of the document store.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	chunks    map[string][]domain.Chunk
	history   []domain.SearchHistoryEntry
}

// NewDocumentStore creates an empty in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]domain.Document),
		chunks:    make(map[string][]domain.Chunk),
	}
}

// SaveDocument inserts a new document with revision 1.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc.Revision = 1
	s.documents[doc.ID] = *doc
	return nil
}

// UpdateDocument persists doc if its revision matches the stored one.
func (s *DocumentStore) UpdateDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.documents[doc.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Revision != doc.Revision {
		return domain.ErrStaleDocument
	}

	doc.Revision++
	doc.UpdatedAt = time.Now()
	s.documents[doc.ID] = *doc
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// ListDocuments returns one page of documents, newest first.
func (s *DocumentStore) ListDocuments(
	_ context.Context, opts driven.ListOptions,
) ([]domain.Document, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []domain.Document
	for _, doc := range s.documents {
		if opts.Status != "" && doc.Status != opts.Status {
			continue
		}
		all = append(all, doc)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	page, size := opts.Page, opts.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = total
	}

	start := (page - 1) * size
	if start >= total {
		return nil, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

// ListStale returns pending or processing documents last updated before
// cutoff.
func (s *DocumentStore) ListStale(_ context.Context, cutoff time.Time) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stale []domain.Document
	for _, doc := range s.documents {
		if doc.Status != domain.StatusPending && doc.Status != domain.StatusProcessing {
			continue
		}
		if doc.UpdatedAt.Before(cutoff) {
			stale = append(stale, doc)
		}
	}
	sort.Slice(stale, func(i, j int) bool {
		return stale[i].UpdatedAt.Before(stale[j].UpdatedAt)
	})
	return stale, nil
}

// DeleteDocument removes a document and its chunks.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.documents, id)
	delete(s.chunks, id)
	return nil
}

// SaveChunks stores chunk rows for a document.
func (s *DocumentStore) SaveChunks(_ context.Context, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range chunks {
		s.chunks[c.DocumentID] = append(s.chunks[c.DocumentID], c)
	}
	return nil
}

// GetChunks retrieves all chunks for a document ordered by index.
func (s *DocumentStore) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chunks := make([]domain.Chunk, len(s.chunks[documentID]))
	copy(chunks, s.chunks[documentID])
	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].Index < chunks[j].Index
	})
	return chunks, nil
}

// AddSearchHistory appends one query event.
func (s *DocumentStore) AddSearchHistory(_ context.Context, entry domain.SearchHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, entry)
	return nil
}

// ListSearchHistory returns a user's most recent queries, newest first.
func (s *DocumentStore) ListSearchHistory(
	_ context.Context, userID string, limit int,
) ([]domain.SearchHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []domain.SearchHistoryEntry
	for _, e := range s.history {
		if e.UserID == userID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Facets returns the distinct non-empty metadata values across documents.
func (s *DocumentStore) Facets(_ context.Context) (*domain.Facets, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	apps := make(map[string]struct{})
	issues := make(map[string]struct{})
	ingredients := make(map[string]struct{})
	for _, doc := range s.documents {
		if doc.Meta.Application != "" {
			apps[doc.Meta.Application] = struct{}{}
		}
		if doc.Meta.Issue != "" {
			issues[doc.Meta.Issue] = struct{}{}
		}
		if doc.Meta.Ingredient != "" {
			ingredients[doc.Meta.Ingredient] = struct{}{}
		}
	}

	return &domain.Facets{
		Applications: sortedKeys(apps),
		Issues:       sortedKeys(issues),
		Ingredients:  sortedKeys(ingredients),
	}, nil
}

// Stats returns knowledge base counters.
func (s *DocumentStore) Stats(_ context.Context) (*domain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &domain.Stats{
		TotalDocuments: len(s.documents),
		TotalSearches:  len(s.history),
	}
	for _, doc := range s.documents {
		switch doc.Status {
		case domain.StatusCompleted:
			stats.IndexedDocuments++
		case domain.StatusPending, domain.StatusProcessing:
			stats.PendingDocuments++
		case domain.StatusError:
			stats.ErrorDocuments++
		}
	}

	if len(s.history) > 0 {
		var total int64
		for _, e := range s.history {
			total += e.LatencyMS
		}
		stats.AvgResponseTimeMS = float64(total) / float64(len(s.history))
	}
	return stats, nil
}

// sortedKeys returns the map keys in sorted order.
func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
