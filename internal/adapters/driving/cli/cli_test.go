package cli

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/shokudev/kura/internal/adapters/driven/config/file"
	"github.com/shokudev/kura/internal/core/domain"
	"github.com/shokudev/kura/internal/core/ports/driven"
)

// stubIngestService is a canned driving.IngestService for command tests.
type stubIngestService struct {
	mu        sync.Mutex
	docs      map[string]*domain.Document
	uploaded  []string
	deleted   []string
	url       string
	urlErr    error
	reclaimed int
	err       error
}

func newStubIngestService() *stubIngestService {
	return &stubIngestService{docs: make(map[string]*domain.Document)}
}

func (s *stubIngestService) Upload(_ context.Context, filename string, _ []byte) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.uploaded = append(s.uploaded, filename)
	doc := &domain.Document{
		ID:               "doc-" + filename,
		OriginalFilename: filename,
		Status:           domain.StatusPending,
	}
	s.docs[doc.ID] = doc
	return doc, nil
}

// uploadedFiles is the race-safe accessor used when the stub is driven
// from another goroutine.
func (s *stubIngestService) uploadedFiles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.uploaded...)
}

func (s *stubIngestService) Reprocess(_ context.Context, id string) error {
	if s.err != nil {
		return s.err
	}
	if _, ok := s.docs[id]; !ok {
		return domain.ErrNotFound
	}
	return nil
}

func (s *stubIngestService) Delete(_ context.Context, id string) error {
	if s.err != nil {
		return s.err
	}
	if _, ok := s.docs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.docs, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubIngestService) Get(_ context.Context, id string) (*domain.Document, error) {
	doc, ok := s.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return doc, nil
}

func (s *stubIngestService) List(_ context.Context, opts driven.ListOptions) ([]domain.Document, int, error) {
	if s.err != nil {
		return nil, 0, s.err
	}
	var docs []domain.Document
	for _, doc := range s.docs {
		if opts.Status != "" && doc.Status != opts.Status {
			continue
		}
		docs = append(docs, *doc)
	}
	return docs, len(docs), nil
}

func (s *stubIngestService) DownloadURL(_ context.Context, id string) (string, error) {
	if s.urlErr != nil {
		return "", s.urlErr
	}
	if _, ok := s.docs[id]; !ok {
		return "", domain.ErrNotFound
	}
	return s.url, nil
}

func (s *stubIngestService) SweepStale(_ context.Context, _ time.Duration) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.reclaimed, nil
}

// stubQueryService is a canned driving.QueryService for command tests.
type stubQueryService struct {
	answer   *domain.Answer
	history  []domain.SearchHistoryEntry
	facets   *domain.Facets
	stats    *domain.Stats
	lastOpts domain.SearchOptions
	err      error
}

func (s *stubQueryService) Search(_ context.Context, query string, opts domain.SearchOptions) (*domain.Answer, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.lastOpts = opts
	if s.answer != nil {
		return s.answer, nil
	}
	return &domain.Answer{Query: query, Response: "answer text"}, nil
}

func (s *stubQueryService) History(_ context.Context, _ string, _ int) ([]domain.SearchHistoryEntry, error) {
	return s.history, s.err
}

func (s *stubQueryService) Facets(_ context.Context) (*domain.Facets, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.facets != nil {
		return s.facets, nil
	}
	return &domain.Facets{}, nil
}

func (s *stubQueryService) Stats(_ context.Context) (*domain.Stats, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.stats != nil {
		return s.stats, nil
	}
	return &domain.Stats{}, nil
}

// setupTestServices injects stubbed services and returns the stubs plus
// a cleanup restoring the package state.
func setupTestServices() (*stubIngestService, *stubQueryService, func()) {
	ingest := newStubIngestService()
	query := &stubQueryService{}

	ingestService = ingest
	queryService = query
	searchIndex = nil
	queueWait = nil
	settings = file.Defaults()
	servicesReady = true

	return ingest, query, func() {
		ingestService = nil
		queryService = nil
		searchIndex = nil
		queueWait = nil
		servicesReady = false
	}
}

// executeCommand runs the root command with args and captures output.
func executeCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}
