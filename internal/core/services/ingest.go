package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shokudev/kura/internal/core/domain"
	"github.com/shokudev/kura/internal/core/ports/driven"
	"github.com/shokudev/kura/internal/core/ports/driving"
	"github.com/shokudev/kura/internal/logger"
)

// Ensure IngestOrchestrator implements the interface.
var _ driving.IngestService = (*IngestOrchestrator)(nil)

// indexBatchSize bounds one chunk persistence and index upload batch.
const indexBatchSize = 100

// defaultDownloadTTL is how long a signed download URL stays valid.
const defaultDownloadTTL = time.Hour

// staleErrorMessage marks documents reclaimed by the sweep.
const staleErrorMessage = "processing timed out"

// sheetMarkerPattern matches the worksheet markers the workbook
// extractor embeds in the text stream.
var sheetMarkerPattern = regexp.MustCompile(`\[シート: ([^\]]+)\]`)

// IngestOrchestrator coordinates the document lifecycle: upload,
// background processing, reprocessing, deletion, and the stale sweep.
type IngestOrchestrator struct {
	docStore   driven.DocumentStore
	blobStore  driven.BlobStore
	index      driven.SearchIndex
	embeddings driven.EmbeddingService
	registry   driven.ExtractorRegistry
	chunker    driven.Chunker
	queue      driven.TaskQueue

	downloadTTL time.Duration
}

// NewIngestOrchestrator creates a new ingestion orchestrator.
// The index and embeddings services are optional at construction; a
// document processed while either is nil ends in the error state.
func NewIngestOrchestrator(
	docStore driven.DocumentStore,
	blobStore driven.BlobStore,
	index driven.SearchIndex,
	embeddings driven.EmbeddingService,
	registry driven.ExtractorRegistry,
	chunker driven.Chunker,
) *IngestOrchestrator {
	return &IngestOrchestrator{
		docStore:    docStore,
		blobStore:   blobStore,
		index:       index,
		embeddings:  embeddings,
		registry:    registry,
		chunker:     chunker,
		downloadTTL: defaultDownloadTTL,
	}
}

// SetQueue wires the task queue that drives background processing.
// Set after construction because the queue's handler calls back into
// Process.
func (o *IngestOrchestrator) SetQueue(queue driven.TaskQueue) {
	o.queue = queue
}

// Upload validates the file, creates a pending document record, and
// schedules background processing.
func (o *IngestOrchestrator) Upload(
	ctx context.Context, filename string, content []byte,
) (*domain.Document, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, fmt.Errorf("%w: empty filename", domain.ErrInvalidInput)
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: empty file", domain.ErrInvalidInput)
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if !o.registry.Supported(filename) {
		return nil, fmt.Errorf("%w: .%s", domain.ErrUnsupportedFormat, ext)
	}

	now := time.Now()
	doc := &domain.Document{
		ID:               uuid.New().String(),
		StorageName:      uuid.New().String() + "." + ext,
		OriginalFilename: filepath.Base(filename),
		FileType:         ext,
		FileSize:         int64(len(content)),
		Meta:             domain.ParseFilename(filename),
		Status:           domain.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := o.docStore.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	logger.Info("upload accepted: %s (%s, %d bytes)", doc.ID, doc.OriginalFilename, doc.FileSize)

	if o.queue != nil {
		o.queue.Submit(doc.ID, content)
	}
	return doc, nil
}

// Process runs the ingestion pipeline for one document. It is invoked
// by the task queue and moves the document to completed or error.
//
// The blob upload is best-effort: a document can complete without a
// stored original, which only disables downloads later.
func (o *IngestOrchestrator) Process(ctx context.Context, documentID string, content []byte) error {
	doc, err := o.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}

	logger.Section(fmt.Sprintf("Processing %s", doc.OriginalFilename))
	doc.Status = domain.StatusProcessing
	if err := o.docStore.UpdateDocument(ctx, doc); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	text, structured, err := o.registry.Extract(ctx, content, doc.OriginalFilename)
	if err != nil {
		return o.fail(ctx, doc, fmt.Errorf("extract: %w", err))
	}
	doc.ExtractedText = text
	doc.Structured = structured
	logger.Debug("extracted %d characters", len(text))

	if url, err := o.blobStore.Upload(ctx, doc.StorageName, content); err != nil {
		logger.Warn("blob upload failed for %s: %v", doc.ID, err)
	} else {
		doc.BlobURL = url
	}

	if err := o.indexChunks(ctx, doc, text); err != nil {
		return o.fail(ctx, doc, err)
	}

	now := time.Now()
	doc.IndexedAt = &now
	doc.Status = domain.StatusCompleted
	doc.ErrorMessage = ""
	if err := o.docStore.UpdateDocument(ctx, doc); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	logger.Info("document %s completed", doc.ID)
	return nil
}

// indexChunks splits the text, embeds each chunk, and persists chunk
// rows and index records in batches.
func (o *IngestOrchestrator) indexChunks(ctx context.Context, doc *domain.Document, text string) error {
	if o.embeddings == nil {
		return domain.ErrEmbeddingUnavailable
	}
	if o.index == nil {
		return domain.ErrSearchIndexUnavailable
	}

	chunks := o.chunker.Split(text)
	logger.Debug("created %d chunks", len(chunks))

	var rows []domain.Chunk
	var records []driven.SearchRecord
	sheets := newSheetLabeller()

	for i, chunk := range chunks {
		vector, err := o.embeddings.Embed(ctx, chunk)
		if err != nil {
			return fmt.Errorf("embed chunk %d: %w", i, err)
		}

		sheetName := sheets.label(chunk)
		searchID := fmt.Sprintf("%s_%d", doc.ID, i)

		rows = append(rows, domain.Chunk{
			DocumentID: doc.ID,
			Index:      i,
			Content:    chunk,
			SheetName:  sheetName,
			SearchID:   searchID,
			CreatedAt:  time.Now(),
		})
		records = append(records, driven.SearchRecord{
			ID:            searchID,
			DocumentID:    doc.ID,
			Content:       chunk,
			Title:         doc.OriginalFilename,
			Application:   doc.Meta.Application,
			Issue:         doc.Meta.Issue,
			Ingredient:    doc.Meta.Ingredient,
			Customer:      doc.Meta.Customer,
			TrialID:       doc.Meta.TrialID,
			SheetName:     sheetName,
			ChunkIndex:    i,
			Metadata:      encodeChunkMetadata(doc.Meta, sheetName),
			CreatedAt:     time.Now().UTC().Format(time.RFC3339),
			ContentVector: vector,
		})

		if len(rows) >= indexBatchSize {
			if err := o.flushBatch(ctx, rows, records); err != nil {
				return err
			}
			rows = rows[:0]
			records = records[:0]
		}
	}

	if len(rows) > 0 {
		if err := o.flushBatch(ctx, rows, records); err != nil {
			return err
		}
	}
	return nil
}

// flushBatch persists one batch of chunk rows and uploads the matching
// index records.
func (o *IngestOrchestrator) flushBatch(
	ctx context.Context, rows []domain.Chunk, records []driven.SearchRecord,
) error {
	if err := o.docStore.SaveChunks(ctx, rows); err != nil {
		return fmt.Errorf("save chunks: %w", err)
	}
	if err := o.index.Upload(ctx, records); err != nil {
		return fmt.Errorf("index upload: %w", err)
	}
	return nil
}

// fail records the failure on the document. A stale revision means
// another writer took over; the run is abandoned quietly.
func (o *IngestOrchestrator) fail(ctx context.Context, doc *domain.Document, cause error) error {
	logger.Warn("processing %s failed: %v", doc.ID, cause)
	doc.Status = domain.StatusError
	doc.ErrorMessage = cause.Error()
	if err := o.docStore.UpdateDocument(ctx, doc); err != nil {
		if errors.Is(err, domain.ErrStaleDocument) {
			logger.Warn("document %s changed underneath the pipeline, abandoning", doc.ID)
			return cause
		}
		return fmt.Errorf("mark error: %w", err)
	}
	return cause
}

// Reprocess fetches the stored original and re-enters the pipeline.
func (o *IngestOrchestrator) Reprocess(ctx context.Context, documentID string) error {
	doc, err := o.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}

	content, err := o.blobStore.Download(ctx, doc.StorageName)
	if err != nil {
		return fmt.Errorf("fetch original: %w", err)
	}

	doc.Status = domain.StatusPending
	doc.ErrorMessage = ""
	if err := o.docStore.UpdateDocument(ctx, doc); err != nil {
		return fmt.Errorf("mark pending: %w", err)
	}

	if o.queue != nil {
		o.queue.Submit(doc.ID, content)
	}
	return nil
}

// Delete removes a document. The index entries and blob are removed
// best-effort before the record itself; a failure there leaves only
// orphans in external systems, never a dangling record.
func (o *IngestOrchestrator) Delete(ctx context.Context, documentID string) error {
	doc, err := o.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}

	chunks, err := o.docStore.GetChunks(ctx, documentID)
	if err != nil {
		return fmt.Errorf("get chunks: %w", err)
	}
	if len(chunks) > 0 && o.index != nil {
		ids := make([]string, 0, len(chunks))
		for _, c := range chunks {
			ids = append(ids, c.SearchID)
		}
		if err := o.index.Delete(ctx, ids); err != nil {
			logger.Warn("index delete failed for %s: %v", documentID, err)
		}
	}

	if err := o.blobStore.Delete(ctx, doc.StorageName); err != nil {
		logger.Warn("blob delete failed for %s: %v", documentID, err)
	}

	if err := o.docStore.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	logger.Info("document %s deleted", documentID)
	return nil
}

// Get retrieves one document.
func (o *IngestOrchestrator) Get(ctx context.Context, documentID string) (*domain.Document, error) {
	return o.docStore.GetDocument(ctx, documentID)
}

// List returns one page of documents plus the total count.
func (o *IngestOrchestrator) List(
	ctx context.Context, opts driven.ListOptions,
) ([]domain.Document, int, error) {
	return o.docStore.ListDocuments(ctx, opts)
}

// DownloadURL returns a time-limited URL for the stored original.
func (o *IngestOrchestrator) DownloadURL(ctx context.Context, documentID string) (string, error) {
	doc, err := o.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("get document: %w", err)
	}

	switch doc.Status {
	case domain.StatusPending, domain.StatusProcessing:
		return "", domain.ErrDocumentNotReady
	}
	if doc.BlobURL == "" {
		return "", domain.ErrBlobMissing
	}

	url, err := o.blobStore.SignedURL(ctx, doc.StorageName, o.downloadTTL)
	if err != nil {
		return "", fmt.Errorf("sign url: %w", err)
	}
	return url, nil
}

// SweepStale reclaims documents stuck in pending or processing longer
// than threshold, marking them errored so they can be reprocessed.
func (o *IngestOrchestrator) SweepStale(ctx context.Context, threshold time.Duration) (int, error) {
	cutoff := time.Now().Add(-threshold)
	stale, err := o.docStore.ListStale(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list stale: %w", err)
	}

	reclaimed := 0
	for i := range stale {
		doc := &stale[i]
		doc.Status = domain.StatusError
		doc.ErrorMessage = staleErrorMessage
		if err := o.docStore.UpdateDocument(ctx, doc); err != nil {
			// A concurrent writer moving the document forward is not a
			// stuck document anymore.
			if errors.Is(err, domain.ErrStaleDocument) {
				continue
			}
			return reclaimed, fmt.Errorf("mark stale %s: %w", doc.ID, err)
		}
		logger.Warn("reclaimed stale document %s (%s)", doc.ID, doc.OriginalFilename)
		reclaimed++
	}
	return reclaimed, nil
}

// encodeChunkMetadata serialises the denormalised fields stored
// alongside each index record.
func encodeChunkMetadata(meta domain.FileMetadata, sheetName string) string {
	payload, err := json.Marshal(map[string]string{
		"application": meta.Application,
		"issue":       meta.Issue,
		"ingredient":  meta.Ingredient,
		"customer":    meta.Customer,
		"trial_id":    meta.TrialID,
		"sheet_name":  sheetName,
	})
	if err != nil {
		return "{}"
	}
	return string(payload)
}

// sheetLabeller assigns worksheet labels to chunks by tracking the
// extractor's sheet markers across the chunk sequence.
type sheetLabeller struct {
	current string
}

func newSheetLabeller() *sheetLabeller {
	return &sheetLabeller{}
}

// label returns the worksheet a chunk belongs to. A chunk that opens
// with a marker belongs to that sheet; otherwise it continues the sheet
// carried over from earlier chunks. The last marker in the chunk
// carries forward.
func (s *sheetLabeller) label(chunk string) string {
	matches := sheetMarkerPattern.FindAllStringSubmatchIndex(chunk, -1)
	if len(matches) == 0 {
		return s.current
	}

	label := s.current
	if matches[0][0] == 0 {
		label = chunk[matches[0][2]:matches[0][3]]
	}

	last := matches[len(matches)-1]
	s.current = chunk[last[2]:last[3]]
	return label
}
