package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shokudev/kura/internal/core/domain"
	"github.com/shokudev/kura/internal/core/ports/driven"
)

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// documentColumns is the scan order shared by every document query.
const documentColumns = `id, storage_name, original_filename, file_type, file_size,
	blob_url, application, issue, ingredient, customer, trial_id,
	status, error_message, extracted_text, structured_data, revision,
	created_at, updated_at, indexed_at`

// SaveDocument inserts a new document with revision 1.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	structuredJSON, err := marshalStructured(doc.Structured)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = now
	}
	doc.Revision = 1

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.StorageName, doc.OriginalFilename, doc.FileType, doc.FileSize,
		doc.BlobURL, doc.Meta.Application, doc.Meta.Issue, doc.Meta.Ingredient,
		doc.Meta.Customer, doc.Meta.TrialID,
		string(doc.Status), doc.ErrorMessage, doc.ExtractedText, structuredJSON,
		doc.Revision, doc.CreatedAt, doc.UpdatedAt, nullTime(doc.IndexedAt))
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// UpdateDocument persists doc guarded by its revision token.
func (s *documentStore) UpdateDocument(ctx context.Context, doc *domain.Document) error {
	structuredJSON, err := marshalStructured(doc.Structured)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE documents SET
			storage_name = ?, original_filename = ?, file_type = ?, file_size = ?,
			blob_url = ?, application = ?, issue = ?, ingredient = ?, customer = ?,
			trial_id = ?, status = ?, error_message = ?, extracted_text = ?,
			structured_data = ?, revision = revision + 1, updated_at = ?, indexed_at = ?
		WHERE id = ? AND revision = ?
	`, doc.StorageName, doc.OriginalFilename, doc.FileType, doc.FileSize,
		doc.BlobURL, doc.Meta.Application, doc.Meta.Issue, doc.Meta.Ingredient,
		doc.Meta.Customer, doc.Meta.TrialID, string(doc.Status), doc.ErrorMessage,
		doc.ExtractedText, structuredJSON, now, nullTime(doc.IndexedAt),
		doc.ID, doc.Revision)
	if err != nil {
		return fmt.Errorf("updating document: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating document: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing row from a lost race.
		var exists int
		row := s.store.db.QueryRowContext(ctx,
			"SELECT 1 FROM documents WHERE id = ?", doc.ID)
		if err := row.Scan(&exists); errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return domain.ErrStaleDocument
	}

	doc.Revision++
	doc.UpdatedAt = now
	return nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

// ListDocuments returns one page of documents, newest first, plus the
// total count matching the filter.
func (s *documentStore) ListDocuments(
	ctx context.Context, opts driven.ListOptions,
) ([]domain.Document, int, error) {
	where := ""
	var args []any
	if opts.Status != "" {
		where = " WHERE status = ?"
		args = append(args, string(opts.Status))
	}

	var total int
	row := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents"+where, args...)
	if err := row.Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting documents: %w", err)
	}

	page, size := opts.Page, opts.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}

	query := `SELECT ` + documentColumns + ` FROM documents` + where +
		` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := s.store.db.QueryContext(ctx, query,
		append(args, size, (page-1)*size)...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	docs, err := scanDocuments(rows)
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// ListStale returns pending or processing documents last updated before
// cutoff, oldest first.
func (s *documentStore) ListStale(ctx context.Context, cutoff time.Time) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE status IN (?, ?) AND updated_at < ?
		ORDER BY updated_at ASC
	`, string(domain.StatusPending), string(domain.StatusProcessing), cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("listing stale documents: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// DeleteDocument removes a document; chunks cascade.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SaveChunks stores chunk rows for a document in one transaction.
func (s *documentStore) SaveChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("saving chunks: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunks (search_id, document_id, chunk_index, content, sheet_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("saving chunks: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx,
			c.SearchID, c.DocumentID, c.Index, c.Content, c.SheetName, createdAt); err != nil {
			return fmt.Errorf("saving chunk %s: %w", c.SearchID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("saving chunks: %w", err)
	}
	return nil
}

// GetChunks retrieves all chunks for a document ordered by index.
func (s *documentStore) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT search_id, document_id, chunk_index, content, sheet_name, created_at
		FROM chunks WHERE document_id = ? ORDER BY chunk_index ASC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("getting chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.SearchID, &c.DocumentID, &c.Index,
			&c.Content, &c.SheetName, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// AddSearchHistory appends one query event.
func (s *documentStore) AddSearchHistory(ctx context.Context, entry domain.SearchHistoryEntry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO search_histories (id, user_id, query, result_count, top_score, response_time_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.UserID, entry.Query, entry.ResultCount,
		entry.TopScore, entry.LatencyMS, createdAt)
	if err != nil {
		return fmt.Errorf("adding search history: %w", err)
	}
	return nil
}

// ListSearchHistory returns a user's most recent queries, newest first.
func (s *documentStore) ListSearchHistory(
	ctx context.Context, userID string, limit int,
) ([]domain.SearchHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, user_id, query, result_count, top_score, response_time_ms, created_at
		FROM search_histories WHERE user_id = ?
		ORDER BY created_at DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing search history: %w", err)
	}
	defer rows.Close()

	var entries []domain.SearchHistoryEntry
	for rows.Next() {
		var e domain.SearchHistoryEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Query, &e.ResultCount,
			&e.TopScore, &e.LatencyMS, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning search history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Facets returns the distinct non-empty metadata values across documents.
func (s *documentStore) Facets(ctx context.Context) (*domain.Facets, error) {
	facets := &domain.Facets{}

	for _, q := range []struct {
		column string
		target *[]string
	}{
		{"application", &facets.Applications},
		{"issue", &facets.Issues},
		{"ingredient", &facets.Ingredients},
	} {
		rows, err := s.store.db.QueryContext(ctx, fmt.Sprintf(
			"SELECT DISTINCT %s FROM documents WHERE %s != '' ORDER BY %s",
			q.column, q.column, q.column))
		if err != nil {
			return nil, fmt.Errorf("listing %s facet: %w", q.column, err)
		}

		for rows.Next() {
			var v string
			if err := rows.Scan(&v); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning %s facet: %w", q.column, err)
			}
			*q.target = append(*q.target, v)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	return facets, nil
}

// Stats returns knowledge base counters.
func (s *documentStore) Stats(ctx context.Context) (*domain.Stats, error) {
	stats := &domain.Stats{}

	row := s.store.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status IN ('pending', 'processing') THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END), 0)
		FROM documents
	`)
	if err := row.Scan(&stats.TotalDocuments, &stats.IndexedDocuments,
		&stats.PendingDocuments, &stats.ErrorDocuments); err != nil {
		return nil, fmt.Errorf("counting documents: %w", err)
	}

	row = s.store.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(AVG(response_time_ms), 0) FROM search_histories
	`)
	if err := row.Scan(&stats.TotalSearches, &stats.AvgResponseTimeMS); err != nil {
		return nil, fmt.Errorf("counting searches: %w", err)
	}

	return stats, nil
}

// scanner abstracts sql.Row and sql.Rows for document scanning.
type scanner interface {
	Scan(dest ...any) error
}

// scanDocument reads one document row in documentColumns order.
func scanDocument(row scanner) (*domain.Document, error) {
	var doc domain.Document
	var status string
	var structuredJSON sql.NullString
	var indexedAt sql.NullTime

	if err := row.Scan(&doc.ID, &doc.StorageName, &doc.OriginalFilename,
		&doc.FileType, &doc.FileSize, &doc.BlobURL,
		&doc.Meta.Application, &doc.Meta.Issue, &doc.Meta.Ingredient,
		&doc.Meta.Customer, &doc.Meta.TrialID,
		&status, &doc.ErrorMessage, &doc.ExtractedText, &structuredJSON,
		&doc.Revision, &doc.CreatedAt, &doc.UpdatedAt, &indexedAt); err != nil {
		return nil, err
	}

	doc.Status = domain.Status(status)
	if structuredJSON.Valid && structuredJSON.String != "" {
		var structured domain.StructuredData
		if err := json.Unmarshal([]byte(structuredJSON.String), &structured); err != nil {
			return nil, fmt.Errorf("unmarshalling structured data: %w", err)
		}
		doc.Structured = &structured
	}
	if indexedAt.Valid {
		doc.IndexedAt = &indexedAt.Time
	}
	return &doc, nil
}

// scanDocuments drains rows into a slice.
func scanDocuments(rows *sql.Rows) ([]domain.Document, error) {
	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// marshalStructured serialises the structured payload, nil becoming
// SQL NULL.
func marshalStructured(structured *domain.StructuredData) (any, error) {
	if structured == nil {
		return nil, nil
	}
	payload, err := json.Marshal(structured)
	if err != nil {
		return nil, fmt.Errorf("marshalling structured data: %w", err)
	}
	return string(payload), nil
}

// nullTime converts an optional time into its SQL representation.
func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
