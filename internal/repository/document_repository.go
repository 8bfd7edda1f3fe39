package repository

import (
	"context"
	"fmt"

	"github.com/dethiai/dethiai-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DocumentRepository handles document data access, including the page-OCR
// fan-out counters. All status transitions go through conditional UPDATEs so
// that concurrent workers resolve races in the database, never client-side.
type DocumentRepository struct {
	pool *pgxpool.Pool
}

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

const documentColumns = `id, owner_id, filename, content_type, size_bytes, storage_key,
	ocr_status, extract_status, ocr_total, ocr_completed, error, created_at, updated_at`

// Create inserts a new document with both pipeline statuses pending.
func (r *DocumentRepository) Create(ctx context.Context, d *model.Document) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO documents (id, owner_id, filename, content_type, size_bytes, storage_key)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING ocr_status, extract_status, created_at, updated_at`,
		d.ID, d.OwnerID, d.Filename, d.ContentType, d.SizeBytes, d.StorageKey,
	).Scan(&d.OCRStatus, &d.ExtractStatus, &d.CreatedAt, &d.UpdatedAt)
}

// GetByID retrieves a document by its UUID.
func (r *DocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	d := &model.Document{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id,
	).Scan(&d.ID, &d.OwnerID, &d.Filename, &d.ContentType, &d.SizeBytes, &d.StorageKey,
		&d.OCRStatus, &d.ExtractStatus, &d.OCRTotal, &d.OCRCompleted, &d.Error,
		&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ListByOwnerPaginated retrieves a user's documents, newest first.
func (r *DocumentRepository) ListByOwnerPaginated(ctx context.Context, ownerID string, limit, offset int) ([]model.Document, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM documents WHERE owner_id = $1`, ownerID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+documentColumns+`
		 FROM documents WHERE owner_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		ownerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(&d.ID, &d.OwnerID, &d.Filename, &d.ContentType, &d.SizeBytes,
			&d.StorageKey, &d.OCRStatus, &d.ExtractStatus, &d.OCRTotal, &d.OCRCompleted,
			&d.Error, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, 0, err
		}
		docs = append(docs, d)
	}
	return docs, total, rows.Err()
}

// Delete removes a document. Pages, elements, generated exams and generated
// questions go with it via ON DELETE CASCADE.
func (r *DocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	return err
}

// ─── OCR pipeline transitions ───────────────────────────────────────────────

// ClaimOCRProcessing atomically moves ocr_status pending → processing.
// Returns false if the document is missing or already claimed, which makes
// redelivered init jobs no-ops.
func (r *DocumentRepository) ClaimOCRProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE documents SET ocr_status = $1, updated_at = NOW()
		 WHERE id = $2 AND ocr_status = $3`,
		model.StatusProcessing, id, model.StatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SetOCRTotal records the page fan-out width before any page job is enqueued.
func (r *DocumentRepository) SetOCRTotal(ctx context.Context, id uuid.UUID, total int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE documents SET ocr_total = $1, ocr_completed = 0, updated_at = NOW()
		 WHERE id = $2`, total, id)
	return err
}

// RecordPageResult stores one page's recognized Markdown and bumps the
// completion counter in the same transaction, returning the new
// (completed, total) pair. The insert is idempotent: a redelivered page job
// finds its row already present and returns inserted=false without touching
// the counter — the earlier delivery's commit already counted this page, and
// a crash before commit left neither write behind. The counter delta runs
// inside the UPDATE so N concurrent page workers never lose an update.
func (r *DocumentRepository) RecordPageResult(ctx context.Context, id uuid.UUID, pageIndex int, content string) (inserted bool, completed, total int, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, 0, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO document_pages (document_id, page_index, content)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (document_id, page_index) DO NOTHING`,
		id, pageIndex, content)
	if err != nil {
		return false, 0, 0, err
	}
	if tag.RowsAffected() == 0 {
		return false, 0, 0, nil
	}

	if err := tx.QueryRow(ctx,
		`UPDATE documents SET ocr_completed = ocr_completed + 1, updated_at = NOW()
		 WHERE id = $1
		 RETURNING ocr_completed, ocr_total`, id,
	).Scan(&completed, &total); err != nil {
		return false, 0, 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, 0, 0, fmt.Errorf("commit: %w", err)
	}
	return true, completed, total, nil
}

// FinishOCR atomically moves ocr_status processing → done. Exactly one of
// the racing last-page workers wins; the winner enqueues extraction.
func (r *DocumentRepository) FinishOCR(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE documents SET ocr_status = $1, updated_at = NOW()
		 WHERE id = $2 AND ocr_status = $3`,
		model.StatusDone, id, model.StatusProcessing)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkOCRError moves ocr_status to error unless a terminal state already won.
// First failure wins; a later-finishing sibling never overwrites it.
func (r *DocumentRepository) MarkOCRError(ctx context.Context, id uuid.UUID, msg string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE documents SET ocr_status = $1, error = $2, updated_at = NOW()
		 WHERE id = $3 AND ocr_status IN ($4, $5)`,
		model.StatusError, msg, id, model.StatusPending, model.StatusProcessing)
	return err
}

// PageResults returns all recognized pages ordered by page index, restoring
// page order regardless of worker completion order.
func (r *DocumentRepository) PageResults(ctx context.Context, id uuid.UUID) ([]model.PageResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT document_id, page_index, content
		 FROM document_pages WHERE document_id = $1
		 ORDER BY page_index`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []model.PageResult
	for rows.Next() {
		var p model.PageResult
		if err := rows.Scan(&p.DocumentID, &p.PageIndex, &p.Content); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// ─── Extraction transitions ─────────────────────────────────────────────────

// ClaimExtractProcessing atomically moves extract_status pending → processing,
// but only once OCR has finished.
func (r *DocumentRepository) ClaimExtractProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE documents SET extract_status = $1, updated_at = NOW()
		 WHERE id = $2 AND extract_status = $3 AND ocr_status = $4`,
		model.StatusProcessing, id, model.StatusPending, model.StatusDone)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkExtractError records a terminal extraction failure with its diagnostic.
func (r *DocumentRepository) MarkExtractError(ctx context.Context, id uuid.UUID, msg string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE documents SET extract_status = $1, error = $2, updated_at = NOW()
		 WHERE id = $3 AND extract_status IN ($4, $5)`,
		model.StatusError, msg, id, model.StatusPending, model.StatusProcessing)
	return err
}
