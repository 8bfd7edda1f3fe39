package repository

import (
	"context"
	"fmt"

	"github.com/dethiai/dethiai-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ElementRepository handles the immutable original exam elements produced by
// the extraction worker.
type ElementRepository struct {
	pool *pgxpool.Pool
}

// NewElementRepository creates a new ElementRepository.
func NewElementRepository(pool *pgxpool.Pool) *ElementRepository {
	return &ElementRepository{pool: pool}
}

// SaveExtracted writes the full extracted element list and flips
// extract_status to done in one transaction. All-or-nothing: an error leaves
// no partial question set behind.
func (r *ElementRepository) SaveExtracted(ctx context.Context, documentID uuid.UUID, elements []model.Element) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, el := range elements {
		if _, err := tx.Exec(ctx,
			`INSERT INTO original_elements (document_id, position, question_index, element_type, content, data)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			documentID, el.Position, el.QuestionIndex, el.Type, el.Content, el.Data,
		); err != nil {
			return fmt.Errorf("insert element %d: %w", el.Position, err)
		}
	}

	tag, err := tx.Exec(ctx,
		`UPDATE documents SET extract_status = $1, updated_at = NOW()
		 WHERE id = $2 AND extract_status = $3`,
		model.StatusDone, documentID, model.StatusProcessing)
	if err != nil {
		return fmt.Errorf("finish extraction: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("document %s not in extractable state", documentID)
	}

	return tx.Commit(ctx)
}

// ListByDocument returns all elements of a document in original order.
func (r *ElementRepository) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]model.Element, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT document_id, position, question_index, element_type, content, data
		 FROM original_elements WHERE document_id = $1
		 ORDER BY position`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanElements(rows)
}

// ListQuestions returns only the selectable questions of a document, ordered
// by their stable question index.
func (r *ElementRepository) ListQuestions(ctx context.Context, documentID uuid.UUID) ([]model.Element, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT document_id, position, question_index, element_type, content, data
		 FROM original_elements
		 WHERE document_id = $1 AND question_index IS NOT NULL
		 ORDER BY question_index`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanElements(rows)
}

// QuestionsByIndices fetches the questions with the given stable indices.
// Callers compare the result length against the request to detect unknown
// indices before any generation state is created.
func (r *ElementRepository) QuestionsByIndices(ctx context.Context, documentID uuid.UUID, indices []int) ([]model.Element, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT document_id, position, question_index, element_type, content, data
		 FROM original_elements
		 WHERE document_id = $1 AND question_index = ANY($2)
		 ORDER BY question_index`, documentID, indices)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanElements(rows)
}

func scanElements(rows pgx.Rows) ([]model.Element, error) {
	var elements []model.Element
	for rows.Next() {
		var el model.Element
		if err := rows.Scan(&el.DocumentID, &el.Position, &el.QuestionIndex,
			&el.Type, &el.Content, &el.Data); err != nil {
			return nil, err
		}
		elements = append(elements, el)
	}
	return elements, rows.Err()
}
