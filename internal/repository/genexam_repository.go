package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dethiai/dethiai-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GenExamRepository handles generation requests and their per-question
// placeholders. The completion counter and the two gate transitions use the
// same conditional-UPDATE discipline as the document pipeline.
type GenExamRepository struct {
	pool *pgxpool.Pool
}

// NewGenExamRepository creates a new GenExamRepository.
func NewGenExamRepository(pool *pgxpool.Pool) *GenExamRepository {
	return &GenExamRepository{pool: pool}
}

const genExamColumns = `id, document_id, title, duration_minutes, status, total, completed,
	error, created_at, updated_at`

// CreateWithPlaceholders inserts the exam row (already processing, completed
// 0) together with one pending placeholder per selected question, in a single
// transaction. Placeholders exist before any worker runs so partial progress
// is observable immediately.
func (r *GenExamRepository) CreateWithPlaceholders(ctx context.Context, exam *model.GeneratedExam, snapshots []model.QuestionSnapshot) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.QueryRow(ctx,
		`INSERT INTO generated_exams (id, document_id, title, duration_minutes, status, total)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`,
		exam.ID, exam.DocumentID, exam.Title, exam.DurationMinutes, exam.Status, exam.Total,
	).Scan(&exam.CreatedAt, &exam.UpdatedAt); err != nil {
		return fmt.Errorf("insert exam: %w", err)
	}

	for i, snap := range snapshots {
		if _, err := tx.Exec(ctx,
			`INSERT INTO generated_questions (exam_id, question_index, source_index, question_type, status)
			 VALUES ($1, $2, $3, $4, $5)`,
			exam.ID, i, snap.Index, snap.Type, model.StatusPending,
		); err != nil {
			return fmt.Errorf("insert placeholder %d: %w", i, err)
		}
	}

	return tx.Commit(ctx)
}

// GetByID retrieves a generated exam by its UUID.
func (r *GenExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.GeneratedExam, error) {
	e := &model.GeneratedExam{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+genExamColumns+` FROM generated_exams WHERE id = $1`, id,
	).Scan(&e.ID, &e.DocumentID, &e.Title, &e.DurationMinutes, &e.Status,
		&e.Total, &e.Completed, &e.Error, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListByDocument returns all generation requests of a document, newest first.
func (r *GenExamRepository) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]model.GeneratedExam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+genExamColumns+`
		 FROM generated_exams WHERE document_id = $1
		 ORDER BY created_at DESC`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.GeneratedExam
	for rows.Next() {
		var e model.GeneratedExam
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.Title, &e.DurationMinutes, &e.Status,
			&e.Total, &e.Completed, &e.Error, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// ListQuestions returns all items of a generated exam ordered by index,
// pending placeholders included.
func (r *GenExamRepository) ListQuestions(ctx context.Context, examID uuid.UUID) ([]model.GeneratedQuestion, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT exam_id, question_index, source_index, question_type, status,
		        COALESCE(content, ''), data, answer, error, updated_at
		 FROM generated_questions WHERE exam_id = $1
		 ORDER BY question_index`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.GeneratedQuestion
	for rows.Next() {
		var q model.GeneratedQuestion
		if err := rows.Scan(&q.ExamID, &q.QuestionIndex, &q.SourceIndex, &q.Type, &q.Status,
			&q.Content, &q.Data, &q.Answer, &q.Error, &q.UpdatedAt); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// Delete removes a generation request and, via cascade, its questions.
func (r *GenExamRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM generated_exams WHERE id = $1`, id)
	return err
}

// ─── Worker-side transitions ────────────────────────────────────────────────

// ClaimQuestionProcessing moves one placeholder to processing. The claim
// accepts pending and processing so that an item whose worker died after
// claiming is re-runnable on redelivery; the terminal-guarded result writes
// keep the re-run from double-writing or double-counting. Returns false when
// the item is already terminal (redelivered duplicate) or the exam was
// deleted mid-flight; the caller must then no-op without counting.
func (r *GenExamRepository) ClaimQuestionProcessing(ctx context.Context, examID uuid.UUID, index int) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE generated_questions SET status = $1, updated_at = NOW()
		 WHERE exam_id = $2 AND question_index = $3 AND status IN ($4, $5)`,
		model.StatusProcessing, examID, index, model.StatusPending, model.StatusProcessing)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CompleteQuestion writes the generated content, data and answer payload and
// flips the placeholder to done. Guarded against terminal states so each
// placeholder is written exactly once.
func (r *GenExamRepository) CompleteQuestion(ctx context.Context, examID uuid.UUID, index int, content string, data, answer json.RawMessage) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE generated_questions
		 SET status = $1, content = $2, data = $3, answer = $4, updated_at = NOW()
		 WHERE exam_id = $5 AND question_index = $6 AND status IN ($7, $8)`,
		model.StatusDone, content, data, answer,
		examID, index, model.StatusPending, model.StatusProcessing)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// FailQuestion records a terminal per-item failure with its message.
func (r *GenExamRepository) FailQuestion(ctx context.Context, examID uuid.UUID, index int, msg string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE generated_questions SET status = $1, error = $2, updated_at = NOW()
		 WHERE exam_id = $3 AND question_index = $4 AND status IN ($5, $6)`,
		model.StatusError, msg, examID, index, model.StatusPending, model.StatusProcessing)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// IncrementCompleted atomically bumps the exam's completion counter and
// returns the new (completed, total) pair for the completion gate.
func (r *GenExamRepository) IncrementCompleted(ctx context.Context, examID uuid.UUID) (completed, total int, err error) {
	err = r.pool.QueryRow(ctx,
		`UPDATE generated_exams SET completed = completed + 1, updated_at = NOW()
		 WHERE id = $1
		 RETURNING completed, total`, examID,
	).Scan(&completed, &total)
	return completed, total, err
}

// FinishExam atomically moves the exam processing → done once coverage is
// complete. Losers of the last-two-items race observe zero rows affected.
func (r *GenExamRepository) FinishExam(ctx context.Context, examID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE generated_exams SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status = $3`,
		model.StatusDone, examID, model.StatusProcessing)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
