package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/dethiai/dethiai-backend/internal/export"
	"github.com/dethiai/dethiai-backend/internal/logger"
	"github.com/dethiai/dethiai-backend/internal/model"
	"github.com/dethiai/dethiai-backend/internal/queue"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// GenExamRepo is the slice of the generated-exam repository the service needs.
type GenExamRepo interface {
	CreateWithPlaceholders(ctx context.Context, exam *model.GeneratedExam, snapshots []model.QuestionSnapshot) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.GeneratedExam, error)
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]model.GeneratedExam, error)
	ListQuestions(ctx context.Context, examID uuid.UUID) ([]model.GeneratedQuestion, error)
	Delete(ctx context.Context, id uuid.UUID) error
	FailQuestion(ctx context.Context, examID uuid.UUID, index int, msg string) (bool, error)
	IncrementCompleted(ctx context.Context, examID uuid.UUID) (completed, total int, err error)
	FinishExam(ctx context.Context, examID uuid.UUID) (bool, error)
}

// GenerateQueue enqueues per-question generation tasks.
type GenerateQueue interface {
	EnqueueGenerate(ctx context.Context, p queue.GeneratePayload) error
}

// GenerationService orchestrates exam generation requests: it validates the
// selection, creates the request with one pending placeholder per item and
// fans the items out to the generation lane.
type GenerationService struct {
	docs     DocumentRepo
	elements ElementRepo
	exams    GenExamRepo
	queue    GenerateQueue
	log      zerolog.Logger
}

// NewGenerationService creates a new GenerationService.
func NewGenerationService(docs DocumentRepo, elements ElementRepo, exams GenExamRepo, q GenerateQueue, log zerolog.Logger) *GenerationService {
	return &GenerationService{
		docs:     docs,
		elements: elements,
		exams:    exams,
		queue:    q,
		log:      logger.Component(log, "generation_service"),
	}
}

// Start validates the request and kicks off the generation fan-out. The
// selection is validated in full before anything is written: one unknown
// index rejects the whole request.
func (s *GenerationService) Start(ctx context.Context, ownerID string, documentID uuid.UUID, req *model.StartGenerationRequest) (*model.GeneratedExam, error) {
	doc, err := ownedDocumentFrom(ctx, s.docs, ownerID, documentID)
	if err != nil {
		return nil, err
	}
	if doc.ExtractStatus != model.StatusDone {
		return nil, ErrNotExtracted
	}

	// Dedupe preserving first-occurrence order, then cap at the target count.
	indices := dedupe(req.SelectedIndices)
	if len(indices) == 0 {
		return nil, ErrEmptySelection
	}

	sources, err := s.elements.QuestionsByIndices(ctx, documentID, indices)
	if err != nil {
		return nil, err
	}
	byIndex := make(map[int]model.Element, len(sources))
	for _, el := range sources {
		if el.QuestionIndex != nil {
			byIndex[*el.QuestionIndex] = el
		}
	}
	for _, idx := range indices {
		if _, ok := byIndex[idx]; !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownQuestion, idx)
		}
	}

	if req.TargetCount < len(indices) {
		indices = indices[:req.TargetCount]
	}

	snapshots := make([]model.QuestionSnapshot, len(indices))
	for i, idx := range indices {
		src := byIndex[idx]
		snapshots[i] = model.QuestionSnapshot{
			Index:   idx,
			Type:    src.Type,
			Content: src.Content,
			Data:    src.Data,
		}
	}

	title := req.Title
	if title == "" {
		title = fmt.Sprintf("Generated from %s", doc.Filename)
	}
	exam := &model.GeneratedExam{
		ID:              uuid.New(),
		DocumentID:      documentID,
		Title:           title,
		DurationMinutes: req.DurationMinutes,
		Status:          model.StatusProcessing,
		Total:           len(snapshots),
	}

	if err := s.exams.CreateWithPlaceholders(ctx, exam, snapshots); err != nil {
		return nil, fmt.Errorf("create generation request: %w", err)
	}

	for i, snap := range snapshots {
		err := s.queue.EnqueueGenerate(ctx, queue.GeneratePayload{
			ExamID:        exam.ID,
			QuestionIndex: i,
			Snapshot: queue.SnapshotPayload{
				Index:   snap.Index,
				Type:    string(snap.Type),
				Content: snap.Content,
				Data:    snap.Data,
			},
		})
		if err != nil {
			// The item never reached the queue, so no worker will account
			// for it. Record the failure here to keep coverage intact.
			s.log.Error().Err(err).Stringer("exam_id", exam.ID).Int("item", i).Msg("Generation enqueue failed")
			s.accountEnqueueFailure(ctx, exam.ID, i, err)
		}
	}

	s.log.Info().
		Stringer("exam_id", exam.ID).
		Stringer("document_id", documentID).
		Int("items", len(snapshots)).
		Msg("Generation request started")
	return exam, nil
}

// accountEnqueueFailure runs the same failure accounting a worker would, so
// an item that never reached the queue still counts toward completion.
func (s *GenerationService) accountEnqueueFailure(ctx context.Context, examID uuid.UUID, index int, cause error) {
	wrote, err := s.exams.FailQuestion(ctx, examID, index, fmt.Sprintf("enqueue: %v", cause))
	if err != nil || !wrote {
		return
	}
	completed, total, err := s.exams.IncrementCompleted(ctx, examID)
	if err != nil {
		return
	}
	if completed >= total {
		if _, err := s.exams.FinishExam(ctx, examID); err != nil {
			s.log.Warn().Err(err).Stringer("exam_id", examID).Msg("Finish after enqueue failure failed")
		}
	}
}

// Get retrieves a generation request with its per-item results.
func (s *GenerationService) Get(ctx context.Context, ownerID string, examID uuid.UUID) (*model.GeneratedExam, []model.GeneratedQuestion, error) {
	exam, err := s.ownedExam(ctx, ownerID, examID)
	if err != nil {
		return nil, nil, err
	}
	questions, err := s.exams.ListQuestions(ctx, examID)
	if err != nil {
		return nil, nil, err
	}
	if questions == nil {
		questions = []model.GeneratedQuestion{}
	}
	return exam, questions, nil
}

// ListByDocument retrieves every generation request made against a document.
func (s *GenerationService) ListByDocument(ctx context.Context, ownerID string, documentID uuid.UUID) ([]model.GeneratedExam, error) {
	if _, err := ownedDocumentFrom(ctx, s.docs, ownerID, documentID); err != nil {
		return nil, err
	}
	exams, err := s.exams.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if exams == nil {
		exams = []model.GeneratedExam{}
	}
	return exams, nil
}

// Delete removes a generation request and its items. In-flight generation
// jobs observe the missing placeholders and stop.
func (s *GenerationService) Delete(ctx context.Context, ownerID string, examID uuid.UUID) error {
	if _, err := s.ownedExam(ctx, ownerID, examID); err != nil {
		return err
	}
	if err := s.exams.Delete(ctx, examID); err != nil {
		return fmt.Errorf("delete generation request: %w", err)
	}
	s.log.Info().Stringer("exam_id", examID).Msg("Generation request deleted")
	return nil
}

// ExportMarkdown renders a finished generation request as a printable
// Markdown exam sheet with an answer key.
func (s *GenerationService) ExportMarkdown(ctx context.Context, ownerID string, examID uuid.UUID) (string, error) {
	exam, questions, err := s.Get(ctx, ownerID, examID)
	if err != nil {
		return "", err
	}
	return export.Markdown(exam, questions)
}

// ownedExam loads a generation request and enforces ownership through its
// parent document.
func (s *GenerationService) ownedExam(ctx context.Context, ownerID string, examID uuid.UUID) (*model.GeneratedExam, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if _, err := ownedDocumentFrom(ctx, s.docs, ownerID, exam.DocumentID); err != nil {
		return nil, err
	}
	return exam, nil
}

// dedupe removes duplicate indices, keeping first-occurrence order.
func dedupe(indices []int) []int {
	seen := make(map[int]bool, len(indices))
	out := make([]int, 0, len(indices))
	for _, idx := range indices {
		if seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, idx)
	}
	return out
}
