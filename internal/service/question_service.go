package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dethiai/dethiai-backend/internal/config"
	"github.com/dethiai/dethiai-backend/internal/logger"
	"github.com/dethiai/dethiai-backend/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ElementRepo is the slice of the element repository the services need.
type ElementRepo interface {
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]model.Element, error)
	ListQuestions(ctx context.Context, documentID uuid.UUID) ([]model.Element, error)
	QuestionsByIndices(ctx context.Context, documentID uuid.UUID, indices []int) ([]model.Element, error)
}

// QuestionService serves a document's extracted structure. Elements are
// immutable once extraction finishes, so the question list is cached.
type QuestionService struct {
	docs     DocumentRepo
	elements ElementRepo
	cache    Cache
	cacheTTL time.Duration
	log      zerolog.Logger
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(docs DocumentRepo, elements ElementRepo, cache Cache, cacheTTL time.Duration, log zerolog.Logger) *QuestionService {
	return &QuestionService{
		docs:     docs,
		elements: elements,
		cache:    cache,
		cacheTTL: cacheTTL,
		log:      logger.Component(log, "question_service"),
	}
}

// ListElements retrieves the full extracted structure in document order,
// section headers included.
func (s *QuestionService) ListElements(ctx context.Context, ownerID string, documentID uuid.UUID) ([]model.Element, error) {
	if err := s.requireExtracted(ctx, ownerID, documentID); err != nil {
		return nil, err
	}
	elements, err := s.elements.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if elements == nil {
		elements = []model.Element{}
	}
	return elements, nil
}

// ListQuestions retrieves only the questionable elements, ordered by their
// question index.
func (s *QuestionService) ListQuestions(ctx context.Context, ownerID string, documentID uuid.UUID) ([]model.Element, error) {
	if err := s.requireExtracted(ctx, ownerID, documentID); err != nil {
		return nil, err
	}

	key := config.CacheKey.DocumentQuestionsKey(documentID)
	if cached, ok := s.cache.Get(ctx, key); ok {
		var questions []model.Element
		if err := json.Unmarshal([]byte(cached), &questions); err == nil {
			return questions, nil
		}
		s.cache.Delete(ctx, key)
	}

	questions, err := s.elements.ListQuestions(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if questions == nil {
		questions = []model.Element{}
	}

	if encoded, err := json.Marshal(questions); err == nil {
		s.cache.Set(ctx, key, string(encoded), s.cacheTTL)
	}
	return questions, nil
}

// requireExtracted enforces ownership and a finished extraction stage.
func (s *QuestionService) requireExtracted(ctx context.Context, ownerID string, documentID uuid.UUID) error {
	doc, err := ownedDocumentFrom(ctx, s.docs, ownerID, documentID)
	if err != nil {
		return err
	}
	if doc.ExtractStatus != model.StatusDone {
		return ErrNotExtracted
	}
	return nil
}
