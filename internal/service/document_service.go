package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/dethiai/dethiai-backend/internal/config"
	"github.com/dethiai/dethiai-backend/internal/logger"
	"github.com/dethiai/dethiai-backend/internal/model"
	"github.com/dethiai/dethiai-backend/internal/queue"
	"github.com/dethiai/dethiai-backend/internal/response"
	"github.com/dethiai/dethiai-backend/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Exam documents arrive as PDFs; the rasterizer has no other input format.
var allowedMIMETypes = map[string]bool{
	"application/pdf": true,
}

// DocumentRepo is the slice of the document repository the services need.
type DocumentRepo interface {
	Create(ctx context.Context, d *model.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Document, error)
	ListByOwnerPaginated(ctx context.Context, ownerID string, limit, offset int) ([]model.Document, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// BlobStore is the slice of the object storage the services need.
type BlobStore interface {
	Upload(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, objectKey string) error
	RemovePrefix(ctx context.Context, prefix string) error
}

// OCRQueue enqueues the pipeline's entry task.
type OCRQueue interface {
	EnqueueOCRInit(ctx context.Context, p queue.OCRInitPayload) error
}

// DocumentService handles document upload, retrieval and deletion.
type DocumentService struct {
	cfg   *config.Config
	docs  DocumentRepo
	store BlobStore
	queue OCRQueue
	cache Cache
	log   zerolog.Logger
}

// NewDocumentService creates a new DocumentService.
func NewDocumentService(cfg *config.Config, docs DocumentRepo, store BlobStore, q OCRQueue, cache Cache, log zerolog.Logger) *DocumentService {
	return &DocumentService{
		cfg:   cfg,
		docs:  docs,
		store: store,
		queue: q,
		cache: cache,
		log:   logger.Component(log, "document_service"),
	}
}

// Upload stores the source file, creates the document record with both stages
// pending and kicks off the OCR pipeline. The document is returned
// immediately; recognition runs in the background.
func (s *DocumentService) Upload(ctx context.Context, ownerID string, file multipart.File, header *multipart.FileHeader) (*model.Document, error) {
	contentType := header.Header.Get("Content-Type")
	if !allowedMIMETypes[contentType] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, contentType)
	}
	if header.Size > s.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("%w: %d bytes (max: %d)", ErrFileTooLarge, header.Size, s.cfg.MaxUploadBytes)
	}

	doc := &model.Document{
		ID:            uuid.New(),
		OwnerID:       ownerID,
		Filename:      header.Filename,
		ContentType:   contentType,
		SizeBytes:     header.Size,
		OCRStatus:     model.StatusPending,
		ExtractStatus: model.StatusPending,
	}
	doc.StorageKey = storage.SourceKey(ownerID, doc.ID, header.Filename)

	if err := s.store.Upload(ctx, doc.StorageKey, file, header.Size, contentType); err != nil {
		return nil, fmt.Errorf("store source file: %w", err)
	}

	if err := s.docs.Create(ctx, doc); err != nil {
		if rmErr := s.store.Remove(ctx, doc.StorageKey); rmErr != nil {
			s.log.Warn().Err(rmErr).Str("key", doc.StorageKey).Msg("Orphaned source file cleanup failed")
		}
		return nil, fmt.Errorf("create document: %w", err)
	}

	err := s.queue.EnqueueOCRInit(ctx, queue.OCRInitPayload{
		DocumentID: doc.ID,
		StorageKey: doc.StorageKey,
	})
	if err != nil {
		// The upload is not usable without its pipeline run. Undo it.
		if delErr := s.docs.Delete(ctx, doc.ID); delErr != nil {
			s.log.Warn().Err(delErr).Stringer("document_id", doc.ID).Msg("Document rollback failed")
		}
		if rmErr := s.store.Remove(ctx, doc.StorageKey); rmErr != nil {
			s.log.Warn().Err(rmErr).Str("key", doc.StorageKey).Msg("Orphaned source file cleanup failed")
		}
		return nil, fmt.Errorf("enqueue pipeline: %w", err)
	}

	s.log.Info().
		Stringer("document_id", doc.ID).
		Str("owner_id", ownerID).
		Str("filename", header.Filename).
		Msg("Document uploaded")
	return doc, nil
}

// Get retrieves a document with its live pipeline status.
func (s *DocumentService) Get(ctx context.Context, ownerID string, documentID uuid.UUID) (*model.Document, error) {
	return s.ownedDocument(ctx, ownerID, documentID)
}

// List retrieves the caller's documents, newest first.
func (s *DocumentService) List(ctx context.Context, ownerID string, page, perPage int) ([]model.Document, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	docs, total, err := s.docs.ListByOwnerPaginated(ctx, ownerID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	if docs == nil {
		docs = []model.Document{}
	}

	return docs, response.NewPagination(page, perPage, total), nil
}

// Delete removes the document, its derived rows (FK cascade), its stored
// objects and its cache entry. In-flight pipeline jobs observe the missing
// row and stop.
func (s *DocumentService) Delete(ctx context.Context, ownerID string, documentID uuid.UUID) error {
	doc, err := s.ownedDocument(ctx, ownerID, documentID)
	if err != nil {
		return err
	}

	// Row first: once it is gone, workers can no longer claim anything.
	if err := s.docs.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	if err := s.store.Remove(ctx, doc.StorageKey); err != nil {
		s.log.Warn().Err(err).Str("key", doc.StorageKey).Msg("Source file cleanup failed")
	}
	if err := s.store.RemovePrefix(ctx, storage.PagePrefix(documentID)); err != nil {
		s.log.Warn().Err(err).Stringer("document_id", documentID).Msg("Scratch cleanup failed")
	}
	s.cache.Delete(ctx, config.CacheKey.DocumentQuestionsKey(documentID))

	s.log.Info().Stringer("document_id", documentID).Msg("Document deleted")
	return nil
}

func (s *DocumentService) ownedDocument(ctx context.Context, ownerID string, documentID uuid.UUID) (*model.Document, error) {
	return ownedDocumentFrom(ctx, s.docs, ownerID, documentID)
}

// ownedDocumentFrom loads a document and enforces ownership. Shared by every
// service that hangs resources off a document.
func ownedDocumentFrom(ctx context.Context, docs DocumentRepo, ownerID string, documentID uuid.UUID) (*model.Document, error) {
	doc, err := docs.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if doc.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return doc, nil
}
