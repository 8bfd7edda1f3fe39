package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dethiai/dethiai-backend/internal/middleware"
	"github.com/dethiai/dethiai-backend/internal/response"
	"github.com/dethiai/dethiai-backend/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DocumentHandler handles document upload and pipeline status endpoints.
type DocumentHandler struct {
	documentService *service.DocumentService
	questionService *service.QuestionService
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(documentService *service.DocumentService, questionService *service.QuestionService) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
		questionService: questionService,
	}
}

// UploadDocument godoc
// POST /api/v1/documents
// Accepts a PDF exam document and starts the recognition pipeline.
func (h *DocumentHandler) UploadDocument(c *gin.Context) {
	ownerID := middleware.GetOwnerID(c)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	defer file.Close()

	doc, err := h.documentService.Upload(c.Request.Context(), ownerID, file, header)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnsupportedFileType):
			response.Fail(c, http.StatusBadRequest, response.ErrUnsupportedFile)
		case errors.Is(err, service.ErrFileTooLarge):
			response.Fail(c, http.StatusBadRequest, response.ErrFileTooLarge)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{"document": doc})
}

// ListDocuments godoc
// GET /api/v1/documents
// Lists the caller's documents with their pipeline statuses, newest first.
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	ownerID := middleware.GetOwnerID(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	docs, pagination, err := h.documentService.List(c.Request.Context(), ownerID, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"documents": docs}, pagination)
}

// GetDocument godoc
// GET /api/v1/documents/:document_id
// Returns one document with its live pipeline status and counters.
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	ownerID := middleware.GetOwnerID(c)

	documentID, err := uuid.Parse(c.Param("document_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	doc, err := h.documentService.Get(c.Request.Context(), ownerID, documentID)
	if err != nil {
		failDocument(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"document": doc})
}

// DeleteDocument godoc
// DELETE /api/v1/documents/:document_id
// Removes a document, its derived data and its stored files.
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	ownerID := middleware.GetOwnerID(c)

	documentID, err := uuid.Parse(c.Param("document_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.documentService.Delete(c.Request.Context(), ownerID, documentID); err != nil {
		failDocument(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// ListElements godoc
// GET /api/v1/documents/:document_id/elements
// Returns the full extracted structure in document order.
func (h *DocumentHandler) ListElements(c *gin.Context) {
	ownerID := middleware.GetOwnerID(c)

	documentID, err := uuid.Parse(c.Param("document_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	elements, err := h.questionService.ListElements(c.Request.Context(), ownerID, documentID)
	if err != nil {
		failDocument(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"elements": elements})
}

// ListQuestions godoc
// GET /api/v1/documents/:document_id/questions
// Returns the selectable questions, ordered by question index.
func (h *DocumentHandler) ListQuestions(c *gin.Context) {
	ownerID := middleware.GetOwnerID(c)

	documentID, err := uuid.Parse(c.Param("document_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	questions, err := h.questionService.ListQuestions(c.Request.Context(), ownerID, documentID)
	if err != nil {
		failDocument(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// failDocument maps document-scoped service errors onto API error codes.
func failDocument(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrForbidden):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, service.ErrNotExtracted):
		response.Fail(c, http.StatusConflict, response.ErrNotExtracted)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
