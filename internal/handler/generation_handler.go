package handler

import (
	"errors"
	"net/http"

	"github.com/dethiai/dethiai-backend/internal/middleware"
	"github.com/dethiai/dethiai-backend/internal/model"
	"github.com/dethiai/dethiai-backend/internal/response"
	"github.com/dethiai/dethiai-backend/internal/service"
	"github.com/dethiai/dethiai-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GenerationHandler handles exam generation endpoints.
type GenerationHandler struct {
	generationService *service.GenerationService
}

// NewGenerationHandler creates a new GenerationHandler.
func NewGenerationHandler(generationService *service.GenerationService) *GenerationHandler {
	return &GenerationHandler{generationService: generationService}
}

// StartGeneration godoc
// POST /api/v1/documents/:document_id/generations
// Starts a generation request over a selection of extracted questions.
func (h *GenerationHandler) StartGeneration(c *gin.Context) {
	ownerID := middleware.GetOwnerID(c)

	documentID, err := uuid.Parse(c.Param("document_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.StartGenerationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.generationService.Start(c.Request.Context(), ownerID, documentID, &req)
	if err != nil {
		failGeneration(c, err)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{"generation": exam})
}

// ListGenerations godoc
// GET /api/v1/documents/:document_id/generations
// Lists every generation request made against a document.
func (h *GenerationHandler) ListGenerations(c *gin.Context) {
	ownerID := middleware.GetOwnerID(c)

	documentID, err := uuid.Parse(c.Param("document_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	exams, err := h.generationService.ListByDocument(c.Request.Context(), ownerID, documentID)
	if err != nil {
		failGeneration(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"generations": exams})
}

// GetGeneration godoc
// GET /api/v1/generations/:generation_id
// Returns a generation request with its per-question results. Poll until
// status reaches done, then inspect per-item statuses for partial failures.
func (h *GenerationHandler) GetGeneration(c *gin.Context) {
	ownerID := middleware.GetOwnerID(c)

	examID, err := uuid.Parse(c.Param("generation_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	exam, questions, err := h.generationService.Get(c.Request.Context(), ownerID, examID)
	if err != nil {
		failGeneration(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"generation": exam,
		"questions":  questions,
	})
}

// DeleteGeneration godoc
// DELETE /api/v1/generations/:generation_id
// Removes a generation request and its questions.
func (h *GenerationHandler) DeleteGeneration(c *gin.Context) {
	ownerID := middleware.GetOwnerID(c)

	examID, err := uuid.Parse(c.Param("generation_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.generationService.Delete(c.Request.Context(), ownerID, examID); err != nil {
		failGeneration(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// ExportGeneration godoc
// GET /api/v1/generations/:generation_id/export
// Renders the generated exam as a Markdown sheet with an answer key.
func (h *GenerationHandler) ExportGeneration(c *gin.Context) {
	ownerID := middleware.GetOwnerID(c)

	examID, err := uuid.Parse(c.Param("generation_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	markdown, err := h.generationService.ExportMarkdown(c.Request.Context(), ownerID, examID)
	if err != nil {
		failGeneration(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="exam.md"`)
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(markdown))
}

// failGeneration maps generation-scoped service errors onto API error codes.
func failGeneration(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrForbidden):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, service.ErrNotExtracted):
		response.Fail(c, http.StatusConflict, response.ErrNotExtracted)
	case errors.Is(err, service.ErrEmptySelection):
		response.Fail(c, http.StatusBadRequest, response.ErrEmptySelection)
	case errors.Is(err, service.ErrUnknownQuestion):
		response.Fail(c, http.StatusBadRequest, response.ErrUnknownQuestion)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
