package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dethiai/dethiai-backend/internal/config"
	"github.com/dethiai/dethiai-backend/internal/llm"
	"github.com/dethiai/dethiai-backend/internal/logger"
	"github.com/dethiai/dethiai-backend/internal/model"
	"github.com/dethiai/dethiai-backend/internal/queue"
	"github.com/dethiai/dethiai-backend/internal/storage"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// DocumentStore is the slice of the document repository the pipeline needs.
type DocumentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Document, error)
	ClaimOCRProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	SetOCRTotal(ctx context.Context, id uuid.UUID, total int) error
	RecordPageResult(ctx context.Context, id uuid.UUID, pageIndex int, content string) (inserted bool, completed, total int, err error)
	FinishOCR(ctx context.Context, id uuid.UUID) (bool, error)
	MarkOCRError(ctx context.Context, id uuid.UUID, msg string) error
	PageResults(ctx context.Context, id uuid.UUID) ([]model.PageResult, error)
	ClaimExtractProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	MarkExtractError(ctx context.Context, id uuid.UUID, msg string) error
}

// ElementStore persists the extraction result.
type ElementStore interface {
	SaveExtracted(ctx context.Context, documentID uuid.UUID, elements []model.Element) error
}

// GenExamStore is the slice of the generated-exam repository the pipeline needs.
type GenExamStore interface {
	ClaimQuestionProcessing(ctx context.Context, examID uuid.UUID, index int) (bool, error)
	CompleteQuestion(ctx context.Context, examID uuid.UUID, index int, content string, data, answer json.RawMessage) (bool, error)
	FailQuestion(ctx context.Context, examID uuid.UUID, index int, msg string) (bool, error)
	IncrementCompleted(ctx context.Context, examID uuid.UUID) (completed, total int, err error)
	FinishExam(ctx context.Context, examID uuid.UUID) (bool, error)
}

// ObjectStore is the slice of the blob storage the pipeline needs.
type ObjectStore interface {
	Download(ctx context.Context, objectKey string) ([]byte, error)
	UploadBytes(ctx context.Context, objectKey string, data []byte, contentType string) error
	RemovePrefix(ctx context.Context, prefix string) error
}

// Rasterizer renders a PDF into ordered page images.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdf []byte) ([][]byte, error)
}

// Recognizer is the optical recognition backend: one page image in, Markdown out.
type Recognizer interface {
	PageMarkdown(ctx context.Context, image []byte) (string, error)
}

// Extractor is the structure-extraction backend.
type Extractor interface {
	ExtractExam(ctx context.Context, markdown string) ([]model.Element, error)
}

// Generator is the per-type question generation backend.
type Generator interface {
	GenerateQuestion(ctx context.Context, snap model.QuestionSnapshot) (*llm.GeneratedContent, error)
}

// Enqueuer schedules follow-up pipeline tasks.
type Enqueuer interface {
	EnqueuePageOCR(ctx context.Context, p queue.PageOCRPayload) error
	EnqueueExtract(ctx context.Context, p queue.ExtractPayload) error
}

// Processor hosts the asynq handlers for all pipeline lanes. Upstream
// failures are recorded as terminal statuses on the smallest affected entity
// and the handler returns nil — asynq redelivery is reserved for
// infrastructure errors, not for failures the pipeline already accounted for.
type Processor struct {
	docs     DocumentStore
	elements ElementStore
	exams    GenExamStore
	store    ObjectStore
	raster   Rasterizer
	ocr      Recognizer
	extract  Extractor
	generate Generator
	log      zerolog.Logger
}

// NewProcessor constructs the pipeline processor.
func NewProcessor(
	docs DocumentStore,
	elements ElementStore,
	exams GenExamStore,
	store ObjectStore,
	raster Rasterizer,
	ocr Recognizer,
	extract Extractor,
	generate Generator,
	log zerolog.Logger,
) *Processor {
	return &Processor{
		docs:     docs,
		elements: elements,
		exams:    exams,
		store:    store,
		raster:   raster,
		ocr:      ocr,
		extract:  extract,
		generate: generate,
		log:      logger.Component(log, "pipeline"),
	}
}

// Handler registers all pipeline task handlers on an asynq mux.
func (p *Processor) Handler(enq Enqueuer) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(config.TaskKey.OCRInit, func(ctx context.Context, t *asynq.Task) error {
		var payload queue.OCRInitPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		return p.HandleOCRInit(ctx, enq, payload)
	})
	mux.HandleFunc(config.TaskKey.OCRPage, func(ctx context.Context, t *asynq.Task) error {
		var payload queue.PageOCRPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		return p.HandlePageOCR(ctx, enq, payload)
	})
	mux.HandleFunc(config.TaskKey.ExtractExam, func(ctx context.Context, t *asynq.Task) error {
		var payload queue.ExtractPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		return p.HandleExtract(ctx, payload)
	})
	mux.HandleFunc(config.TaskKey.GenerateQuestion, func(ctx context.Context, t *asynq.Task) error {
		var payload queue.GeneratePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		return p.HandleGenerate(ctx, payload)
	})
	return mux
}

// ----------------------------------------------------------------
// OCR initializer
// ----------------------------------------------------------------

// HandleOCRInit downloads the source file, rasterizes it, records the page
// fan-out width and enqueues one page job per page.
func (p *Processor) HandleOCRInit(ctx context.Context, enq Enqueuer, payload queue.OCRInitPayload) error {
	log := p.log.With().Stringer("document_id", payload.DocumentID).Logger()

	claimed, err := p.docs.ClaimOCRProcessing(ctx, payload.DocumentID)
	if err != nil {
		return fmt.Errorf("claim ocr: %w", err)
	}
	if !claimed {
		// Redelivered job or deleted document.
		log.Debug().Msg("OCR init skipped: document not claimable")
		return nil
	}

	fail := func(cause error) error {
		log.Error().Err(cause).Msg("OCR init failed")
		if err := p.docs.MarkOCRError(ctx, payload.DocumentID, cause.Error()); err != nil {
			return fmt.Errorf("mark ocr error: %w", err)
		}
		if err := p.store.RemovePrefix(ctx, storage.PagePrefix(payload.DocumentID)); err != nil {
			log.Warn().Err(err).Msg("Scratch cleanup after init failure failed")
		}
		return nil
	}

	source, err := p.store.Download(ctx, payload.StorageKey)
	if err != nil {
		return fail(fmt.Errorf("download source: %w", err))
	}

	pages, err := p.raster.Rasterize(ctx, source)
	if err != nil {
		return fail(fmt.Errorf("rasterize: %w", err))
	}

	for i, img := range pages {
		key := storage.PageKey(payload.DocumentID, i)
		if err := p.store.UploadBytes(ctx, key, img, "image/jpeg"); err != nil {
			return fail(fmt.Errorf("upload page image %d: %w", i, err))
		}
	}

	if err := p.docs.SetOCRTotal(ctx, payload.DocumentID, len(pages)); err != nil {
		return fmt.Errorf("set ocr total: %w", err)
	}

	for i := range pages {
		err := enq.EnqueuePageOCR(ctx, queue.PageOCRPayload{
			DocumentID: payload.DocumentID,
			PageIndex:  i,
			ImageKey:   storage.PageKey(payload.DocumentID, i),
		})
		if err != nil {
			// Partial fan-out: pages already enqueued will see the error
			// status and no-op.
			return fail(fmt.Errorf("enqueue page %d: %w", i, err))
		}
	}

	log.Info().Int("pages", len(pages)).Msg("OCR fan-out started")
	return nil
}

// ----------------------------------------------------------------
// Page OCR worker + extraction trigger
// ----------------------------------------------------------------

// HandlePageOCR recognizes one page, stores its Markdown, bumps the shared
// counter and runs the extraction trigger as a synchronous post-step.
func (p *Processor) HandlePageOCR(ctx context.Context, enq Enqueuer, payload queue.PageOCRPayload) error {
	log := p.log.With().
		Stringer("document_id", payload.DocumentID).
		Int("page", payload.PageIndex).
		Logger()

	doc, err := p.docs.GetByID(ctx, payload.DocumentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Debug().Msg("Page OCR skipped: document deleted")
			return nil
		}
		return fmt.Errorf("get document: %w", err)
	}
	if doc.OCRStatus != model.StatusProcessing {
		// A sibling already failed the document, or OCR finished long ago.
		log.Debug().Str("ocr_status", string(doc.OCRStatus)).Msg("Page OCR skipped")
		return nil
	}

	image, err := p.store.Download(ctx, payload.ImageKey)
	if err != nil {
		return p.failPage(ctx, log, payload, fmt.Errorf("download image: %w", err))
	}

	markdown, err := p.ocr.PageMarkdown(ctx, image)
	if err != nil {
		return p.failPage(ctx, log, payload, fmt.Errorf("recognize: %w", err))
	}

	// Insert and counter bump commit together: a crash before the ack either
	// left both writes behind (redelivery sees the row and skips) or neither
	// (redelivery re-runs both). The counter can never lag the rows.
	inserted, completed, total, err := p.docs.RecordPageResult(ctx, payload.DocumentID, payload.PageIndex, markdown)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("record page result: %w", err)
	}
	if !inserted {
		log.Debug().Msg("Page result already counted")
		return nil
	}
	log.Info().Int("completed", completed).Int("total", total).Msg("Page recognized")

	// Extraction trigger: only the worker whose compare-and-set lands
	// enqueues the single extraction job.
	if completed == total {
		won, err := p.docs.FinishOCR(ctx, payload.DocumentID)
		if err != nil {
			return fmt.Errorf("finish ocr: %w", err)
		}
		if won {
			if err := enq.EnqueueExtract(ctx, queue.ExtractPayload{DocumentID: payload.DocumentID}); err != nil {
				return fmt.Errorf("enqueue extraction: %w", err)
			}
			log.Info().Msg("All pages recognized, extraction enqueued")
		}
	}
	return nil
}

// failPage marks the document failed. First failure wins; the conditional
// update never overwrites a terminal status. The page counter is deliberately
// not incremented so extraction can never trigger for this document.
func (p *Processor) failPage(ctx context.Context, log zerolog.Logger, payload queue.PageOCRPayload, cause error) error {
	log.Error().Err(cause).Msg("Page OCR failed")
	if err := p.docs.MarkOCRError(ctx, payload.DocumentID, fmt.Sprintf("page %d: %v", payload.PageIndex, cause)); err != nil {
		return fmt.Errorf("mark ocr error: %w", err)
	}
	return nil
}

// ----------------------------------------------------------------
// Extraction worker
// ----------------------------------------------------------------

// HandleExtract concatenates the recognized pages in page order, runs the
// structure-extraction backend and persists the element batch. The scratch
// page images are reclaimed on both outcomes.
func (p *Processor) HandleExtract(ctx context.Context, payload queue.ExtractPayload) error {
	log := p.log.With().Stringer("document_id", payload.DocumentID).Logger()

	claimed, err := p.docs.ClaimExtractProcessing(ctx, payload.DocumentID)
	if err != nil {
		return fmt.Errorf("claim extraction: %w", err)
	}
	if !claimed {
		log.Debug().Msg("Extraction skipped: document not claimable")
		return nil
	}

	cleanup := func() {
		if err := p.store.RemovePrefix(ctx, storage.PagePrefix(payload.DocumentID)); err != nil {
			log.Warn().Err(err).Msg("Scratch cleanup failed")
		}
	}

	fail := func(cause error) error {
		log.Error().Err(cause).Msg("Extraction failed")
		if err := p.docs.MarkExtractError(ctx, payload.DocumentID, cause.Error()); err != nil {
			return fmt.Errorf("mark extract error: %w", err)
		}
		cleanup()
		return nil
	}

	pages, err := p.docs.PageResults(ctx, payload.DocumentID)
	if err != nil {
		return fmt.Errorf("read pages: %w", err)
	}
	if len(pages) == 0 {
		return fail(fmt.Errorf("no recognized pages"))
	}

	// Pages come back ordered by index, independent of completion order.
	parts := make([]string, len(pages))
	for i, page := range pages {
		parts[i] = page.Content
	}
	combined := strings.Join(parts, "\n\n")

	elements, err := p.extract.ExtractExam(ctx, combined)
	if err != nil {
		return fail(err)
	}
	for i := range elements {
		elements[i].DocumentID = payload.DocumentID
	}

	if err := p.elements.SaveExtracted(ctx, payload.DocumentID, elements); err != nil {
		return fail(fmt.Errorf("save elements: %w", err))
	}

	cleanup()
	log.Info().Int("elements", len(elements)).Msg("Extraction finished")
	return nil
}

// ----------------------------------------------------------------
// Generation worker + completion gate
// ----------------------------------------------------------------

// HandleGenerate produces one new question from its source snapshot. Success
// and failure both count toward the request's completion; a failed item never
// blocks or fails its siblings.
func (p *Processor) HandleGenerate(ctx context.Context, payload queue.GeneratePayload) error {
	log := p.log.With().
		Stringer("exam_id", payload.ExamID).
		Int("question", payload.QuestionIndex).
		Logger()

	claimed, err := p.exams.ClaimQuestionProcessing(ctx, payload.ExamID, payload.QuestionIndex)
	if err != nil {
		return fmt.Errorf("claim question: %w", err)
	}
	if !claimed {
		// Already terminal (redelivered duplicate) or the request was
		// deleted. A placeholder stuck in processing by a crashed worker is
		// claimable again; the guarded result writes keep the re-run safe.
		log.Debug().Msg("Generation skipped: placeholder not claimable")
		return nil
	}

	snap := model.QuestionSnapshot{
		Index:   payload.Snapshot.Index,
		Type:    model.ElementType(payload.Snapshot.Type),
		Content: payload.Snapshot.Content,
		Data:    payload.Snapshot.Data,
	}

	var wrote bool
	content, genErr := p.generate.GenerateQuestion(ctx, snap)
	if genErr != nil {
		log.Error().Err(genErr).Msg("Question generation failed")
		wrote, err = p.exams.FailQuestion(ctx, payload.ExamID, payload.QuestionIndex, genErr.Error())
	} else {
		wrote, err = p.exams.CompleteQuestion(ctx, payload.ExamID, payload.QuestionIndex,
			content.Content, content.Data, content.Answer)
	}
	if err != nil {
		return fmt.Errorf("write question result: %w", err)
	}
	if !wrote {
		// The request disappeared between claim and write.
		log.Debug().Msg("Question result dropped: placeholder gone")
		return nil
	}

	completed, total, err := p.exams.IncrementCompleted(ctx, payload.ExamID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("increment completion counter: %w", err)
	}
	log.Info().Int("completed", completed).Int("total", total).Msg("Question accounted")

	// Completion gate: done means full coverage, not all-success. Callers
	// inspect per-item statuses for partial failure.
	if completed >= total {
		won, err := p.exams.FinishExam(ctx, payload.ExamID)
		if err != nil {
			return fmt.Errorf("finish exam: %w", err)
		}
		if won {
			log.Info().Msg("Generation request complete")
		}
	}
	return nil
}
