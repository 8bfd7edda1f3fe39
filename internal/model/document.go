package model

import (
	"time"

	"github.com/google/uuid"
)

// Document represents one uploaded exam file and its pipeline progress.
// OCRTotal/OCRCompleted are the page fan-out counters; OCRCompleted is only
// ever changed through an atomic increment in the repository.
type Document struct {
	ID            uuid.UUID `json:"id"`
	OwnerID       string    `json:"owner_id"`
	Filename      string    `json:"filename"`
	ContentType   string    `json:"content_type"`
	SizeBytes     int64     `json:"size_bytes"`
	StorageKey    string    `json:"storage_key"`
	OCRStatus     Status    `json:"ocr_status"`
	ExtractStatus Status    `json:"extract_status"`
	OCRTotal      int       `json:"ocr_total"`
	OCRCompleted  int       `json:"ocr_completed"`
	Error         *string   `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PageResult is one recognized page of a document.
type PageResult struct {
	DocumentID uuid.UUID `json:"document_id"`
	PageIndex  int       `json:"page_index"`
	Content    string    `json:"content"`
}
