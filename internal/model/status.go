package model

// Status is the shared lifecycle shape for OCR, extraction, generated exams
// and generated questions: pending → processing → {done | error}. Both
// terminal states absorb later writes.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

// Terminal reports whether s is a terminal state.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}
