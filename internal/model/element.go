package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// ElementType is the closed set of exam element variants.
type ElementType string

const (
	ElementTypeText           ElementType = "text"
	ElementTypeMultipleChoice ElementType = "multiple_choice"
	ElementTypeTrueFalse      ElementType = "true_false"
	ElementTypeShortAnswer    ElementType = "short_answer"
)

// Questionable reports whether the element type can be selected as a
// generation source. Text elements are structural only.
func (t ElementType) Questionable() bool {
	switch t {
	case ElementTypeMultipleChoice, ElementTypeTrueFalse, ElementTypeShortAnswer:
		return true
	}
	return false
}

// Element is one extracted component of the original exam, immutable after
// the extraction batch write. QuestionIndex is the stable selectable index
// and is nil for text elements.
type Element struct {
	DocumentID    uuid.UUID       `json:"document_id"`
	Position      int             `json:"position"`
	QuestionIndex *int            `json:"question_index,omitempty"`
	Type          ElementType     `json:"type"`
	Content       string          `json:"content"`
	Data          json.RawMessage `json:"data,omitempty"`
}

// MultipleChoiceData is the type-specific payload of a multiple-choice
// question: the option texts without leading labels.
type MultipleChoiceData struct {
	Options []string `json:"options"`
}

// TrueFalseData is the type-specific payload of a true/false question: the
// clause texts without leading labels.
type TrueFalseData struct {
	Clauses []string `json:"clauses"`
}

// QuestionSnapshot is the immutable work descriptor handed to a generation
// worker. It carries everything the worker needs so that it never reads the
// original question again.
type QuestionSnapshot struct {
	Index   int             `json:"index"`
	Type    ElementType     `json:"type"`
	Content string          `json:"content"`
	Data    json.RawMessage `json:"data,omitempty"`
}
