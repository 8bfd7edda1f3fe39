package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// GeneratedExam is one generation request over a selection of original
// questions. Total is fixed at creation; Completed counts terminal items
// (done or error) and is monotonically non-decreasing.
type GeneratedExam struct {
	ID              uuid.UUID `json:"id"`
	DocumentID      uuid.UUID `json:"document_id"`
	Title           string    `json:"title"`
	DurationMinutes *int      `json:"duration_minutes,omitempty"`
	Status          Status    `json:"status"`
	Total           int       `json:"total"`
	Completed       int       `json:"completed"`
	Error           *string   `json:"error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// GeneratedQuestion is one item of a generated exam. It is created as a
// pending placeholder before its worker runs and is written exactly once
// more, to a terminal state.
type GeneratedQuestion struct {
	ExamID        uuid.UUID       `json:"exam_id"`
	QuestionIndex int             `json:"question_index"`
	SourceIndex   int             `json:"source_index"`
	Type          ElementType     `json:"type"`
	Status        Status          `json:"status"`
	Content       string          `json:"content,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"`
	Answer        json.RawMessage `json:"answer,omitempty"`
	Error         *string         `json:"error,omitempty"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// MultipleChoiceAnswer is the answer payload of a generated multiple-choice
// question. ErrorAnalysis holds, per option, the misconception that would
// lead a student to pick it.
type MultipleChoiceAnswer struct {
	SelectedOption int      `json:"selected_option"`
	Explanation    string   `json:"explanation"`
	ErrorAnalysis  []string `json:"error_analysis"`
}

// TrueFalseAnswer is the answer payload of a generated true/false question.
type TrueFalseAnswer struct {
	ClauseCorrectness  []bool   `json:"clause_correctness"`
	Explanations       []string `json:"explanations"`
	GeneralExplanation string   `json:"general_explanation,omitempty"`
}

// ShortAnswerAnswer is the answer payload of a generated short-answer question.
type ShortAnswerAnswer struct {
	AnswerText  string `json:"answer_text"`
	Explanation string `json:"explanation"`
}

// StartGenerationRequest is the payload for starting a generation request.
type StartGenerationRequest struct {
	SelectedIndices []int  `json:"selected_indices" binding:"required,min=1,dive,min=0"`
	TargetCount     int    `json:"target_count" binding:"required,min=1,max=100"`
	Title           string `json:"title" binding:"omitempty,max=255"`
	DurationMinutes *int   `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
}
