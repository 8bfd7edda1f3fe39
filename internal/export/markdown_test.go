package export

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/dethiai/dethiai-backend/internal/model"
	"github.com/google/uuid"
)

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestMarkdownRendersAllQuestionTypes(t *testing.T) {
	duration := 90
	exam := &model.GeneratedExam{
		ID:              uuid.New(),
		Title:           "Midterm Practice",
		DurationMinutes: &duration,
		Status:          model.StatusDone,
		Total:           3,
		Completed:       3,
	}
	questions := []model.GeneratedQuestion{
		{
			QuestionIndex: 0,
			Type:          model.ElementTypeMultipleChoice,
			Status:        model.StatusDone,
			Content:       "What is $2+2$?",
			Data:          mustJSON(t, model.MultipleChoiceData{Options: []string{"3", "4", "5", "22"}}),
			Answer: mustJSON(t, model.MultipleChoiceAnswer{
				SelectedOption: 1,
				Explanation:    "Basic addition.",
				ErrorAnalysis:  []string{"Off by one.", "", "Off by one.", "String concatenation."},
			}),
		},
		{
			QuestionIndex: 1,
			Type:          model.ElementTypeTrueFalse,
			Status:        model.StatusDone,
			Content:       "Evaluate each statement.",
			Data:          mustJSON(t, model.TrueFalseData{Clauses: []string{"$1<2$", "$2<1$"}}),
			Answer: mustJSON(t, model.TrueFalseAnswer{
				ClauseCorrectness: []bool{true, false},
				Explanations:      []string{"Ordering of naturals.", "Reversed."},
			}),
		},
		{
			QuestionIndex: 2,
			Type:          model.ElementTypeShortAnswer,
			Status:        model.StatusDone,
			Content:       "Solve $x^2=4$ for positive $x$.",
			Answer: mustJSON(t, model.ShortAnswerAnswer{
				AnswerText:  "$x=2$",
				Explanation: "Take the positive square root.",
			}),
		},
	}

	out, err := Markdown(exam, questions)
	if err != nil {
		t.Fatalf("Markdown: %v", err)
	}

	for _, want := range []string{
		"# Midterm Practice",
		"Duration: 90 minutes",
		"## Question 1",
		"A. 3",
		"B. 4",
		"a) $1<2$",
		"# Answer Key",
		"**Answer: B**",
		"a) **True**",
		"b) **False**",
		"**Answer:** $x=2$",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestMarkdownKeepsNumberingForFailedItems(t *testing.T) {
	exam := &model.GeneratedExam{ID: uuid.New(), Title: "Partial", Status: model.StatusDone, Total: 2, Completed: 2}
	errMsg := "generation backend unavailable"
	questions := []model.GeneratedQuestion{
		{QuestionIndex: 0, Type: model.ElementTypeShortAnswer, Status: model.StatusError, Error: &errMsg},
		{
			QuestionIndex: 1,
			Type:          model.ElementTypeShortAnswer,
			Status:        model.StatusDone,
			Content:       "Compute $3!$.",
			Answer:        mustJSON(t, model.ShortAnswerAnswer{AnswerText: "6", Explanation: "3*2*1."}),
		},
	}

	out, err := Markdown(exam, questions)
	if err != nil {
		t.Fatalf("Markdown: %v", err)
	}
	if !strings.Contains(out, "## Question 1") || !strings.Contains(out, "_Not generated (error)._") {
		t.Error("failed item not represented in the sheet")
	}
	if !strings.Contains(out, "## Question 2") {
		t.Error("surviving item lost its number")
	}
	// The failed item must not appear in the answer key.
	key := out[strings.Index(out, "# Answer Key"):]
	if strings.Contains(key, "## Question 1") {
		t.Error("failed item leaked into the answer key")
	}
}
