// Package export renders generated exams into printable formats.
package export

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dethiai/dethiai-backend/internal/model"
)

// Option labels follow the usual exam convention: A, B, C, D, ...
func optionLabel(i int) string {
	return string(rune('A' + i))
}

func clauseLabel(i int) string {
	return string(rune('a'+i)) + ")"
}

// Markdown renders a generation request as an exam sheet followed by an
// answer key. Items that failed or have not finished are listed with a note
// instead of being silently dropped, so the numbering matches the request.
func Markdown(exam *model.GeneratedExam, questions []model.GeneratedQuestion) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", exam.Title)
	if exam.DurationMinutes != nil {
		fmt.Fprintf(&b, "Duration: %d minutes\n\n", *exam.DurationMinutes)
	}

	for _, q := range questions {
		fmt.Fprintf(&b, "## Question %d\n\n", q.QuestionIndex+1)
		if q.Status != model.StatusDone {
			fmt.Fprintf(&b, "_Not generated (%s)._\n\n", q.Status)
			continue
		}
		b.WriteString(q.Content)
		b.WriteString("\n\n")
		if err := writeBody(&b, q); err != nil {
			return "", fmt.Errorf("question %d: %w", q.QuestionIndex, err)
		}
	}

	b.WriteString("---\n\n# Answer Key\n\n")
	for _, q := range questions {
		if q.Status != model.StatusDone {
			continue
		}
		fmt.Fprintf(&b, "## Question %d\n\n", q.QuestionIndex+1)
		if err := writeAnswer(&b, q); err != nil {
			return "", fmt.Errorf("answer %d: %w", q.QuestionIndex, err)
		}
	}

	return b.String(), nil
}

// writeBody renders the type-specific part of the question sheet.
func writeBody(b *strings.Builder, q model.GeneratedQuestion) error {
	switch q.Type {
	case model.ElementTypeMultipleChoice:
		var data model.MultipleChoiceData
		if err := json.Unmarshal(q.Data, &data); err != nil {
			return fmt.Errorf("decode options: %w", err)
		}
		for i, opt := range data.Options {
			fmt.Fprintf(b, "%s. %s\n", optionLabel(i), opt)
		}
		b.WriteString("\n")
	case model.ElementTypeTrueFalse:
		var data model.TrueFalseData
		if err := json.Unmarshal(q.Data, &data); err != nil {
			return fmt.Errorf("decode clauses: %w", err)
		}
		for i, clause := range data.Clauses {
			fmt.Fprintf(b, "%s %s\n", clauseLabel(i), clause)
		}
		b.WriteString("\n")
	case model.ElementTypeShortAnswer:
		// The prompt is the whole question.
	default:
		return fmt.Errorf("unsupported question type %q", q.Type)
	}
	return nil
}

// writeAnswer renders one answer-key entry.
func writeAnswer(b *strings.Builder, q model.GeneratedQuestion) error {
	switch q.Type {
	case model.ElementTypeMultipleChoice:
		var answer model.MultipleChoiceAnswer
		if err := json.Unmarshal(q.Answer, &answer); err != nil {
			return fmt.Errorf("decode answer: %w", err)
		}
		fmt.Fprintf(b, "**Answer: %s**\n\n%s\n\n", optionLabel(answer.SelectedOption), answer.Explanation)
		for i, analysis := range answer.ErrorAnalysis {
			if i == answer.SelectedOption || analysis == "" {
				continue
			}
			fmt.Fprintf(b, "- %s: %s\n", optionLabel(i), analysis)
		}
		b.WriteString("\n")
	case model.ElementTypeTrueFalse:
		var answer model.TrueFalseAnswer
		if err := json.Unmarshal(q.Answer, &answer); err != nil {
			return fmt.Errorf("decode answer: %w", err)
		}
		for i, correct := range answer.ClauseCorrectness {
			verdict := "False"
			if correct {
				verdict = "True"
			}
			fmt.Fprintf(b, "%s **%s**", clauseLabel(i), verdict)
			if i < len(answer.Explanations) && answer.Explanations[i] != "" {
				fmt.Fprintf(b, " - %s", answer.Explanations[i])
			}
			b.WriteString("\n")
		}
		if answer.GeneralExplanation != "" {
			fmt.Fprintf(b, "\n%s\n", answer.GeneralExplanation)
		}
		b.WriteString("\n")
	case model.ElementTypeShortAnswer:
		var answer model.ShortAnswerAnswer
		if err := json.Unmarshal(q.Answer, &answer); err != nil {
			return fmt.Errorf("decode answer: %w", err)
		}
		fmt.Fprintf(b, "**Answer:** %s\n\n%s\n\n", answer.AnswerText, answer.Explanation)
	default:
		return fmt.Errorf("unsupported question type %q", q.Type)
	}
	return nil
}
