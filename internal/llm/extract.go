package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dethiai/dethiai-backend/internal/model"
)

type extractedExam struct {
	Metadata struct {
		Title           string `json:"title"`
		DurationMinutes *int   `json:"duration_minutes"`
	} `json:"metadata"`
	Elements []extractedElement `json:"elements"`
}

type extractedElement struct {
	Type    model.ElementType `json:"type"`
	Content string            `json:"content"`
	Data    json.RawMessage   `json:"data,omitempty"`
}

// ExtractExam turns the concatenated page Markdown into the ordered typed
// element list. Position and question index are assigned here; document
// identity is the caller's concern. Any malformed element fails the whole
// extraction — there is no partial result.
func (c *Client) ExtractExam(ctx context.Context, markdown string) ([]model.Element, error) {
	reply, err := c.chat(ctx, c.extractModel, 0, []Message{
		textMessage("system", extractSystemPrompt),
		textMessage("user", fmt.Sprintf(extractPrompt, markdown)),
	})
	if err != nil {
		return nil, fmt.Errorf("extract exam: %w", err)
	}

	var exam extractedExam
	if err := decodeReply(reply, &exam); err != nil {
		return nil, fmt.Errorf("extract exam: %w", err)
	}
	if len(exam.Elements) == 0 {
		return nil, fmt.Errorf("extract exam: no elements found")
	}

	elements := make([]model.Element, 0, len(exam.Elements))
	questionIndex := 0
	for pos, raw := range exam.Elements {
		el := model.Element{
			Position: pos,
			Type:     raw.Type,
			Content:  raw.Content,
			Data:     raw.Data,
		}
		switch raw.Type {
		case model.ElementTypeText:
			// Structural only; carries no selectable index.
		case model.ElementTypeMultipleChoice:
			var data model.MultipleChoiceData
			if err := json.Unmarshal(raw.Data, &data); err != nil || len(data.Options) == 0 {
				return nil, fmt.Errorf("extract exam: element %d has invalid options", pos)
			}
			idx := questionIndex
			el.QuestionIndex = &idx
			questionIndex++
		case model.ElementTypeTrueFalse:
			var data model.TrueFalseData
			if err := json.Unmarshal(raw.Data, &data); err != nil || len(data.Clauses) == 0 {
				return nil, fmt.Errorf("extract exam: element %d has invalid clauses", pos)
			}
			idx := questionIndex
			el.QuestionIndex = &idx
			questionIndex++
		case model.ElementTypeShortAnswer:
			el.Data = nil
			idx := questionIndex
			el.QuestionIndex = &idx
			questionIndex++
		default:
			return nil, fmt.Errorf("extract exam: element %d has unknown type %q", pos, raw.Type)
		}
		elements = append(elements, el)
	}

	if questionIndex == 0 {
		return nil, fmt.Errorf("extract exam: no questions found")
	}
	return elements, nil
}
