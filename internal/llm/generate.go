package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dethiai/dethiai-backend/internal/model"
)

const generateTemperature = 0.5

// GeneratedContent is the full output of one generation call: the new
// question body, its type-specific data and the answer payload.
type GeneratedContent struct {
	Content string
	Data    json.RawMessage
	Answer  json.RawMessage
}

type generateFunc func(c *Client, ctx context.Context, snap model.QuestionSnapshot) (*GeneratedContent, error)

// generators dispatches generation by question type. Closed set; an unknown
// type is a caller bug surfaced as an error, not a fallback.
var generators = map[model.ElementType]generateFunc{
	model.ElementTypeMultipleChoice: (*Client).generateMultipleChoice,
	model.ElementTypeTrueFalse:      (*Client).generateTrueFalse,
	model.ElementTypeShortAnswer:    (*Client).generateShortAnswer,
}

// GenerateQuestion produces one new question analogous to the snapshot,
// dispatching to the type-specific backend contract.
func (c *Client) GenerateQuestion(ctx context.Context, snap model.QuestionSnapshot) (*GeneratedContent, error) {
	gen, ok := generators[snap.Type]
	if !ok {
		return nil, fmt.Errorf("generate question: unsupported type %q", snap.Type)
	}
	return gen(c, ctx, snap)
}

func (c *Client) generateMultipleChoice(ctx context.Context, snap model.QuestionSnapshot) (*GeneratedContent, error) {
	var out struct {
		Content string                     `json:"content"`
		Data    model.MultipleChoiceData   `json:"data"`
		Answer  model.MultipleChoiceAnswer `json:"answer"`
	}
	if err := c.generate(ctx, generateMultipleChoicePrompt, snap, &out); err != nil {
		return nil, err
	}
	n := len(out.Data.Options)
	if n == 0 {
		return nil, fmt.Errorf("generate multiple choice: no options")
	}
	if out.Answer.SelectedOption < 0 || out.Answer.SelectedOption >= n {
		return nil, fmt.Errorf("generate multiple choice: selected option %d out of range", out.Answer.SelectedOption)
	}
	if len(out.Answer.ErrorAnalysis) != n {
		return nil, fmt.Errorf("generate multiple choice: expected %d error analyses, got %d", n, len(out.Answer.ErrorAnalysis))
	}
	return buildContent(out.Content, out.Data, out.Answer)
}

func (c *Client) generateTrueFalse(ctx context.Context, snap model.QuestionSnapshot) (*GeneratedContent, error) {
	var out struct {
		Content string                `json:"content"`
		Data    model.TrueFalseData   `json:"data"`
		Answer  model.TrueFalseAnswer `json:"answer"`
	}
	if err := c.generate(ctx, generateTrueFalsePrompt, snap, &out); err != nil {
		return nil, err
	}
	n := len(out.Data.Clauses)
	if n == 0 {
		return nil, fmt.Errorf("generate true/false: no clauses")
	}
	if len(out.Answer.ClauseCorrectness) != n || len(out.Answer.Explanations) != n {
		return nil, fmt.Errorf("generate true/false: answer arrays do not match %d clauses", n)
	}
	return buildContent(out.Content, out.Data, out.Answer)
}

func (c *Client) generateShortAnswer(ctx context.Context, snap model.QuestionSnapshot) (*GeneratedContent, error) {
	var out struct {
		Content string                  `json:"content"`
		Answer  model.ShortAnswerAnswer `json:"answer"`
	}
	if err := c.generate(ctx, generateShortAnswerPrompt, snap, &out); err != nil {
		return nil, err
	}
	if out.Answer.AnswerText == "" {
		return nil, fmt.Errorf("generate short answer: empty answer text")
	}
	return buildContent(out.Content, nil, out.Answer)
}

// generate runs one prompt with the snapshot inlined as JSON and decodes the
// reply into dst.
func (c *Client) generate(ctx context.Context, prompt string, snap model.QuestionSnapshot, dst interface{}) error {
	source, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	reply, err := c.chat(ctx, c.generateModel, generateTemperature, []Message{
		textMessage("system", generateSystemPrompt),
		textMessage("user", fmt.Sprintf(prompt, string(source))),
	})
	if err != nil {
		return err
	}
	if err := decodeReply(reply, dst); err != nil {
		return err
	}
	return nil
}

func buildContent(content string, data, answer interface{}) (*GeneratedContent, error) {
	if content == "" {
		return nil, fmt.Errorf("generated question has empty content")
	}
	gc := &GeneratedContent{Content: content}

	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal data: %w", err)
		}
		gc.Data = raw
	}
	raw, err := json.Marshal(answer)
	if err != nil {
		return nil, fmt.Errorf("marshal answer: %w", err)
	}
	gc.Answer = raw
	return gc, nil
}
