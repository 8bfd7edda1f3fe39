package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dethiai/dethiai-backend/internal/config"
	"github.com/dethiai/dethiai-backend/internal/model"
)

func TestStripFences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"padded", "  ```json\n{\"a\":1}\n```  ", `{"a":1}`},
		{"no fence with backticks inside", "{\"a\":\"`x`\"}", "{\"a\":\"`x`\"}"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StripFences(tc.in); got != tc.want {
				t.Errorf("StripFences(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

// newTestClient points a Client at a stub completions endpoint that always
// replies with the given assistant content.
func newTestClient(t *testing.T, reply string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", auth)
		}
		fmt.Fprintf(w, `{"choices":[{"message":{"content":%s}}]}`, mustQuote(reply))
	}))
	t.Cleanup(srv.Close)

	return NewClient(&config.Config{
		LLMBaseURL:     srv.URL,
		LLMAPIKey:      "test-key",
		OCRModel:       "test/ocr",
		ExtractModel:   "test/extract",
		GenerateModel:  "test/generate",
		BackendTimeout: 5 * time.Second,
	})
}

func mustQuote(s string) string {
	quoted, _ := json.Marshal(s)
	return string(quoted)
}

func TestPageMarkdownTrimsReply(t *testing.T) {
	client := newTestClient(t, "  # Page 1\n\nSome math: $x^2$.  ")
	got, err := client.PageMarkdown(context.Background(), []byte("jpeg bytes"))
	if err != nil {
		t.Fatalf("PageMarkdown: %v", err)
	}
	if got != "# Page 1\n\nSome math: $x^2$." {
		t.Errorf("markdown = %q", got)
	}
}

func TestPageMarkdownRejectsEmptyReply(t *testing.T) {
	client := newTestClient(t, "   ")
	if _, err := client.PageMarkdown(context.Background(), []byte("jpeg bytes")); err == nil {
		t.Fatal("expected error for empty recognition result")
	}
}

func TestExtractExamAssignsQuestionIndices(t *testing.T) {
	reply := "```json\n" + `{
		"metadata": {"title": "Algebra Midterm"},
		"elements": [
			{"type": "text", "content": "Part I. Multiple choice."},
			{"type": "multiple_choice", "content": "Pick one.", "data": {"options": ["a", "b", "c", "d"]}},
			{"type": "text", "content": "Part II."},
			{"type": "true_false", "content": "Judge each.", "data": {"clauses": ["p", "q"]}},
			{"type": "short_answer", "content": "Solve.", "data": {"ignored": true}}
		]
	}` + "\n```"
	client := newTestClient(t, reply)

	elements, err := client.ExtractExam(context.Background(), "# page markdown")
	if err != nil {
		t.Fatalf("ExtractExam: %v", err)
	}
	if len(elements) != 5 {
		t.Fatalf("got %d elements, want 5", len(elements))
	}

	wantIndices := []*int{nil, intPtr(0), nil, intPtr(1), intPtr(2)}
	for i, el := range elements {
		if el.Position != i {
			t.Errorf("element %d has position %d", i, el.Position)
		}
		want := wantIndices[i]
		switch {
		case want == nil && el.QuestionIndex != nil:
			t.Errorf("element %d should have no question index, got %d", i, *el.QuestionIndex)
		case want != nil && (el.QuestionIndex == nil || *el.QuestionIndex != *want):
			t.Errorf("element %d question index = %v, want %d", i, el.QuestionIndex, *want)
		}
	}
	// Short-answer questions carry no structured data.
	if elements[4].Data != nil {
		t.Errorf("short answer kept data %s", elements[4].Data)
	}
}

func TestExtractExamRejectsQuestionlessDocument(t *testing.T) {
	client := newTestClient(t, `{"elements": [{"type": "text", "content": "Cover page only."}]}`)
	if _, err := client.ExtractExam(context.Background(), "md"); err == nil {
		t.Fatal("expected error for a document with no questions")
	}
}

func TestExtractExamRejectsInvalidOptions(t *testing.T) {
	client := newTestClient(t, `{"elements": [{"type": "multiple_choice", "content": "Pick.", "data": {"options": []}}]}`)
	if _, err := client.ExtractExam(context.Background(), "md"); err == nil {
		t.Fatal("expected error for empty option list")
	}
}

func TestExtractExamRejectsUnknownType(t *testing.T) {
	client := newTestClient(t, `{"elements": [{"type": "essay", "content": "Write."}]}`)
	if _, err := client.ExtractExam(context.Background(), "md"); err == nil {
		t.Fatal("expected error for unknown element type")
	}
}

func TestGenerateMultipleChoice(t *testing.T) {
	reply := `{
		"content": "What is $3+3$?",
		"data": {"options": ["5", "6", "7", "33"]},
		"answer": {
			"selected_option": 1,
			"explanation": "Addition.",
			"error_analysis": ["Off by one.", "", "Off by one.", "Concatenated digits."]
		}
	}`
	client := newTestClient(t, reply)

	got, err := client.GenerateQuestion(context.Background(), model.QuestionSnapshot{
		Index:   0,
		Type:    model.ElementTypeMultipleChoice,
		Content: "What is $2+2$?",
		Data:    json.RawMessage(`{"options":["3","4","5","22"]}`),
	})
	if err != nil {
		t.Fatalf("GenerateQuestion: %v", err)
	}
	if got.Content != "What is $3+3$?" {
		t.Errorf("content = %q", got.Content)
	}

	var answer model.MultipleChoiceAnswer
	if err := json.Unmarshal(got.Answer, &answer); err != nil {
		t.Fatalf("decode answer: %v", err)
	}
	if answer.SelectedOption != 1 {
		t.Errorf("selected option = %d", answer.SelectedOption)
	}
}

func TestGenerateMultipleChoiceRejectsOutOfRangeAnswer(t *testing.T) {
	reply := `{
		"content": "Q",
		"data": {"options": ["a", "b"]},
		"answer": {"selected_option": 5, "explanation": "x", "error_analysis": ["", ""]}
	}`
	client := newTestClient(t, reply)

	_, err := client.GenerateQuestion(context.Background(), model.QuestionSnapshot{
		Type:    model.ElementTypeMultipleChoice,
		Content: "Q",
	})
	if err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Fatalf("err = %v, want out-of-range rejection", err)
	}
}

func TestGenerateTrueFalseRejectsMismatchedArrays(t *testing.T) {
	reply := `{
		"content": "Q",
		"data": {"clauses": ["p", "q", "r"]},
		"answer": {"clause_correctness": [true], "explanations": ["only one"]}
	}`
	client := newTestClient(t, reply)

	_, err := client.GenerateQuestion(context.Background(), model.QuestionSnapshot{
		Type:    model.ElementTypeTrueFalse,
		Content: "Q",
	})
	if err == nil {
		t.Fatal("expected error for mismatched answer arrays")
	}
}

func TestGenerateQuestionRejectsUnsupportedType(t *testing.T) {
	client := newTestClient(t, `{}`)
	_, err := client.GenerateQuestion(context.Background(), model.QuestionSnapshot{
		Type:    model.ElementTypeText,
		Content: "not a question",
	})
	if err == nil {
		t.Fatal("expected error for non-question type")
	}
}

func intPtr(v int) *int { return &v }
