package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/dethiai/dethiai-backend/internal/config"
)

// Client talks to an OpenRouter-compatible chat completions API. It backs all
// three pipeline contracts: page recognition, structure extraction and
// question generation.
type Client struct {
	baseURL       string
	apiKey        string
	ocrModel      string
	extractModel  string
	generateModel string
	httpClient    *http.Client
}

// Message is a chat message with mixed text/image content.
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart is one part of message content (text or image).
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL carries an inline base64 data URL.
type ImageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewClient creates an LLM client from the Config. The HTTP client timeout is
// the unit-of-work timeout: a call exceeding it fails that page or question
// without touching its siblings.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:       cfg.LLMBaseURL,
		apiKey:        cfg.LLMAPIKey,
		ocrModel:      cfg.OCRModel,
		extractModel:  cfg.ExtractModel,
		generateModel: cfg.GenerateModel,
		httpClient:    &http.Client{Timeout: cfg.BackendTimeout},
	}
}

// chat performs one completion call and returns the raw assistant content.
func (c *Client) chat(ctx context.Context, model string, temperature float64, messages []Message) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("llm api status %d: %s", resp.StatusCode, string(raw))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("llm api returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}

func textMessage(role, text string) Message {
	return Message{Role: role, Content: []ContentPart{{Type: "text", Text: text}}}
}
