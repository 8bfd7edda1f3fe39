package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
)

// PageMarkdown runs optical recognition on one rasterized page image and
// returns its Markdown text.
func (c *Client) PageMarkdown(ctx context.Context, image []byte) (string, error) {
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)

	msg := Message{
		Role: "user",
		Content: []ContentPart{
			{Type: "text", Text: ocrPrompt},
			{Type: "image_url", ImageURL: &ImageURL{URL: dataURL}},
		},
	}

	reply, err := c.chat(ctx, c.ocrModel, 0, []Message{msg})
	if err != nil {
		return "", fmt.Errorf("recognize page: %w", err)
	}

	markdown := strings.TrimSpace(reply)
	if markdown == "" {
		return "", fmt.Errorf("recognize page: empty result")
	}
	return markdown, nil
}
