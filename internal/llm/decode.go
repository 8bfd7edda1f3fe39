package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StripFences removes a surrounding Markdown code fence from a model reply.
// Models regularly wrap JSON in ```json ... ``` despite instructions not to.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		// Drop the language tag line (```json).
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// decodeReply strips fences and unmarshals the reply into dst.
func decodeReply(reply string, dst interface{}) error {
	cleaned := StripFences(reply)
	if err := json.Unmarshal([]byte(cleaned), dst); err != nil {
		return fmt.Errorf("decode llm reply: %w", err)
	}
	return nil
}
