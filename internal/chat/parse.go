package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedReply marks completion content that is not valid JSON after
// fence stripping. Turns fail hard on it; there is no repair retry.
var ErrMalformedReply = errors.New("chat: malformed completion reply")

// parseStructuredReply decodes one completion reply. The model is instructed
// to answer with a JSON object, optionally wrapped in a markdown code fence
// with a json language tag; fence markers are stripped wherever they appear
// before decoding.
func parseStructuredReply(content string) (map[string]any, error) {
	cleaned := strings.ReplaceAll(content, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var fields map[string]any
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	return fields, nil
}

// stringField reports whether key is present and renders its value as text.
// Missing keys are a normal outcome, not an error.
func stringField(fields map[string]any, key string) (string, bool) {
	value, ok := fields[key]
	if !ok {
		return "", false
	}
	if text, ok := value.(string); ok {
		return text, true
	}
	return fmt.Sprint(value), true
}
