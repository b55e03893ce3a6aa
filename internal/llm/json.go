package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON is returned when a response contains no decodable JSON value
var ErrNoJSON = errors.New("no JSON value in response")

// ExtractJSON returns the first complete JSON object or array in text.
// Models wrap JSON in code fences or prose even when asked not to.
func ExtractJSON(text string) (json.RawMessage, error) {
	text = stripCodeFence(strings.TrimSpace(text))

	if json.Valid([]byte(text)) && (strings.HasPrefix(text, "{") || strings.HasPrefix(text, "[")) {
		return json.RawMessage(text), nil
	}

	for i := 0; i < len(text); i++ {
		if text[i] != '{' && text[i] != '[' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err == nil {
			return raw, nil
		}
	}

	return nil, ErrNoJSON
}

// DecodeJSON extracts the first JSON value from text and decodes it into T
func DecodeJSON[T any](text string) (T, error) {
	var v T
	raw, err := ExtractJSON(text)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode response: %w", err)
	}
	return v, nil
}

func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	// Drop the opening fence line, including any language tag
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	} else {
		text = strings.TrimPrefix(text, "```")
	}
	if end := strings.LastIndex(text, "```"); end >= 0 {
		text = text[:end]
	}
	return strings.TrimSpace(text)
}
