package prompt

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseJSON unmarshals the outermost JSON object found in text into T.
// Surrounding prose or markdown fences are ignored.
func ParseJSON[T any](text string) (T, error) {
	var zero T

	start := strings.IndexByte(text, '{')
	if start == -1 {
		return zero, fmt.Errorf("no JSON object found (missing '{')")
	}
	end := strings.LastIndexByte(text, '}')
	if end < start {
		return zero, fmt.Errorf("no JSON object found (missing '}')")
	}

	var result T
	if err := json.Unmarshal([]byte(text[start:end+1]), &result); err != nil {
		return zero, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return result, nil
}

// ExtractState recovers the story state block from a story engine system prompt.
func ExtractState(systemPrompt string) (EngineState, error) {
	const open = "```json\n"
	start := strings.Index(systemPrompt, open)
	if start == -1 {
		return EngineState{}, fmt.Errorf("no story state block in prompt")
	}
	body := systemPrompt[start+len(open):]
	end := strings.Index(body, "\n```")
	if end == -1 {
		return EngineState{}, fmt.Errorf("unterminated story state block")
	}
	return ParseJSON[EngineState](body[:end])
}
