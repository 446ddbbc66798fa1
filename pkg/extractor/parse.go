package extractor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var errEmptyOutput = errors.New("empty model output")

// parseObject decodes a JSON object from model output, tolerating markdown
// fences and prose around the object. Numbers are kept as json.Number so
// integer fields survive without float rounding.
func parseObject(content string) (map[string]any, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errEmptyOutput
	}

	candidates := []string{content}
	if stripped := stripCodeFences(content); stripped != "" && stripped != content {
		candidates = append(candidates, stripped)
	}
	if extracted := extractObjectCandidate(content); extracted != "" && extracted != content {
		candidates = append(candidates, extracted)
	}

	var firstErr error
	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}

		obj, err := decodeObject(candidate)
		if err == nil {
			return obj, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, fmt.Errorf("response is not a JSON object: %w", firstErr)
}

func decodeObject(s string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("unexpected data after JSON object")
	}
	if obj == nil {
		return nil, errors.New("got null instead of an object")
	}
	return obj, nil
}

func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return ""
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return ""
	}

	// Drop the opening fence, which may carry a language tag.
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// extractObjectCandidate returns the text between the first '{' and the
// last '}'.
func extractObjectCandidate(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return ""
	}
	return strings.TrimSpace(content[start : end+1])
}
