package providers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ParseStructuredJSON extracts the first well-formed JSON payload from model
// output. Models frequently wrap their answer in prose or markdown fences;
// the candidates are tried in order: raw content, fence-stripped content,
// then the substring between the first opening and last closing bracket.
func ParseStructuredJSON(content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("empty structured output")
	}

	candidates := []string{content}
	if stripped := stripCodeFences(content); stripped != "" && stripped != content {
		candidates = append(candidates, stripped)
	}
	if extracted := extractJSONCandidate(content); extracted != "" && extracted != content {
		candidates = append(candidates, extracted)
	}

	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}

		var parsed any
		if err := json.Unmarshal([]byte(candidate), &parsed); err == nil {
			normalized, mErr := json.Marshal(parsed)
			if mErr != nil {
				return nil, fmt.Errorf("failed to normalize structured output: %w", mErr)
			}
			return normalized, nil
		}
	}

	return nil, fmt.Errorf("failed to parse structured JSON")
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

	// Drop first fence line.
	lines = lines[1:]
	// Drop trailing fence if present.
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func extractJSONCandidate(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ""
	}

	objectStart := strings.Index(trimmed, "{")
	arrayStart := strings.Index(trimmed, "[")

	start := -1
	closeChar := ""
	switch {
	case objectStart >= 0 && (arrayStart < 0 || objectStart < arrayStart):
		start = objectStart
		closeChar = "}"
	case arrayStart >= 0:
		start = arrayStart
		closeChar = "]"
	default:
		return ""
	}

	end := strings.LastIndex(trimmed, closeChar)
	if end < start {
		return ""
	}
	return strings.TrimSpace(trimmed[start : end+1])
}

// ValidateStructuredJSON validates parsed JSON against the canonical schema.
// The schema may be a bare schema document or the OpenAI-style wrapper
// {"name","strict","schema":{...}}.
func ValidateStructuredJSON(schemaRaw, parsed json.RawMessage) error {
	if len(schemaRaw) == 0 || len(parsed) == 0 {
		return nil
	}

	coreSchema, err := extractValidationSchema(schemaRaw)
	if err != nil {
		return err
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(coreSchema)); err != nil {
		return fmt.Errorf("failed to load structured schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("failed to compile structured schema: %w", err)
	}

	var doc any
	if err := json.Unmarshal(parsed, &doc); err != nil {
		return fmt.Errorf("failed to decode structured JSON for validation: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("structured output does not match schema: %w", err)
	}
	return nil
}

func extractValidationSchema(schemaRaw json.RawMessage) (json.RawMessage, error) {
	var root any
	if err := json.Unmarshal(schemaRaw, &root); err != nil {
		return nil, fmt.Errorf("invalid structured schema JSON: %w", err)
	}

	if rootMap, ok := root.(map[string]any); ok {
		// OpenAI/OpenRouter wrapper: {"name","strict","schema":{...}}
		if inner, ok := rootMap["schema"]; ok {
			b, err := json.Marshal(inner)
			if err != nil {
				return nil, fmt.Errorf("failed to serialize inner schema: %w", err)
			}
			return b, nil
		}
	}

	// Assume raw schema document.
	return schemaRaw, nil
}
