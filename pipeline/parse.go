package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError marks a model payload that failed strict structural
// parsing. The offending run is discarded, never passed downstream.
type ParseError struct {
	Stage string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s response parse failed: %v", e.Stage, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// extractObject pulls a single JSON object out of raw model text.
// Markdown fences and leaked prose around the object are tolerated;
// the payload itself is always parsed structurally, never evaluated.
func extractObject(raw string) (string, error) {
	text := strings.TrimSpace(raw)

	if idx := strings.Index(text, "```json"); idx >= 0 {
		text = text[idx+len("```json"):]
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	} else if strings.HasPrefix(text, "```") && strings.HasSuffix(text, "```") {
		text = strings.Trim(text, "`")
	}
	text = strings.TrimSpace(text)

	if !strings.HasPrefix(text, "{") {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start < 0 || end <= start {
			return "", fmt.Errorf("no JSON object in response")
		}
		text = text[start : end+1]
	}
	return text, nil
}

func parseStrict(stage, raw string, out interface{}) error {
	text, err := extractObject(raw)
	if err != nil {
		return &ParseError{Stage: stage, Err: err}
	}

	dec := json.NewDecoder(strings.NewReader(text))
	if err := dec.Decode(out); err != nil {
		return &ParseError{Stage: stage, Err: err}
	}
	return nil
}

// ParseDetector parses and validates a detector payload.
func ParseDetector(raw string) (*DetectorResponse, error) {
	var resp DetectorResponse
	if err := parseStrict("detector", raw, &resp); err != nil {
		return nil, err
	}
	if err := resp.validate(); err != nil {
		return nil, &ParseError{Stage: "detector", Err: err}
	}
	return &resp, nil
}

// ParseMapper parses and validates a policy-mapper payload.
func ParseMapper(raw string) (*MapperResponse, error) {
	var resp MapperResponse
	if err := parseStrict("policy_mapper", raw, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ParseArbiter parses and validates one arbiter run.
func ParseArbiter(raw string) (*ArbiterResponse, error) {
	var resp ArbiterResponse
	if err := parseStrict("arbiter", raw, &resp); err != nil {
		return nil, err
	}
	if err := resp.validate(); err != nil {
		return nil, &ParseError{Stage: "arbiter", Err: err}
	}
	return &resp, nil
}
