// Package llm abstracts the external model-serving capability. The
// pipeline treats every call as blocking I/O that may fail; failures
// are per-call and never fatal to a classification.
package llm

import (
	"context"
	"errors"
)

// Sentinel errors for the per-call failure taxonomy.
var (
	// ErrUnavailable means no model access is configured at all.
	// Callers degrade the whole classification instead of failing.
	ErrUnavailable = errors.New("model capability not configured")

	// ErrNoContent means the model returned an empty response.
	ErrNoContent = errors.New("model returned no content")
)

// Request is one structured completion exchange.
type Request struct {
	Prompt      string
	Temperature float32
	MaxTokens   int
	// JSONOnly constrains the model to emit a single JSON object.
	JSONOnly bool
}

// Client is the consumed model capability: one prompt in, one
// structured response out, or a failure.
type Client interface {
	// Complete issues a single blocking request. The returned string
	// is the raw model text; parsing and schema validation happen at
	// the pipeline boundary.
	Complete(ctx context.Context, req Request) (string, error)

	// ModelID identifies the backing model for audit records.
	ModelID() string
}
