// Package llm defines the model-agnostic interface the memory domain talks
// to: embeddings for chunk/episode/thought vectors and plain text
// generation for importance scoring, episode titles/narratives and thought
// generation. Structured JSON output and multimodal text generation are
// also part of the interface; no memory component calls them.
package llm

import "context"

// ImageInput is a normalized multimodal image reference, used when a chunk's
// source content type is image_analysis.
type ImageInput struct {
	ImageURL string
	Detail   string // "low" | "high"
}

type Client interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error)
	GenerateText(ctx context.Context, system, user string) (string, error)
	GenerateTextWithImages(ctx context.Context, system, user string, images []ImageInput) (string, error)
}

// CallError is returned by Client implementations so callers can tell
// transient failures from permanent ones without string-matching error
// messages. The job worker does not inspect it: every failed job is
// retried the same way.
type CallError struct {
	Op         string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *CallError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *CallError) Unwrap() error { return e.Err }

func (e *CallError) HTTPStatusCode() int { return e.StatusCode }
