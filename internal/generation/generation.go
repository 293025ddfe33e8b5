// Package generation wraps the language-model backend behind a small
// Generator interface with blocking and streaming shapes.
//
// The concrete implementation is Genkit-backed (see model.go); consumers
// depend on the interface so tests can substitute a scripted fake.
package generation

import (
	"context"
	"errors"
)

// Message roles as the model backend understands them.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Sentinel errors for generation operations.
var (
	// ErrGeneration wraps every backend failure. A request that fails
	// generation is terminal; there is no automatic retry.
	ErrGeneration = errors.New("generation failed")
)

// Message is one conversation turn handed to the model.
type Message struct {
	Role    string
	Content string
}

// Chunk is one incremental piece of a streamed response.
type Chunk struct {
	Delta string
}

// Usage reports token consumption for one completed generation.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
	TotalTokens  int `json:"totalTokens"`
}

// Result is the outcome of a completed generation, streaming or not.
// Usage is nil when the backend does not report it.
type Result struct {
	Text  string
	Usage *Usage
}

// Generator produces model completions.
//
// Stream invokes onChunk for every delta in arrival order; a non-nil error
// from onChunk aborts the stream. Both methods honor context cancellation
// and deadlines; a deadline expiry surfaces as context.DeadlineExceeded
// wrapped in ErrGeneration.
type Generator interface {
	Complete(ctx context.Context, system string, msgs []Message) (string, error)
	Stream(ctx context.Context, system string, msgs []Message, onChunk func(Chunk) error) (Result, error)
}
