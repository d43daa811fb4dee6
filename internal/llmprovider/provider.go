// Package llmprovider abstracts chat-completion calls so the core can be
// exercised without a live network dependency. The core invokes a provider
// only for cover-letter generation and optional CV enrichment; both are
// non-critical paths with explicit fallback.
package llmprovider

import (
	"context"

	"github.com/jobpilot/automation/internal/types"
)

// Message is one turn of a chat-completion request.
type Message struct {
	Role    string
	Content string
}

// Request bundles the parameters a chat-completion call needs.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	Stream      bool
}

// Provider is the abstract chat-completion contract. The core depends only
// on this interface, never on a concrete vendor client.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Null is a Provider that always reports unavailability. It is the default
// provider and the one used throughout the test suite: no unit test ever
// makes a live network call.
type Null struct{}

// Complete always returns types.ErrLLMUnavailable.
func (Null) Complete(ctx context.Context, req Request) (string, error) {
	return "", types.ErrLLMUnavailable
}
