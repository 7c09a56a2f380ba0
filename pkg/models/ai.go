// Package models contains shared data models used across the threatlens codebase.
package models

import (
	"context"
	"errors"
)

// Provider failures. Implementations wrap these so callers can match them
// with errors.Is regardless of the backend.
var (
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	ErrInferenceTimeout    = errors.New("ai inference timeout")
	ErrInvalidResponse     = errors.New("ai provider returned invalid response")
)

// AIProvider is the core interface that all model integrations must implement.
// Never call specific AI providers directly; always inject this interface.
type AIProvider interface {
	// Complete sends one system instruction and one user message and returns
	// the raw text of the reply. Exactly one upstream call is made.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	// Name returns the provider identifier (e.g., "ollama", "openai").
	Name() string
}

// CompletionRequest is the input to a single model call.
type CompletionRequest struct {
	System string
	User   string
}
