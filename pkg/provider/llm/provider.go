// Package llm defines the Provider interface for language-generation backends.
//
// An LLM provider wraps a remote or local model API (e.g., OpenAI, Groq, or an
// Ollama instance) behind a uniform completion call. Which backend runs is a
// deployment-time configuration choice resolved once at process start — never
// a per-request decision.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly.
package llm

import "context"

// CompletionRequest carries everything the model needs to produce a reply.
// Prompt must be non-empty; a zero-value request is invalid.
type CompletionRequest struct {
	// SystemPrompt is a high-priority instruction injected before the user
	// content (e.g., "You are a non-player character in a video game.").
	// Providers without a dedicated system channel prepend it as a
	// system-role message.
	SystemPrompt string

	// Prompt is the fully assembled user-turn text: persona, history window,
	// and the player's current utterance.
	Prompt string

	// Temperature controls output randomness in [0.0, 2.0]. Zero means use
	// the provider default.
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int
}

// Usage holds token accounting returned by the backend. Counts are in the
// model's native token unit and may be zero if the backend does not report
// them.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionResponse is the model's reply.
type CompletionResponse struct {
	// Content is the full text of the reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any language-generation backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// Returns an error if the request fails, the backend returns an empty or
	// malformed response, or ctx expires first. A completion failure is fatal
	// to the calling interaction.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
