// Package llm defines the Provider interface for chat-completion backends.
//
// A provider wraps a hosted or local model API (Groq, OpenAI, Anthropic, a
// local Ollama instance, ...) and exposes a single blocking completion call.
// Replies arrive as one completed body; there is no token streaming.
//
// Implementations must be safe for concurrent use.
package llm

import "context"

// CompletionRequest carries everything the model needs to produce a reply.
type CompletionRequest struct {
	// SystemPrompt is sent as a leading "system"-role message when non-empty.
	SystemPrompt string

	// Messages is the ordered exchange following the system prompt. The last
	// message is the user turn that drives the reply.
	Messages []Message

	// Temperature controls output randomness in the range [0.0, 2.0]. Zero
	// leaves the provider default in place.
	Temperature float64

	// MaxTokens caps the number of completion tokens. Zero means the provider
	// default.
	MaxTokens int
}

// CompletionResponse is the unwrapped reply of a completion call.
type CompletionResponse struct {
	// Content is the text of the first choice's message.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Usage holds token accounting information returned by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Provider is the abstraction over any chat-completion backend.
type Provider interface {
	// Complete sends req to the model and waits for the full reply.
	//
	// When the backend answers with a non-success HTTP status the returned
	// error wraps a [*StatusError]. Transport and decoding failures are
	// returned as-is.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
