// Package llm defines the text-generation provider interface used by the
// MindFriend responder, plus an OpenAI-compatible HTTP adapter.
//
// The responder sends the accumulated conversation as chat messages and
// expects a single assistant reply. Providers must honor context
// cancellation so the configured generation timeout actually bounds the
// call.
package llm

import "context"

// Role is the role of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the input to a single generation call.
type CompletionRequest struct {
	// Model overrides the provider's default model when non-empty.
	Model    string
	Messages []Message
	// SessionID is the stable user identifier, passed through so backends
	// that keep their own notion of history can key it.
	SessionID string
}

// CompletionResponse is the output from the generation backend.
type CompletionResponse struct {
	// Content is the assistant reply text.
	Content string
	// Usage holds token count information when the backend reports it.
	Usage TokenUsage
}

// TokenUsage reports token consumption.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Provider is the interface all generation backends must implement.
type Provider interface {
	// Complete sends the conversation to the backend and returns the next
	// assistant reply.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
