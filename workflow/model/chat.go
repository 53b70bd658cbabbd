// Package model defines the provider-neutral chat interface every tier
// in the model registry resolves down to, plus the tier/failover
// machinery that picks and retries across candidate models.
package model

import "context"

// ChatModel is the provider-neutral interface every adapter (anthropic,
// openai, google) and the mock implement.
//
// Implementations must:
//   - translate the standard Message/ToolSpec shapes into the
//     provider's wire format and back,
//   - respect ctx cancellation and deadlines,
//   - return errors Classify can recognize as retryable where the
//     provider itself reports a transient condition (rate limit,
//     timeout, overload).
type ChatModel interface {
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}

// Message is a single turn in a conversation.
type Message struct {
	Role    string
	Content string
}

// Standard role constants, shared across all providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolSpec describes a tool the model may call, using JSON Schema for
// its parameters.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// ChatOut is a model's response: generated text, requested tool calls,
// or both.
type ChatOut struct {
	Text      string
	ToolCalls []ToolCall

	// PromptTokens and CompletionTokens report usage when the provider
	// exposes it, so the executor can populate state.StepMeta without
	// each adapter duplicating that bookkeeping.
	PromptTokens     int
	CompletionTokens int
}

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	Name  string
	Input map[string]any
}
