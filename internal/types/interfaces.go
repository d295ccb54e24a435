package types

import (
	"context"
)

// LLMClient defines the interface for LLM interactions.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	// CompleteWithTools sends the full conversation plus the tool definitions and
	// returns the model's next assistant turn. The turn either carries text only
	// (final answer) or one or more tool calls the host must fulfil.
	CompleteWithTools(ctx context.Context, systemPrompt string, messages []Message, tools []ToolDefinition) (*LLMToolResponse, error)
}

// ToolDefinition describes a tool that the LLM can invoke.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"` // JSON Schema for parameters
}

// ToolCall represents a tool invocation requested by the LLM.
// Arguments is kept as the raw text the model emitted; the conversation
// loop decodes it before dispatch.
type ToolCall struct {
	ID        string `json:"id"`        // Unique within one assistant message
	Name      string `json:"name"`      // Tool name to invoke
	Arguments string `json:"arguments"` // JSON object text
}

// UsageMetadata captures token usage metrics from the LLM.
type UsageMetadata struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// LLMToolResponse contains both text response and tool calls from the LLM.
type LLMToolResponse struct {
	Text       string        `json:"text"`        // Text response (may be empty if only tool calls)
	ToolCalls  []ToolCall    `json:"tool_calls"`  // Tool invocations requested by LLM
	StopReason string        `json:"stop_reason"` // "stop", "tool_calls", etc.
	Usage      UsageMetadata `json:"usage"`
}

// HasToolCalls reports whether the model asked the host to run tools.
func (r *LLMToolResponse) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}
