package perception

import (
	"context"
	"sync"
	"time"

	"taigent/internal/logging"
	"taigent/internal/types"
	"taigent/internal/usage"
)

// Usage operations. Tool-calling turns belong to the conversation loop;
// plain system+user completions come from epic breakdown.
const (
	OperationConversation = "conversation"
	OperationBreakdown    = "breakdown"
)

// TracingLLMClient wraps any LLMClient and records every call as an audit
// event attributed to the run id carried by the context. With a usage
// tracker attached it also counts calls and tokens.
type TracingLLMClient struct {
	underlying LLMClient
	model      string

	mu       sync.RWMutex
	tracker  *usage.Tracker
	provider string
}

// NewTracingLLMClient creates a tracing wrapper around an existing client.
func NewTracingLLMClient(underlying LLMClient, model string) *TracingLLMClient {
	return &TracingLLMClient{underlying: underlying, model: model}
}

// SetUsageTracker attaches a usage tracker.
func (tc *TracingLLMClient) SetUsageTracker(tracker *usage.Tracker, provider string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.tracker = tracker
	tc.provider = provider
}

// Complete implements LLMClient.
func (tc *TracingLLMClient) Complete(ctx context.Context, prompt string) (string, error) {
	return tc.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem implements LLMClient.
func (tc *TracingLLMClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	start := time.Now()
	text, err := tc.underlying.CompleteWithSystem(ctx, systemPrompt, userPrompt)
	logging.AuditFrom(ctx).LLMCall(tc.model, 0, time.Since(start), err)
	tc.track(OperationBreakdown, types.UsageMetadata{}, err)
	return text, err
}

// CompleteWithTools implements LLMClient.
func (tc *TracingLLMClient) CompleteWithTools(ctx context.Context, systemPrompt string, messages []types.Message, tools []ToolDefinition) (*LLMToolResponse, error) {
	start := time.Now()
	resp, err := tc.underlying.CompleteWithTools(ctx, systemPrompt, messages, tools)
	calls := 0
	var used types.UsageMetadata
	if resp != nil {
		calls = len(resp.ToolCalls)
		used = resp.Usage
	}
	logging.AuditFrom(ctx).LLMCall(tc.model, calls, time.Since(start), err)
	tc.track(OperationConversation, used, err)
	return resp, err
}

func (tc *TracingLLMClient) track(operation string, used types.UsageMetadata, err error) {
	tc.mu.RLock()
	tracker, provider := tc.tracker, tc.provider
	tc.mu.RUnlock()
	if tracker == nil {
		return
	}
	tracker.Track(usage.Event{
		Model:        tc.model,
		Provider:     provider,
		Operation:    operation,
		InputTokens:  used.InputTokens,
		OutputTokens: used.OutputTokens,
		Failed:       err != nil,
	})
}

// GetUnderlying returns the wrapped client.
func (tc *TracingLLMClient) GetUnderlying() LLMClient {
	return tc.underlying
}
