package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"taigent/internal/types"
)

// MockLLMClient replays scripted turns and records every conversation it
// was sent.
type MockLLMClient struct {
	mu        sync.Mutex
	turns     []*types.LLMToolResponse
	err       error
	calls     int
	seen      [][]types.Message
	toolsSeen []types.ToolDefinition

	CompleteWithToolsFunc func(ctx context.Context, systemPrompt string, messages []types.Message, tools []types.ToolDefinition) (*types.LLMToolResponse, error)
}

func (m *MockLLMClient) Complete(ctx context.Context, prompt string) (string, error) {
	return m.CompleteWithSystem(ctx, "", prompt)
}

func (m *MockLLMClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return "", errors.New("not scripted")
}

func (m *MockLLMClient) CompleteWithTools(ctx context.Context, systemPrompt string, messages []types.Message, tools []types.ToolDefinition) (*types.LLMToolResponse, error) {
	m.mu.Lock()
	snapshot := make([]types.Message, len(messages))
	copy(snapshot, messages)
	m.seen = append(m.seen, snapshot)
	m.toolsSeen = tools
	i := m.calls
	m.calls++
	m.mu.Unlock()

	if m.CompleteWithToolsFunc != nil {
		return m.CompleteWithToolsFunc(ctx, systemPrompt, messages, tools)
	}
	if m.err != nil {
		return nil, m.err
	}
	if i >= len(m.turns) {
		return nil, fmt.Errorf("unexpected model call %d", i+1)
	}
	return m.turns[i], nil
}

func (m *MockLLMClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func text(s string) *types.LLMToolResponse {
	return &types.LLMToolResponse{Text: s, StopReason: "stop"}
}

func toolTurn(calls ...types.ToolCall) *types.LLMToolResponse {
	return &types.LLMToolResponse{ToolCalls: calls, StopReason: "tool_calls"}
}

func call(id, name, args string) types.ToolCall {
	return types.ToolCall{ID: id, Name: name, Arguments: args}
}

type memoryRecorder struct {
	mu   sync.Mutex
	runs []*types.Transcript
	err  error
}

func (r *memoryRecorder) SaveRun(ctx context.Context, t *types.Transcript) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, t)
	return r.err
}
