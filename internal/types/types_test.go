package types

import (
	"testing"
)

func TestAssistantMessage_CopiesToolCalls(t *testing.T) {
	resp := &LLMToolResponse{
		Text: "working on it",
		ToolCalls: []ToolCall{
			{ID: "call_1", Name: "list_epics", Arguments: `{"project_id":1}`},
		},
	}

	msg := AssistantMessage(resp)
	if msg.Role != RoleAssistant {
		t.Fatalf("expected assistant role, got %s", msg.Role)
	}
	if len(msg.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(msg.ToolCalls))
	}

	resp.ToolCalls[0].ID = "mutated"
	if msg.ToolCalls[0].ID != "call_1" {
		t.Errorf("message shares tool call storage with the response")
	}
}

func TestAssistantMessage_Nil(t *testing.T) {
	msg := AssistantMessage(nil)
	if msg.Role != RoleAssistant || msg.Content != "" || len(msg.ToolCalls) != 0 {
		t.Errorf("unexpected message for nil response: %+v", msg)
	}
}

func TestValidateConversation(t *testing.T) {
	call1 := ToolCall{ID: "a", Name: "create_user_story"}
	call2 := ToolCall{ID: "b", Name: "link_user_story_to_epic"}

	tests := []struct {
		name    string
		msgs    []Message
		wantErr bool
	}{
		{
			name: "plain exchange",
			msgs: []Message{UserMessage("hi"), {Role: RoleAssistant, Content: "hello"}},
		},
		{
			name: "two results in order",
			msgs: []Message{
				UserMessage("do it"),
				{Role: RoleAssistant, ToolCalls: []ToolCall{call1, call2}},
				ToolResultMessage(call1, `{"status":"success"}`),
				ToolResultMessage(call2, `{"status":"success"}`),
				{Role: RoleAssistant, Content: "done"},
			},
		},
		{
			name: "result without call",
			msgs: []Message{
				UserMessage("do it"),
				ToolResultMessage(call1, "{}"),
			},
			wantErr: true,
		},
		{
			name: "result answering an older assistant message",
			msgs: []Message{
				UserMessage("do it"),
				{Role: RoleAssistant, ToolCalls: []ToolCall{call1}},
				ToolResultMessage(call1, "{}"),
				{Role: RoleAssistant, ToolCalls: []ToolCall{call2}},
				ToolResultMessage(call1, "{}"),
			},
			wantErr: true,
		},
		{
			name: "duplicate ids",
			msgs: []Message{
				UserMessage("do it"),
				{Role: RoleAssistant, ToolCalls: []ToolCall{call1, call1}},
			},
			wantErr: true,
		},
		{
			name:    "unknown role",
			msgs:    []Message{{Role: "system", Content: "x"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConversation(tt.msgs)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateConversation() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
