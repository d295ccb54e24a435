// Package types provides shared type definitions used across taigent packages.
// This package exists to break import cycles between perception, session and
// the tool packages. Types in this package should be foundational data
// structures with no complex dependencies.
package types

import (
	"fmt"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of a conversation.
//
// Assistant messages may carry ToolCalls; tool messages carry the ToolCallID
// (and Name) of the call they answer. Content of a tool message is the
// serialized result envelope.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// UserMessage builds a user turn.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant turn from a model response.
func AssistantMessage(resp *LLMToolResponse) Message {
	msg := Message{Role: RoleAssistant}
	if resp == nil {
		return msg
	}
	msg.Content = resp.Text
	if len(resp.ToolCalls) > 0 {
		msg.ToolCalls = make([]ToolCall, len(resp.ToolCalls))
		copy(msg.ToolCalls, resp.ToolCalls)
	}
	return msg
}

// ToolResultMessage builds the tool turn answering call.
func ToolResultMessage(call ToolCall, content string) Message {
	return Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: call.ID,
		Name:       call.Name,
	}
}

// ValidateConversation checks the ordering invariant of a conversation: every
// tool message must answer a call issued by the closest preceding assistant
// message, and that assistant message must be followed only by its results
// until the next assistant or user turn.
func ValidateConversation(messages []Message) error {
	var pending map[string]bool
	for i, msg := range messages {
		switch msg.Role {
		case RoleUser:
			pending = nil
		case RoleAssistant:
			pending = make(map[string]bool, len(msg.ToolCalls))
			for _, call := range msg.ToolCalls {
				if pending[call.ID] {
					return fmt.Errorf("message %d: duplicate tool call id %q", i, call.ID)
				}
				pending[call.ID] = true
			}
		case RoleTool:
			if !pending[msg.ToolCallID] {
				return fmt.Errorf("message %d: tool result %q does not answer the preceding assistant message", i, msg.ToolCallID)
			}
			delete(pending, msg.ToolCallID)
		default:
			return fmt.Errorf("message %d: unknown role %q", i, msg.Role)
		}
	}
	return nil
}
