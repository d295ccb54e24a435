// Package perception provides the model clients the conversation loop and
// the breakdown service talk to.
package perception

import (
	"errors"
	"fmt"
	"time"

	"taigent/internal/config"
	"taigent/internal/types"
)

// LLMClient is an alias to types.LLMClient for package compatibility.
type LLMClient = types.LLMClient

// ToolDefinition is an alias to types.ToolDefinition.
type ToolDefinition = types.ToolDefinition

// ToolCall is an alias to types.ToolCall.
type ToolCall = types.ToolCall

// LLMToolResponse is an alias to types.LLMToolResponse.
type LLMToolResponse = types.LLMToolResponse

// Provider represents an LLM provider.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderAzure  Provider = "azure"
	ProviderGemini Provider = "gemini"
)

var (
	// ErrNoAPIKey is returned when a client is used without credentials.
	ErrNoAPIKey = errors.New("API key not configured")

	// ErrNoCompletion is returned when the provider answers with no choices.
	ErrNoCompletion = errors.New("no completion returned")
)

// APIError is a non-2xx answer from a model provider.
type APIError struct {
	Provider   Provider
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API request failed with status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed if sent again.
func (e *APIError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// OpenAIConfig configures an OpenAI-compatible client. With Azure set,
// BaseURL is the resource endpoint and Deployment selects the model.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Azure      bool
	APIVersion string
	Deployment string
	Timeouts   config.LLMTimeouts
}

// DefaultOpenAIConfig returns the defaults for api.openai.com.
func DefaultOpenAIConfig(apiKey string) OpenAIConfig {
	return OpenAIConfig{
		APIKey:   apiKey,
		BaseURL:  "https://api.openai.com/v1",
		Model:    "gpt-4o",
		Timeouts: config.DefaultLLMTimeouts(),
	}
}

// GeminiConfig configures the Gemini client.
type GeminiConfig struct {
	APIKey  string
	BaseURL string // empty for the public endpoint
	Model   string
	Timeout time.Duration
}

// OpenAIMessage is one chat message on the wire.
type OpenAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []OpenAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	Name       string           `json:"name,omitempty"`
}

// OpenAIToolCall is a function call requested by the model.
type OpenAIToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function OpenAIFunctionCall `json:"function"`
}

// OpenAIFunctionCall carries the function name and its raw argument text.
type OpenAIFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// OpenAITool declares a function the model may call.
type OpenAITool struct {
	Type     string         `json:"type"`
	Function OpenAIFunction `json:"function"`
}

// OpenAIFunction is the declaration of one callable function.
type OpenAIFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

// OpenAIRequest is a chat completions request.
type OpenAIRequest struct {
	Model       string          `json:"model,omitempty"`
	Messages    []OpenAIMessage `json:"messages"`
	Tools       []OpenAITool    `json:"tools,omitempty"`
	ToolChoice  string          `json:"tool_choice,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

// OpenAIResponse is a chat completions response.
type OpenAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role      string           `json:"role"`
			Content   string           `json:"content"`
			ToolCalls []OpenAIToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}
