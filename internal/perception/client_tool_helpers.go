package perception

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"taigent/internal/config"
	"taigent/internal/logging"
	"taigent/internal/types"
)

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 2048

// MapToolDefinitionsToOpenAI converts generic tool definitions to OpenAI-compatible format.
func MapToolDefinitionsToOpenAI(tools []ToolDefinition) []OpenAITool {
	result := make([]OpenAITool, len(tools))
	for i, t := range tools {
		result[i] = OpenAITool{
			Type: "function",
			Function: OpenAIFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		}
	}
	return result
}

// MapMessagesToOpenAI converts a conversation to OpenAI chat messages,
// prefixed with the system prompt when one is given.
func MapMessagesToOpenAI(systemPrompt string, messages []types.Message) []OpenAIMessage {
	out := make([]OpenAIMessage, 0, len(messages)+1)
	if systemPrompt != "" {
		out = append(out, OpenAIMessage{Role: "system", Content: systemPrompt})
	}
	for _, m := range messages {
		msg := OpenAIMessage{Role: string(m.Role), Content: m.Content}
		switch m.Role {
		case types.RoleAssistant:
			for _, call := range m.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, OpenAIToolCall{
					ID:       call.ID,
					Type:     "function",
					Function: OpenAIFunctionCall{Name: call.Name, Arguments: call.Arguments},
				})
			}
		case types.RoleTool:
			msg.ToolCallID = m.ToolCallID
		}
		out = append(out, msg)
	}
	return out
}

// MapOpenAIToolCallsToInternal converts OpenAI tool calls to generic tool
// calls. Argument text is passed through undecoded; the conversation loop
// reports malformed arguments back to the model.
func MapOpenAIToolCallsToInternal(calls []OpenAIToolCall) []ToolCall {
	result := make([]ToolCall, 0, len(calls))
	for _, c := range calls {
		if c.Type != "" && c.Type != "function" {
			continue // Skip non-function tool calls (if any)
		}
		result = append(result, ToolCall{
			ID:        c.ID,
			Name:      c.Function.Name,
			Arguments: c.Function.Arguments,
		})
	}
	return result
}

// ExecuteOpenAIRequest performs a non-streaming OpenAI-compatible request,
// retrying transport failures, 429 and 5xx answers with exponential backoff.
// authorize sets the credential header.
func ExecuteOpenAIRequest(ctx context.Context, client *http.Client, provider Provider, url string, authorize func(*http.Request), reqBody OpenAIRequest, timeouts config.LLMTimeouts) (*OpenAIResponse, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= timeouts.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := timeouts.Backoff(attempt - 1)
			logging.PerceptionWarn("[%s] retry %d/%d in %v: %v", provider, attempt, timeouts.MaxRetries, delay, lastErr)
			if err := sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		authorize(req)

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response body: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			text := strings.TrimSpace(string(body))
			if len(text) > maxErrorBody {
				text = text[:maxErrorBody]
			}
			apiErr := &APIError{Provider: provider, StatusCode: resp.StatusCode, Body: text}
			if apiErr.Retryable() {
				lastErr = apiErr
				continue
			}
			return nil, apiErr
		}

		var openAIResp OpenAIResponse
		if err := json.Unmarshal(body, &openAIResp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}
		if openAIResp.Error != nil {
			return nil, fmt.Errorf("API error: %s", openAIResp.Error.Message)
		}
		return &openAIResp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
