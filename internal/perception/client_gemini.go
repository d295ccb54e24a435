package perception

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"taigent/internal/logging"
	"taigent/internal/types"
)

// GeminiClient implements LLMClient on the Google GenAI SDK.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// DefaultGeminiConfig returns sensible defaults.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:  apiKey,
		Model:   "gemini-2.5-flash",
		Timeout: 120 * time.Second,
	}
}

// NewGeminiClient creates a Gemini client.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiConfig("").Model
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiClient{client: client, model: cfg.Model}, nil
}

// Model returns the model requests go to.
func (c *GeminiClient) Model() string {
	return c.model
}

// Complete sends a prompt and returns the completion.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with a system instruction.
func (c *GeminiClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.generate(ctx, systemPrompt, []types.Message{types.UserMessage(userPrompt)}, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

// CompleteWithTools sends the conversation with function declarations and
// returns the next model turn.
func (c *GeminiClient) CompleteWithTools(ctx context.Context, systemPrompt string, messages []types.Message, tools []ToolDefinition) (*LLMToolResponse, error) {
	return c.generate(ctx, systemPrompt, messages, tools)
}

func (c *GeminiClient) generate(ctx context.Context, systemPrompt string, messages []types.Message, tools []ToolDefinition) (*LLMToolResponse, error) {
	start := time.Now()
	cfg := &genai.GenerateContentConfig{}
	if systemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}}
	}
	if len(tools) > 0 {
		cfg.Tools = MapToolDefinitionsToGemini(tools)
	}

	contents := MapMessagesToGemini(messages)
	logging.PerceptionDebug("[Gemini] generate: model=%s contents=%d tools=%d", c.model, len(contents), len(tools))

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		logging.PerceptionError("[Gemini] generate failed after %v: %v", time.Since(start), err)
		return nil, fmt.Errorf("GenAI generate failed: %w", err)
	}

	out, err := mapGeminiResponse(resp)
	if err != nil {
		return nil, err
	}
	logging.Perception("[Gemini] generate: completed in %v tool_calls=%d text_len=%d", time.Since(start), len(out.ToolCalls), len(out.Text))
	return out, nil
}

// MapToolDefinitionsToGemini declares the tools as Gemini functions.
func MapToolDefinitionsToGemini(tools []ToolDefinition) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		decls[i] = &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: t.InputSchema,
		}
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// MapMessagesToGemini converts a conversation to Gemini contents.
// Consecutive tool results are grouped into one user turn.
func MapMessagesToGemini(messages []types.Message) []*genai.Content {
	var out []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case types.RoleAssistant:
			content := &genai.Content{Role: genai.RoleModel}
			if m.Content != "" {
				content.Parts = append(content.Parts, &genai.Part{Text: m.Content})
			}
			for _, call := range m.ToolCalls {
				content.Parts = append(content.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   call.ID,
					Name: call.Name,
					Args: decodeObject(call.Arguments),
				}})
			}
			out = append(out, content)

		case types.RoleTool:
			part := &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       m.ToolCallID,
				Name:     m.Name,
				Response: decodeObject(m.Content),
			}}
			if n := len(out); n > 0 && isFunctionResponseTurn(out[n-1]) {
				out[n-1].Parts = append(out[n-1].Parts, part)
				continue
			}
			out = append(out, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{part}})

		default:
			out = append(out, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return out
}

func isFunctionResponseTurn(c *genai.Content) bool {
	return c.Role == genai.RoleUser && len(c.Parts) > 0 && c.Parts[0].FunctionResponse != nil
}

// decodeObject decodes a JSON object, wrapping anything else so the model
// still sees the original text.
func decodeObject(text string) map[string]any {
	var m map[string]any
	if err := json.Unmarshal([]byte(text), &m); err != nil || m == nil {
		return map[string]any{"raw": text}
	}
	return m
}

func mapGeminiResponse(resp *genai.GenerateContentResponse) (*LLMToolResponse, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, ErrNoCompletion
	}
	cand := resp.Candidates[0]

	out := &LLMToolResponse{StopReason: string(cand.FinishReason)}
	var text strings.Builder
	for _, part := range cand.Content.Parts {
		switch {
		case part.FunctionCall != nil:
			fnArgs := part.FunctionCall.Args
			if fnArgs == nil {
				fnArgs = map[string]any{}
			}
			args, err := json.Marshal(fnArgs)
			if err != nil {
				return nil, fmt.Errorf("failed to encode arguments for %s: %w", part.FunctionCall.Name, err)
			}
			id := part.FunctionCall.ID
			if id == "" {
				id = "call_" + uuid.NewString()
			}
			out.ToolCalls = append(out.ToolCalls, ToolCall{ID: id, Name: part.FunctionCall.Name, Arguments: string(args)})
		case part.Thought:
			// Thinking summaries are not part of the answer.
		default:
			text.WriteString(part.Text)
		}
	}
	out.Text = text.String()

	if u := resp.UsageMetadata; u != nil {
		out.Usage = types.UsageMetadata{
			InputTokens:  int(u.PromptTokenCount),
			OutputTokens: int(u.CandidatesTokenCount),
			TotalTokens:  int(u.TotalTokenCount),
		}
	}
	return out, nil
}
