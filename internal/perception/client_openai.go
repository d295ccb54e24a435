package perception

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"taigent/internal/logging"
	"taigent/internal/types"
)

// OpenAIClient implements LLMClient for the OpenAI chat completions API and
// for Azure OpenAI deployments.
type OpenAIClient struct {
	cfg        OpenAIConfig
	provider   Provider
	httpClient *http.Client
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(apiKey string) *OpenAIClient {
	return NewOpenAIClientWithConfig(DefaultOpenAIConfig(apiKey))
}

// NewOpenAIClientWithConfig creates a client with custom config.
func NewOpenAIClientWithConfig(cfg OpenAIConfig) *OpenAIClient {
	provider := ProviderOpenAI
	if cfg.Azure {
		provider = ProviderAzure
	}
	if cfg.BaseURL == "" && !cfg.Azure {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	return &OpenAIClient{
		cfg:        cfg,
		provider:   provider,
		httpClient: &http.Client{Timeout: cfg.Timeouts.HTTPClientTimeout},
	}
}

// Model returns the model (or Azure deployment) requests go to.
func (c *OpenAIClient) Model() string {
	if c.cfg.Azure {
		return c.cfg.Deployment
	}
	return c.cfg.Model
}

// Complete sends a prompt and returns the completion.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with a system message.
func (c *OpenAIClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.chat(ctx, OpenAIRequest{
		Messages:    MapMessagesToOpenAI(systemPrompt, []types.Message{types.UserMessage(userPrompt)}),
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

// CompleteWithTools sends the conversation with tool definitions and returns
// the next assistant turn.
func (c *OpenAIClient) CompleteWithTools(ctx context.Context, systemPrompt string, messages []types.Message, tools []ToolDefinition) (*LLMToolResponse, error) {
	req := OpenAIRequest{Messages: MapMessagesToOpenAI(systemPrompt, messages)}
	if len(tools) > 0 {
		req.Tools = MapToolDefinitionsToOpenAI(tools)
		req.ToolChoice = "auto"
	}
	return c.chat(ctx, req)
}

func (c *OpenAIClient) chat(ctx context.Context, req OpenAIRequest) (*LLMToolResponse, error) {
	if c.cfg.APIKey == "" {
		logging.PerceptionError("[%s] API key not configured", c.provider)
		return nil, ErrNoAPIKey
	}
	if !c.cfg.Azure {
		req.Model = c.cfg.Model
	}

	start := time.Now()
	logging.PerceptionDebug("[%s] chat: model=%s messages=%d tools=%d", c.provider, c.Model(), len(req.Messages), len(req.Tools))

	resp, err := ExecuteOpenAIRequest(ctx, c.httpClient, c.provider, c.endpoint(), c.authorize, req, c.cfg.Timeouts)
	if err != nil {
		logging.PerceptionError("[%s] chat failed after %v: %v", c.provider, time.Since(start), err)
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoCompletion
	}

	choice := resp.Choices[0]
	out := &LLMToolResponse{
		Text:       choice.Message.Content,
		ToolCalls:  MapOpenAIToolCallsToInternal(choice.Message.ToolCalls),
		StopReason: choice.FinishReason,
		Usage: types.UsageMetadata{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}
	logging.Perception("[%s] chat: completed in %v tool_calls=%d text_len=%d", c.provider, time.Since(start), len(out.ToolCalls), len(out.Text))
	return out, nil
}

func (c *OpenAIClient) endpoint() string {
	base := strings.TrimRight(c.cfg.BaseURL, "/")
	if !c.cfg.Azure {
		return base + "/chat/completions"
	}
	return base + "/openai/deployments/" + url.PathEscape(c.cfg.Deployment) +
		"/chat/completions?api-version=" + url.QueryEscape(c.cfg.APIVersion)
}

func (c *OpenAIClient) authorize(req *http.Request) {
	if c.cfg.Azure {
		req.Header.Set("api-key", c.cfg.APIKey)
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
}
