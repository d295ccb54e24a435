package perception

import (
	"context"
	"fmt"
	"strings"

	"taigent/internal/config"
	"taigent/internal/logging"
)

// NewClientFromConfig creates the model client selected by cfg.LLM, wrapped
// in a TracingLLMClient.
func NewClientFromConfig(ctx context.Context, cfg *config.Config) (LLMClient, error) {
	llm := cfg.LLM
	if llm.APIKey == "" {
		return nil, fmt.Errorf("%w for provider %q", ErrNoAPIKey, llm.Provider)
	}

	var (
		client LLMClient
		model  string
	)
	switch Provider(llm.Provider) {
	case ProviderOpenAI:
		oc := NewOpenAIClientWithConfig(OpenAIConfig{
			APIKey:   llm.APIKey,
			BaseURL:  llm.BaseURL,
			Model:    llm.Model,
			Timeouts: cfg.LLMTimeouts(),
		})
		client, model = oc, oc.Model()

	case ProviderAzure:
		if llm.BaseURL == "" || llm.Deployment == "" {
			return nil, fmt.Errorf("azure provider needs base_url and deployment")
		}
		oc := NewOpenAIClientWithConfig(OpenAIConfig{
			APIKey:     llm.APIKey,
			BaseURL:    llm.BaseURL,
			Azure:      true,
			APIVersion: llm.APIVersion,
			Deployment: llm.Deployment,
			Timeouts:   cfg.LLMTimeouts(),
		})
		client, model = oc, oc.Model()

	case ProviderGemini:
		geminiModel := llm.Model
		if !strings.HasPrefix(geminiModel, "gemini") {
			logging.BootWarn("Model %q is not a Gemini model, using %s", geminiModel, DefaultGeminiConfig("").Model)
			geminiModel = ""
		}
		gc, err := NewGeminiClient(ctx, GeminiConfig{
			APIKey:  llm.APIKey,
			BaseURL: llm.BaseURL,
			Model:   geminiModel,
			Timeout: cfg.GetLLMTimeout(),
		})
		if err != nil {
			return nil, err
		}
		client, model = gc, gc.Model()

	default:
		return nil, fmt.Errorf("unsupported provider: %s", llm.Provider)
	}

	logging.Boot("Model client: provider=%s model=%s", llm.Provider, model)
	return NewTracingLLMClient(client, model), nil
}
