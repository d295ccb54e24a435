package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var envKeys = []string{
	"OPENAI_API_KEY", "GEMINI_API_KEY", "AZURE_OPENAI_API_KEY",
	"AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_API_VERSION", "AZURE_OPENAI_DEPLOYMENT",
	"TAIGA_API_URL", "TAIGA_USERNAME", "TAIGA_PASSWORD",
	"TAIGENT_DB", "TAIGENT_LISTEN", "TAIGENT_DEFAULT_PROJECT",
}

// clearEnv blanks every variable applyEnvOverrides reads; empty values are
// treated as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestEnvOverrides_LLM(t *testing.T) {
	t.Run("OPENAI_API_KEY sets provider", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OPENAI_API_KEY", "oa-key")

		cfg := &Config{LLM: LLMConfig{Provider: "azure"}}
		cfg.applyEnvOverrides()

		assert.Equal(t, "oa-key", cfg.LLM.APIKey)
		assert.Equal(t, "openai", cfg.LLM.Provider)
	})

	t.Run("Precedence: GEMINI overrides OPENAI", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OPENAI_API_KEY", "oa-key")
		t.Setenv("GEMINI_API_KEY", "gem-key")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "gem-key", cfg.LLM.APIKey)
		assert.Equal(t, "gemini", cfg.LLM.Provider)
	})

	t.Run("Precedence: AZURE wins the full chain", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OPENAI_API_KEY", "oa-key")
		t.Setenv("GEMINI_API_KEY", "gem-key")
		t.Setenv("AZURE_OPENAI_API_KEY", "az-key")
		t.Setenv("AZURE_OPENAI_ENDPOINT", "https://res.openai.azure.com")
		t.Setenv("AZURE_OPENAI_DEPLOYMENT", "gpt-4o")
		t.Setenv("AZURE_OPENAI_API_VERSION", "2024-10-21")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "az-key", cfg.LLM.APIKey)
		assert.Equal(t, "azure", cfg.LLM.Provider)
		assert.Equal(t, "https://res.openai.azure.com", cfg.LLM.BaseURL)
		assert.Equal(t, "gpt-4o", cfg.LLM.Deployment)
		assert.Equal(t, "2024-10-21", cfg.LLM.APIVersion)
	})

	t.Run("no keys leaves provider alone", func(t *testing.T) {
		clearEnv(t)
		cfg := &Config{LLM: LLMConfig{Provider: "gemini", APIKey: "file"}}
		cfg.applyEnvOverrides()

		assert.Equal(t, "gemini", cfg.LLM.Provider)
		assert.Equal(t, "file", cfg.LLM.APIKey)
	})
}

func TestEnvOverrides_Tracker_And_Runtime(t *testing.T) {
	clearEnv(t)
	t.Setenv("TAIGA_API_URL", "https://taiga.example.com/api/v1")
	t.Setenv("TAIGA_USERNAME", "bot")
	t.Setenv("TAIGA_PASSWORD", "secret")
	t.Setenv("TAIGENT_DB", "/tmp/t.db")
	t.Setenv("TAIGENT_LISTEN", "127.0.0.1:9000")
	t.Setenv("TAIGENT_DEFAULT_PROJECT", " 12 ")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "https://taiga.example.com/api/v1", cfg.Taiga.APIURL)
	assert.Equal(t, "bot", cfg.Taiga.Username)
	assert.Equal(t, "secret", cfg.Taiga.Password)
	assert.Equal(t, "/tmp/t.db", cfg.Store.Path)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Listen)
	assert.Equal(t, 12, cfg.Agent.DefaultProjectID)
}

func TestEnvOverrides_BadDefaultProjectIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("TAIGENT_DEFAULT_PROJECT", "twelve")

	cfg := DefaultConfig()
	cfg.Agent.DefaultProjectID = 3
	cfg.applyEnvOverrides()

	assert.Equal(t, 3, cfg.Agent.DefaultProjectID)
}
