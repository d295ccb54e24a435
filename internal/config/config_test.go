package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "http://localhost:8080/api/v1", cfg.Taiga.APIURL)
	assert.Equal(t, "admin", cfg.Taiga.Username)
	assert.Equal(t, 10, cfg.Agent.MaxRoundTrips)
	assert.Equal(t, "azure", cfg.LLM.Provider)
	assert.True(t, cfg.Store.Enabled)
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.LLM.Provider = "openai"
	cfg.LLM.APIKey = "file-key"
	cfg.Agent.MaxRoundTrips = 3
	cfg.Agent.SystemPrompt = "be brief"
	cfg.Logging.Categories = map[string]bool{"tracker": false}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [unterminated"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.LLM.APIKey = "k"
		cfg.LLM.BaseURL = "https://example.openai.azure.com"
		cfg.LLM.Deployment = "gpt-4o"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing key", mutate: func(c *Config) { c.LLM.APIKey = "" }, wantErr: "API key"},
		{name: "unknown provider", mutate: func(c *Config) { c.LLM.Provider = "zai" }, wantErr: "invalid LLM provider"},
		{name: "azure without deployment", mutate: func(c *Config) { c.LLM.Deployment = "" }, wantErr: "deployment"},
		{name: "gemini needs no deployment", mutate: func(c *Config) { c.LLM.Provider = "gemini"; c.LLM.Deployment = "" }},
		{name: "empty tracker url", mutate: func(c *Config) { c.Taiga.APIURL = " " }, wantErr: "api_url"},
		{name: "zero round trips", mutate: func(c *Config) { c.Agent.MaxRoundTrips = 0 }, wantErr: "max_round_trips"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_DurationGetters(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 120*time.Second, cfg.GetLLMTimeout())
	assert.Equal(t, 30*time.Second, cfg.GetTaigaTimeout())
	assert.Equal(t, 60*time.Second, cfg.GetToolTimeout())

	cfg.Agent.ToolTimeout = "not-a-duration"
	cfg.Agent.ModelTimeout = "-5s"
	assert.Equal(t, 60*time.Second, cfg.GetToolTimeout())
	assert.Equal(t, 120*time.Second, cfg.GetModelTimeout())

	cfg.Taiga.Timeout = "5s"
	assert.Equal(t, 5*time.Second, cfg.GetTaigaTimeout())
}

func TestLoggingConfig_Options(t *testing.T) {
	lc := LoggingConfig{Level: "debug", Format: "json", File: "x.log", Categories: map[string]bool{"mcp": false}}
	opts := lc.Options()
	assert.Equal(t, "debug", opts.Level)
	assert.Equal(t, "json", opts.Format)
	assert.Equal(t, "x.log", opts.File)
	assert.False(t, lc.IsCategoryEnabled("mcp"))
	assert.True(t, lc.IsCategoryEnabled("session"))
}

func TestLLMTimeouts_Backoff(t *testing.T) {
	lt := LLMTimeouts{RetryBackoffBase: time.Second, RetryBackoffMax: 5 * time.Second}
	assert.Equal(t, time.Second, lt.Backoff(0))
	assert.Equal(t, 2*time.Second, lt.Backoff(1))
	assert.Equal(t, 4*time.Second, lt.Backoff(2))
	assert.Equal(t, 5*time.Second, lt.Backoff(3))
	assert.Equal(t, 5*time.Second, lt.Backoff(10))

	cfg := DefaultConfig()
	cfg.LLM.Timeout = "45s"
	assert.Equal(t, 45*time.Second, cfg.LLMTimeouts().HTTPClientTimeout)
}
