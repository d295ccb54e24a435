package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"taigent/internal/logging"
)

// DefaultConfigPath is where the CLI looks for the config file.
const DefaultConfigPath = ".taigent/config.yaml"

// DefaultProjectName is the project `taigent init` ensures exists.
const DefaultProjectName = "Requirement Analyzer"

// Config holds all taigent configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Model provider used by the conversation loop and epic breakdown
	LLM LLMConfig `yaml:"llm"`

	// Taiga tracker connection
	Taiga TaigaConfig `yaml:"taiga"`

	// Conversation loop behaviour
	Agent AgentConfig `yaml:"agent"`

	// Transcript persistence
	Store StoreConfig `yaml:"store"`

	// HTTP front-end
	Server ServerConfig `yaml:"server"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the model client.
type LLMConfig struct {
	Provider   string `yaml:"provider"` // openai, azure, gemini
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`    // Azure: resource endpoint
	APIVersion string `yaml:"api_version"` // Azure only
	Deployment string `yaml:"deployment"`  // Azure only
	Timeout    string `yaml:"timeout"`
}

// TaigaConfig configures the tracker client.
type TaigaConfig struct {
	APIURL   string `yaml:"api_url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Timeout  string `yaml:"timeout"`
}

// AgentConfig configures the conversation loop.
type AgentConfig struct {
	MaxRoundTrips    int    `yaml:"max_round_trips"`
	ModelTimeout     string `yaml:"model_timeout"`
	ToolTimeout      string `yaml:"tool_timeout"`
	SystemPrompt     string `yaml:"system_prompt"`
	DefaultProjectID int    `yaml:"default_project_id"` // front-end hint only; 0 = none
}

// StoreConfig configures the SQLite transcript store.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ServerConfig configures `taigent serve`.
type ServerConfig struct {
	Listen            string `yaml:"listen"`
	MaxConcurrentRuns int    `yaml:"max_concurrent_runs"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "taigent",
		Version: "0.3.0",

		LLM: LLMConfig{
			Provider:   "azure",
			Model:      "gpt-4o",
			APIVersion: "2024-06-01",
			Timeout:    "120s",
		},

		Taiga: TaigaConfig{
			APIURL:   "http://localhost:8080/api/v1",
			Username: "admin",
			Password: "adminpassword",
			Timeout:  "30s",
		},

		Agent: AgentConfig{
			MaxRoundTrips: 10,
			ModelTimeout:  "120s",
			ToolTimeout:   "60s",
		},

		Store: StoreConfig{
			Enabled: true,
			Path:    ".taigent/transcripts.db",
		},

		Server: ServerConfig{
			Listen:            ":5000",
			MaxConcurrentRuns: 4,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		logging.BootDebug("no config at %s, using defaults", path)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// Model provider keys, later wins
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "openai"
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
	}
	if key := os.Getenv("AZURE_OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "azure"
	}
	if v := os.Getenv("AZURE_OPENAI_ENDPOINT"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("AZURE_OPENAI_API_VERSION"); v != "" {
		c.LLM.APIVersion = v
	}
	if v := os.Getenv("AZURE_OPENAI_DEPLOYMENT"); v != "" {
		c.LLM.Deployment = v
	}

	// Tracker
	if v := os.Getenv("TAIGA_API_URL"); v != "" {
		c.Taiga.APIURL = v
	}
	if v := os.Getenv("TAIGA_USERNAME"); v != "" {
		c.Taiga.Username = v
	}
	if v := os.Getenv("TAIGA_PASSWORD"); v != "" {
		c.Taiga.Password = v
	}

	if v := os.Getenv("TAIGENT_DB"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("TAIGENT_LISTEN"); v != "" {
		c.Server.Listen = v
	}
	if v := os.Getenv("TAIGENT_DEFAULT_PROJECT"); v != "" {
		id, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			logging.BootWarn("ignoring TAIGENT_DEFAULT_PROJECT=%q: %v", v, err)
		} else {
			c.Agent.DefaultProjectID = id
		}
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// GetLLMTimeout returns the HTTP timeout of the model client.
func (c *Config) GetLLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 120*time.Second)
}

// GetTaigaTimeout returns the per-request tracker timeout.
func (c *Config) GetTaigaTimeout() time.Duration {
	return parseDuration(c.Taiga.Timeout, 30*time.Second)
}

// GetModelTimeout returns the deadline of one model round trip.
func (c *Config) GetModelTimeout() time.Duration {
	return parseDuration(c.Agent.ModelTimeout, 120*time.Second)
}

// GetToolTimeout returns the deadline of one operation dispatch.
func (c *Config) GetToolTimeout() time.Duration {
	return parseDuration(c.Agent.ToolTimeout, 60*time.Second)
}

// ValidProviders lists all supported LLM providers.
var ValidProviders = []string{"openai", "azure", "gemini"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key not configured (set AZURE_OPENAI_API_KEY, OPENAI_API_KEY or GEMINI_API_KEY)")
	}

	validProvider := false
	for _, p := range ValidProviders {
		if c.LLM.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
	}

	if c.LLM.Provider == "azure" && (c.LLM.BaseURL == "" || c.LLM.Deployment == "") {
		return fmt.Errorf("azure provider requires base_url and deployment (AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_DEPLOYMENT)")
	}

	if strings.TrimSpace(c.Taiga.APIURL) == "" {
		return fmt.Errorf("taiga api_url not configured (set TAIGA_API_URL)")
	}

	if c.Agent.MaxRoundTrips < 1 {
		return fmt.Errorf("agent.max_round_trips must be at least 1, got %d", c.Agent.MaxRoundTrips)
	}

	return nil
}
