// Package config provides configuration loading, validation, and the known
// model registry for the sales discovery bot.
//
// Configuration comes from a YAML file with environment variable overrides.
// There is exactly one LLM section: the completion service is a single
// abstracted capability regardless of which provider backs it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider identifiers for LLM backends.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderGoogle    = "google"
)

// Default model names.
const (
	ModelClaudeSonnetLatest = "claude-sonnet-4-20250514"
	ModelGPT4o              = "gpt-4o"
	ModelGeminiFlash        = "gemini-2.0-flash"
	ModelOllamaDefault      = "llama3.1"
)

// Partnership tier monthly prices in USD.
const (
	DefaultStarterPriceUSD    = 1250
	DefaultGrowthPriceUSD     = 2500
	DefaultEnterprisePriceUSD = 5000
)

// DefaultCalendlyURL is where the book stage sends visitors.
const DefaultCalendlyURL = "https://calendly.com/insta-agents/30min"

// Config is the top-level configuration for the service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	LLM      LLMConfig      `yaml:"llm"`
	Database DatabaseConfig `yaml:"database"`
	Business BusinessConfig `yaml:"business"`
	Limits   LimitsConfig   `yaml:"limits"`
	Admin    AdminConfig    `yaml:"admin"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LLMConfig is the single configuration surface for the completion service.
type LLMConfig struct {
	Provider      string        `yaml:"provider"` // anthropic, openai, ollama, google
	Model         string        `yaml:"model"`
	APIKeyEnv     string        `yaml:"api_key_env"` // Env var holding the API key
	Host          string        `yaml:"host"`        // Ollama server URL
	Temperature   float32       `yaml:"temperature"`
	MaxTokens     int           `yaml:"max_tokens"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    int           `yaml:"max_retries"`
	RetryBaseWait time.Duration `yaml:"retry_base_wait"`
}

// APIKey resolves the configured API key from the environment.
func (l *LLMConfig) APIKey() string {
	if l.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(l.APIKeyEnv)
}

// DatabaseConfig controls SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// BusinessConfig holds the sales-side constants of the discovery flow.
type BusinessConfig struct {
	CalendlyURL        string `yaml:"calendly_url"`
	StarterPriceUSD    int    `yaml:"starter_price_usd"`
	GrowthPriceUSD     int    `yaml:"growth_price_usd"`
	EnterprisePriceUSD int    `yaml:"enterprise_price_usd"`
}

// LimitsConfig holds daily usage budgets.
type LimitsConfig struct {
	DailyTokenLimit int64   `yaml:"daily_token_limit"`
	DailyCostLimit  float64 `yaml:"daily_cost_limit_usd"`
}

// AdminConfig holds credentials for the admin endpoints.
// PasswordHash is an scrypt hash produced by HashAdminPassword; admin
// endpoints are disabled when it is empty.
type AdminConfig struct {
	PasswordHash string `yaml:"password_hash"`
}

// Default returns a configuration with sane defaults for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		LLM: LLMConfig{
			Provider:      ProviderAnthropic,
			Model:         ModelClaudeSonnetLatest,
			APIKeyEnv:     "ANTHROPIC_API_KEY",
			Host:          "http://localhost:11434",
			Temperature:   0.7,
			MaxTokens:     1000,
			Timeout:       30 * time.Second,
			MaxRetries:    2,
			RetryBaseWait: time.Second,
		},
		Database: DatabaseConfig{
			Path: "salesbot.db",
		},
		Business: BusinessConfig{
			CalendlyURL:        DefaultCalendlyURL,
			StarterPriceUSD:    DefaultStarterPriceUSD,
			GrowthPriceUSD:     DefaultGrowthPriceUSD,
			EnterprisePriceUSD: DefaultEnterprisePriceUSD,
		},
		Limits: LimitsConfig{
			DailyTokenLimit: 1_000_000,
			DailyCostLimit:  50.0,
		},
	}
}

// Load reads configuration from the given YAML file, then applies
// environment overrides. A missing file is not an error: defaults plus
// environment overrides are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Fall through to env overrides.
		case err != nil:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides maps SALESBOT_* environment variables onto the config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SALESBOT_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SALESBOT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SALESBOT_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("SALESBOT_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("SALESBOT_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("SALESBOT_CALENDLY_URL"); v != "" {
		cfg.Business.CalendlyURL = v
	}
	if v := os.Getenv("SALESBOT_DAILY_TOKEN_LIMIT"); v != "" {
		if limit, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Limits.DailyTokenLimit = limit
		}
	}
	if v := os.Getenv("SALESBOT_ADMIN_PASSWORD_HASH"); v != "" {
		cfg.Admin.PasswordHash = v
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderAnthropic, ProviderOpenAI, ProviderOllama, ProviderGoogle:
	default:
		return fmt.Errorf("unknown llm provider: %s", c.LLM.Provider)
	}

	if c.LLM.Model == "" {
		return fmt.Errorf("llm model must be set")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm max_tokens must be positive, got %d", c.LLM.MaxTokens)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm timeout must be positive, got %s", c.LLM.Timeout)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path must be set")
	}
	if c.Business.CalendlyURL == "" {
		return fmt.Errorf("calendly url must be set")
	}
	return nil
}

// ModelInfo contains static information about a known LLM model.
// This data is hardcoded in the application, not user-configurable.
type ModelInfo struct {
	Provider  string  // API provider (anthropic, openai, google, ollama)
	InputCPM  float64 // Cost per million input tokens (USD)
	OutputCPM float64 // Cost per million output tokens (USD)
}

// KnownModels registry contains pricing and provider information for common
// models. Unknown models are inferred via provider name patterns.
//
//nolint:gochecknoglobals // Static model registry
var KnownModels = map[string]ModelInfo{
	"claude-sonnet-4-20250514": {
		Provider:  ProviderAnthropic,
		InputCPM:  3.0,
		OutputCPM: 15.0,
	},
	"claude-3-5-haiku-20241022": {
		Provider:  ProviderAnthropic,
		InputCPM:  0.8,
		OutputCPM: 4.0,
	},
	"gpt-4o": {
		Provider:  ProviderOpenAI,
		InputCPM:  2.5,
		OutputCPM: 10.0,
	},
	"gpt-4o-mini": {
		Provider:  ProviderOpenAI,
		InputCPM:  0.15,
		OutputCPM: 0.6,
	},
	"gemini-2.0-flash": {
		Provider:  ProviderGoogle,
		InputCPM:  0.1,
		OutputCPM: 0.4,
	},
}

// LookupModel returns registry info for a model, inferring the provider
// from the model name when the model is not in the registry. Inferred
// models carry zero pricing.
func LookupModel(model string) ModelInfo {
	if info, ok := KnownModels[model]; ok {
		return info
	}

	switch {
	case strings.HasPrefix(model, "claude"):
		return ModelInfo{Provider: ProviderAnthropic}
	case strings.HasPrefix(model, "gpt") || strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3"):
		return ModelInfo{Provider: ProviderOpenAI}
	case strings.HasPrefix(model, "gemini"):
		return ModelInfo{Provider: ProviderGoogle}
	default:
		return ModelInfo{Provider: ProviderOllama}
	}
}

// EstimateCost returns the USD cost for a request against a model given
// prompt and completion token counts. Unknown models cost zero.
func EstimateCost(model string, promptTokens, completionTokens int) float64 {
	info := LookupModel(model)
	const million = 1_000_000
	return float64(promptTokens)/million*info.InputCPM +
		float64(completionTokens)/million*info.OutputCPM
}
