// Package agent constructs LLM clients from configuration, applying the
// standard middleware stack.
package agent

import (
	"fmt"

	"salesbot/pkg/agent/internal/llmimpl/anthropic"
	"salesbot/pkg/agent/internal/llmimpl/google"
	"salesbot/pkg/agent/internal/llmimpl/ollama"
	"salesbot/pkg/agent/internal/llmimpl/openai"
	"salesbot/pkg/agent/llm"
	"salesbot/pkg/agent/middleware/metrics"
	"salesbot/pkg/agent/middleware/resilience"
	"salesbot/pkg/agent/middleware/usage"
	"salesbot/pkg/config"
	"salesbot/pkg/utils"
)

// NewClient creates a raw LLM client for the configured provider.
func NewClient(cfg *config.LLMConfig) (llm.Client, error) {
	switch cfg.Provider {
	case config.ProviderAnthropic:
		if cfg.APIKey() == "" {
			return nil, fmt.Errorf("anthropic provider requires %s to be set", cfg.APIKeyEnv)
		}
		return anthropic.NewClient(cfg.APIKey(), cfg.Model), nil
	case config.ProviderOpenAI:
		if cfg.APIKey() == "" {
			return nil, fmt.Errorf("openai provider requires %s to be set", cfg.APIKeyEnv)
		}
		return openai.NewClient(cfg.APIKey(), cfg.Model), nil
	case config.ProviderGoogle:
		if cfg.APIKey() == "" {
			return nil, fmt.Errorf("google provider requires %s to be set", cfg.APIKeyEnv)
		}
		return google.NewClient(cfg.APIKey(), cfg.Model), nil
	case config.ProviderOllama:
		return ollama.NewClient(cfg.Host, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}

// NewInstrumentedClient creates an LLM client wrapped with retry,
// Prometheus metrics, and usage accounting middleware. recorder and
// usageRecorder may each be nil.
func NewInstrumentedClient(cfg *config.LLMConfig, recorder *metrics.Recorder, usageRecorder usage.Recorder) (llm.Client, error) {
	base, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	policy := resilience.DefaultPolicy()
	if cfg.MaxRetries > 0 {
		policy.MaxAttempts = cfg.MaxRetries + 1
	}
	if cfg.RetryBaseWait > 0 {
		policy.BaseWait = cfg.RetryBaseWait
	}

	// Usage accounting sits inside retry so every billed attempt counts.
	middlewares := []llm.Middleware{resilience.Middleware(policy)}
	if usageRecorder != nil {
		counter, cerr := utils.NewTokenCounter(cfg.Model)
		if cerr != nil {
			return nil, cerr
		}
		middlewares = append(middlewares, usage.Middleware(usageRecorder, counter))
	}
	if recorder != nil {
		middlewares = append([]llm.Middleware{metrics.Middleware(recorder)}, middlewares...)
	}

	return llm.Chain(base, middlewares...), nil
}
