package llm

import (
	"fmt"
)

const (
	ProviderAnthropic    = "anthropic"
	ProviderGemini       = "gemini"
	ProviderOllama       = "ollama"
	ProviderOpenAI       = "openai"
	ProviderOpenAILegacy = "openai-legacy"
	ProviderOpenAIShim   = "openai-shim"
)

// KnownProviders lists every provider id a ClientConfig may name.
func KnownProviders() []string {
	return []string{
		ProviderAnthropic,
		ProviderGemini,
		ProviderOllama,
		ProviderOpenAI,
		ProviderOpenAILegacy,
		ProviderOpenAIShim,
	}
}

// DefaultModel returns the model used when a ClientConfig names a provider
// but no model. Ollama has no default; its models are local pulls.
func DefaultModel(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return "claude-3-7-sonnet-latest"
	case ProviderGemini:
		return "gemini-2.0-flash"
	case ProviderOpenAI, ProviderOpenAILegacy:
		return "gpt-4o"
	case ProviderOpenAIShim:
		return "o1-preview"
	default:
		return ""
	}
}

// ClientConfig is the resolved configuration for one provider client. It is
// built once at a construction boundary (config file plus environment) and
// passed down; nothing below that boundary reads the environment.
type ClientConfig struct {
	Provider     string
	Model        string
	APIKey       string // Credential-based providers
	BaseURL      string // OpenAI-compatible endpoints
	Organization string // For OpenAI
	Host         string // For Ollama

	MaxTokens   int64
	Temperature *float64
	// CacheStride is the turn interval at which cache hints are attached,
	// for providers that support prompt caching. Zero means the default.
	CacheStride int
}

// WithDefaults fills the model and provider-specific fallbacks.
func (c ClientConfig) WithDefaults() ClientConfig {
	if c.Model == "" {
		c.Model = DefaultModel(c.Provider)
	}
	if c.Provider == ProviderOllama && c.Host == "" {
		c.Host = "http://localhost:11434"
	}
	if c.CacheStride <= 0 {
		c.CacheStride = DefaultCacheStride
	}
	return c
}

// Validate reports whether the config can construct a client.
func (c ClientConfig) Validate() error {
	switch c.Provider {
	case ProviderAnthropic, ProviderGemini, ProviderOpenAI, ProviderOpenAILegacy, ProviderOpenAIShim:
		if c.APIKey == "" {
			return fmt.Errorf("provider %s: API key not configured", c.Provider)
		}
	case ProviderOllama:
		// Ollama doesn't require an API key, just a host (which has a default)
		if c.Model == "" {
			return fmt.Errorf("provider %s: model not specified and no default exists", c.Provider)
		}
	default:
		return fmt.Errorf("unknown provider: %s", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("provider %s: model not specified", c.Provider)
	}
	return nil
}

// DefaultCacheStride is the turn-position interval for prompt-cache hints:
// the content block at every turn whose index is a multiple of the stride
// gets a hint, so the cache prefix advances as the conversation grows.
const DefaultCacheStride = 10
