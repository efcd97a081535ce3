package chat

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/parleyhq/parley/llm"
	"github.com/parleyhq/parley/llm/anthropic"
	"github.com/parleyhq/parley/llm/gemini"
	"github.com/parleyhq/parley/llm/ollama"
	"github.com/parleyhq/parley/llm/openai"
)

// NewClient constructs the provider client named by cfg, wrapped in
// round-trip logging and the default retry policy.
func NewClient(cfg llm.ClientConfig, logger zerolog.Logger) (llm.Client, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		base llm.Client
		err  error
	)
	switch cfg.Provider {
	case llm.ProviderAnthropic:
		base, err = anthropic.New(cfg, logger)
	case llm.ProviderGemini:
		base, err = gemini.New(cfg)
	case llm.ProviderOllama:
		base, err = ollama.New(cfg)
	case llm.ProviderOpenAI:
		base, err = openai.New(cfg)
	case llm.ProviderOpenAILegacy:
		base, err = openai.NewLegacy(cfg)
	case llm.ProviderOpenAIShim:
		base, err = openai.NewShim(cfg)
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.Provider, err)
	}

	// Logging sits inside the retry wrapper so each attempt is visible.
	base = llm.WrapWithMiddleware(base, llm.NewRoundTripLogger(logger))
	return llm.WithRetry(base, llm.DefaultRetryPolicy(), logger), nil
}
