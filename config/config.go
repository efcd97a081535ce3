// Package config loads the engine's configuration: defaults first, then a
// YAML file, then environment overrides. The environment is read here and
// nowhere below this boundary.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/parleyhq/parley/llm"
)

// AnthropicConfig holds Anthropic provider settings.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key,omitempty"`
}

// OpenAIConfig holds settings for the OpenAI-family providers, including
// OpenAI-compatible gateways reached through BaseURL.
type OpenAIConfig struct {
	APIKey       string `yaml:"api_key,omitempty"`
	BaseURL      string `yaml:"base_url,omitempty"`
	Organization string `yaml:"organization,omitempty"`
}

// GeminiConfig holds Gemini provider settings.
type GeminiConfig struct {
	APIKey string `yaml:"api_key,omitempty"`
}

// OllamaConfig holds local-model provider settings.
type OllamaConfig struct {
	Host string `yaml:"host,omitempty"`
}

// MCPServerConfig describes one MCP server to attach. Command selects the
// stdio transport, URL the streamable-HTTP transport.
type MCPServerConfig struct {
	Command string   `yaml:"command,omitempty"`
	URL     string   `yaml:"url,omitempty"`
	Args    []string `yaml:"args,omitempty"`
	Env     []string `yaml:"env,omitempty"`
}

// ChatConfig holds conversation-engine knobs.
type ChatConfig struct {
	MaxInteractions int      `yaml:"max_interactions,omitempty"`
	OutputLimit     int      `yaml:"output_size_limit,omitempty"`
	CacheStride     int      `yaml:"cache_stride,omitempty"`
	MaxTokens       int64    `yaml:"max_tokens,omitempty"`
	Temperature     *float64 `yaml:"temperature,omitempty"`
}

// HistoryConfig controls sqlite persistence. An empty path disables it.
type HistoryConfig struct {
	Path string `yaml:"path,omitempty"`
}

// Config is the full configuration record.
type Config struct {
	Provider string `yaml:"provider,omitempty"`
	Model    string `yaml:"model,omitempty"`

	Anthropic AnthropicConfig `yaml:"anthropic,omitempty"`
	OpenAI    OpenAIConfig    `yaml:"openai,omitempty"`
	Gemini    GeminiConfig    `yaml:"gemini,omitempty"`
	Ollama    OllamaConfig    `yaml:"ollama,omitempty"`

	Chat    ChatConfig    `yaml:"chat,omitempty"`
	History HistoryConfig `yaml:"history,omitempty"`

	MCPServers map[string]*MCPServerConfig `yaml:"mcp_servers,omitempty"`

	LogFile  string `yaml:"log_file,omitempty"`
	LogLevel string `yaml:"log_level,omitempty"`
}

// DefaultPath returns the default config file path. It can be overridden via
// the PARLEY_CONFIG_PATH environment variable.
func DefaultPath() string {
	if envPath := os.Getenv("PARLEY_CONFIG_PATH"); envPath != "" {
		return ExpandPath(envPath)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.parley/config.yaml"
	}
	return filepath.Join(homeDir, ".parley", "config.yaml")
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Provider: llm.ProviderOpenAI,
		Ollama: OllamaConfig{
			Host: "http://localhost:11434",
		},
		Chat: ChatConfig{
			MaxInteractions: 100,
			OutputLimit:     4000,
		},
		MCPServers: make(map[string]*MCPServerConfig),
	}
}

// Load builds the configuration: defaults, then the YAML file at path (a
// missing file is fine), then environment overrides. A .env file in the
// working directory is folded into the environment first, when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	expandedPath := ExpandPath(path)
	if _, err := os.Stat(expandedPath); err == nil {
		configYAML, err := os.ReadFile(expandedPath) //#nosec 304 -- intentional file read for config
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", expandedPath, err)
		}

		var fileConfig Config
		if err := yaml.Unmarshal(configYAML, &fileConfig); err != nil {
			return nil, fmt.Errorf("failed to parse config file %q: %w", expandedPath, err)
		}

		if err := mergo.Merge(&cfg, fileConfig, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge config file: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv applies environment overrides on top of the merged configuration.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("PARLEY_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("PARLEY_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("PARLEY_OUTPUT_SIZE_LIMIT"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PARLEY_OUTPUT_SIZE_LIMIT %q: %w", v, err)
		}
		cfg.Chat.OutputLimit = limit
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Anthropic.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Gemini.APIKey = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		cfg.Ollama.Host = v
	}
	return nil
}

// Save writes the configuration to path, creating the directory if needed.
func Save(cfg *Config, path string) error {
	expandedPath := ExpandPath(path)

	dir := filepath.Dir(expandedPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(expandedPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ClientConfig resolves the active provider selection into the llm layer's
// client configuration.
func (c *Config) ClientConfig() llm.ClientConfig {
	cfg := llm.ClientConfig{
		Provider:    c.Provider,
		Model:       c.Model,
		MaxTokens:   c.Chat.MaxTokens,
		Temperature: c.Chat.Temperature,
		CacheStride: c.Chat.CacheStride,
	}

	switch c.Provider {
	case llm.ProviderAnthropic:
		cfg.APIKey = c.Anthropic.APIKey
	case llm.ProviderGemini:
		cfg.APIKey = c.Gemini.APIKey
	case llm.ProviderOllama:
		cfg.Host = c.Ollama.Host
	default:
		// The OpenAI family, including compatible gateways.
		cfg.APIKey = c.OpenAI.APIKey
		cfg.BaseURL = c.OpenAI.BaseURL
		cfg.Organization = c.OpenAI.Organization
	}
	return cfg
}

// ExpandPath expands a leading ~ to the user's home directory. Path fields
// in the config file (history.path, log_file) accept the shorthand.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
