package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/parleyhq/parley/llm"
	"github.com/rs/zerolog"
)

// The Messages API requires max_tokens; this ceiling applies when neither
// the request nor the config sets one.
const defaultMaxTokens = 10000

const defaultRetryAfter = 60 * time.Second

// Client implements the llm.Client interface for Anthropic's Messages API.
type Client struct {
	client *anthropic.Client
	cfg    llm.ClientConfig
	logger zerolog.Logger
}

// New creates a Messages API client from a resolved config.
// The API key is required; the base URL is an optional override.
func New(cfg llm.ClientConfig, logger zerolog.Logger) (*Client, error) {
	cfg = cfg.WithDefaults()
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := anthropic.NewClient(opts...)
	return &Client{
		client: &client,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Fetch implements llm.Client.Fetch.
func (c *Client) Fetch(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}

	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}

	anthropicMsgs, err := ToMessageParams(req)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages: %w", err)
	}
	applyCacheHint(anthropicMsgs, c.cfg.CacheStride)

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  anthropicMsgs,
		System:    buildSystemBlocks(req.Instruction, req.ToolStates),
		Tools:     ToToolUnionParams(req.Tools),
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, convertAnthropicError(err)
	}

	parts, err := fromContentBlocks(message.Content)
	if err != nil {
		return nil, err
	}

	usage := &llm.Usage{
		InputTokens:              message.Usage.InputTokens,
		OutputTokens:             message.Usage.OutputTokens,
		CacheCreationInputTokens: message.Usage.CacheCreationInputTokens,
		CacheReadInputTokens:     message.Usage.CacheReadInputTokens,
	}

	// Log prompt cache information for tracking efficacy
	if usage.CacheCreationInputTokens > 0 || usage.CacheReadInputTokens > 0 {
		cacheEfficiency := float64(0)
		if usage.InputTokens > 0 {
			cacheEfficiency = float64(usage.CacheReadInputTokens) / float64(usage.InputTokens) * 100
		}
		c.logger.Debug().
			Int64("input_tokens", usage.InputTokens).
			Int64("cache_creation_tokens", usage.CacheCreationInputTokens).
			Int64("cache_read_tokens", usage.CacheReadInputTokens).
			Float64("cache_efficiency", cacheEfficiency).
			Msg("Prompt cache stats")
	}

	return &llm.Response{
		Message:    llm.Message{Role: llm.RoleAssistant, Parts: parts, ID: message.ID},
		Usage:      usage,
		StopReason: string(message.StopReason),
	}, nil
}

// buildSystemBlocks lays out the system prompt for the Messages API.
// According to Anthropic's prompt caching documentation, placing cache_control
// on the instruction block caches the full prefix: tools, system, and messages
// (in that order) up to and including the designated block. Tool states change
// every turn, so they ride in a second block after the cache marker.
func buildSystemBlocks(instruction, toolStates string) []anthropic.TextBlockParam {
	blocks := make([]anthropic.TextBlockParam, 0, 2)
	if instruction != "" {
		blocks = append(blocks, anthropic.TextBlockParam{
			Text:         instruction,
			CacheControl: anthropic.NewCacheControlEphemeralParam(),
		})
	}
	if toolStates != "" {
		blocks = append(blocks, anthropic.TextBlockParam{Text: toolStates})
	}
	return blocks
}

// convertAnthropicError converts Anthropic API errors to llm.Error types.
func convertAnthropicError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		// Transport-level failure, worth retrying
		return llm.NewNetworkError("Anthropic request failed", err)
	}

	switch apiErr.StatusCode {
	case http.StatusTooManyRequests:
		retryAfter := retryAfterFrom(apiErr.Response)
		return llm.NewRateLimitError(
			fmt.Sprintf("Anthropic rate limit: %v", err), &retryAfter, err)
	case http.StatusBadRequest:
		// Prompt overflow hides behind a generic 400; the message disambiguates.
		if strings.Contains(err.Error(), "prompt is too long") {
			return llm.NewContextLengthError(
				fmt.Sprintf("Anthropic context length exceeded: %v", err), err)
		}
		if strings.Contains(err.Error(), "credit balance is too low") {
			return llm.NewQuotaError(
				fmt.Sprintf("Anthropic quota exhausted: %v", err), err)
		}
		return &llm.Error{
			Type:        llm.ErrorTypeInvalidRequest,
			Message:     fmt.Sprintf("Anthropic invalid request: %v", err),
			Retryable:   false,
			StatusCode:  apiErr.StatusCode,
			ProviderErr: err,
		}
	case http.StatusRequestEntityTooLarge:
		return llm.NewContextLengthError(
			fmt.Sprintf("Anthropic request too large: %v", err), err)
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, 529: // 529 is Anthropic's overloaded status
		return &llm.Error{
			Type:        llm.ErrorTypeProvider,
			Message:     fmt.Sprintf("Anthropic server error: %v", err),
			Retryable:   true,
			StatusCode:  apiErr.StatusCode,
			ProviderErr: err,
		}
	default:
		return &llm.Error{
			Type:        llm.ErrorTypeProvider,
			Message:     fmt.Sprintf("Anthropic API error: %v", err),
			Retryable:   false,
			StatusCode:  apiErr.StatusCode,
			ProviderErr: err,
		}
	}
}

// retryAfterFrom reads the retry-after header, falling back to a default
// when the header is absent or not in delay-seconds form.
func retryAfterFrom(resp *http.Response) time.Duration {
	if resp == nil {
		return defaultRetryAfter
	}
	header := resp.Header.Get("retry-after")
	if header == "" {
		return defaultRetryAfter
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return defaultRetryAfter
}

var _ llm.Client = (*Client)(nil)
