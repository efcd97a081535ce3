package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/parleyhq/parley/llm"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAI API errors don't directly expose retry-after headers
// We'll use a default retry after duration for rate limits
const defaultRetryAfter = 60 * time.Second

// Client implements the llm.Client interface against the OpenAI tools API.
// It also serves OpenAI-compatible gateways through the base URL override.
type Client struct {
	client *openai.Client
	cfg    llm.ClientConfig
}

// New creates a tools-API client from a resolved config.
// The API key is required; base URL and organization are optional overrides.
func New(cfg llm.ClientConfig) (*Client, error) {
	cfg = cfg.WithDefaults()
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	config := openai.DefaultConfig(cfg.APIKey)

	// Set custom base URL if provided
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	// Set organization if provided
	if cfg.Organization != "" {
		config.OrgID = cfg.Organization
	}

	return &Client{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
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

	openaiMsgs, err := BuildToolsMessages(req)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages: %w", err)
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: openaiMsgs,
	}

	// Set tools if provided
	if len(req.Tools) > 0 {
		chatReq.Tools = ToOpenAITools(req.Tools)
		// Set tool choice to auto (let model decide when to use tools)
		chatReq.ToolChoice = "auto"
	}

	// Set max tokens if provided
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = int(req.MaxTokens)
	}

	// Set temperature if provided
	if req.Temperature != nil {
		chatReq.Temperature = float32(*req.Temperature)
	}

	chatResp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, convertOpenAIError(err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, llm.NewProviderError("no choices in response", nil)
	}
	choice := chatResp.Choices[0]

	parts := make([]llm.Part, 0, 2)
	if choice.Message.Content != "" {
		parts = append(parts, llm.TextPart(choice.Message.Content))
	}

	switch n := len(choice.Message.ToolCalls); {
	case n > 1:
		return nil, llm.NewProviderError(
			fmt.Sprintf("model returned %d tool calls in one turn; at most one is supported", n), nil)
	case n == 1:
		toolCall := choice.Message.ToolCalls[0]
		args, err := parseArguments(toolCall.ID, toolCall.Function.Arguments)
		if err != nil {
			return nil, err
		}
		parts = append(parts, llm.FunctionCallPart(&llm.FunctionCall{
			Name:      toolCall.Function.Name,
			Arguments: args,
		}, toolCall.ID))
	}

	if len(parts) == 0 {
		parts = append(parts, llm.TextPart(""))
	}

	return &llm.Response{
		Message:    llm.Message{Role: llm.RoleAssistant, Parts: parts, ID: chatResp.ID},
		Usage:      usageFrom(chatResp.Usage),
		StopReason: stopReasonFrom(choice.FinishReason),
	}, nil
}

// BuildToolsMessages lays out the full turn array for the tools API:
// instruction and tool-states blocks as leading system messages, then the
// repaired, id-complete history.
func BuildToolsMessages(req *llm.Request) ([]openai.ChatCompletionMessage, error) {
	out := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+2)
	if req.Instruction != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.Instruction,
		})
	}
	if req.ToolStates != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.ToolStates,
		})
	}

	history := llm.EnsureCallIDs(llm.InsertMissingResults(req.ConversationMessages()))
	for _, msg := range history {
		wire, err := toToolsMessages(msg)
		if err != nil {
			return nil, err
		}
		out = append(out, wire...)
	}
	return out, nil
}

// convertOpenAIError converts OpenAI API errors to llm.Error types.
func convertOpenAIError(err error) error {
	if err == nil {
		return nil
	}

	// Check if it's an OpenAI API error using errors.As
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		// Transport-level failure, worth retrying
		return llm.NewNetworkError("OpenAI request failed", err)
	}

	// Some terminal conditions hide behind generic status codes; the error
	// code disambiguates them.
	code, _ := apiErr.Code.(string)
	switch {
	case code == "context_length_exceeded":
		return llm.NewContextLengthError(
			fmt.Sprintf("OpenAI context length exceeded: %s", apiErr.Message), err)
	case code == "insufficient_quota" || apiErr.Type == "insufficient_quota":
		return llm.NewQuotaError(
			fmt.Sprintf("OpenAI quota exhausted: %s", apiErr.Message), err)
	}

	// Map status codes to error types
	switch apiErr.HTTPStatusCode {
	case http.StatusTooManyRequests:
		retryAfter := defaultRetryAfter
		return llm.NewRateLimitError(
			fmt.Sprintf("OpenAI rate limit: %s", apiErr.Message),
			&retryAfter,
			err,
		)
	case http.StatusRequestEntityTooLarge:
		return llm.NewContextLengthError(
			fmt.Sprintf("OpenAI request too large: %s", apiErr.Message),
			err,
		)
	case http.StatusBadRequest:
		return &llm.Error{
			Type:        llm.ErrorTypeInvalidRequest,
			Message:     fmt.Sprintf("OpenAI invalid request: %s", apiErr.Message),
			Retryable:   false,
			StatusCode:  apiErr.HTTPStatusCode,
			ProviderErr: err,
		}
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		// Server errors - potentially retryable
		return &llm.Error{
			Type:        llm.ErrorTypeProvider,
			Message:     fmt.Sprintf("OpenAI server error: %s", apiErr.Message),
			Retryable:   true,
			StatusCode:  apiErr.HTTPStatusCode,
			ProviderErr: err,
		}
	default:
		return &llm.Error{
			Type:        llm.ErrorTypeProvider,
			Message:     fmt.Sprintf("OpenAI API error: %s", apiErr.Message),
			Retryable:   false,
			StatusCode:  apiErr.HTTPStatusCode,
			ProviderErr: err,
		}
	}
}

var _ llm.Client = (*Client)(nil)
