package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ollama/ollama/api"
	"github.com/parleyhq/parley/llm"
)

const defaultRetryAfter = 30 * time.Second

// Client implements the llm.Client interface for a local or remote Ollama
// server.
type Client struct {
	client *api.Client
	cfg    llm.ClientConfig
}

// New creates a client from a resolved config. An empty host falls back to
// the environment-based client (OLLAMA_HOST or the local default).
func New(cfg llm.ClientConfig) (*Client, error) {
	cfg = cfg.WithDefaults()

	var client *api.Client
	if cfg.Host != "" {
		baseURL, err := parseHost(cfg.Host)
		if err != nil {
			return nil, fmt.Errorf("invalid host: %w", err)
		}
		client = api.NewClient(baseURL, &http.Client{})
	} else {
		var err error
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
	}

	return &Client{client: client, cfg: cfg}, nil
}

// parseHost parses a host string into a URL.
func parseHost(host string) (*url.URL, error) {
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return url.Parse(host)
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

	ollamaMsgs, err := ToOllamaMessages(req)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages: %w", err)
	}

	chatReq := &api.ChatRequest{
		Model:    model,
		Messages: ollamaMsgs,
		Stream:   new(bool), // false for non-streaming
		Options:  make(map[string]interface{}),
	}

	if len(req.Tools) > 0 {
		chatReq.Tools = ToOllamaTools(req.Tools)
	}
	if req.MaxTokens > 0 {
		chatReq.Options["num_predict"] = int(req.MaxTokens)
	}
	if req.Temperature != nil {
		chatReq.Options["temperature"] = *req.Temperature
	}

	var chatResp api.ChatResponse
	err = c.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		chatResp = resp
		return nil
	})
	if err != nil {
		return nil, convertOllamaError(err)
	}

	// The API assigns no ids; one uuid serves as both the message id and
	// the call correlation id.
	id := uuid.NewString()
	parts, err := fromOllamaResponse(chatResp.Message, id, req.Tools)
	if err != nil {
		return nil, err
	}

	return &llm.Response{
		Message:    llm.Message{Role: llm.RoleAssistant, Parts: parts, ID: id},
		Usage:      usageFrom(chatResp),
		StopReason: stopReasonFrom(chatResp.DoneReason, len(chatResp.Message.ToolCalls) > 0),
	}, nil
}

// fromOllamaResponse converts a response message's content to canonical
// parts. Tool-call arguments are coerced to their declared schema types;
// local models routinely stringify numbers and booleans.
func fromOllamaResponse(msg api.Message, id string, specs []llm.ToolSpec) ([]llm.Part, error) {
	parts := make([]llm.Part, 0, 2)
	if msg.Content != "" {
		parts = append(parts, llm.TextPart(msg.Content))
	}

	switch n := len(msg.ToolCalls); {
	case n > 1:
		return nil, llm.NewProviderError(
			fmt.Sprintf("model returned %d tool calls in one turn; at most one is supported", n), nil)
	case n == 1:
		call := msg.ToolCalls[0].Function
		args := map[string]interface{}{}
		for k, v := range call.Arguments {
			args[k] = v
		}
		for _, spec := range specs {
			if spec.Name == call.Name {
				coerced, err := coerceArguments(call.Name, args, spec.Schema)
				if err != nil {
					return nil, llm.NewFunctionCallParsingError(
						id, fmt.Sprintf("%v", call.Arguments), err)
				}
				args = coerced
				break
			}
		}
		parts = append(parts, llm.FunctionCallPart(&llm.FunctionCall{
			Name:      call.Name,
			Arguments: args,
		}, id))
	}

	if len(parts) == 0 {
		parts = append(parts, llm.TextPart(""))
	}
	return parts, nil
}

func usageFrom(resp api.ChatResponse) *llm.Usage {
	return &llm.Usage{
		InputTokens:  int64(resp.PromptEvalCount),
		OutputTokens: int64(resp.EvalCount),
	}
}

func stopReasonFrom(doneReason string, hasCall bool) string {
	switch {
	case hasCall:
		return "tool_calls"
	case doneReason == "length":
		return "max_tokens"
	default:
		return "stop"
	}
}

// convertOllamaError converts Ollama API errors to llm.Error types.
func convertOllamaError(err error) error {
	if err == nil {
		return nil
	}

	var statusErr api.StatusError
	if !errors.As(err, &statusErr) {
		// Transport-level failure (server down, connection refused)
		return llm.NewNetworkError("Ollama request failed", err)
	}

	switch statusErr.StatusCode {
	case http.StatusTooManyRequests:
		retryAfter := defaultRetryAfter
		return llm.NewRateLimitError(
			fmt.Sprintf("Ollama rate limit: %s", statusErr.ErrorMessage), &retryAfter, err)
	case http.StatusBadRequest, http.StatusNotFound:
		// 404 covers unknown models, which retrying cannot fix.
		return &llm.Error{
			Type:        llm.ErrorTypeInvalidRequest,
			Message:     fmt.Sprintf("Ollama invalid request: %s", statusErr.ErrorMessage),
			Retryable:   false,
			StatusCode:  statusErr.StatusCode,
			ProviderErr: err,
		}
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return &llm.Error{
			Type:        llm.ErrorTypeProvider,
			Message:     fmt.Sprintf("Ollama server error: %s", statusErr.ErrorMessage),
			Retryable:   true,
			StatusCode:  statusErr.StatusCode,
			ProviderErr: err,
		}
	default:
		return &llm.Error{
			Type:        llm.ErrorTypeProvider,
			Message:     fmt.Sprintf("Ollama API error: %s", statusErr.ErrorMessage),
			Retryable:   false,
			StatusCode:  statusErr.StatusCode,
			ProviderErr: err,
		}
	}
}

var _ llm.Client = (*Client)(nil)
