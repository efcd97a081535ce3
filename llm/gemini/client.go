package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/parleyhq/parley/llm"
)

const defaultRetryAfter = 60 * time.Second

// Client implements the llm.Client interface against the generateContent
// REST API. No vendor SDK is involved; the wire types live in types.go.
type Client struct {
	httpClient *http.Client
	cfg        llm.ClientConfig
	baseURL    string
}

// New creates a generateContent client from a resolved config.
// The API key is required; the base URL is an optional override.
func New(cfg llm.ClientConfig) (*Client, error) {
	cfg = cfg.WithDefaults()
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		cfg:        cfg,
		baseURL:    baseURL,
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

	payload, err := buildPayload(req)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages: %w", err)
	}

	resp, err := c.doRequest(ctx, model, payload)
	if err != nil {
		return nil, llm.NewNetworkError("Gemini request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, convertGeminiError(readAPIError(resp))
	}

	var genResp GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, llm.NewProviderError("failed to decode Gemini response", err)
	}

	if len(genResp.Candidates) == 0 {
		reason := "no response candidates from model"
		if genResp.PromptFeedback != nil && genResp.PromptFeedback.BlockReason != "" {
			reason = fmt.Sprintf("prompt blocked: %s", genResp.PromptFeedback.BlockReason)
		}
		return nil, llm.NewInvalidRequestError(fmt.Sprintf("Gemini returned no candidates: %s", reason), nil)
	}

	candidate := genResp.Candidates[0]
	message, err := FromCandidate(candidate, uuid.NewString())
	if err != nil {
		return nil, err
	}

	var usage *llm.Usage
	if genResp.UsageMetadata != nil {
		usage = &llm.Usage{
			InputTokens:          genResp.UsageMetadata.PromptTokenCount,
			OutputTokens:         genResp.UsageMetadata.CandidatesTokenCount,
			CacheReadInputTokens: genResp.UsageMetadata.CachedContentTokenCount,
		}
	}

	return &llm.Response{
		Message:    message,
		Usage:      usage,
		StopReason: stopReasonFrom(candidate.FinishReason, message.FunctionCall() != nil),
	}, nil
}

// buildPayload assembles the request body. The instruction and the
// tool-states block travel as parts of the top-level systemInstruction.
func buildPayload(req *llm.Request) (*GenerateRequest, error) {
	contents, err := ToContents(req)
	if err != nil {
		return nil, err
	}

	payload := &GenerateRequest{Contents: contents}

	systemParts := make([]Part, 0, 2)
	if req.Instruction != "" {
		systemParts = append(systemParts, Part{Text: req.Instruction})
	}
	if req.ToolStates != "" {
		systemParts = append(systemParts, Part{Text: req.ToolStates})
	}
	if len(systemParts) > 0 {
		payload.SystemInstruction = &Content{Role: "user", Parts: systemParts}
	}

	if tools := ToTools(req.Tools); len(tools) > 0 {
		payload.Tools = tools
		payload.ToolConfig = &ToolConfig{
			FunctionCallingConfig: FunctionCallingConfig{Mode: "AUTO"},
		}
	}

	if req.MaxTokens > 0 || req.Temperature != nil {
		config := &GenerationConfig{MaxOutputTokens: req.MaxTokens}
		if req.Temperature != nil {
			config.Temperature = req.Temperature
		}
		payload.GenerationConfig = config
	}

	return payload, nil
}

func (c *Client) doRequest(ctx context.Context, model string, payload *GenerateRequest) (*http.Response, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	endpoint := c.baseURL + fmt.Sprintf(generatePathFormat, url.PathEscape(model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.cfg.APIKey)

	return c.httpClient.Do(httpReq)
}

func readAPIError(resp *http.Response) *APIError {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Status:     errResp.Error.Status,
			Message:    errResp.Error.Message,
		}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: string(body)}
}

// convertGeminiError converts Gemini API errors to llm.Error types.
func convertGeminiError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return llm.NewNetworkError("Gemini request failed", err)
	}

	switch apiErr.StatusCode {
	case http.StatusTooManyRequests:
		retryAfter := defaultRetryAfter
		return llm.NewRateLimitError(
			fmt.Sprintf("Gemini rate limit: %s", apiErr.Message), &retryAfter, err)
	case http.StatusBadRequest:
		// Token overflow reports as INVALID_ARGUMENT; the message disambiguates.
		if strings.Contains(apiErr.Message, "exceeds the maximum number of tokens") {
			return llm.NewContextLengthError(
				fmt.Sprintf("Gemini context length exceeded: %s", apiErr.Message), err)
		}
		return &llm.Error{
			Type:        llm.ErrorTypeInvalidRequest,
			Message:     fmt.Sprintf("Gemini invalid request: %s", apiErr.Message),
			Retryable:   false,
			StatusCode:  apiErr.StatusCode,
			ProviderErr: err,
		}
	case http.StatusForbidden:
		return llm.NewQuotaError(
			fmt.Sprintf("Gemini access denied: %s", apiErr.Message), err)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return &llm.Error{
			Type:        llm.ErrorTypeProvider,
			Message:     fmt.Sprintf("Gemini server error: %s", apiErr.Message),
			Retryable:   true,
			StatusCode:  apiErr.StatusCode,
			ProviderErr: err,
		}
	default:
		return &llm.Error{
			Type:        llm.ErrorTypeProvider,
			Message:     fmt.Sprintf("Gemini API error: %s", apiErr.Message),
			Retryable:   false,
			StatusCode:  apiErr.StatusCode,
			ProviderErr: err,
		}
	}
}

var _ llm.Client = (*Client)(nil)
