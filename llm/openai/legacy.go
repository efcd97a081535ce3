package openai

import (
	"context"
	"fmt"

	"github.com/parleyhq/parley/llm"
	openai "github.com/sashabaranov/go-openai"
)

// LegacyClient implements llm.Client against the deprecated chat-completions
// functions API. Some OpenAI-compatible gateways only understand this shape;
// it has no tool-call ids, so calls and results correlate by position.
type LegacyClient struct {
	client *openai.Client
	cfg    llm.ClientConfig
}

// NewLegacy creates a functions-API client from a resolved config.
func NewLegacy(cfg llm.ClientConfig) (*LegacyClient, error) {
	cfg = cfg.WithDefaults()
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	if cfg.Organization != "" {
		config.OrgID = cfg.Organization
	}

	return &LegacyClient{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
	}, nil
}

// Fetch implements llm.Client.Fetch.
func (c *LegacyClient) Fetch(ctx context.Context, req *llm.Request) (*llm.Response, error) {
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

	openaiMsgs, err := BuildLegacyMessages(req)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages: %w", err)
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: openaiMsgs,
	}
	if len(req.Tools) > 0 {
		chatReq.Functions = ToFunctionDefinitions(req.Tools)
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = int(req.MaxTokens)
	}
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
	if fc := choice.Message.FunctionCall; fc != nil {
		// The legacy API has no call ids; report the completion id if the
		// payload fails to parse.
		args, err := parseArguments(chatResp.ID, fc.Arguments)
		if err != nil {
			return nil, err
		}
		parts = append(parts, llm.FunctionCallPart(&llm.FunctionCall{
			Name:      fc.Name,
			Arguments: args,
		}, ""))
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

// BuildLegacyMessages lays out the turn array for the functions API:
// leading system blocks, then the repaired history with function turns as
// role function.
func BuildLegacyMessages(req *llm.Request) ([]openai.ChatCompletionMessage, error) {
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

	history := llm.InsertMissingResults(req.ConversationMessages())
	for _, msg := range history {
		wire, err := toLegacyMessages(msg)
		if err != nil {
			return nil, err
		}
		out = append(out, wire...)
	}
	return out, nil
}

var _ llm.Client = (*LegacyClient)(nil)
