package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/parleyhq/parley/llm"
	openai "github.com/sashabaranov/go-openai"
)

// callPattern recognizes the text protocol a shim-driven model uses to
// request a call. Names may contain dashes because registered tool methods
// are namespaced "<Tool>-<id>__<method>".
var callPattern = regexp.MustCompile(`(?s)CALLING\s+FUNCTION:\s*([A-Za-z0-9_-]+)\s*\n?\s*(\{.*?\})`)

// ShimClient implements llm.Client for models without native function
// support (the o1 family). Schemas are rendered into the instruction text
// and call requests are parsed back out of the response with callPattern.
// Sampling parameters are never sent; these models reject them.
type ShimClient struct {
	client *openai.Client
	cfg    llm.ClientConfig
}

// NewShim creates a text-protocol client from a resolved config.
func NewShim(cfg llm.ClientConfig) (*ShimClient, error) {
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

	return &ShimClient{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
	}, nil
}

// Fetch implements llm.Client.Fetch.
func (c *ShimClient) Fetch(ctx context.Context, req *llm.Request) (*llm.Response, error) {
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

	openaiMsgs, err := BuildShimMessages(req)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages: %w", err)
	}

	chatResp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: openaiMsgs,
	})
	if err != nil {
		return nil, convertOpenAIError(err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, llm.NewProviderError("no choices in response", nil)
	}
	choice := chatResp.Choices[0]

	msg := llm.NewTextMessage(llm.RoleAssistant, choice.Message.Content)
	if name, args, found := ParseFunctionCallFromText(choice.Message.Content); found {
		// The call replaces the text; models on this path respond with the
		// protocol block alone.
		msg = llm.NewFunctionCallMessage(&llm.FunctionCall{Name: name, Arguments: args}, "")
	}
	msg.ID = chatResp.ID

	return &llm.Response{
		Message:    msg,
		Usage:      usageFrom(chatResp.Usage),
		StopReason: stopReasonFrom(choice.FinishReason),
	}, nil
}

// BuildShimMessages lays out the turn array for the text protocol: one
// leading user turn carrying the augmented instruction, then the repaired
// history with every function turn re-tagged as user and calls rendered as
// protocol text.
func BuildShimMessages(req *llm.Request) ([]openai.ChatCompletionMessage, error) {
	out := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if head := ShimInstruction(req); head != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: head,
		})
	}

	history := llm.InsertMissingResults(req.ConversationMessages())
	for _, msg := range history {
		wire, err := toShimMessage(msg)
		if err != nil {
			return nil, err
		}
		out = append(out, wire)
	}
	return out, nil
}

// ShimInstruction renders the instruction block: the caller's instruction,
// the function schemas as JSON, the call protocol description, and the
// tool-states block when present.
func ShimInstruction(req *llm.Request) string {
	if len(req.Tools) == 0 {
		if req.ToolStates == "" {
			return req.Instruction
		}
		if req.Instruction == "" {
			return req.ToolStates
		}
		return req.Instruction + "\n\n" + req.ToolStates
	}

	schemas := make([]map[string]interface{}, 0, len(req.Tools))
	for _, spec := range req.Tools {
		schemas = append(schemas, map[string]interface{}{
			"name":        spec.Name,
			"description": spec.Description,
			"parameters":  spec.Schema.AsMap(),
		})
	}
	schemasJSON, err := json.MarshalIndent(schemas, "", "  ")
	if err != nil {
		schemasJSON = []byte("[]")
	}

	var b strings.Builder
	b.WriteString(req.Instruction)
	b.WriteString("\n\nHere are the available functions you can call, in JSON format:\n")
	b.Write(schemasJSON)
	b.WriteString("\n\n")
	b.WriteString("When you call a function, respond with:\n")
	b.WriteString("```\n")
	b.WriteString("CALLING FUNCTION: <function_name>\n")
	b.WriteString("{\n")
	b.WriteString("  \"arg1\": \"...\",\n")
	b.WriteString("  \"arg2\": \"...\"\n")
	b.WriteString("}\n")
	b.WriteString("```\n")
	b.WriteString("If you do not need to call a function, just respond normally.")
	if req.ToolStates != "" {
		b.WriteString("\n\n")
		b.WriteString(req.ToolStates)
	}
	return b.String()
}

// toShimMessage converts one canonical message to plain text content.
// Function calls become protocol text so the model sees its own earlier
// calls the same way it is asked to produce them.
func toShimMessage(msg llm.Message) (openai.ChatCompletionMessage, error) {
	role := string(msg.Role)
	if msg.Role == llm.RoleFunction {
		role = openai.ChatMessageRoleUser
	}
	wire := openai.ChatCompletionMessage{Role: role}

	var parts []openai.ChatMessagePart
	for _, p := range msg.Parts {
		if p.Kind == llm.PartFunctionCall {
			args, err := marshalArguments(p.FunctionCall)
			if err != nil {
				return openai.ChatCompletionMessage{}, err
			}
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: fmt.Sprintf("CALLING FUNCTION: %s\n%s\n", p.FunctionCall.Name, args),
			})
			continue
		}
		part, err := contentPart(p)
		if err != nil {
			return openai.ChatCompletionMessage{}, err
		}
		parts = append(parts, part)
	}
	setContent(&wire, parts)
	return wire, nil
}

// ParseFunctionCallFromText scans text for the call protocol. Arguments that
// fail to decode degrade to an empty map; the dispatcher will surface the
// schema mismatch back to the model.
func ParseFunctionCallFromText(text string) (string, map[string]interface{}, bool) {
	match := callPattern.FindStringSubmatch(text)
	if match == nil {
		return "", nil, false
	}
	name := strings.TrimSpace(match[1])
	args := map[string]interface{}{}
	if err := json.Unmarshal([]byte(match[2]), &args); err != nil {
		args = map[string]interface{}{}
	}
	return name, args, true
}

var _ llm.Client = (*ShimClient)(nil)
