package anthropic

import (
	"encoding/json"
	"fmt"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/parleyhq/parley/llm"
	"github.com/samber/lo"
)

// serializedRole maps canonical roles onto the two roles the Anthropic API
// accepts. System and function turns both travel as user turns.
func serializedRole(msg llm.Message) llm.Role {
	switch msg.Role {
	case llm.RoleUser, llm.RoleAssistant:
		return msg.Role
	default:
		return llm.RoleUser
	}
}

// toContentBlock converts one canonical part to the Anthropic block shape.
// Unlike OpenAI, tool results may carry images directly.
func toContentBlock(p llm.Part) (anthropic.ContentBlockParamUnion, error) {
	switch p.Kind {
	case llm.PartText:
		return anthropic.NewTextBlock(p.Text), nil
	case llm.PartImage:
		if p.Image == nil {
			return anthropic.ContentBlockParamUnion{}, fmt.Errorf("image part has no image data")
		}
		return anthropic.NewImageBlockBase64(p.Image.MIMEType, p.Image.Base64()), nil
	case llm.PartFunctionCall:
		input := p.FunctionCall.Arguments
		if input == nil {
			input = map[string]interface{}{}
		}
		return anthropic.NewToolUseBlock(p.FunctionCallID, input, p.FunctionCall.Name), nil
	case llm.PartFunctionResult:
		return anthropic.NewToolResultBlock(p.FunctionCallID, p.Text, false), nil
	case llm.PartFunctionResultImage:
		if p.Image == nil {
			return anthropic.ContentBlockParamUnion{}, fmt.Errorf("image result part has no image data")
		}
		result := anthropic.ToolResultBlockParam{
			ToolUseID: p.FunctionCallID,
			Content: []anthropic.ToolResultBlockParamContentUnion{{
				OfImage: &anthropic.ImageBlockParam{
					Source: anthropic.ImageBlockParamSourceUnion{
						OfBase64: &anthropic.Base64ImageSourceParam{
							MediaType: anthropic.Base64ImageSourceMediaType(p.Image.MIMEType),
							Data:      p.Image.Base64(),
						},
					},
				},
			}},
		}
		return anthropic.ContentBlockParamUnion{OfToolResult: &result}, nil
	}
	return anthropic.ContentBlockParamUnion{}, fmt.Errorf("unknown part kind: %s", p.Kind)
}

// ToMessageParam converts an llm.Message to an Anthropic MessageParam.
func ToMessageParam(msg llm.Message) (anthropic.MessageParam, error) {
	contentBlocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Parts))
	for _, p := range msg.Parts {
		block, err := toContentBlock(p)
		if err != nil {
			return anthropic.MessageParam{}, err
		}
		contentBlocks = append(contentBlocks, block)
	}

	if serializedRole(msg) == llm.RoleAssistant {
		return anthropic.NewAssistantMessage(contentBlocks...), nil
	}
	return anthropic.NewUserMessage(contentBlocks...), nil
}

// ToMessageParams serializes the request history: repaired, id-complete,
// and merged so the turn roles strictly alternate.
func ToMessageParams(req *llm.Request) ([]anthropic.MessageParam, error) {
	history := llm.EnsureCallIDs(llm.InsertMissingResults(req.ConversationMessages()))
	merged := llm.MergeTurns(history, serializedRole)

	result := make([]anthropic.MessageParam, 0, len(merged))
	for _, msg := range merged {
		param, err := ToMessageParam(msg)
		if err != nil {
			return nil, fmt.Errorf("failed to convert message: %w", err)
		}
		result = append(result, param)
	}
	return result, nil
}

// applyCacheHint marks the last content block of the turn at the highest
// index divisible by stride, so the cached prefix advances as the
// conversation grows. Degrades to a no-op when the block shape has no room
// for a marker.
func applyCacheHint(msgs []anthropic.MessageParam, stride int) {
	if len(msgs) == 0 || stride <= 0 {
		return
	}
	idx := ((len(msgs) - 1) / stride) * stride
	content := msgs[idx].Content
	if len(content) == 0 {
		return
	}
	setCacheControl(&content[len(content)-1])
}

func setCacheControl(block *anthropic.ContentBlockParamUnion) {
	switch {
	case block.OfText != nil:
		block.OfText.CacheControl = anthropic.NewCacheControlEphemeralParam()
	case block.OfImage != nil:
		block.OfImage.CacheControl = anthropic.NewCacheControlEphemeralParam()
	case block.OfToolUse != nil:
		block.OfToolUse.CacheControl = anthropic.NewCacheControlEphemeralParam()
	case block.OfToolResult != nil:
		block.OfToolResult.CacheControl = anthropic.NewCacheControlEphemeralParam()
	}
}

// ToToolUnionParam converts an llm.ToolSpec to an Anthropic ToolUnionParam.
// The API rejects empty descriptions.
func ToToolUnionParam(spec *llm.ToolSpec) anthropic.ToolUnionParam {
	description := spec.Description
	if description == "" {
		description = "No description provided"
	}

	toolParam := anthropic.ToolParam{
		Name:        spec.Name,
		Description: anthropic.String(description),
		InputSchema: anthropic.ToolInputSchemaParam{
			Type:        "object",
			Properties:  spec.Schema.Properties,
			Required:    spec.Schema.Required,
			ExtraFields: spec.Schema.ExtraFields,
		},
	}

	return anthropic.ToolUnionParam{OfTool: &toolParam}
}

// ToToolUnionParams converts a slice of llm.ToolSpecs, with a cache hint on
// the last definition. Tools, system, and messages cache as one prefix in
// that order, so marking the last tool covers the whole set.
func ToToolUnionParams(specs []llm.ToolSpec) []anthropic.ToolUnionParam {
	tools := lo.Map(specs, func(spec llm.ToolSpec, _ int) anthropic.ToolUnionParam {
		return ToToolUnionParam(&spec)
	})
	if len(tools) > 0 && tools[len(tools)-1].OfTool != nil {
		tools[len(tools)-1].OfTool.CacheControl = anthropic.NewCacheControlEphemeralParam()
	}
	return tools
}

// fromContentBlocks converts a response's content blocks back to canonical
// parts. Multiple tool calls in one turn is an unsupported response shape.
func fromContentBlocks(blocks []anthropic.ContentBlockUnion) ([]llm.Part, error) {
	parts := make([]llm.Part, 0, len(blocks))
	calls := 0
	for _, blockUnion := range blocks {
		switch block := blockUnion.AsAny().(type) {
		case anthropic.TextBlock:
			parts = append(parts, llm.TextPart(block.Text))
		case anthropic.ToolUseBlock:
			calls++
			if calls > 1 {
				return nil, llm.NewProviderError(
					fmt.Sprintf("model returned %d tool calls in one turn; at most one is supported", calls), nil)
			}
			args, err := parseToolInput(block.ID, block.Input)
			if err != nil {
				return nil, err
			}
			parts = append(parts, llm.FunctionCallPart(&llm.FunctionCall{
				Name:      block.Name,
				Arguments: args,
			}, block.ID))
		}
	}
	if len(parts) == 0 {
		parts = append(parts, llm.TextPart(""))
	}
	return parts, nil
}

// parseToolInput decodes the tool_use input payload into plain arguments.
func parseToolInput(callID string, input json.RawMessage) (map[string]interface{}, error) {
	if len(input) == 0 {
		return map[string]interface{}{}, nil
	}
	var args map[string]interface{}
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, llm.NewFunctionCallParsingError(callID, string(input), err)
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return args, nil
}
