package openai

import (
	"encoding/json"
	"fmt"

	"github.com/parleyhq/parley/llm"
	"github.com/samber/lo"
	openai "github.com/sashabaranov/go-openai"
)

// contentPart maps a canonical non-call part onto the OpenAI content shape.
// Images travel as data URLs; function results are plain text.
func contentPart(p llm.Part) (openai.ChatMessagePart, error) {
	switch p.Kind {
	case llm.PartText, llm.PartFunctionResult:
		return openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: p.Text,
		}, nil
	case llm.PartImage, llm.PartFunctionResultImage:
		if p.Image == nil {
			return openai.ChatMessagePart{}, fmt.Errorf("image part has no image data")
		}
		return openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL: p.Image.DataURL(),
			},
		}, nil
	}
	return openai.ChatMessagePart{}, fmt.Errorf("unknown part kind: %s", p.Kind)
}

// setContent picks the string form when a message is a single text part and
// the multi-part form otherwise.
func setContent(msg *openai.ChatCompletionMessage, parts []openai.ChatMessagePart) {
	if len(parts) == 1 && parts[0].Type == openai.ChatMessagePartTypeText {
		msg.Content = parts[0].Text
		return
	}
	msg.MultiContent = parts
}

// marshalArguments renders call arguments as the JSON string the OpenAI wire
// expects.
func marshalArguments(call *llm.FunctionCall) (string, error) {
	if call.Arguments == nil {
		return "{}", nil
	}
	argsJSON, err := json.Marshal(call.Arguments)
	if err != nil {
		return "", fmt.Errorf("failed to marshal arguments for %s: %w", call.Name, err)
	}
	return string(argsJSON), nil
}

// toToolsMessages converts one canonical message for the tools API. A
// function turn carrying an image yields two wire messages, because OpenAI
// only allows images on user turns: the tool answer first, then a user turn
// with the image.
func toToolsMessages(msg llm.Message) ([]openai.ChatCompletionMessage, error) {
	switch msg.Role {
	case llm.RoleSystem:
		return []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleSystem,
			Content: msg.Text(),
		}}, nil

	case llm.RoleFunction:
		out := []openai.ChatCompletionMessage{{
			Role:       openai.ChatMessageRoleTool,
			ToolCallID: msg.FunctionCallID(),
			Name:       msg.Name,
			Content:    msg.Text(),
		}}
		if img := msg.ImageContent(); img != nil {
			out = append(out, openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{{
					Type:     openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{URL: img.DataURL()},
				}},
			})
		}
		return out, nil
	}

	wire := openai.ChatCompletionMessage{Role: string(msg.Role), Name: msg.Name}
	var parts []openai.ChatMessagePart
	for _, p := range msg.Parts {
		if p.Kind == llm.PartFunctionCall {
			args, err := marshalArguments(p.FunctionCall)
			if err != nil {
				return nil, err
			}
			if msg.Role == llm.RoleAssistant {
				wire.ToolCalls = append(wire.ToolCalls, openai.ToolCall{
					ID:   p.FunctionCallID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      p.FunctionCall.Name,
						Arguments: args,
					},
				})
				continue
			}
			// A user turn triggering a function has no wire shape; fold the
			// call into the text content.
			wire.Content = p.FunctionCall.Name + ":" + args
			return []openai.ChatCompletionMessage{wire}, nil
		}
		part, err := contentPart(p)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	setContent(&wire, parts)
	return []openai.ChatCompletionMessage{wire}, nil
}

// toLegacyMessages converts one canonical message for the deprecated
// functions API: assistant calls as the function_call field, function turns
// as role function with a name. Function turns carrying images are re-tagged
// as user turns, which is the only role the API accepts images on.
func toLegacyMessages(msg llm.Message) ([]openai.ChatCompletionMessage, error) {
	switch msg.Role {
	case llm.RoleSystem:
		return []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleSystem,
			Content: msg.Text(),
		}}, nil

	case llm.RoleFunction:
		if img := msg.ImageContent(); img != nil {
			wire := openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleUser,
				Name: msg.Name,
			}
			parts := make([]openai.ChatMessagePart, 0, 2)
			if text := msg.Text(); text != "" {
				parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: text})
			}
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: img.DataURL()},
			})
			wire.MultiContent = parts
			return []openai.ChatCompletionMessage{wire}, nil
		}
		return []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleFunction,
			Name:    msg.Name,
			Content: msg.Text(),
		}}, nil
	}

	wire := openai.ChatCompletionMessage{Role: string(msg.Role), Name: msg.Name}
	var parts []openai.ChatMessagePart
	for _, p := range msg.Parts {
		if p.Kind == llm.PartFunctionCall {
			args, err := marshalArguments(p.FunctionCall)
			if err != nil {
				return nil, err
			}
			if msg.Role == llm.RoleAssistant {
				wire.FunctionCall = &openai.FunctionCall{
					Name:      p.FunctionCall.Name,
					Arguments: args,
				}
				continue
			}
			wire.Content = p.FunctionCall.Name + ":" + args
			return []openai.ChatCompletionMessage{wire}, nil
		}
		part, err := contentPart(p)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	setContent(&wire, parts)
	return []openai.ChatCompletionMessage{wire}, nil
}

// ToOpenAITools converts llm.ToolSpecs to the tools-API function format.
func ToOpenAITools(specs []llm.ToolSpec) []openai.Tool {
	return lo.Map(specs, func(spec llm.ToolSpec, _ int) openai.Tool {
		return openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  spec.Schema.AsMap(),
			},
		}
	})
}

// ToFunctionDefinitions converts llm.ToolSpecs to the legacy functions
// array.
func ToFunctionDefinitions(specs []llm.ToolSpec) []openai.FunctionDefinition {
	return lo.Map(specs, func(spec llm.ToolSpec, _ int) openai.FunctionDefinition {
		return openai.FunctionDefinition{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  spec.Schema.AsMap(),
		}
	})
}

// parseArguments decodes a JSON argument payload from the wire. id is the
// vendor identifier reported in the parsing error.
func parseArguments(id, raw string) (map[string]interface{}, error) {
	if raw == "" {
		return map[string]interface{}{}, nil
	}
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, llm.NewFunctionCallParsingError(id, raw, err)
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return args, nil
}

// usageFrom maps OpenAI token accounting, including prompt-cache reads.
func usageFrom(u openai.Usage) *llm.Usage {
	usage := &llm.Usage{
		InputTokens:  int64(u.PromptTokens),
		OutputTokens: int64(u.CompletionTokens),
	}
	if u.PromptTokensDetails != nil {
		usage.CacheReadInputTokens = int64(u.PromptTokensDetails.CachedTokens)
	}
	return usage
}

// stopReasonFrom normalizes OpenAI finish reasons.
func stopReasonFrom(reason openai.FinishReason) string {
	switch reason {
	case openai.FinishReasonLength:
		return "max_tokens"
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		return "tool_calls"
	default:
		return "stop"
	}
}
