package gemini

import (
	"fmt"
	"strings"

	"github.com/parleyhq/parley/llm"
)

// ToContents serializes the request history: repaired, id-complete turns in
// Gemini's {role, parts} shape. Assistant turns travel as "model", function
// results as "function", and system turns fold into prefixed user turns.
func ToContents(req *llm.Request) ([]Content, error) {
	history := llm.EnsureCallIDs(llm.InsertMissingResults(req.ConversationMessages()))
	out := make([]Content, 0, len(history))
	for _, msg := range history {
		contents, err := ToContent(msg)
		if err != nil {
			return nil, err
		}
		out = append(out, contents...)
	}
	return out, nil
}

// ToContent converts one canonical message. A function turn carrying an
// image result expands to two turns: the function response, then a user turn
// with the image, because functionResponse payloads are JSON-only.
func ToContent(msg llm.Message) ([]Content, error) {
	switch msg.Role {
	case llm.RoleSystem:
		texts := make([]string, 0, len(msg.Parts))
		for _, p := range msg.Parts {
			if p.Kind == llm.PartText && p.Text != "" {
				texts = append(texts, p.Text)
			}
		}
		return []Content{{
			Role:  "user",
			Parts: []Part{{Text: "[System Instruction] " + strings.Join(texts, " ")}},
		}}, nil

	case llm.RoleUser, llm.RoleAssistant:
		role := "user"
		if msg.Role == llm.RoleAssistant {
			role = "model"
		}
		parts := make([]Part, 0, len(msg.Parts))
		for _, p := range msg.Parts {
			part, err := toPart(msg, p)
			if err != nil {
				return nil, err
			}
			parts = append(parts, part)
		}
		return []Content{{Role: role, Parts: parts}}, nil

	case llm.RoleFunction:
		resultText := ""
		var image *llm.Image
		for _, p := range msg.Parts {
			switch p.Kind {
			case llm.PartFunctionResult:
				resultText = p.Text
			case llm.PartFunctionResultImage:
				image = p.Image
			default:
				return nil, fmt.Errorf("unsupported part kind %q in function turn", p.Kind)
			}
		}

		out := []Content{{
			Role: "function",
			Parts: []Part{{FunctionResponse: &FunctionResponse{
				Name: msg.Name,
				Response: map[string]interface{}{
					"name":    msg.Name,
					"content": resultText,
				},
			}}},
		}}
		if image != nil {
			out = append(out, Content{
				Role: "user",
				Parts: []Part{{InlineData: &InlineData{
					MIMEType: image.MIMEType,
					Data:     image.Base64(),
				}}},
			})
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported message role: %s", msg.Role)
}

func toPart(msg llm.Message, p llm.Part) (Part, error) {
	switch p.Kind {
	case llm.PartText:
		return Part{Text: p.Text}, nil
	case llm.PartImage:
		if p.Image == nil {
			return Part{}, fmt.Errorf("image part has no image data")
		}
		return Part{InlineData: &InlineData{
			MIMEType: p.Image.MIMEType,
			Data:     p.Image.Base64(),
		}}, nil
	case llm.PartFunctionCall:
		return Part{FunctionCall: &FunctionCall{
			Name: p.FunctionCall.Name,
			Args: p.FunctionCall.Arguments,
		}}, nil
	}
	return Part{}, fmt.Errorf("unsupported part kind %q in %s turn", p.Kind, msg.Role)
}

// ToSchema converts a JSON-Schema-subset map to Gemini's variant: uppercase
// type enums and only the keywords the API accepts. A missing type means an
// object schema.
func ToSchema(schema map[string]interface{}) map[string]interface{} {
	if len(schema) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(schema))

	if t, ok := schema["type"].(string); ok && t != "" {
		out["type"] = strings.ToUpper(t)
	} else {
		out["type"] = "OBJECT"
	}
	if d, ok := schema["description"].(string); ok && d != "" {
		out["description"] = d
	}
	if enum, ok := schema["enum"]; ok {
		out["enum"] = enum
	}
	if props, ok := schema["properties"].(map[string]interface{}); ok && len(props) > 0 {
		converted := make(map[string]interface{}, len(props))
		for name, sub := range props {
			if subMap, ok := sub.(map[string]interface{}); ok {
				converted[name] = ToSchema(subMap)
			}
		}
		out["properties"] = converted
	}
	if items, ok := schema["items"].(map[string]interface{}); ok {
		out["items"] = ToSchema(items)
	}
	if required, ok := schema["required"]; ok {
		out["required"] = required
	}

	return out
}

// ToTools wraps all declarations into the single group the API expects.
func ToTools(specs []llm.ToolSpec) []Tool {
	if len(specs) == 0 {
		return nil
	}
	declarations := make([]FunctionDeclaration, 0, len(specs))
	for _, spec := range specs {
		declarations = append(declarations, FunctionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  ToSchema(spec.Schema.AsMap()),
		})
	}
	return []Tool{{FunctionDeclarations: declarations}}
}

// FromCandidate converts a response candidate to one assistant message.
// Text parts are joined; a second function call in the same candidate is an
// unsupported response shape. id doubles as the call id since the API
// assigns none.
func FromCandidate(c Candidate, id string) (llm.Message, error) {
	texts := make([]string, 0, len(c.Content.Parts))
	var call *FunctionCall
	for _, p := range c.Content.Parts {
		switch {
		case p.FunctionCall != nil:
			if call != nil {
				return llm.Message{}, llm.NewProviderError(
					"model returned multiple function calls in one turn; at most one is supported", nil)
			}
			call = p.FunctionCall
		case p.Text != "":
			texts = append(texts, p.Text)
		}
	}

	parts := make([]llm.Part, 0, 2)
	if len(texts) > 0 {
		parts = append(parts, llm.TextPart(strings.Join(texts, "\n")))
	}
	if call != nil {
		args := call.Args
		if args == nil {
			args = map[string]interface{}{}
		}
		parts = append(parts, llm.FunctionCallPart(&llm.FunctionCall{
			Name:      call.Name,
			Arguments: args,
		}, id))
	}
	if len(parts) == 0 {
		parts = append(parts, llm.TextPart(""))
	}

	return llm.Message{Role: llm.RoleAssistant, Parts: parts, ID: id}, nil
}

func stopReasonFrom(finishReason string, hasCall bool) string {
	switch {
	case hasCall:
		return "tool_calls"
	case finishReason == "MAX_TOKENS":
		return "max_tokens"
	default:
		return "stop"
	}
}
