package ollama

import (
	"fmt"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/parleyhq/parley/llm"
)

// ToOllamaMessages serializes the request history: instruction and
// tool-states blocks as leading system messages, then the repaired history.
func ToOllamaMessages(req *llm.Request) ([]api.Message, error) {
	out := make([]api.Message, 0, len(req.Messages)+2)
	if req.Instruction != "" {
		out = append(out, api.Message{Role: "system", Content: req.Instruction})
	}
	if req.ToolStates != "" {
		out = append(out, api.Message{Role: "system", Content: req.ToolStates})
	}

	history := llm.EnsureCallIDs(llm.InsertMissingResults(req.ConversationMessages()))
	for _, msg := range history {
		wire, err := ToOllamaMessage(msg)
		if err != nil {
			return nil, fmt.Errorf("failed to convert message: %w", err)
		}
		out = append(out, wire...)
	}
	return out, nil
}

// ToOllamaMessage converts a single llm.Message to Ollama's format. A
// function turn carrying an image result expands to two messages, because
// tool messages hold text only.
func ToOllamaMessage(msg llm.Message) ([]api.Message, error) {
	if msg.Role == llm.RoleFunction {
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

		out := []api.Message{{
			Role:     "tool",
			Content:  resultText,
			ToolName: msg.Name,
		}}
		if image != nil {
			out = append(out, api.Message{
				Role:   "user",
				Images: []api.ImageData{api.ImageData(image.Data)},
			})
		}
		return out, nil
	}

	var content string
	var images []api.ImageData
	var toolCalls []api.ToolCall
	for _, p := range msg.Parts {
		switch p.Kind {
		case llm.PartText:
			content = p.Text
		case llm.PartImage:
			if p.Image == nil {
				return nil, fmt.Errorf("image part has no image data")
			}
			images = append(images, api.ImageData(p.Image.Data))
		case llm.PartFunctionCall:
			args := api.ToolCallFunctionArguments{}
			for k, v := range p.FunctionCall.Arguments {
				args[k] = v
			}
			toolCalls = append(toolCalls, api.ToolCall{
				Function: api.ToolCallFunction{
					Name:      p.FunctionCall.Name,
					Arguments: args,
				},
			})
		default:
			return nil, fmt.Errorf("unsupported part kind %q in %s turn", p.Kind, msg.Role)
		}
	}

	return []api.Message{{
		Role:      string(msg.Role),
		Content:   content,
		Images:    images,
		ToolCalls: toolCalls,
	}}, nil
}

// ToOllamaTools converts llm.ToolSpecs to Ollama's function format.
func ToOllamaTools(specs []llm.ToolSpec) []api.Tool {
	result := make([]api.Tool, 0, len(specs))
	for _, spec := range specs {
		result = append(result, ToOllamaTool(&spec))
	}
	return result
}

// ToOllamaTool converts a single llm.ToolSpec to Ollama's Tool format.
func ToOllamaTool(spec *llm.ToolSpec) api.Tool {
	properties := make(map[string]api.ToolProperty, len(spec.Schema.Properties))
	for name, raw := range spec.Schema.Properties {
		prop := api.ToolProperty{}
		if propMap, ok := raw.(map[string]interface{}); ok {
			if propType, ok := propMap["type"].(string); ok {
				prop.Type = api.PropertyType{propType}
			}
			if description, ok := propMap["description"].(string); ok {
				prop.Description = description
			}
			if enum, ok := propMap["enum"].([]interface{}); ok {
				prop.Enum = enum
			}
			if items, ok := propMap["items"]; ok {
				prop.Items = items
			}
		} else {
			prop.Type = api.PropertyType{"string"}
		}
		properties[name] = prop
	}

	schemaType := spec.Schema.Type
	if schemaType == "" {
		schemaType = "object"
	}

	return api.Tool{
		Type: "function",
		Function: api.ToolFunction{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters: api.ToolFunctionParameters{
				Type:       schemaType,
				Properties: properties,
				Required:   spec.Schema.Required,
			},
		},
	}
}

// coerceArguments validates required parameters and converts argument values
// to the types the schema declares. Local models routinely return numbers
// and booleans as strings; dispatch expects the declared types.
func coerceArguments(toolName string, args map[string]interface{}, schema llm.ToolSchema) (map[string]interface{}, error) {
	for _, required := range schema.Required {
		val, exists := args[required]
		if !exists {
			provided := make([]string, 0, len(args))
			for k := range args {
				provided = append(provided, k)
			}
			return nil, fmt.Errorf("missing required parameter '%s' for tool '%s' (provided: %v)", required, toolName, provided)
		}
		if isEmptyValue(val) {
			return nil, fmt.Errorf("required parameter '%s' for tool '%s' cannot be empty", required, toolName)
		}
	}

	result := make(map[string]interface{}, len(args))
	for name, value := range args {
		propSchema, exists := schema.Properties[name]
		if !exists {
			result[name] = value
			continue
		}
		converted, err := convertValueToType(value, getPropertyType(propSchema), name)
		if err != nil {
			return nil, fmt.Errorf("failed to convert parameter '%s' for tool '%s': %w", name, toolName, err)
		}
		result[name] = converted
	}
	return result, nil
}

// isEmptyValue checks if a value is considered empty (nil, empty string, empty array, etc.)
func isEmptyValue(v interface{}) bool {
	if v == nil {
		return true
	}

	switch val := v.(type) {
	case string:
		return val == ""
	case []interface{}:
		return len(val) == 0
	case []string:
		return len(val) == 0
	case map[string]interface{}:
		return len(val) == 0
	}

	return false
}

// getPropertyType extracts the type from a property schema definition
func getPropertyType(propSchema interface{}) string {
	if propMap, ok := propSchema.(map[string]interface{}); ok {
		if propType, ok := propMap["type"].(string); ok {
			return propType
		}
	}
	return "string" // Default type
}

// convertValueToType converts a value to the specified type
func convertValueToType(v interface{}, targetType, paramName string) (interface{}, error) {
	switch targetType {
	case "integer", "int":
		return convertToInteger(v, paramName)
	case "number", "float":
		return convertToNumber(v, paramName)
	case "boolean", "bool":
		return convertToBoolean(v, paramName)
	case "string":
		return convertToString(v), nil
	default:
		// Arrays, objects, and unknown types pass through
		return v, nil
	}
}

// convertToInteger converts a value to an integer
func convertToInteger(v interface{}, paramName string) (interface{}, error) {
	switch val := v.(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case float64:
		return int(val), nil
	case string:
		var i int
		if _, err := fmt.Sscanf(val, "%d", &i); err != nil {
			return nil, fmt.Errorf("parameter '%s': cannot convert '%s' to integer", paramName, val)
		}
		return i, nil
	default:
		return nil, fmt.Errorf("parameter '%s': cannot convert %T to integer", paramName, v)
	}
}

// convertToNumber converts a value to a float64
func convertToNumber(v interface{}, paramName string) (interface{}, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case string:
		var f float64
		if _, err := fmt.Sscanf(val, "%f", &f); err != nil {
			return nil, fmt.Errorf("parameter '%s': cannot convert '%s' to number", paramName, val)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("parameter '%s': cannot convert %T to number", paramName, v)
	}
}

// convertToBoolean converts a value to a boolean
func convertToBoolean(v interface{}, paramName string) (interface{}, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			return true, nil
		case "false", "0", "no", "off":
			return false, nil
		default:
			return nil, fmt.Errorf("parameter '%s': cannot convert '%s' to boolean", paramName, val)
		}
	case int:
		return val != 0, nil
	default:
		return nil, fmt.Errorf("parameter '%s': cannot convert %T to boolean", paramName, v)
	}
}

// convertToString converts a value to a string
func convertToString(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
