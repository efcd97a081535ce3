package ollama

import (
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/parleyhq/parley/llm"
)

func TestToOllamaMessages(t *testing.T) {
	req := &llm.Request{
		Instruction: "You are a helpful assistant.",
		ToolStates:  "## Last Tools States\ncalc: idle",
		Messages: []llm.Message{
			llm.NewTextMessage(llm.RoleUser, "add 2 and 3"),
			llm.NewFunctionCallMessage(&llm.FunctionCall{
				Name:      "calc__add",
				Arguments: map[string]interface{}{"a": float64(2)},
			}, "call_1"),
			llm.NewFunctionResultMessage("calc__add", "call_1", "5"),
		},
	}

	msgs, err := ToOllamaMessages(req)
	if err != nil {
		t.Fatalf("ToOllamaMessages failed: %v", err)
	}
	if len(msgs) != 5 {
		t.Fatalf("Expected 5 messages, got %d", len(msgs))
	}

	if msgs[0].Role != "system" || msgs[0].Content != "You are a helpful assistant." {
		t.Error("Expected instruction as the first system message")
	}
	if msgs[1].Role != "system" {
		t.Error("Expected tool states as the second system message")
	}
	if msgs[2].Role != "user" {
		t.Errorf("Expected role 'user', got %q", msgs[2].Role)
	}

	assistant := msgs[3]
	if assistant.Role != "assistant" {
		t.Errorf("Expected role 'assistant', got %q", assistant.Role)
	}
	if len(assistant.ToolCalls) != 1 {
		t.Fatalf("Expected 1 tool call, got %d", len(assistant.ToolCalls))
	}
	if assistant.ToolCalls[0].Function.Name != "calc__add" {
		t.Errorf("Expected call name 'calc__add', got %q", assistant.ToolCalls[0].Function.Name)
	}

	result := msgs[4]
	if result.Role != "tool" {
		t.Errorf("Expected role 'tool', got %q", result.Role)
	}
	if result.Content != "5" {
		t.Errorf("Expected result content '5', got %q", result.Content)
	}
	if result.ToolName != "calc__add" {
		t.Errorf("Expected tool name 'calc__add', got %q", result.ToolName)
	}
}

func TestToOllamaMessageImageResult(t *testing.T) {
	img := llm.NewImage([]byte{0x89, 0x50, 0x4e, 0x47}, "image/png")
	msg := llm.NewFunctionResultImageMessage("camera__capture", "call_7", "snapshot", img)

	msgs, err := ToOllamaMessage(msg)
	if err != nil {
		t.Fatalf("ToOllamaMessage failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("Expected tool message plus user image message, got %d", len(msgs))
	}
	if msgs[0].Role != "tool" || msgs[0].Content != "snapshot" {
		t.Error("Expected text result in the tool message")
	}
	if msgs[1].Role != "user" {
		t.Errorf("Expected image message role 'user', got %q", msgs[1].Role)
	}
	if len(msgs[1].Images) != 1 {
		t.Fatalf("Expected 1 image, got %d", len(msgs[1].Images))
	}
	if string(msgs[1].Images[0]) != string(img.Data) {
		t.Error("Expected raw image bytes to pass through")
	}
}

func TestToOllamaTool(t *testing.T) {
	spec := &llm.ToolSpec{
		Name:        "weather__forecast",
		Description: "Gets a forecast",
		Schema: llm.ToolSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"city": map[string]interface{}{
					"type":        "string",
					"description": "City name",
				},
				"days": map[string]interface{}{
					"type": "integer",
					"enum": []interface{}{float64(1), float64(3), float64(7)},
				},
			},
			Required: []string{"city"},
		},
	}

	tool := ToOllamaTool(spec)
	if tool.Type != "function" {
		t.Errorf("Expected type 'function', got %q", tool.Type)
	}
	if tool.Function.Name != "weather__forecast" {
		t.Errorf("Expected name 'weather__forecast', got %q", tool.Function.Name)
	}
	if tool.Function.Parameters.Type != "object" {
		t.Errorf("Expected parameters type 'object', got %q", tool.Function.Parameters.Type)
	}

	city := tool.Function.Parameters.Properties["city"]
	if len(city.Type) != 1 || city.Type[0] != "string" {
		t.Errorf("Expected city type ['string'], got %v", city.Type)
	}
	if city.Description != "City name" {
		t.Errorf("Expected description to pass through, got %q", city.Description)
	}
	days := tool.Function.Parameters.Properties["days"]
	if len(days.Enum) != 3 {
		t.Errorf("Expected 3 enum values, got %d", len(days.Enum))
	}
}

func TestCoerceArguments(t *testing.T) {
	schema := llm.ToolSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"count":   map[string]interface{}{"type": "integer"},
			"ratio":   map[string]interface{}{"type": "number"},
			"enabled": map[string]interface{}{"type": "boolean"},
			"label":   map[string]interface{}{"type": "string"},
		},
		Required: []string{"count"},
	}

	args, err := coerceArguments("test", map[string]interface{}{
		"count":   "5",
		"ratio":   "0.5",
		"enabled": "yes",
		"label":   float64(7),
		"extra":   "untouched",
	}, schema)
	if err != nil {
		t.Fatalf("coerceArguments failed: %v", err)
	}

	if args["count"] != 5 {
		t.Errorf("Expected count coerced to 5, got %v (%T)", args["count"], args["count"])
	}
	if args["ratio"] != 0.5 {
		t.Errorf("Expected ratio coerced to 0.5, got %v", args["ratio"])
	}
	if args["enabled"] != true {
		t.Errorf("Expected enabled coerced to true, got %v", args["enabled"])
	}
	if args["label"] != "7" {
		t.Errorf("Expected label stringified to '7', got %v", args["label"])
	}
	if args["extra"] != "untouched" {
		t.Errorf("Expected undeclared parameter to pass through, got %v", args["extra"])
	}
}

func TestCoerceArgumentsMissingRequired(t *testing.T) {
	schema := llm.ToolSchema{Required: []string{"city"}}

	_, err := coerceArguments("weather", map[string]interface{}{"days": float64(3)}, schema)
	if err == nil {
		t.Fatal("Expected error for missing required parameter")
	}

	_, err = coerceArguments("weather", map[string]interface{}{"city": ""}, schema)
	if err == nil {
		t.Fatal("Expected error for empty required parameter")
	}
}

func TestFromOllamaResponse(t *testing.T) {
	specs := []llm.ToolSpec{{
		Name: "calc__add",
		Schema: llm.ToolSchema{
			Properties: map[string]interface{}{
				"a": map[string]interface{}{"type": "integer"},
			},
		},
	}}
	msg := api.Message{
		Role:    "assistant",
		Content: "calling",
		ToolCalls: []api.ToolCall{{
			Function: api.ToolCallFunction{
				Name:      "calc__add",
				Arguments: api.ToolCallFunctionArguments{"a": "2"},
			},
		}},
	}

	parts, err := fromOllamaResponse(msg, "resp_1", specs)
	if err != nil {
		t.Fatalf("fromOllamaResponse failed: %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("Expected 2 parts, got %d", len(parts))
	}
	if parts[0].Text != "calling" {
		t.Errorf("Expected text 'calling', got %q", parts[0].Text)
	}
	call := parts[1].FunctionCall
	if call == nil {
		t.Fatal("Expected a function call part")
	}
	if call.Arguments["a"] != 2 {
		t.Errorf("Expected coerced integer argument, got %v (%T)", call.Arguments["a"], call.Arguments["a"])
	}
	if parts[1].FunctionCallID != "resp_1" {
		t.Errorf("Expected call id 'resp_1', got %q", parts[1].FunctionCallID)
	}
}

func TestFromOllamaResponseMultipleCallsRejected(t *testing.T) {
	msg := api.Message{
		ToolCalls: []api.ToolCall{
			{Function: api.ToolCallFunction{Name: "a"}},
			{Function: api.ToolCallFunction{Name: "b"}},
		},
	}

	_, err := fromOllamaResponse(msg, "resp_1", nil)
	if err == nil {
		t.Fatal("Expected error for multiple tool calls")
	}
}

func TestFromOllamaResponseEmptyContent(t *testing.T) {
	parts, err := fromOllamaResponse(api.Message{}, "resp_1", nil)
	if err != nil {
		t.Fatalf("fromOllamaResponse failed: %v", err)
	}
	if len(parts) != 1 || parts[0].Kind != llm.PartText || parts[0].Text != "" {
		t.Error("Expected a single empty text part")
	}
}

func TestStopReasonFrom(t *testing.T) {
	if got := stopReasonFrom("stop", false); got != "stop" {
		t.Errorf("Expected 'stop', got %q", got)
	}
	if got := stopReasonFrom("length", false); got != "max_tokens" {
		t.Errorf("Expected 'max_tokens', got %q", got)
	}
	if got := stopReasonFrom("stop", true); got != "tool_calls" {
		t.Errorf("Expected 'tool_calls', got %q", got)
	}
}
