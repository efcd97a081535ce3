package openai

import (
	"strings"
	"testing"

	"github.com/parleyhq/parley/llm"
	openai "github.com/sashabaranov/go-openai"
)

func toolsRequest(msgs ...llm.Message) *llm.Request {
	return &llm.Request{
		Instruction: "You are a helpful assistant.",
		Messages:    msgs,
	}
}

func TestBuildToolsMessagesLeadingSystemBlocks(t *testing.T) {
	req := toolsRequest(llm.NewTextMessage(llm.RoleUser, "hi"))
	req.ToolStates = "## Last Tools States\n### Database-1\nconnected\n--- End of Last Tools States ---"

	msgs, err := BuildToolsMessages(req)
	if err != nil {
		t.Fatalf("BuildToolsMessages failed: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Role != openai.ChatMessageRoleSystem || msgs[0].Content != "You are a helpful assistant." {
		t.Errorf("Expected instruction as first system message, got %+v", msgs[0])
	}
	if msgs[1].Role != openai.ChatMessageRoleSystem || !strings.Contains(msgs[1].Content, "Last Tools States") {
		t.Errorf("Expected tool states as second system message, got %+v", msgs[1])
	}
	if msgs[2].Role != openai.ChatMessageRoleUser {
		t.Errorf("Expected user turn last, got %+v", msgs[2])
	}
}

func TestBuildToolsMessagesFunctionTurns(t *testing.T) {
	call := &llm.FunctionCall{Name: "add", Arguments: map[string]interface{}{"a": 1.0, "b": 2.0}}
	req := toolsRequest(
		llm.NewTextMessage(llm.RoleUser, "add 1 and 2"),
		llm.NewFunctionCallMessage(call, "call-1"),
		llm.NewFunctionResultMessage("add", "call-1", "3"),
	)

	msgs, err := BuildToolsMessages(req)
	if err != nil {
		t.Fatalf("BuildToolsMessages failed: %v", err)
	}
	// instruction + user + assistant + tool
	if len(msgs) != 4 {
		t.Fatalf("Expected 4 messages, got %d", len(msgs))
	}

	assistant := msgs[2]
	if len(assistant.ToolCalls) != 1 {
		t.Fatalf("Expected 1 tool call, got %d", len(assistant.ToolCalls))
	}
	if assistant.ToolCalls[0].ID != "call-1" {
		t.Errorf("Expected tool call id 'call-1', got %q", assistant.ToolCalls[0].ID)
	}
	if assistant.ToolCalls[0].Function.Name != "add" {
		t.Errorf("Expected function name 'add', got %q", assistant.ToolCalls[0].Function.Name)
	}

	tool := msgs[3]
	if tool.Role != openai.ChatMessageRoleTool {
		t.Errorf("Expected role tool, got %q", tool.Role)
	}
	if tool.ToolCallID != "call-1" {
		t.Errorf("Expected tool_call_id 'call-1', got %q", tool.ToolCallID)
	}
	if tool.Content != "3" {
		t.Errorf("Expected result content '3', got %q", tool.Content)
	}
	if tool.Name != "add" {
		t.Errorf("Expected name 'add', got %q", tool.Name)
	}
}

func TestBuildToolsMessagesRepairsUnansweredCall(t *testing.T) {
	call := &llm.FunctionCall{Name: "ls", Arguments: map[string]interface{}{}}
	req := toolsRequest(
		llm.NewTextMessage(llm.RoleUser, "list files"),
		llm.NewFunctionCallMessage(call, "call-1"),
		llm.NewTextMessage(llm.RoleUser, "nevermind"),
	)

	msgs, err := BuildToolsMessages(req)
	if err != nil {
		t.Fatalf("BuildToolsMessages failed: %v", err)
	}
	// instruction + user + assistant + synthetic tool + user
	if len(msgs) != 5 {
		t.Fatalf("Expected 5 messages, got %d", len(msgs))
	}
	if msgs[3].Role != openai.ChatMessageRoleTool {
		t.Errorf("Expected synthetic tool turn, got role %q", msgs[3].Role)
	}
	if msgs[3].ToolCallID != "call-1" {
		t.Errorf("Expected synthetic turn to answer call-1, got %q", msgs[3].ToolCallID)
	}
	if msgs[3].Content != "" {
		t.Errorf("Expected empty synthetic result, got %q", msgs[3].Content)
	}
}

func TestBuildToolsMessagesImageResultRetagsAsUser(t *testing.T) {
	img := llm.NewImage([]byte{0x89, 0x50}, "image/png")
	req := toolsRequest(
		llm.NewTextMessage(llm.RoleUser, "screenshot please"),
		llm.NewFunctionCallMessage(&llm.FunctionCall{Name: "capture"}, "call-1"),
		llm.NewFunctionResultImageMessage("capture", "call-1", "captured", img),
	)

	msgs, err := BuildToolsMessages(req)
	if err != nil {
		t.Fatalf("BuildToolsMessages failed: %v", err)
	}
	// instruction + user + assistant + tool answer + user image
	if len(msgs) != 5 {
		t.Fatalf("Expected 5 messages, got %d", len(msgs))
	}
	if msgs[3].Role != openai.ChatMessageRoleTool || msgs[3].Content != "captured" {
		t.Errorf("Expected tool answer first, got %+v", msgs[3])
	}
	userImg := msgs[4]
	if userImg.Role != openai.ChatMessageRoleUser {
		t.Errorf("Expected image on a user turn, got role %q", userImg.Role)
	}
	if len(userImg.MultiContent) != 1 || userImg.MultiContent[0].Type != openai.ChatMessagePartTypeImageURL {
		t.Fatalf("Expected one image_url part, got %+v", userImg.MultiContent)
	}
	if !strings.HasPrefix(userImg.MultiContent[0].ImageURL.URL, "data:image/png;base64,") {
		t.Errorf("Expected data URL, got %q", userImg.MultiContent[0].ImageURL.URL)
	}
}

func TestToLegacyMessagesFunctionRole(t *testing.T) {
	msg := llm.NewFunctionResultMessage("add", "call-1", "3")
	wire, err := toLegacyMessages(msg)
	if err != nil {
		t.Fatalf("toLegacyMessages failed: %v", err)
	}
	if len(wire) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(wire))
	}
	if wire[0].Role != openai.ChatMessageRoleFunction {
		t.Errorf("Expected role function, got %q", wire[0].Role)
	}
	if wire[0].Name != "add" {
		t.Errorf("Expected name 'add', got %q", wire[0].Name)
	}
	if wire[0].Content != "3" {
		t.Errorf("Expected content '3', got %q", wire[0].Content)
	}
}

func TestToLegacyMessagesImageResultBecomesUserTurn(t *testing.T) {
	img := llm.NewImage([]byte{0xff, 0xd8}, "image/jpeg")
	msg := llm.NewFunctionResultImageMessage("capture", "call-1", "done", img)

	wire, err := toLegacyMessages(msg)
	if err != nil {
		t.Fatalf("toLegacyMessages failed: %v", err)
	}
	if len(wire) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(wire))
	}
	if wire[0].Role != openai.ChatMessageRoleUser {
		t.Errorf("Expected re-tagged user role, got %q", wire[0].Role)
	}
	if len(wire[0].MultiContent) != 2 {
		t.Fatalf("Expected text and image parts, got %d", len(wire[0].MultiContent))
	}
}

func TestToLegacyMessagesAssistantCall(t *testing.T) {
	call := &llm.FunctionCall{Name: "add", Arguments: map[string]interface{}{"a": 1.0}}
	wire, err := toLegacyMessages(llm.NewFunctionCallMessage(call, ""))
	if err != nil {
		t.Fatalf("toLegacyMessages failed: %v", err)
	}
	if wire[0].FunctionCall == nil {
		t.Fatal("Expected function_call field set")
	}
	if wire[0].FunctionCall.Name != "add" {
		t.Errorf("Expected name 'add', got %q", wire[0].FunctionCall.Name)
	}
	if wire[0].FunctionCall.Arguments != `{"a":1}` {
		t.Errorf("Expected JSON-string arguments, got %q", wire[0].FunctionCall.Arguments)
	}
}

func TestParseArguments(t *testing.T) {
	args, err := parseArguments("call-1", `{"a": 1, "b": "two"}`)
	if err != nil {
		t.Fatalf("parseArguments failed: %v", err)
	}
	if args["b"] != "two" {
		t.Errorf("Expected arg b='two', got %v", args["b"])
	}

	if args, err := parseArguments("call-1", ""); err != nil || len(args) != 0 {
		t.Errorf("Expected empty args for empty payload, got %v, %v", args, err)
	}

	_, err = parseArguments("call-2", `{"a": 1,`)
	if err == nil {
		t.Fatal("Expected parsing error for truncated JSON")
	}
	parsed := llm.AsFunctionCallParsingError(err)
	if parsed == nil {
		t.Fatalf("Expected function call parsing error, got %v", err)
	}
	if parsed.FunctionCallID != "call-2" {
		t.Errorf("Expected offending id preserved, got %q", parsed.FunctionCallID)
	}
	if parsed.RawArguments != `{"a": 1,` {
		t.Errorf("Expected raw payload preserved, got %q", parsed.RawArguments)
	}
}

func TestToOpenAITools(t *testing.T) {
	specs := []llm.ToolSpec{{
		Name:        "add",
		Description: "Add two numbers",
		Schema: llm.ToolSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"a": map[string]interface{}{"type": "number"},
				"b": map[string]interface{}{"type": "number"},
			},
			Required: []string{"a", "b"},
		},
	}}

	tools := ToOpenAITools(specs)
	if len(tools) != 1 {
		t.Fatalf("Expected 1 tool, got %d", len(tools))
	}
	if tools[0].Type != openai.ToolTypeFunction {
		t.Errorf("Expected function tool type, got %v", tools[0].Type)
	}
	params, ok := tools[0].Function.Parameters.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected map parameters, got %T", tools[0].Function.Parameters)
	}
	if params["type"] != "object" {
		t.Errorf("Expected object schema, got %v", params["type"])
	}
	if _, ok := params["required"]; !ok {
		t.Error("Expected required list in schema")
	}
}
