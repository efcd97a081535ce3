package chat

import (
	"context"
	"strings"
	"testing"

	"github.com/parleyhq/parley/llm"
	"github.com/parleyhq/parley/tool"
)

// memoTool is a minimal stateful tool used across the package tests.
type memoTool struct {
	note string
}

func (m *memoTool) ToolName() string { return "Memo" }

func (m *memoTool) Methods() []tool.Method {
	return []tool.Method{{
		Name:        "write",
		Description: "Overwrite the memo",
		Schema: llm.ToolSchema{
			Type:       "object",
			Properties: map[string]interface{}{"text": map[string]interface{}{"type": "string"}},
			Required:   []string{"text"},
		},
		Invoke: func(ctx context.Context, args map[string]interface{}, response *llm.Message) (any, error) {
			m.note, _ = args["text"].(string)
			return "saved", nil
		},
	}}
}

func (m *memoTool) LLMState() string { return "note=" + m.note }

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func newTestChat(opts Options) *Chat {
	return New(&scriptedClient{}, opts)
}

func TestResultMessageScalarValues(t *testing.T) {
	c := newTestChat(Options{})
	cases := []struct {
		name  string
		value any
		want  string
	}{
		{"nil", nil, ""},
		{"int", 42, "42"},
		{"bool", true, "true"},
		{"float", 3.5, "3.5"},
		{"whole float", float64(3), "3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := c.resultMessage("fn", "id1", tc.value)
			if msg.Role != llm.RoleFunction || msg.Name != "fn" || msg.FunctionCallID() != "id1" {
				t.Errorf("message envelope = %s %q %q", msg.Role, msg.Name, msg.FunctionCallID())
			}
			if msg.Text() != tc.want {
				t.Errorf("text = %q, want %q", msg.Text(), tc.want)
			}
		})
	}
}

func TestResultMessageCapsLongStrings(t *testing.T) {
	c := newTestChat(Options{OutputLimit: 10})
	msg := c.resultMessage("fn", "id1", strings.Repeat("x", 50))
	want := strings.Repeat("x", 10) + "\n... (50 characters)"
	if msg.Text() != want {
		t.Errorf("text = %q, want %q", msg.Text(), want)
	}
}

func TestResultMessageShortStringUncapped(t *testing.T) {
	c := newTestChat(Options{OutputLimit: 10})
	msg := c.resultMessage("fn", "id1", "short")
	if msg.Text() != "short" {
		t.Errorf("text = %q, want %q", msg.Text(), "short")
	}
}

func TestResultMessageStringSlices(t *testing.T) {
	c := newTestChat(Options{})
	if got := c.resultMessage("fn", "id1", []string{"alpha", "beta"}).Text(); got != "alpha\nbeta" {
		t.Errorf("joined slice = %q", got)
	}
	if got := c.resultMessage("fn", "id1", []string{}).Text(); got != "[]" {
		t.Errorf("empty []string = %q, want []", got)
	}
	if got := c.resultMessage("fn", "id1", []any{}).Text(); got != "[]" {
		t.Errorf("empty []any = %q, want []", got)
	}
}

func TestResultMessageMixedSliceRegistersTools(t *testing.T) {
	c := newTestChat(Options{})
	msg := c.resultMessage("fn", "id1", []any{"ready", 7, &memoTool{}})

	lines := strings.Split(msg.Text(), "\n")
	if len(lines) != 3 || lines[0] != "ready" || lines[1] != "7" {
		t.Fatalf("lines = %v", lines)
	}
	if !strings.HasPrefix(lines[2], "Added tool: ") {
		t.Fatalf("tool item line = %q", lines[2])
	}

	id := strings.TrimPrefix(lines[2], "Added tool: ")
	if _, ok := c.Registry().Tool(id); !ok {
		t.Errorf("tool id %q not registered", id)
	}
	var found bool
	for _, s := range c.Registry().Specs() {
		if s.Name == "Memo-"+id+"__write" {
			found = true
		}
	}
	if !found {
		t.Errorf("namespaced method for %q missing from specs", id)
	}
}

func TestResultMessageTableCSV(t *testing.T) {
	c := newTestChat(Options{})
	rows := []map[string]any{
		{"name": "ada", "age": 36},
		{"name": "grace", "age": 85},
	}
	msg := c.resultMessage("fn", "id1", rows)
	want := "```csv\nage,name\n36,ada\n85,grace\n```"
	if msg.Text() != want {
		t.Errorf("table text = %q, want %q", msg.Text(), want)
	}
}

func TestResultMessageTableDropsRowsPastLimit(t *testing.T) {
	c := newTestChat(Options{OutputLimit: 25})
	rows := []map[string]any{
		{"i": "aaaaaaaaaa"},
		{"i": "bbbbbbbbbb"},
		{"i": "cccccccccc"},
		{"i": "dddddddddd"},
	}
	text := c.resultMessage("fn", "id1", rows).Text()
	if !strings.Contains(text, "aaaaaaaaaa") || !strings.Contains(text, "bbbbbbbbbb") {
		t.Errorf("kept rows missing: %q", text)
	}
	if strings.Contains(text, "cccccccccc") {
		t.Errorf("dropped row still present: %q", text)
	}
	if !strings.HasSuffix(text, "... 2 of 4 rows displayed.") {
		t.Errorf("rows-displayed marker missing: %q", text)
	}
}

func TestResultMessageTableTruncatesSingleWideRow(t *testing.T) {
	c := newTestChat(Options{OutputLimit: 6})
	rows := []map[string]any{{"ab": "xxxxxxxxxx"}}
	text := c.resultMessage("fn", "id1", rows).Text()
	if !strings.Contains(text, "xxxxxx") || strings.Contains(text, "xxxxxxx") {
		t.Errorf("field not truncated to budget: %q", text)
	}
	if strings.Contains(text, "rows displayed") {
		t.Errorf("single kept row should not carry a rows marker: %q", text)
	}
}

func TestResultMessageTableTooManyFields(t *testing.T) {
	c := newTestChat(Options{OutputLimit: 3})
	rows := []map[string]any{
		{"a": "xxxx", "b": "xxxx", "c": "xxxx", "d": "xxxx"},
	}
	text := c.resultMessage("fn", "id1", rows).Text()
	if text != "Error: too many fields to display data within the character limit." {
		t.Errorf("text = %q", text)
	}
}

func TestResultMessageMapAsJSON(t *testing.T) {
	c := newTestChat(Options{})
	msg := c.resultMessage("fn", "id1", map[string]any{"status": "ok", "count": 2})
	if msg.Text() != `{"count":2,"status":"ok"}` {
		t.Errorf("json text = %q", msg.Text())
	}
}

func TestResultMessageInvalidBytes(t *testing.T) {
	c := newTestChat(Options{})
	msg := c.resultMessage("fn", "id1", []byte("plain text, not pixels"))
	if !strings.Contains(msg.Text(), "not a valid image") {
		t.Errorf("text = %q, want the invalid-image error", msg.Text())
	}
	if !strings.Contains(msg.Text(), "llm.Error") {
		t.Errorf("text = %q, want the error type named", msg.Text())
	}
	if msg.ImageContent() != nil {
		t.Error("invalid bytes must not produce an image part")
	}
}

func TestResultMessageImageBytes(t *testing.T) {
	c := newTestChat(Options{})
	msg := c.resultMessage("fn", "id1", pngBytes)
	img := msg.ImageContent()
	if img == nil {
		t.Fatal("image part missing")
	}
	if img.MIMEType != "image/png" {
		t.Errorf("mime = %q, want image/png", img.MIMEType)
	}
	if msg.Role != llm.RoleFunction || msg.FunctionCallID() != "id1" {
		t.Errorf("message envelope = %s %q", msg.Role, msg.FunctionCallID())
	}
}

func TestResultMessageImageValue(t *testing.T) {
	c := newTestChat(Options{})
	img := llm.NewImage(pngBytes, "image/png")
	msg := c.resultMessage("fn", "id1", img)
	if msg.ImageContent() == nil {
		t.Error("image part missing for *llm.Image value")
	}
	msg = c.resultMessage("fn", "id1", *img)
	if msg.ImageContent() == nil {
		t.Error("image part missing for llm.Image value")
	}
}

func TestResultMessageToolValue(t *testing.T) {
	c := newTestChat(Options{})
	msg := c.resultMessage("fn", "id1", &memoTool{note: "hi"})
	if !strings.HasPrefix(msg.Text(), "Added tool: ") {
		t.Fatalf("text = %q", msg.Text())
	}
	id := strings.TrimPrefix(msg.Text(), "Added tool: ")
	if !strings.Contains(c.Registry().States(), "### Memo-"+id) {
		t.Errorf("registered tool missing from states block")
	}
}

func TestResultMessageMessageBypass(t *testing.T) {
	c := newTestChat(Options{})
	original := llm.NewTextMessage(llm.RoleAssistant, "verbatim")

	msg := c.resultMessage("fn", "id1", original)
	if msg.Role != llm.RoleAssistant || msg.Text() != "verbatim" {
		t.Errorf("bypass altered the message: %s %q", msg.Role, msg.Text())
	}
	msg = c.resultMessage("fn", "id1", &original)
	if msg.Role != llm.RoleAssistant || msg.Text() != "verbatim" {
		t.Errorf("pointer bypass altered the message: %s %q", msg.Role, msg.Text())
	}
}

func TestResultMessageExplicitResults(t *testing.T) {
	c := newTestChat(Options{})

	if got := c.resultMessage("fn", "id1", TextResult("typed")).Text(); got != "typed" {
		t.Errorf("TextResult text = %q", got)
	}
	if got := c.resultMessage("fn", "id1", JSONResult([]int{1, 2})).Text(); got != "[1,2]" {
		t.Errorf("JSONResult text = %q", got)
	}
	msg := c.resultMessage("fn", "id1", ImageResult(nil))
	if msg.Text() != "" || msg.ImageContent() != nil {
		t.Errorf("nil ImageResult = %q with image %v", msg.Text(), msg.ImageContent())
	}
	if got := c.resultMessage("fn", "id1", NestedToolResult(&memoTool{})).Text(); !strings.HasPrefix(got, "Added tool: ") {
		t.Errorf("NestedToolResult text = %q", got)
	}
}
