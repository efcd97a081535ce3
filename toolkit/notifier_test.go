package toolkit

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/parleyhq/parley/tool"
)

var (
	_ tool.Tool          = (*Notifier)(nil)
	_ tool.StateProvider = (*Notifier)(nil)
)

func TestNotifierMethods(t *testing.T) {
	n := NewNotifier(zerolog.Nop())

	if n.ToolName() != "Notifier" {
		t.Errorf("ToolName() = %q, want %q", n.ToolName(), "Notifier")
	}

	methods := n.Methods()
	if len(methods) != 1 {
		t.Fatalf("expected 1 method, got %d", len(methods))
	}
	m := methods[0]
	if m.Name != "notify" {
		t.Errorf("method name = %q, want %q", m.Name, "notify")
	}
	if len(m.Schema.Required) != 1 || m.Schema.Required[0] != "message" {
		t.Errorf("required = %v, want [message]", m.Schema.Required)
	}
	if _, ok := m.Schema.Properties["message"]; !ok {
		t.Error("schema is missing the message property")
	}
}

func TestNotifyPostsNotification(t *testing.T) {
	n := NewNotifier(zerolog.Nop())
	var gotTitle, gotMessage string
	n.post = func(title, message string) error {
		gotTitle = title
		gotMessage = message
		return nil
	}

	result, err := n.notify(context.Background(), map[string]interface{}{
		"message": "build finished",
		"title":   "CI",
	}, nil)
	if err != nil {
		t.Fatalf("notify returned error: %v", err)
	}

	if gotTitle != "CI" || gotMessage != "build finished" {
		t.Errorf("posted (%q, %q), want (%q, %q)", gotTitle, gotMessage, "CI", "build finished")
	}
	res, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("result is %T, want map", result)
	}
	if res["sent"] != true {
		t.Errorf("sent = %v, want true", res["sent"])
	}
}

func TestNotifyDefaultTitle(t *testing.T) {
	n := NewNotifier(zerolog.Nop())
	var gotTitle string
	n.post = func(title, message string) error {
		gotTitle = title
		return nil
	}

	if _, err := n.notify(context.Background(), map[string]interface{}{"message": "hi"}, nil); err != nil {
		t.Fatalf("notify returned error: %v", err)
	}
	if gotTitle != "Parley" {
		t.Errorf("title = %q, want %q", gotTitle, "Parley")
	}
}

func TestNotifyEmptyMessage(t *testing.T) {
	n := NewNotifier(zerolog.Nop())
	n.post = func(title, message string) error {
		t.Error("post should not be called for an empty message")
		return nil
	}

	if _, err := n.notify(context.Background(), map[string]interface{}{}, nil); err == nil {
		t.Fatal("expected an error for an empty message")
	}
}

func TestNotifyFailureIsAResultNotAnError(t *testing.T) {
	n := NewNotifier(zerolog.Nop())
	n.post = func(title, message string) error {
		return fmt.Errorf("notification center unavailable")
	}

	result, err := n.notify(context.Background(), map[string]interface{}{"message": "hi"}, nil)
	if err != nil {
		t.Fatalf("notify returned error: %v", err)
	}
	res := result.(map[string]any)
	if res["sent"] != false {
		t.Errorf("sent = %v, want false", res["sent"])
	}
	if !strings.Contains(res["error"].(string), "notification center unavailable") {
		t.Errorf("error = %v, want the post failure", res["error"])
	}
}

func TestNotifierState(t *testing.T) {
	n := NewNotifier(zerolog.Nop())
	n.post = func(title, message string) error { return nil }

	if got := n.LLMState(); got != "No notifications sent this session." {
		t.Errorf("initial state = %q", got)
	}

	for _, msg := range []string{"first", "second"} {
		if _, err := n.notify(context.Background(), map[string]interface{}{"message": msg}, nil); err != nil {
			t.Fatalf("notify returned error: %v", err)
		}
	}

	state := n.LLMState()
	if !strings.Contains(state, "2") || !strings.Contains(state, `"second"`) {
		t.Errorf("state = %q, want count 2 and the last message", state)
	}
}

func TestNotifierRegistersNamespaced(t *testing.T) {
	reg := tool.NewRegistry(zerolog.Nop())
	reg.RegisterTool(NewNotifier(zerolog.Nop()), "desk")

	specs := reg.Specs()
	if len(specs) != 1 {
		t.Fatalf("expected 1 spec, got %d", len(specs))
	}
	if specs[0].Name != "Notifier-desk__notify" {
		t.Errorf("spec name = %q, want %q", specs[0].Name, "Notifier-desk__notify")
	}
}
