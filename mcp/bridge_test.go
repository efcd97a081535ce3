package mcp

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/parleyhq/parley/tool"
)

type fakeServer struct {
	tools     []mcp.Tool
	resources []mcp.Resource
	templates []mcp.ResourceTemplate

	callRequests []mcp.CallToolRequest
	callResult   *mcp.CallToolResult
	callErr      error

	readURIs   []string
	readResult *mcp.ReadResourceResult
}

func (f *fakeServer) ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	return &mcp.ListToolsResult{Tools: f.tools}, nil
}

func (f *fakeServer) CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f.callRequests = append(f.callRequests, req)
	return f.callResult, f.callErr
}

func (f *fakeServer) ListResources(ctx context.Context, req mcp.ListResourcesRequest) (*mcp.ListResourcesResult, error) {
	return &mcp.ListResourcesResult{Resources: f.resources}, nil
}

func (f *fakeServer) ListResourceTemplates(ctx context.Context, req mcp.ListResourceTemplatesRequest) (*mcp.ListResourceTemplatesResult, error) {
	return &mcp.ListResourceTemplatesResult{ResourceTemplates: f.templates}, nil
}

func (f *fakeServer) ReadResource(ctx context.Context, req mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	f.readURIs = append(f.readURIs, req.Params.URI)
	return f.readResult, nil
}

func TestRegisterToolsBindsSpecs(t *testing.T) {
	srv := &fakeServer{
		tools: []mcp.Tool{
			{
				Name:        "gmail.messages.list",
				Description: "List inbox messages",
				InputSchema: mcp.ToolInputSchema{
					Type: "object",
					Properties: map[string]interface{}{
						"label": map[string]interface{}{"type": "string"},
					},
					Required: []string{"label"},
				},
			},
			{
				Name:        "get_weather",
				Description: "Current weather",
				InputSchema: mcp.ToolInputSchema{Type: "object"},
			},
		},
	}
	reg := tool.NewRegistry(zerolog.Nop())

	names, err := RegisterTools(context.Background(), srv, reg)
	if err != nil {
		t.Fatalf("RegisterTools() error = %v", err)
	}
	want := []string{"gmail_messages_list", "get_weather"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("registered names = %v, want %v", names, want)
	}

	specs := reg.Specs()
	if len(specs) != 2 {
		t.Fatalf("got %d specs, want 2", len(specs))
	}
	if specs[0].Description != "List inbox messages" {
		t.Errorf("description = %q, want %q", specs[0].Description, "List inbox messages")
	}
	if specs[0].Schema.Type != "object" {
		t.Errorf("schema type = %q, want object", specs[0].Schema.Type)
	}
	if !reflect.DeepEqual(specs[0].Schema.Required, []string{"label"}) {
		t.Errorf("schema required = %v, want [label]", specs[0].Schema.Required)
	}
	if _, ok := specs[0].Schema.Properties["label"]; !ok {
		t.Errorf("schema properties missing label: %v", specs[0].Schema.Properties)
	}
}

func TestToolInvokerCallsOriginalName(t *testing.T) {
	srv := &fakeServer{
		tools: []mcp.Tool{
			{Name: "weather.current", InputSchema: mcp.ToolInputSchema{Type: "object"}},
		},
		callResult: &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.TextContent{Type: "text", Text: "sunny"},
				mcp.TextContent{Type: "text", Text: "12C"},
			},
		},
	}
	reg := tool.NewRegistry(zerolog.Nop())
	if _, err := RegisterTools(context.Background(), srv, reg); err != nil {
		t.Fatalf("RegisterTools() error = %v", err)
	}

	value, err := reg.Handle(context.Background(), "weather_current", map[string]interface{}{"city": "Paris"}, nil)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if value != "sunny\n12C" {
		t.Errorf("result = %q, want %q", value, "sunny\n12C")
	}

	if len(srv.callRequests) != 1 {
		t.Fatalf("got %d call requests, want 1", len(srv.callRequests))
	}
	req := srv.callRequests[0]
	if req.Params.Name != "weather.current" {
		t.Errorf("wire name = %q, want the original %q", req.Params.Name, "weather.current")
	}
	if got := req.GetArguments()["city"]; got != "Paris" {
		t.Errorf("wire arguments carried city = %v, want Paris", got)
	}
}

func TestToolInvokerErrorReply(t *testing.T) {
	srv := &fakeServer{
		tools: []mcp.Tool{
			{Name: "flaky", InputSchema: mcp.ToolInputSchema{Type: "object"}},
		},
		callResult: &mcp.CallToolResult{
			Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "database unreachable"}},
			IsError: true,
		},
	}
	reg := tool.NewRegistry(zerolog.Nop())
	if _, err := RegisterTools(context.Background(), srv, reg); err != nil {
		t.Fatalf("RegisterTools() error = %v", err)
	}

	_, err := reg.Handle(context.Background(), "flaky", nil, nil)
	if err == nil {
		t.Fatal("Handle() should surface an error reply as an error")
	}
	if !strings.Contains(err.Error(), "database unreachable") {
		t.Errorf("error = %q, want the reply text in it", err)
	}
}

func TestToolInvokerTransportError(t *testing.T) {
	srv := &fakeServer{
		tools: []mcp.Tool{
			{Name: "down", InputSchema: mcp.ToolInputSchema{Type: "object"}},
		},
		callErr: errors.New("connection refused"),
	}
	reg := tool.NewRegistry(zerolog.Nop())
	if _, err := RegisterTools(context.Background(), srv, reg); err != nil {
		t.Fatalf("RegisterTools() error = %v", err)
	}

	_, err := reg.Handle(context.Background(), "down", nil, nil)
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("Handle() error = %v, want the transport error", err)
	}
}

func TestRegisterResourceTemplates(t *testing.T) {
	srv := &fakeServer{
		templates: []mcp.ResourceTemplate{
			mcp.NewResourceTemplate(
				"users://{user_id}/profile/{profile_id}",
				"user-profile",
				mcp.WithTemplateDescription("User profile data"),
			),
		},
	}
	reg := tool.NewRegistry(zerolog.Nop())

	names, err := RegisterResources(context.Background(), srv, reg)
	if err != nil {
		t.Fatalf("RegisterResources() error = %v", err)
	}
	if !reflect.DeepEqual(names, []string{"users__user_id_profile_profile_id"}) {
		t.Fatalf("registered names = %v", names)
	}

	specs := reg.Specs()
	if len(specs) != 1 {
		t.Fatalf("got %d specs, want 1", len(specs))
	}
	spec := specs[0]
	if !strings.HasPrefix(spec.Description, "uri:users://{user_id}/profile/{profile_id}") {
		t.Errorf("description = %q, want a uri: prefix", spec.Description)
	}
	if !strings.Contains(spec.Description, "User profile data") {
		t.Errorf("description = %q, want the server description appended", spec.Description)
	}
	if !reflect.DeepEqual(spec.Schema.Required, []string{"user_id", "profile_id"}) {
		t.Errorf("required = %v, want [user_id profile_id]", spec.Schema.Required)
	}
	prop, ok := spec.Schema.Properties["user_id"].(map[string]interface{})
	if !ok {
		t.Fatalf("user_id property missing: %v", spec.Schema.Properties)
	}
	if prop["type"] != "string" {
		t.Errorf("user_id type = %v, want string", prop["type"])
	}
}

func TestResourceInvokerExpandsURI(t *testing.T) {
	srv := &fakeServer{
		templates: []mcp.ResourceTemplate{
			mcp.NewResourceTemplate("users://{user_id}/profile", "user-profile"),
		},
		readResult: &mcp.ReadResourceResult{
			Contents: []mcp.ResourceContents{
				mcp.TextResourceContents{URI: "users://42/profile", Text: "Ada Lovelace"},
			},
		},
	}
	reg := tool.NewRegistry(zerolog.Nop())
	if _, err := RegisterResources(context.Background(), srv, reg); err != nil {
		t.Fatalf("RegisterResources() error = %v", err)
	}

	value, err := reg.Handle(context.Background(), "users__user_id_profile", map[string]interface{}{"user_id": "42"}, nil)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if value != "Ada Lovelace" {
		t.Errorf("result = %q, want %q", value, "Ada Lovelace")
	}
	if len(srv.readURIs) != 1 || srv.readURIs[0] != "users://42/profile" {
		t.Errorf("read URIs = %v, want [users://42/profile]", srv.readURIs)
	}
}

func TestRegisterPlainResource(t *testing.T) {
	srv := &fakeServer{
		resources: []mcp.Resource{
			{URI: "config://app", Name: "app-config"},
		},
		readResult: &mcp.ReadResourceResult{
			Contents: []mcp.ResourceContents{
				mcp.TextResourceContents{URI: "config://app", Text: "debug=false"},
			},
		},
	}
	reg := tool.NewRegistry(zerolog.Nop())

	names, err := RegisterResources(context.Background(), srv, reg)
	if err != nil {
		t.Fatalf("RegisterResources() error = %v", err)
	}
	if !reflect.DeepEqual(names, []string{"config__app"}) {
		t.Fatalf("registered names = %v", names)
	}
	if got := len(reg.Specs()[0].Schema.Required); got != 0 {
		t.Errorf("plain resource has %d required params, want 0", got)
	}

	value, err := reg.Handle(context.Background(), "config__app", nil, nil)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if value != "debug=false" {
		t.Errorf("result = %q, want %q", value, "debug=false")
	}
}

func TestSafeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"gmail.messages.list", "gmail_messages_list"},
		{"plain_name", "plain_name"},
		{"a.b", "a_b"},
	}
	for _, tt := range tests {
		if got := SafeName(tt.in); got != tt.want {
			t.Errorf("SafeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
