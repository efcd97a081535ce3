package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/parleyhq/parley/llm"
	"github.com/parleyhq/parley/tool"
)

// Server is the slice of the MCP client surface the bridge consumes.
// *client.Client satisfies it.
type Server interface {
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	ListResources(ctx context.Context, req mcp.ListResourcesRequest) (*mcp.ListResourcesResult, error)
	ListResourceTemplates(ctx context.Context, req mcp.ListResourceTemplatesRequest) (*mcp.ListResourceTemplatesResult, error)
	ReadResource(ctx context.Context, req mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error)
}

// SafeName maps an MCP name onto the character set vendors accept in
// function names. Dots are the usual offender ("gmail.messages.list").
func SafeName(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}

// RegisterTools lists the server's tools and registers each one as a flat
// function on reg. Schemas pass through untouched; replies come back as the
// joined text of their text contents. Returns the registered names.
func RegisterTools(ctx context.Context, srv Server, reg *tool.Registry) ([]string, error) {
	result, err := srv.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	names := make([]string, 0, len(result.Tools))
	for _, t := range result.Tools {
		spec := llm.ToolSpec{
			Name:        SafeName(t.Name),
			Description: t.Description,
			Schema:      inputSchema(t.InputSchema),
		}
		if err := reg.Register(spec, callToolFunc(srv, t.Name)); err != nil {
			return nil, err
		}
		names = append(names, spec.Name)
	}
	return names, nil
}

// callToolFunc binds one remote tool. The closure keeps the server-side name;
// the registry key may differ when the name needed sanitizing.
func callToolFunc(srv Server, name string) tool.Invoker {
	return func(ctx context.Context, args map[string]interface{}, _ *llm.Message) (any, error) {
		req := mcp.CallToolRequest{
			Params: mcp.CallToolParams{Name: name, Arguments: args},
		}
		result, err := srv.CallTool(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("failed to invoke tool %s: %w", name, err)
		}

		text := contentText(result.Content)
		if result.IsError {
			return nil, fmt.Errorf("tool %s failed: %s", name, text)
		}
		return text, nil
	}
}

func inputSchema(in mcp.ToolInputSchema) llm.ToolSchema {
	out := llm.ToolSchema{
		Type:       in.Type,
		Properties: in.Properties,
		Required:   in.Required,
	}
	if len(in.Defs) > 0 {
		out.ExtraFields = map[string]interface{}{"$defs": in.Defs}
	}
	return out
}

// contentText joins the text carried by a tool reply. Non-text contents are
// dropped.
func contentText(contents []mcp.Content) string {
	texts := make([]string, 0, len(contents))
	for _, content := range contents {
		if tc, ok := mcp.AsTextContent(content); ok {
			texts = append(texts, tc.Text)
		} else if s := mcp.GetTextFromContent(content); s != "" {
			texts = append(texts, s)
		}
	}
	return strings.Join(texts, "\n")
}

// RegisterResources lists the server's resources and resource templates and
// registers each as a callable read function on reg. Template placeholders
// become required string parameters; names derive from the URI. Returns the
// registered names.
func RegisterResources(ctx context.Context, srv Server, reg *tool.Registry) ([]string, error) {
	resources, err := srv.ListResources(ctx, mcp.ListResourcesRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	templates, err := srv.ListResourceTemplates(ctx, mcp.ListResourceTemplatesRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list resource templates: %w", err)
	}

	entries := make([]resourceEntry, 0, len(resources.Resources)+len(templates.ResourceTemplates))
	for _, r := range resources.Resources {
		entries = append(entries, resourceEntry{uri: r.URI, description: r.Description})
	}
	for _, t := range templates.ResourceTemplates {
		if t.URITemplate == nil {
			continue
		}
		entries = append(entries, resourceEntry{uri: t.URITemplate.Raw(), description: t.Description})
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		spec := resourceSpec(entry)
		if err := reg.Register(spec, readResourceFunc(srv, entry.uri)); err != nil {
			return nil, err
		}
		names = append(names, spec.Name)
	}
	return names, nil
}

type resourceEntry struct {
	uri         string
	description string
}

func resourceSpec(entry resourceEntry) llm.ToolSpec {
	params := uriParameters(entry.uri)

	properties := make(map[string]interface{}, len(params))
	for _, p := range params {
		properties[p] = map[string]interface{}{"title": p, "type": "string"}
	}

	description := "uri:" + entry.uri
	if entry.description != "" {
		description += "\n" + entry.description
	}

	return llm.ToolSpec{
		Name:        resourceName(entry.uri),
		Description: description,
		Schema: llm.ToolSchema{
			Type:       "object",
			Properties: properties,
			Required:   params,
		},
	}
}

// uriParameters extracts placeholder names from a URI template:
// "users://{user_id}/profile/{profile_id}" yields user_id and profile_id.
func uriParameters(uri string) []string {
	var params []string
	for _, part := range strings.Split(uri, "/") {
		if strings.Contains(part, "{") && strings.Contains(part, "}") {
			params = append(params, strings.Trim(part, "{}"))
		}
	}
	return params
}

// resourceName flattens a URI into a function name the vendors accept:
// "users://{user_id}/profile" becomes "users__user_id_profile".
func resourceName(uri string) string {
	name := strings.ReplaceAll(uri, "://", "__")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "{", "")
	name = strings.ReplaceAll(name, "}", "")
	return SafeName(name)
}

func readResourceFunc(srv Server, uriTemplate string) tool.Invoker {
	return func(ctx context.Context, args map[string]interface{}, _ *llm.Message) (any, error) {
		uri := uriTemplate
		for key, value := range args {
			uri = strings.ReplaceAll(uri, "{"+key+"}", fmt.Sprint(value))
		}

		result, err := srv.ReadResource(ctx, mcp.ReadResourceRequest{
			Params: mcp.ReadResourceParams{URI: uri},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to read resource %s: %w", uri, err)
		}
		return resourceText(result.Contents), nil
	}
}

// resourceText joins the text carried by a resource reply. Blob contents are
// dropped.
func resourceText(contents []mcp.ResourceContents) string {
	texts := make([]string, 0, len(contents))
	for _, content := range contents {
		if tc, ok := mcp.AsTextResourceContents(content); ok {
			texts = append(texts, tc.Text)
		}
	}
	return strings.Join(texts, "\n")
}
