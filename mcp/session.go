// Package mcp attaches Model Context Protocol servers to a conversation.
// Remote tools register as callable functions with their schemas passed
// through; resources and resource templates register as parameterized
// read functions.
package mcp

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/parleyhq/parley/tool"
)

// Session is one connection to an MCP server, over stdio or streamable HTTP.
type Session struct {
	client *client.Client
	name   string
	logger zerolog.Logger
}

// NewStdioSession spawns command and speaks MCP over its stdin/stdout.
// command may carry inline arguments ("npx -y @modelcontextprotocol/server-git");
// args are appended after those.
func NewStdioSession(logger zerolog.Logger, command string, env, args []string) (*Session, error) {
	if command == "" {
		return nil, fmt.Errorf("command is required for a stdio MCP session")
	}

	parts := strings.Fields(command)
	cmd := parts[0]
	cmdArgs := append(parts[1:], args...)

	mcpClient, err := client.NewStdioMCPClient(cmd, env, cmdArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to create stdio MCP client: %w", err)
	}

	logger = logger.With().Str("component", "mcp").Str("server", command).Logger()
	logger.Info().Strs("args", cmdArgs).Msg("Created stdio MCP session")
	return &Session{client: mcpClient, name: command, logger: logger}, nil
}

// NewHTTPSession connects to a streamable-HTTP MCP server at baseURL.
func NewHTTPSession(logger zerolog.Logger, baseURL string) (*Session, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL is required for an HTTP MCP session")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid baseURL: %w", err)
	}

	mcpClient, err := client.NewStreamableHttpClient(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP MCP client: %w", err)
	}

	logger = logger.With().Str("component", "mcp").Str("server", baseURL).Logger()
	logger.Info().Msg("Created HTTP MCP session")
	return &Session{client: mcpClient, name: baseURL, logger: logger}, nil
}

// Start brings the transport up and performs the MCP handshake.
func (s *Session) Start(ctx context.Context) error {
	if err := s.client.Start(ctx); err != nil {
		return fmt.Errorf("failed to start MCP transport: %w", err)
	}

	initReq := mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			Capabilities:    mcp.ClientCapabilities{},
			ClientInfo: mcp.Implementation{
				Name:    "parley",
				Version: "0.1.0",
			},
		},
	}
	result, err := s.client.Initialize(ctx, initReq)
	if err != nil {
		return fmt.Errorf("failed to initialize MCP session: %w", err)
	}

	s.logger.Info().
		Str("server_name", result.ServerInfo.Name).
		Str("protocol_version", result.ProtocolVersion).
		Msg("MCP session initialized")
	return nil
}

// Attach registers everything the server offers on reg: tools first, then
// resources and resource templates.
func (s *Session) Attach(ctx context.Context, reg *tool.Registry) error {
	tools, err := RegisterTools(ctx, s.client, reg)
	if err != nil {
		return err
	}
	resources, err := RegisterResources(ctx, s.client, reg)
	if err != nil {
		return err
	}

	s.logger.Info().
		Int("tool_count", len(tools)).
		Int("resource_count", len(resources)).
		Msg("Attached MCP server")
	return nil
}

// Close tears the transport down.
func (s *Session) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
