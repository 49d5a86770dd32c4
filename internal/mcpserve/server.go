// Package mcpserve exposes the built-in tools as an MCP server so other
// MCP clients can use them.
package mcpserve

import (
	"context"
	"encoding/json"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"pcli2rig/internal/config"
	"pcli2rig/internal/tools"
)

// NewServer registers every tool on a new MCP server.
func NewServer(builtins []tools.Tool, log zerolog.Logger) *server.MCPServer {
	s := server.NewMCPServer(
		config.AppName,
		config.Version,
		server.WithToolCapabilities(true),
	)
	for _, t := range builtins {
		s.AddTool(mcp.NewToolWithRawSchema(t.Name(), t.Description(), t.Parameters()), handler(t, log))
	}
	return s
}

func handler(t tools.Tool, log zerolog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := json.Marshal(request.GetArguments())
		if err != nil {
			return mcp.NewToolResultError("invalid arguments: " + err.Error()), nil
		}
		log.Info().Str("tool", t.Name()).Msg("mcp tool call")
		out, err := t.Execute(ctx, args)
		if err != nil {
			log.Warn().Err(err).Str("tool", t.Name()).Msg("mcp tool failed")
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(out), nil
	}
}

// ServeStdio serves s over the given streams until ctx is done or the input
// closes.
func ServeStdio(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s).Listen(ctx, in, out)
}
