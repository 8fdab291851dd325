// Package mcpserver exposes registry entries as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/toolbridge/toolbridge/internal/invoke"
	"github.com/toolbridge/toolbridge/internal/registry"
)

const (
	// ServerName identifies this bridge to MCP clients.
	ServerName = "toolbridge"
	// ServerVersion is reported during the MCP handshake.
	ServerVersion = "0.1.0"
)

// New builds an MCP server with one tool per registry entry. Tool results are
// always text, either the upstream response body or an error text, so a
// failed call never surfaces as a protocol-level error.
func New(entries []*registry.Entry, dispatcher *invoke.Dispatcher, log *zap.Logger) *server.MCPServer {
	if log == nil {
		log = zap.NewNop()
	}
	s := server.NewMCPServer(ServerName, ServerVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	for _, entry := range entries {
		entry := entry
		tool := mcp.NewToolWithRawSchema(entry.ID, entry.Description, json.RawMessage(entry.InputSchema))
		s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			raw, err := json.Marshal(req.GetArguments())
			if err != nil {
				raw = []byte("{}")
			}
			return mcp.NewToolResultText(dispatcher.Call(ctx, entry, string(raw))), nil
		})
	}
	log.Info("MCP server ready", zap.Int("tools", len(entries)))
	return s
}

// ServeStdio blocks serving the MCP protocol on stdin/stdout until the client
// disconnects or ctx-free shutdown is triggered by EOF.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
