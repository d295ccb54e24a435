// Package mcpserver exposes the operation registry as MCP tools, so the
// same Taiga operations can be driven by any MCP client.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"taigent/internal/logging"
	"taigent/internal/tools"
	"taigent/internal/types"
)

// Version is reported to MCP clients.
var Version = "dev"

// Dispatcher is the registry surface the server needs.
type Dispatcher interface {
	Definitions() []types.ToolDefinition
	Dispatch(ctx context.Context, name string, args map[string]any) tools.Result
}

// New builds an MCP server with one tool per registered operation.
func New(registry Dispatcher) (*server.MCPServer, error) {
	s := server.NewMCPServer(
		"taigent",
		Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	for _, def := range registry.Definitions() {
		tool, err := toolFor(def)
		if err != nil {
			return nil, err
		}
		s.AddTool(tool, handler(registry, def.Name))
	}
	logging.MCP("MCP server ready with %d tools", len(registry.Definitions()))
	return s, nil
}

// Serve runs the server over stdin/stdout until the client disconnects.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

const instructions = `Tools for managing Taiga projects, epics and user stories.
Every tool returns a JSON envelope with "status": "success" or "error".
Project-scoped tools need an explicit numeric project_id; use list_projects to find it.`

func toolFor(def types.ToolDefinition) (mcp.Tool, error) {
	schema, err := json.Marshal(def.InputSchema)
	if err != nil {
		return mcp.Tool{}, fmt.Errorf("tool %s: encode schema: %w", def.Name, err)
	}
	return mcp.NewToolWithRawSchema(def.Name, def.Description, schema), nil
}

// handler dispatches one MCP call. The envelope text is returned either way;
// error envelopes are flagged so clients can tell them apart.
func handler(registry Dispatcher, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		if args == nil {
			args = map[string]any{}
		}

		res := registry.Dispatch(ctx, name, args)
		if !res.IsSuccess() {
			logging.MCPDebug("Tool %s failed [%s]: %s", name, res.Code, res.Message)
			return mcp.NewToolResultError(res.String()), nil
		}
		return mcp.NewToolResultText(res.String()), nil
	}
}
