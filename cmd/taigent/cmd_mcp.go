package main

import (
	"github.com/spf13/cobra"

	"taigent/internal/mcpserver"
)

// mcpCmd serves the Taiga operations over MCP stdio
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose the Taiga operations as MCP tools over stdio",
	Long: `Runs an MCP server on stdin/stdout. Every registered operation becomes an
MCP tool with the same JSON schema and result envelope. Logs go to stderr or
the configured log file, never stdout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx, cfg, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := mcpserver.New(a.registry)
		if err != nil {
			return err
		}
		return mcpserver.Serve(s)
	},
}
