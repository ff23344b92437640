package main

import (
	"fmt"

	"github.com/nvandessel/stockflow/internal/mcp"
	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve structure and trajectory queries over MCP (stdio)",
		Long: `Run a Model Context Protocol server on stdin/stdout.

The server exposes the structure queries, stored runs and trajectories as
tools. When the model is a file, edits to it are picked up without a
restart. Logs go to stderr; tool calls are audited to .stockflow/audit.jsonl.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			server, err := mcp.NewServer(&mcp.Config{
				Name:     "stockflow",
				Version:  version,
				Root:     ws.root,
				Settings: ws.settings,
				Logger:   ws.logger,
			})
			if err != nil {
				return fmt.Errorf("failed to start MCP server: %w", err)
			}

			ws.logger.Info("mcp server starting", "root", ws.root, "model", ws.settings.ModelPath(ws.root))
			return server.Run(cmd.Context())
		},
	}
}
