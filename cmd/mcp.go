package cmd

import (
	"context"
	"fmt"
	"log/slog"

	mcpSdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/koopa0/kennis/internal/app"
	"github.com/koopa0/kennis/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start de MCP server op stdio",
	Long: `Mcp exposes the knowledge base to MCP clients over stdio, with tools
for searching notes, asking questions and saving notes.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		slog.Info("starting MCP server", "version", Version)

		mcpServer, err := mcp.NewServer(mcp.Config{
			Name:     "kennis",
			Version:  Version,
			Logger:   slog.Default(),
			Searcher: a.Searcher,
			Answerer: a.Generator,
			Notes:    a.Notes,
			Enricher: a.Enricher,
		})
		if err != nil {
			return fmt.Errorf("creating MCP server: %w", err)
		}

		slog.Info("MCP server ready", "name", "kennis", "version", Version, "transport", "stdio")

		if err := mcpServer.Run(ctx, &mcpSdk.StdioTransport{}); err != nil {
			return fmt.Errorf("MCP server error: %w", err)
		}

		slog.Info("MCP server shut down gracefully")
		return nil
	})
}
