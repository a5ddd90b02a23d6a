// Package cmd implements the kennis command line interface.
//
// Commands:
//   - ask: answer a question from the knowledge base with cited sources
//   - save: save a note from a file, stdin or a web page
//   - notes: list and inspect notes
//   - relations: manage and suggest typed relations between notes
//   - serve: run the HTTP API server
//   - mcp: run the MCP server on stdio
//   - version: show version and configuration
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/koopa0/kennis/internal/app"
	"github.com/koopa0/kennis/internal/config"
	"github.com/koopa0/kennis/internal/log"
)

// Persistent flag values, bound in init.
var (
	cfgFile  string
	jsonLogs bool
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "kennis",
	Short: "Kennis - kennisbank-assistent voor zorgteams",
	Long: `Kennis beheert notities van het zorgteam en beantwoordt vragen op basis
van de actuele kennis: vervangen protocollen worden gefilterd, gerelateerde
notities meegewogen en elk antwoord verwijst naar zijn bronnen.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogger()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.kennis/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "write logs as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// setupLogger configures the global logger. Logs go to stderr so command
// output on stdout stays pipeable.
func setupLogger() {
	level := slog.LevelInfo
	if verbose || os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(log.New(log.Config{Level: level, JSON: jsonLogs}))
}

// loadConfig loads configuration, honoring the --config flag.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// withApp loads configuration, wires the application and runs fn with a
// context that cancels on SIGINT/SIGTERM. The application is closed when fn
// returns.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Warn("shutdown error", "error", closeErr)
		}
	}()

	return fn(ctx, a)
}
