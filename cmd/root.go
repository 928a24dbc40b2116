// Package cmd implements the loupe CLI.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/loupe-ai/loupe/internal/app"
	"github.com/loupe-ai/loupe/internal/config"
	"github.com/loupe-ai/loupe/internal/log"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "loupe",
	Short: "Loupe - multimodal knowledge agent",
	Long: `Loupe answers questions over your ingested documents, images, and
videos, combining semantic retrieval with LLM tool-calling.

Ingest media with "loupe ingest", then ask questions with "loupe ask".`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// setupApp loads configuration and wires the application. The caller must
// Close the returned App.
func setupApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})

	return app.Setup(ctx, cfg, logger)
}
