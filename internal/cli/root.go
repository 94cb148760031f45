// Package cli provides the command-line interface for the Mealpix import
// client.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mealpix/mealpix-go/internal/config"
	"github.com/mealpix/mealpix-go/internal/history"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config and stores
	cfg        config.Config
	histStore  *history.Store
	logCleanup func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "mealpix",
	Short: "Import recipe photos into Mealpix",
	Long: `Mealpix turns photos of recipes into structured, cookable recipes.

The import command uploads a photo, hands it to the remote recognition
pipeline, and tracks the pipeline's progress until the recipe is ready.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		logger, cleanup := config.SetupLogger(cfg.LogFile, level)
		slog.SetDefault(logger)
		logCleanup = cleanup

		histStore, err = history.Open(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("open import history: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if histStore != nil {
			if err := histStore.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close history store: %v\n", err)
			}
		}
		if logCleanup != nil {
			_ = logCleanup()
		}
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(historyCmd)
}
