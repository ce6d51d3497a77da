// Package cmd provides the CLI commands for vodsearch.
package cmd

import (
	"github.com/spf13/cobra"

	"vodsearch/internal/config"
	"vodsearch/pkg/version"
)

// Persistent flags shared by all subcommands.
var (
	cfgPath  string
	dataDir  string
	logLevel string
)

// NewRootCmd creates the root command for the vodsearch CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vodsearch",
		Short: "Index and search video collections with timed transcripts",
		Long: `vodsearch builds full-text indexes over video collections: titles,
descriptions, and timestamped transcript segments.

Run a daemon with 'vodsearch serve', or index and search a collection
directly:

  vodsearch index PLxxxx --title "Conference talks"
  vodsearch search PLxxxx "error handling" --in title,transcript`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("vodsearch version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file path (default ~/.vodsearch/config.yaml)")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory for indexes and metadata (default ~/.vodsearch)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newCancelCmd())
	cmd.AddCommand(newCollectionsCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// loadConfig resolves configuration and applies persistent flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.Paths.DataDir = dataDir
	}
	if logLevel != "" {
		cfg.Server.LogLevel = logLevel
	}
	return cfg, nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
