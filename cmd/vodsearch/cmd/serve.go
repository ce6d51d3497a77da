package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"vodsearch/internal/api"
	"vodsearch/internal/logging"
	"vodsearch/pkg/version"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API daemon",
		Long: `Run the vodsearch daemon: the HTTP API for starting index jobs,
polling job status, and searching collections.

The daemon takes an exclusive lock on the data directory so two
daemons never share the same bleve indexes. Job status lives in the
configured status backend (Redis by default) and survives restarts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				os.Setenv("VODSEARCH_ADDR", addr)
			}
			return runServe(cmd)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default localhost:8080)")

	return cmd
}

func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// One daemon per data directory.
	lock := flock.New(filepath.Join(cfg.Paths.DataDir, "vodsearch.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock data directory: %w", err)
	}
	if !locked {
		return fmt.Errorf("another vodsearch daemon is already serving %s", cfg.Paths.DataDir)
	}
	defer func() { _ = lock.Unlock() }()

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Server.LogLevel
	logCfg.FilePath = filepath.Join(cfg.Paths.DataDir, "logs", "server.log")
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer cleanup()
	slog.SetDefault(logger)

	stack, err := openStack(cfg, logger, "")
	if err != nil {
		return err
	}
	defer stack.Close()

	server := api.NewServer(stack.orch, stack.engine, stack.indexes, stack.meta, stack.status, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("daemon_started",
		slog.String("version", version.Version),
		slog.String("addr", cfg.Server.Addr),
		slog.String("data_dir", cfg.Paths.DataDir))

	return server.ListenAndServe(ctx, cfg.Server.Addr)
}
