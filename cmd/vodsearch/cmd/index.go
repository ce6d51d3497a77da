package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"vodsearch/internal/status"
	"vodsearch/internal/ui"
)

func newIndexCmd() *cobra.Command {
	var (
		title       string
		incremental bool
		force       bool
	)

	cmd := &cobra.Command{
		Use:   "index <collection-id>",
		Short: "Index a collection's items and transcripts",
		Long: `Index a collection: enumerate its items from the catalog, fetch
transcripts, and build the full-text index.

Use --incremental to index only items not yet in the index.
Without it the existing index is dropped and rebuilt from scratch.

Examples:
  vodsearch index PLxxxx --title "Conference talks"
  vodsearch index PLxxxx --incremental`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runIndex(ctx, cmd, args[0], title, incremental, force)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Collection title stored with its metadata")
	cmd.Flags().BoolVar(&incremental, "incremental", false, "Index only items missing from the index")
	cmd.Flags().BoolVar(&force, "force", false, "Revoke a running job for this collection and take over")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, collectionID, title string, incremental, force bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// The job runs and dies with this process, so status can stay
	// in-memory even when the config points at Redis. Logging goes to
	// the log file only, keeping the progress output clean.
	stack, err := openQuietStack(cfg)
	if err != nil {
		return err
	}
	defer stack.Close()

	jobID, err := stack.orch.Start(ctx, collectionID, title, incremental, force)
	if err != nil {
		return err
	}

	renderer := ui.NewProgressRenderer(cmd.OutOrStdout())
	ticker := time.NewTicker(cfg.Indexing.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Ctrl+C: the job is detached from ctx, cancel it explicitly.
			if err := stack.orch.Cancel(context.Background(), jobID); err != nil {
				return err
			}
			return fmt.Errorf("indexing cancelled")
		case <-ticker.C:
			job, err := stack.orch.GetStatus(ctx, jobID)
			if err != nil {
				return err
			}
			renderer.Render(job)
			if job.Terminal() {
				if job.State == status.StateFailed {
					return fmt.Errorf("indexing failed: %s", job.Error)
				}
				return nil
			}
		}
	}
}
