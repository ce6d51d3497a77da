package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"vodsearch/internal/config"
	"vodsearch/internal/logging"
	"vodsearch/internal/output"
	"vodsearch/internal/status"
)

func newCollectionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collections",
		Short: "List indexed collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollectionsList(cmd)
		},
	}

	cmd.AddCommand(newCollectionsDeleteCmd())

	return cmd
}

func newCollectionsDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <collection-id>",
		Short: "Delete a collection's index and metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollectionsDelete(cmd, args[0])
		},
	}

	return cmd
}

func runCollectionsList(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	stack, err := openQuietStack(cfg)
	if err != nil {
		return err
	}
	defer stack.Close()

	collections, err := stack.meta.ListCollections(cmd.Context())
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if len(collections) == 0 {
		out.Status("", "no collections indexed yet")
		return nil
	}

	for _, c := range collections {
		title := c.Title
		if title == "" {
			title = "(untitled)"
		}
		out.Statusf("📼", "%s  %s", c.ID, title)
		out.Detailf("items: %d indexed of %d declared   last indexed: %s",
			c.IndexedItemCount, c.DeclaredItemCount,
			c.LastIndexedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runCollectionsDelete(cmd *cobra.Command, collectionID string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Refuse to delete underneath a running job.
	if cfg.Status.Backend == config.StatusBackendRedis {
		st, err := openStatusStore(cfg)
		if err != nil {
			return err
		}
		holder, err := st.JobForCollection(cmd.Context(), collectionID)
		_ = st.Close()
		if err != nil && err != status.ErrNotFound {
			return err
		}
		if holder != "" {
			return fmt.Errorf("collection %s has a running job %s; cancel it first", collectionID, holder)
		}
	}

	stack, err := openQuietStack(cfg)
	if err != nil {
		return err
	}
	defer stack.Close()

	existing, err := stack.meta.GetCollection(cmd.Context(), collectionID)
	if err != nil {
		return err
	}
	if existing == nil && !stack.indexes.HasIndex(collectionID) {
		return fmt.Errorf("collection %s not found", collectionID)
	}

	if err := stack.indexes.DeleteIndex(cmd.Context(), collectionID); err != nil {
		return err
	}
	if err := stack.meta.DeleteCollection(cmd.Context(), collectionID); err != nil {
		return err
	}

	output.New(cmd.OutOrStdout()).Successf("collection %s deleted", collectionID)
	return nil
}

// openQuietStack opens the local stack with file-only logging and an
// in-memory status store, for one-shot commands.
func openQuietStack(cfg *config.Config) (*stack, error) {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	slog.SetDefault(logger)
	s, err := openStack(cfg, logger, config.StatusBackendMemory)
	if err != nil {
		cleanup()
		return nil, err
	}
	s.logCleanup = cleanup
	return s, nil
}
