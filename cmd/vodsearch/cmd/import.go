package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vodsearch/internal/output"
)

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <dump-file>",
		Short: "Restore a collection from an exported dump",
		Long: `Restore a collection from a JSON dump produced by 'vodsearch export'.

The collection's index is rebuilt from the dump's documents. An
existing index for the same collection is replaced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0])
		},
	}

	return cmd
}

func runImport(cmd *cobra.Command, path string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var dump collectionDump
	if err := json.Unmarshal(data, &dump); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if dump.Collection == nil || dump.Collection.ID == "" {
		return fmt.Errorf("%s is not a vodsearch export: missing collection metadata", path)
	}

	stack, err := openQuietStack(cfg)
	if err != nil {
		return err
	}
	defer stack.Close()

	ctx := cmd.Context()
	collectionID := dump.Collection.ID

	if _, _, err := stack.indexes.EnsureIndex(ctx, collectionID, true); err != nil {
		return err
	}

	indexed, bulkErrs := stack.indexes.BulkUpsert(ctx, collectionID, dump.Items)

	out := output.New(cmd.OutOrStdout())
	for _, be := range bulkErrs {
		out.Warningf("item %s not indexed: %v", be.ItemID, be.Err)
	}

	if err := stack.meta.SaveItems(ctx, collectionID, dump.Items); err != nil {
		return err
	}

	dump.Collection.IndexedItemCount = indexed
	if err := stack.meta.SaveCollection(ctx, dump.Collection); err != nil {
		return err
	}

	out.Successf("imported %d of %d items into %s", indexed, len(dump.Items), collectionID)
	return nil
}
