package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"vodsearch/internal/output"
	"vodsearch/internal/store"
)

// collectionDump is the export file format: the collection's metadata
// plus its full document set, enough to rebuild the index elsewhere.
type collectionDump struct {
	ExportedAt time.Time             `json:"exported_at"`
	Collection *store.CollectionMeta `json:"collection"`
	Items      []*store.ItemDocument `json:"items"`
}

func newExportCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export <collection-id>",
		Short: "Export a collection's documents as JSON",
		Long: `Export a collection's metadata and full document set as JSON.

The dump can be restored with 'vodsearch import', including on another
machine, without re-fetching anything from the catalog.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, args[0], outPath)
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default stdout)")

	return cmd
}

func runExport(cmd *cobra.Command, collectionID, outPath string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	stack, err := openQuietStack(cfg)
	if err != nil {
		return err
	}
	defer stack.Close()

	meta, err := stack.meta.GetCollection(cmd.Context(), collectionID)
	if err != nil {
		return err
	}
	if meta == nil {
		return fmt.Errorf("collection %s not found", collectionID)
	}

	items, err := stack.meta.AllItems(cmd.Context(), collectionID)
	if err != nil {
		return err
	}

	dump := collectionDump{
		ExportedAt: time.Now().UTC(),
		Collection: meta,
		Items:      items,
	}

	var w io.Writer = cmd.OutOrStdout()
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", outPath, err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dump); err != nil {
		return err
	}

	if outPath != "" {
		output.New(cmd.OutOrStdout()).Successf("exported %d items from %s to %s", len(items), collectionID, outPath)
	}
	return nil
}
