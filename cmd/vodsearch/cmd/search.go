package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vodsearch/internal/output"
	"vodsearch/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	fields   []string
	channels []string
	page     int
	size     int
	format   string // "text", "json"
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <collection-id> <query>",
		Short: "Search an indexed collection",
		Long: `Search a collection's titles, descriptions, and transcripts.

Quote the whole query for exact-phrase matching. Terms combine with
implicit AND; the operators AND, OR, NOT and * wildcards apply.

Examples:
  vodsearch search PLxxxx "error handling"
  vodsearch search PLxxxx '"exact phrase"' --in transcript
  vodsearch search PLxxxx "go OR rust" --channel "Tech Talks" --format json`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args[1:], " ")
			return runSearchCmd(cmd, args[0], query, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.fields, "in", []string{search.FieldTitle, search.FieldDescription, search.FieldTranscript}, "Fields to search: title, description, transcript")
	cmd.Flags().StringSliceVar(&opts.channels, "channel", nil, "Filter by channel (repeatable)")
	cmd.Flags().IntVar(&opts.page, "page", 1, "Result page, 1-based")
	cmd.Flags().IntVarP(&opts.size, "size", "n", 10, "Results per page")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearchCmd(cmd *cobra.Command, collectionID, query string, opts searchOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	stack, err := openQuietStack(cfg)
	if err != nil {
		return err
	}
	defer stack.Close()

	res, err := stack.engine.Search(cmd.Context(), &search.Request{
		CollectionID: collectionID,
		Query:        query,
		Page:         opts.page,
		Size:         opts.size,
		Fields:       opts.fields,
		Channels:     opts.channels,
	})
	if err != nil {
		return err
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	out := output.New(cmd.OutOrStdout())
	if res.Total == 0 {
		out.Statusf("🔍", "no results for %q", query)
		return nil
	}

	out.Statusf("🔍", "%d results for %q (page %d)", res.Total, query, opts.page)
	out.Newline()
	for i, r := range res.Results {
		rank := (opts.page-1)*opts.size + i + 1
		out.Statusf("", "%d. %s", rank, stripTags(r.HighlightedTitle))
		if r.Channel != "" {
			out.Detailf("channel: %s   views: %d   score: %.2f", r.Channel, r.ViewCount, r.Score)
		} else {
			out.Detailf("score: %.2f", r.Score)
		}
		for _, seg := range r.MatchingSegments {
			out.Detailf("[%s] %s", formatTimestamp(seg.Start), stripTags(seg.Highlighted))
		}
		out.Newline()
	}
	return nil
}

// stripTags removes highlight markup for plain terminal output.
func stripTags(s string) string {
	s = strings.ReplaceAll(s, "<em>", "")
	return strings.ReplaceAll(s, "</em>", "")
}

// formatTimestamp renders a segment offset in seconds as [h:]mm:ss.
func formatTimestamp(seconds float64) string {
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
