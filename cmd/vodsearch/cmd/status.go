package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"vodsearch/internal/config"
	"vodsearch/internal/status"
	"vodsearch/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the status of an indexing job",
		Long: `Show the status of an indexing job started by the daemon.

Reads the shared status backend directly, so it works from any
process while 'vodsearch serve' runs the job.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, args[0], format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runStatus(cmd *cobra.Command, jobID, format string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStatusStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	job, err := st.GetJob(cmd.Context(), jobID)
	if err != nil {
		if err == status.ErrNotFound {
			return fmt.Errorf("job %s not found", jobID)
		}
		return err
	}

	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	}

	ui.NewProgressRenderer(cmd.OutOrStdout()).Render(job)
	return nil
}

// openStatusStore opens just the shared status backend. Commands that
// only read or cancel jobs must not touch the daemon's indexes.
func openStatusStore(cfg *config.Config) (status.Store, error) {
	if cfg.Status.Backend == config.StatusBackendMemory {
		return nil, fmt.Errorf("status.backend is %q: job status is only visible inside the owning process; use the HTTP API or the redis backend", config.StatusBackendMemory)
	}
	return status.NewRedisStore(cfg.Status.RedisAddr, cfg.Status.RedisDB, cfg.Status.JobTTL)
}
