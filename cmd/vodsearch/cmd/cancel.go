package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"vodsearch/internal/output"
)

func newCancelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a running indexing job",
		Long: `Cancel a running indexing job through the daemon's HTTP API.

Cancellation has to reach the process that owns the job's workers,
so this talks to 'vodsearch serve' at the configured server address.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCancel(cmd, args[0])
		},
	}

	return cmd
}

func runCancel(cmd *cobra.Command, jobID string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://%s/api/jobs/%s", cfg.Server.Addr, jobID)
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodDelete, url, nil)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach daemon at %s (is 'vodsearch serve' running?): %w", cfg.Server.Addr, err)
	}
	defer func() { _ = resp.Body.Close() }()

	out := output.New(cmd.OutOrStdout())
	switch resp.StatusCode {
	case http.StatusOK:
		out.Successf("job %s cancelled", jobID)
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("job %s not found", jobID)
	case http.StatusConflict:
		return fmt.Errorf("job %s already finished", jobID)
	default:
		var body struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if body.Error.Message != "" {
			return fmt.Errorf("cancel failed: %s", body.Error.Message)
		}
		return fmt.Errorf("cancel failed: HTTP %d", resp.StatusCode)
	}
}
