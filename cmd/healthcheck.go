package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// newHealthcheckCmd probes the local server; used as the container healthcheck.
func newHealthcheckCmd(opts *rootOptions) *cobra.Command {
	var baseURL string

	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check that a local facade server is healthy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if baseURL == "" {
				baseURL = fmt.Sprintf("http://127.0.0.1:%s", opts.cfg.Port)
			}
			return runHealthcheck(baseURL)
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "", "server base URL (default http://127.0.0.1:$FACADE_PORT)")
	return cmd
}

// runHealthcheck performs a health check against the server at baseURL
func runHealthcheck(baseURL string) error {
	client := &http.Client{
		Timeout: 2 * time.Second,
	}

	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health endpoint returned status: %d", resp.StatusCode)
	}

	return nil
}
