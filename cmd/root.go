// Package cmd contains the conduit-facade CLI commands.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"conduit-facade/config"
	"conduit-facade/internal/logger"
)

var version = "dev"

// SetVersion sets the version string for the CLI
func SetVersion(v string) {
	version = v
}

type rootOptions struct {
	envFile string
	cfg     *config.Config
	logger  *slog.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "conduit-facade",
		Short: "Backend-for-frontend for the Conduit SPA",
		Long: `conduit-facade sits between the Conduit single-page app and the Conduit
REST API. It serves view models (header, home feed, tags) backed by
per-session feed loaders.

Example usage:
  conduit-facade serve                       # run the HTTP server
  conduit-facade feed global --page 2        # fetch one feed page and print it
  conduit-facade healthcheck                 # probe a running server`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.init()
		},
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "optional dotenv file loaded before the environment")

	root.AddCommand(
		newServeCmd(opts),
		newHealthcheckCmd(opts),
		newFeedCmd(opts),
	)
	return root
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

func (o *rootOptions) init() error {
	cfg, err := config.Load(o.envFile)
	if err != nil {
		return err
	}
	o.cfg = cfg
	o.logger = logger.Init(cfg.LogLevel)
	return nil
}
