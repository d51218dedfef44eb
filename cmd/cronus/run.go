package main

import (
	"github.com/spf13/cobra"

	"github.com/flemzord/cronus/internal/daemon"
	"github.com/flemzord/cronus/internal/server"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the job daemon",
		Long: `Load the configuration, schedule every job, and run until
SIGINT or SIGTERM. The admin HTTP API is served when enabled.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(res)

			d := daemon.New(res, daemon.Options{Logger: logger})
			if res.AdminEnabled {
				d.SetAdmin(server.New(res.AdminListen, d, logger))
			}
			return d.Run(cmd.Context())
		},
	}
}
