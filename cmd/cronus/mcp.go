package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/flemzord/cronus/internal/journal"
	"github.com/flemzord/cronus/internal/mcpserver"
)

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve engine and job tools over the Model Context Protocol",
		Long: `Run an MCP server on stdio exposing cron_check, cron_next,
job_list, and job_history tools. The job tools use the daemon
configuration when one is found; without it only the expression tools
have data.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Stdout carries the protocol; anything human goes to stderr.
			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

			mcpCfg := mcpserver.Config{Logger: logger}
			if res, err := loadConfig(cmd); err == nil {
				mcpCfg.Jobs = res.Jobs
				j, err := journal.Open(res.JournalPath)
				if err != nil {
					logger.Warn("mcp: journal unavailable", "error", err)
				} else {
					defer j.Close()
					mcpCfg.Journal = j
				}
			} else {
				// A config the user named must load; a missing default
				// one only narrows the toolset.
				if explicit, _ := cmd.Flags().GetString("config"); explicit != "" {
					return err
				}
				logger.Info("mcp: running without daemon config", "reason", err)
			}

			return mcpserver.New(mcpCfg).Serve()
		},
	}
}
