// Package main is the entry point for the cronus CLI: a cron pattern
// toolbox and the job daemon built on it.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/flemzord/cronus/internal/config"
	"github.com/flemzord/cronus/internal/version"
)

func main() {
	root := rootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cronus",
		Short:         "DST-correct cron pattern engine and job scheduler",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	root.AddCommand(
		checkCmd(),
		nextCmd(),
		prevCmd(),
		printCmd(),
		runCmd(),
		historyCmd(),
		serviceCmd(),
		initCmd(),
		mcpCmd(),
		versionCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

// configPath resolves --config, falling back to the default location.
func configPath(cmd *cobra.Command) (string, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return path, nil
	}
	return config.DefaultPath()
}

// loadConfig loads, validates, and resolves the daemon configuration.
func loadConfig(cmd *cobra.Command) (*config.Resolved, error) {
	path, err := configPath(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return config.Resolve(cfg)
}

// newLogger builds the daemon logger per the resolved config.
func newLogger(res *config.Resolved) *slog.Logger {
	opts := &slog.HandlerOptions{Level: res.LogLevel}
	if res.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
