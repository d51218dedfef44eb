package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flemzord/cronus/internal/wizard"
)

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a starter configuration interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := configPath(cmd)
			if err != nil {
				return err
			}

			answers, err := wizard.Run()
			if err != nil {
				return err
			}
			if err := wizard.Write(path, *answers, force); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			fmt.Fprintln(cmd.OutOrStdout(), "Start the daemon with: cronus run")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file")
	return cmd
}
