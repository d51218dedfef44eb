package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/flemzord/cronus/internal/journal"
)

func historyCmd() *cobra.Command {
	var (
		job   string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent job runs from the execution journal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 1 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}
			res, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			j, err := journal.Open(res.JournalPath)
			if err != nil {
				return err
			}
			defer j.Close()

			runs, err := j.Recent(cmd.Context(), job, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No recorded runs.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tJOB\tSTARTED\tDURATION\tSTATUS\tERROR")
			for _, run := range runs {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
					run.ID,
					run.Job,
					run.Started.Local().Format(time.RFC3339),
					run.Duration.Round(time.Millisecond),
					run.Status,
					run.Error,
				)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&job, "job", "", "Restrict to one job name")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum rows to print")
	return cmd
}
