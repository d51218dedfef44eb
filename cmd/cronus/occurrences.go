package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/flemzord/cronus/pkg/cron"
)

// occurrenceFlags are shared by next and prev.
type occurrenceFlags struct {
	count     int
	zone      string
	from      string
	inclusive bool
}

func (f *occurrenceFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.count, "count", "n", 1, "How many occurrences to print")
	cmd.Flags().StringVar(&f.zone, "tz", "", "IANA zone name (default: system zone)")
	cmd.Flags().StringVar(&f.from, "from", "", "RFC 3339 instant to start from (default: now)")
	cmd.Flags().BoolVar(&f.inclusive, "inclusive", false, "Accept the start instant itself when it matches")
}

func (f *occurrenceFlags) resolve() (time.Time, error) {
	loc := time.Local
	if f.zone != "" {
		var err error
		loc, err = time.LoadLocation(f.zone)
		if err != nil {
			return time.Time{}, fmt.Errorf("unknown time zone %q", f.zone)
		}
	}
	if f.from == "" {
		return time.Now().In(loc), nil
	}
	t, err := time.Parse(time.RFC3339, f.from)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing --from: %w", err)
	}
	return t.In(loc), nil
}

func nextCmd() *cobra.Command {
	var flags occurrenceFlags
	cmd := &cobra.Command{
		Use:   "next EXPR",
		Short: "Print upcoming occurrences of a cron expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printOccurrences(cmd, args[0], &flags, false)
		},
	}
	flags.register(cmd)
	return cmd
}

func prevCmd() *cobra.Command {
	var flags occurrenceFlags
	cmd := &cobra.Command{
		Use:   "prev EXPR",
		Short: "Print past occurrences of a cron expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printOccurrences(cmd, args[0], &flags, true)
		},
	}
	flags.register(cmd)
	return cmd
}

func printOccurrences(cmd *cobra.Command, expr string, flags *occurrenceFlags, backward bool) error {
	p, err := cron.Parse(expr)
	if err != nil {
		return err
	}
	if flags.count < 1 {
		return fmt.Errorf("--count must be positive, got %d", flags.count)
	}
	t, err := flags.resolve()
	if err != nil {
		return err
	}

	inclusive := flags.inclusive
	for range flags.count {
		var (
			occ time.Time
			ok  bool
		)
		if backward {
			occ, ok = p.Previous(t, inclusive)
		} else {
			occ, ok = p.Next(t, inclusive)
		}
		if !ok {
			return fmt.Errorf("pattern %q never fires", expr)
		}
		fmt.Fprintln(cmd.OutOrStdout(), occ.Format(time.RFC3339))
		t = occ
		inclusive = false
	}
	return nil
}

func printCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "print EXPR",
		Short: "Print the canonical form of a cron expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := cron.Parse(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.String())
			return nil
		},
	}
}
