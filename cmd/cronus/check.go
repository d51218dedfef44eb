package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flemzord/cronus/internal/config"
	"github.com/flemzord/cronus/pkg/cron"
)

func checkCmd() *cobra.Command {
	var checkConfig bool
	cmd := &cobra.Command{
		Use:   "check [EXPR...]",
		Short: "Validate cron expressions or a configuration file",
		Long: `Parse each expression and report its canonical form, or with
--config-file validate the daemon configuration instead. Parse errors
point at the offending column.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkConfig {
				if len(args) > 0 {
					return errors.New("cannot combine --config-file with expressions")
				}
				return runCheckConfig(cmd)
			}
			if len(args) == 0 {
				return errors.New("nothing to check: pass expressions or --config-file")
			}
			return runCheckExprs(cmd, args)
		},
	}
	cmd.Flags().BoolVar(&checkConfig, "config-file", false, "Validate the configuration file instead of expressions")
	return cmd
}

func runCheckExprs(cmd *cobra.Command, exprs []string) error {
	failed := 0
	for _, expr := range exprs {
		p, err := cron.Parse(expr)
		switch {
		case err != nil:
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", annotateParseError(expr, err))
		case p.IsEmpty():
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "%q: valid syntax but never fires\n", expr)
		default:
			fmt.Fprintf(cmd.OutOrStdout(), "%q -> %s\n", expr, p)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d expressions invalid", failed, len(exprs))
	}
	return nil
}

// annotateParseError renders the expression with a caret under the
// offending column when the error carries an offset.
func annotateParseError(expr string, err error) string {
	var pe *cron.ParseError
	if !errors.As(err, &pe) {
		return fmt.Sprintf("%q: %v", expr, err)
	}
	trimmed := strings.TrimSpace(expr)
	return fmt.Sprintf("%v\n  %s\n  %s^", err, trimmed, strings.Repeat(" ", pe.Offset))
}

func runCheckConfig(cmd *cobra.Command) error {
	path, err := configPath(cmd)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if _, err := config.Resolve(cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: configuration valid (%d jobs)\n", path, len(cfg.Jobs))
	return nil
}
