package main

import (
	"context"
	"fmt"
	"time"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/flemzord/cronus/internal/daemon"
	"github.com/flemzord/cronus/internal/server"
)

// serviceStopWait bounds how long the service manager waits for the
// daemon to drain on stop.
const serviceStopWait = 30 * time.Second

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "service {install|uninstall|start|stop|restart|status|run}",
		Short:     "Manage cronus as a system service",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"install", "uninstall", "start", "stop", "restart", "status", "run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			svc, err := newService(cmd, cfgPath)
			if err != nil {
				return err
			}

			switch action := args[0]; action {
			case "run":
				// Invoked by the service manager itself.
				return svc.Run()
			case "status":
				return printServiceStatus(cmd, svc)
			default:
				if err := service.Control(svc, action); err != nil {
					return fmt.Errorf("service %s: %w", action, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", action)
				return nil
			}
		},
	}
	return cmd
}

func newService(cmd *cobra.Command, cfgPath string) (service.Service, error) {
	svcCfg := &service.Config{
		Name:        "cronus",
		DisplayName: "cronus job scheduler",
		Description: "DST-correct cron job scheduler daemon.",
		Arguments:   []string{"service", "run"},
	}
	if cfgPath != "" {
		svcCfg.Arguments = append(svcCfg.Arguments, "--config", cfgPath)
	}

	svc, err := service.New(&program{cmd: cmd}, svcCfg)
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	return svc, nil
}

func printServiceStatus(cmd *cobra.Command, svc service.Service) error {
	status, err := svc.Status()
	if err != nil {
		return fmt.Errorf("service status: %w", err)
	}
	switch status {
	case service.StatusRunning:
		fmt.Fprintln(cmd.OutOrStdout(), "running")
	case service.StatusStopped:
		fmt.Fprintln(cmd.OutOrStdout(), "stopped")
	default:
		fmt.Fprintln(cmd.OutOrStdout(), "unknown")
	}
	return nil
}

// program adapts the daemon to the service manager's start/stop
// callbacks.
type program struct {
	cmd    *cobra.Command
	daemon *daemon.Daemon
	cancel context.CancelFunc
	done   chan struct{}
}

// Start launches the daemon and returns; the service package requires
// a prompt return, so the daemon runs on its own goroutine.
func (p *program) Start(service.Service) error {
	res, err := loadConfig(p.cmd)
	if err != nil {
		return err
	}
	logger := newLogger(res)

	d := daemon.New(res, daemon.Options{Logger: logger})
	if res.AdminEnabled {
		d.SetAdmin(server.New(res.AdminListen, d, logger))
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.daemon = d
	p.cancel = cancel
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		if err := d.Run(ctx); err != nil {
			logger.Error("service: daemon exited", "error", err)
		}
	}()
	return nil
}

// Stop cancels the daemon's context and waits for it to drain.
func (p *program) Stop(service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	select {
	case <-p.done:
		return nil
	case <-time.After(serviceStopWait):
		return fmt.Errorf("service: daemon did not stop within %s", serviceStopWait)
	}
}
