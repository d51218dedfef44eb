package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/flemzord/cronus/pkg/cron"
)

// Job is a job definition resolved to runtime types.
type Job struct {
	Name          string
	Pattern       cron.Pattern
	Command       []string
	Location      *time.Location
	Timeout       time.Duration
	StopOnFailure bool
}

// Resolved is the runtime form of a validated Config: schedules parsed,
// zones loaded, durations and paths made concrete. Jobs keep their
// declaration order.
type Resolved struct {
	LogLevel     slog.Level
	LogJSON      bool
	Workers      int
	ShutdownWait time.Duration
	Location     *time.Location
	AdminEnabled bool
	AdminListen  string
	JournalPath  string
	Retain       time.Duration
	OTLPEndpoint string
	Sample       float64
	Jobs         []Job
}

// Resolve converts a validated Config into runtime types. The input must
// have passed Validate; Resolve reports only faults validation cannot see,
// such as a missing home directory during path expansion.
func Resolve(cfg *Config) (*Resolved, error) {
	level, err := parseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	wait, err := time.ParseDuration(cfg.Scheduler.ShutdownWait)
	if err != nil {
		return nil, fmt.Errorf("config: scheduler.shutdown_wait: %w", err)
	}

	loc := time.Local
	if cfg.Scheduler.Location != "" {
		loc, err = time.LoadLocation(cfg.Scheduler.Location)
		if err != nil {
			return nil, fmt.Errorf("config: scheduler.location: %w", err)
		}
	}

	retain, err := time.ParseDuration(cfg.Journal.Retain)
	if err != nil {
		return nil, fmt.Errorf("config: journal.retain: %w", err)
	}

	path, err := expandHome(cfg.Journal.Path)
	if err != nil {
		return nil, err
	}

	sample := float64(defaultSample)
	if cfg.Telemetry.Sample != nil {
		sample = *cfg.Telemetry.Sample
	}

	res := &Resolved{
		LogLevel:     level,
		LogJSON:      cfg.Log.Format == "json",
		Workers:      cfg.Scheduler.Workers,
		ShutdownWait: wait,
		Location:     loc,
		AdminEnabled: cfg.Admin.Enabled,
		AdminListen:  cfg.Admin.Listen,
		JournalPath:  path,
		Retain:       retain,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		Sample:       sample,
		Jobs:         make([]Job, 0, len(cfg.Jobs)),
	}

	for _, j := range cfg.Jobs {
		job, err := resolveJob(j, loc)
		if err != nil {
			return nil, err
		}
		res.Jobs = append(res.Jobs, job)
	}

	return res, nil
}

func resolveJob(j JobConfig, fallback *time.Location) (Job, error) {
	p, err := cron.Parse(j.Schedule)
	if err != nil {
		return Job{}, fmt.Errorf("config: job %q: %w", j.Name, err)
	}

	loc := fallback
	if j.Timezone != "" {
		loc, err = time.LoadLocation(j.Timezone)
		if err != nil {
			return Job{}, fmt.Errorf("config: job %q: %w", j.Name, err)
		}
	}

	var timeout time.Duration
	if j.Timeout != "" {
		timeout, err = time.ParseDuration(j.Timeout)
		if err != nil {
			return Job{}, fmt.Errorf("config: job %q: timeout: %w", j.Name, err)
		}
	}

	return Job{
		Name:          j.Name,
		Pattern:       p,
		Command:       j.Command,
		Location:      loc,
		Timeout:       timeout,
		StopOnFailure: j.StopOnFailure,
	}, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("config: unsupported log.level %q (supported: debug, info, warn, error)", s)
}

// expandHome rewrites a leading ~ to the user's home directory.
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: expanding %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
