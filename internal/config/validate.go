package config

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"time"

	"github.com/flemzord/cronus/pkg/cron"
)

// Defaults applied to unset fields before validation.
const (
	DefaultListen      = "127.0.0.1:8222"
	DefaultJournalPath = "~/.local/state/cronus/journal.db"

	defaultLogLevel     = "info"
	defaultLogFormat    = "text"
	defaultWorkers      = 4
	defaultShutdownWait = "5s"
	defaultRetain       = "720h"
	defaultSample       = 1.0
)

// namePattern restricts job names to characters that are safe in URLs,
// metric labels, and environment values.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Validate applies defaults to unset fields and checks the structural
// validity of a Config. All faults are collected and returned as a single
// joined error.
func Validate(cfg *Config) error {
	applyDefaults(cfg)

	var errs []error
	errs = append(errs, validateLog(&cfg.Log)...)
	errs = append(errs, validateScheduler(&cfg.Scheduler)...)
	errs = append(errs, validateAdmin(&cfg.Admin)...)
	errs = append(errs, validateJournal(&cfg.Journal)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateJobs(cfg.Jobs)...)

	return errors.Join(errs...)
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaultLogFormat
	}
	if cfg.Scheduler.Workers == 0 {
		cfg.Scheduler.Workers = defaultWorkers
	}
	if cfg.Scheduler.ShutdownWait == "" {
		cfg.Scheduler.ShutdownWait = defaultShutdownWait
	}
	if cfg.Admin.Listen == "" {
		cfg.Admin.Listen = DefaultListen
	}
	if cfg.Journal.Path == "" {
		cfg.Journal.Path = DefaultJournalPath
	}
	if cfg.Journal.Retain == "" {
		cfg.Journal.Retain = defaultRetain
	}
	if cfg.Telemetry.Sample == nil {
		s := float64(defaultSample)
		cfg.Telemetry.Sample = &s
	}
}

func validateLog(c *LogConfig) []error {
	var errs []error

	if _, err := parseLevel(c.Level); err != nil {
		errs = append(errs, err)
	}

	switch c.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("config: unsupported log.format %q (supported: text, json)", c.Format))
	}

	return errs
}

func validateScheduler(c *SchedulerConfig) []error {
	var errs []error

	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("config: scheduler.workers must be at least 1, got %d", c.Workers))
	}

	if d, err := time.ParseDuration(c.ShutdownWait); err != nil {
		errs = append(errs, fmt.Errorf("config: scheduler.shutdown_wait: %w", err))
	} else if d < 0 {
		errs = append(errs, fmt.Errorf("config: scheduler.shutdown_wait must not be negative, got %s", c.ShutdownWait))
	}

	if c.Location != "" {
		if _, err := time.LoadLocation(c.Location); err != nil {
			errs = append(errs, fmt.Errorf("config: scheduler.location: unknown time zone %q", c.Location))
		}
	}

	return errs
}

func validateAdmin(c *AdminConfig) []error {
	_, port, err := net.SplitHostPort(c.Listen)
	if err != nil {
		return []error{fmt.Errorf("config: admin.listen %q: %w", c.Listen, err)}
	}
	if port == "" {
		return []error{fmt.Errorf("config: admin.listen %q: missing port", c.Listen)}
	}
	return nil
}

func validateJournal(c *JournalConfig) []error {
	var errs []error

	if d, err := time.ParseDuration(c.Retain); err != nil {
		errs = append(errs, fmt.Errorf("config: journal.retain: %w", err))
	} else if d < 0 {
		errs = append(errs, fmt.Errorf("config: journal.retain must not be negative, got %s", c.Retain))
	}

	return errs
}

func validateTelemetry(c *TelemetryConfig) []error {
	if s := *c.Sample; s < 0 || s > 1 {
		return []error{fmt.Errorf("config: telemetry.sample must be between 0 and 1, got %v", s)}
	}
	return nil
}

func validateJobs(jobs []JobConfig) []error {
	var errs []error

	if len(jobs) == 0 {
		errs = append(errs, errors.New("config: at least one job must be configured"))
	}

	seen := make(map[string]bool, len(jobs))
	for i, j := range jobs {
		label := fmt.Sprintf("job %q", j.Name)

		switch {
		case j.Name == "":
			label = fmt.Sprintf("jobs[%d]", i)
			errs = append(errs, fmt.Errorf("config: %s: name is required", label))
		case !namePattern.MatchString(j.Name):
			errs = append(errs, fmt.Errorf("config: jobs[%d]: invalid name %q", i, j.Name))
		case seen[j.Name]:
			errs = append(errs, fmt.Errorf("config: duplicate job name %q", j.Name))
		default:
			seen[j.Name] = true
		}

		if p, err := cron.Parse(j.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("config: %s: invalid schedule: %w", label, err))
		} else if p.IsEmpty() {
			errs = append(errs, fmt.Errorf("config: %s: schedule %q never fires", label, j.Schedule))
		}

		if len(j.Command) == 0 || j.Command[0] == "" {
			errs = append(errs, fmt.Errorf("config: %s: command is required", label))
		}

		if j.Timezone != "" {
			if _, err := time.LoadLocation(j.Timezone); err != nil {
				errs = append(errs, fmt.Errorf("config: %s: unknown time zone %q", label, j.Timezone))
			}
		}

		if j.Timeout != "" {
			if d, err := time.ParseDuration(j.Timeout); err != nil {
				errs = append(errs, fmt.Errorf("config: %s: timeout: %w", label, err))
			} else if d < 0 {
				errs = append(errs, fmt.Errorf("config: %s: timeout must not be negative, got %s", label, j.Timeout))
			}
		}
	}

	return errs
}
