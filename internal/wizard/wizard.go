// Package wizard bootstraps a starter configuration file through an
// interactive terminal form: admin settings plus one first job, with
// the cron expression validated as it is typed.
package wizard

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/cronus/internal/config"
	"github.com/flemzord/cronus/pkg/cron"
)

// ErrExists is returned by Write when the target file is already
// present and force was not given.
var ErrExists = errors.New("wizard: config file already exists")

// Answers holds the form's results.
type Answers struct {
	AdminEnabled bool
	AdminListen  string
	JobName      string
	Schedule     string
	Command      string
	Timezone     string
}

// Run walks the user through the form and returns their answers.
func Run() (*Answers, error) {
	a := &Answers{
		AdminEnabled: true,
		AdminListen:  config.DefaultListen,
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable the admin HTTP API?").
				Description("Local endpoint for job status, history, and metrics.").
				Value(&a.AdminEnabled),
			huh.NewInput().
				Title("Admin listen address").
				Value(&a.AdminListen).
				Validate(ValidateListen),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("First job name").
				Placeholder("backup").
				Value(&a.JobName).
				Validate(ValidateName),
			huh.NewInput().
				Title("Schedule").
				Description("Five-field cron expression, e.g. \"30 2 * * *\".").
				Placeholder("30 2 * * *").
				Value(&a.Schedule).
				Validate(ValidateSchedule),
			huh.NewInput().
				Title("Command").
				Description("Program and arguments, space separated.").
				Placeholder("/usr/local/bin/backup --full").
				Value(&a.Command).
				Validate(ValidateCommand),
			huh.NewInput().
				Title("Time zone").
				Description("IANA zone name; empty uses the system zone.").
				Placeholder("America/New_York").
				Value(&a.Timezone).
				Validate(ValidateTimezone),
		),
	)

	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("wizard: %w", err)
	}
	return a, nil
}

// ValidateName checks a job name against the config naming rules.
func ValidateName(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("a job name is required")
	}
	cfg := baseConfig()
	cfg.Jobs = []config.JobConfig{{
		Name:     s,
		Schedule: "* * * * *",
		Command:  []string{"true"},
	}}
	if config.Validate(cfg) != nil {
		return errors.New("letters, digits, and _ . - only")
	}
	return nil
}

// ValidateSchedule parses the expression and rejects patterns that can
// never fire.
func ValidateSchedule(s string) error {
	p, err := cron.Parse(s)
	if err != nil {
		return err
	}
	if p.IsEmpty() {
		return errors.New("this pattern never fires")
	}
	return nil
}

// ValidateCommand requires at least a program name.
func ValidateCommand(s string) error {
	if len(strings.Fields(s)) == 0 {
		return errors.New("a command is required")
	}
	return nil
}

// ValidateTimezone accepts the empty string or a loadable IANA name.
func ValidateTimezone(s string) error {
	if s == "" {
		return nil
	}
	if _, err := time.LoadLocation(s); err != nil {
		return fmt.Errorf("unknown time zone %q", s)
	}
	return nil
}

// ValidateListen requires a host:port address.
func ValidateListen(s string) error {
	if _, _, err := net.SplitHostPort(s); err != nil {
		return errors.New("expected host:port")
	}
	return nil
}

// BuildConfig turns answers into a full Config that passes validation.
func BuildConfig(a Answers) *config.Config {
	cfg := baseConfig()
	cfg.Admin.Enabled = a.AdminEnabled
	if a.AdminListen != "" {
		cfg.Admin.Listen = a.AdminListen
	}
	cfg.Jobs = []config.JobConfig{{
		Name:     a.JobName,
		Schedule: a.Schedule,
		Command:  strings.Fields(a.Command),
		Timezone: a.Timezone,
	}}
	return cfg
}

// baseConfig is the starter skeleton; Validate fills the remaining
// defaults.
func baseConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Admin.Listen = config.DefaultListen
	cfg.Journal.Path = config.DefaultJournalPath
	return cfg
}

// Write validates the answers and writes the YAML file, creating
// parent directories. An existing file is only replaced with force.
func Write(path string, a Answers, force bool) error {
	cfg := BuildConfig(a)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("wizard: %w", err)
	}

	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("wizard: encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("wizard: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("wizard: %w", err)
	}
	return nil
}
