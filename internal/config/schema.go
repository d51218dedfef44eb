// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for cronus.
package config

// Config is the top-level daemon configuration.
type Config struct {
	// Log controls the daemon's structured logging output.
	Log LogConfig `yaml:"log"`

	// Scheduler tunes the execution pool and the default time zone.
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Admin configures the local HTTP API.
	Admin AdminConfig `yaml:"admin"`

	// Journal configures the execution journal database.
	Journal JournalConfig `yaml:"journal"`

	// Telemetry configures OTLP trace export.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Jobs lists the scheduled jobs.
	Jobs []JobConfig `yaml:"jobs"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	// Level is the minimum level to emit: debug, info, warn, or error.
	// Defaults to info.
	Level string `yaml:"level"`

	// Format selects the handler: text or json. Defaults to text.
	Format string `yaml:"format"`
}

// SchedulerConfig tunes the scheduler and its timer pool.
type SchedulerConfig struct {
	// Workers is the timer pool size. Defaults to 4.
	Workers int `yaml:"workers"`

	// ShutdownWait bounds how long Stop waits for in-flight jobs,
	// as a Go duration string. Defaults to "5s".
	ShutdownWait string `yaml:"shutdown_wait"`

	// Location is the default time zone for job schedules
	// (e.g. "America/New_York"). Empty means the system local zone.
	Location string `yaml:"location"`
}

// AdminConfig configures the local HTTP API.
type AdminConfig struct {
	// Enabled starts the admin server when true.
	Enabled bool `yaml:"enabled"`

	// Listen is the host:port to bind. Defaults to "127.0.0.1:8222".
	Listen string `yaml:"listen"`
}

// JournalConfig configures the execution journal.
type JournalConfig struct {
	// Path is the sqlite database file. A leading ~ expands to the
	// user's home directory. Defaults to "~/.local/state/cronus/journal.db".
	Path string `yaml:"path"`

	// Retain is how far back finished runs are kept, as a Go duration
	// string. Zero keeps runs forever. Defaults to "720h".
	Retain string `yaml:"retain"`
}

// TelemetryConfig configures OTLP trace export.
type TelemetryConfig struct {
	// OTLPEndpoint is the collector endpoint (host:port). Tracing is
	// disabled when empty.
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// Sample is the trace sampling ratio in [0,1]. Defaults to 1.
	Sample *float64 `yaml:"sample,omitempty"`
}

// JobConfig declares one scheduled job.
type JobConfig struct {
	// Name identifies the job in logs, metrics, and the admin API.
	Name string `yaml:"name"`

	// Schedule is a five-field cron expression.
	Schedule string `yaml:"schedule"`

	// Command is the program and its arguments.
	Command []string `yaml:"command"`

	// Timezone overrides the scheduler's default zone for this job.
	Timezone string `yaml:"timezone,omitempty"`

	// Timeout bounds one execution, as a Go duration string.
	// Zero or empty means no limit.
	Timeout string `yaml:"timeout,omitempty"`

	// StopOnFailure unschedules the job after its first failed run.
	StopOnFailure bool `yaml:"stop_on_failure,omitempty"`
}
