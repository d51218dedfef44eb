package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestResolve(t *testing.T) {
	cfg := &Config{
		Log:       LogConfig{Level: "warn", Format: "json"},
		Scheduler: SchedulerConfig{Workers: 2, ShutdownWait: "10s", Location: "America/New_York"},
		Admin:     AdminConfig{Enabled: true, Listen: "127.0.0.1:9000"},
		Journal:   JournalConfig{Path: "/var/lib/cronus/journal.db", Retain: "48h"},
		Telemetry: TelemetryConfig{OTLPEndpoint: "localhost:4318"},
		Jobs: []JobConfig{
			{
				Name:          "backup",
				Schedule:      "30 2 * * *",
				Command:       []string{"/bin/backup"},
				Timezone:      "UTC",
				Timeout:       "10m",
				StopOnFailure: true,
			},
			{
				Name:     "probe",
				Schedule: "*/5 * * * *",
				Command:  []string{"/bin/probe"},
			},
		},
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	res, err := Resolve(cfg)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if res.LogLevel != slog.LevelWarn || !res.LogJSON {
		t.Errorf("log = %v/%v, want warn/json", res.LogLevel, res.LogJSON)
	}
	if res.Workers != 2 {
		t.Errorf("workers = %d, want 2", res.Workers)
	}
	if res.ShutdownWait != 10*time.Second {
		t.Errorf("shutdown wait = %v, want 10s", res.ShutdownWait)
	}
	if res.Location.String() != "America/New_York" {
		t.Errorf("location = %v, want America/New_York", res.Location)
	}
	if !res.AdminEnabled || res.AdminListen != "127.0.0.1:9000" {
		t.Errorf("admin = %v/%q, want enabled on 127.0.0.1:9000", res.AdminEnabled, res.AdminListen)
	}
	if res.JournalPath != "/var/lib/cronus/journal.db" {
		t.Errorf("journal path = %q", res.JournalPath)
	}
	if res.Retain != 48*time.Hour {
		t.Errorf("retain = %v, want 48h", res.Retain)
	}
	if res.OTLPEndpoint != "localhost:4318" {
		t.Errorf("otlp endpoint = %q, want localhost:4318", res.OTLPEndpoint)
	}
	if res.Sample != 1.0 {
		t.Errorf("sample = %v, want 1", res.Sample)
	}

	if len(res.Jobs) != 2 {
		t.Fatalf("len(jobs) = %d, want 2", len(res.Jobs))
	}

	backup := res.Jobs[0]
	if got := backup.Pattern.String(); got != "30 2 * * *" {
		t.Errorf("pattern = %q, want 30 2 * * *", got)
	}
	if backup.Location != time.UTC {
		t.Errorf("location = %v, want UTC", backup.Location)
	}
	if backup.Timeout != 10*time.Minute {
		t.Errorf("timeout = %v, want 10m", backup.Timeout)
	}
	if !backup.StopOnFailure {
		t.Error("stop_on_failure not carried over")
	}

	probe := res.Jobs[1]
	if probe.Location != res.Location {
		t.Errorf("probe location = %v, want scheduler default", probe.Location)
	}
	if probe.Timeout != 0 {
		t.Errorf("probe timeout = %v, want 0", probe.Timeout)
	}
}

func TestResolve_ExpandsHome(t *testing.T) {
	t.Setenv("HOME", "/home/probe")
	cfg := validConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	res, err := Resolve(cfg)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	want := "/home/probe/.local/state/cronus/journal.db"
	if res.JournalPath != want {
		t.Errorf("journal path = %q, want %q", res.JournalPath, want)
	}
}
