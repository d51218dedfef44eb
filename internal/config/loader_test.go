package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

const sampleConfig = `
log:
  level: debug
  format: json
scheduler:
  workers: 2
  shutdown_wait: "10s"
  location: "America/New_York"
admin:
  enabled: true
  listen: "127.0.0.1:9000"
journal:
  path: "/tmp/journal.db"
  retain: "24h"
telemetry:
  otlp_endpoint: "localhost:4318"
  sample: 0.5
jobs:
  - name: backup
    schedule: "30 2 * * *"
    command: ["/usr/local/bin/backup", "--full"]
    timezone: "UTC"
    timeout: "10m"
    stop_on_failure: true
`

func TestLoad_Valid(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log = %q/%q, want debug/json", cfg.Log.Level, cfg.Log.Format)
	}
	if cfg.Scheduler.Workers != 2 || cfg.Scheduler.ShutdownWait != "10s" {
		t.Errorf("scheduler = %d/%q", cfg.Scheduler.Workers, cfg.Scheduler.ShutdownWait)
	}
	if !cfg.Admin.Enabled || cfg.Admin.Listen != "127.0.0.1:9000" {
		t.Errorf("admin = %v/%q", cfg.Admin.Enabled, cfg.Admin.Listen)
	}
	if cfg.Telemetry.Sample == nil || *cfg.Telemetry.Sample != 0.5 {
		t.Errorf("sample = %v, want 0.5", cfg.Telemetry.Sample)
	}

	if len(cfg.Jobs) != 1 {
		t.Fatalf("len(jobs) = %d, want 1", len(cfg.Jobs))
	}
	job := cfg.Jobs[0]
	if job.Name != "backup" || job.Schedule != "30 2 * * *" {
		t.Errorf("job = %q/%q", job.Name, job.Schedule)
	}
	if len(job.Command) != 2 || job.Command[0] != "/usr/local/bin/backup" {
		t.Errorf("command = %v", job.Command)
	}
	if job.Timezone != "UTC" || job.Timeout != "10m" || !job.StopOnFailure {
		t.Errorf("job options = %q/%q/%v", job.Timezone, job.Timeout, job.StopOnFailure)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "reading") {
		t.Errorf("error should mention reading: %v", err)
	}
}

func TestLoad_UnknownKey(t *testing.T) {
	_, err := Load(writeConfig(t, "jobz: []\n"))
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "jobz") {
		t.Errorf("error should name the unknown key: %v", err)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Jobs) != 0 {
		t.Errorf("len(jobs) = %d, want 0", len(cfg.Jobs))
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("CRONUS_TEST_CMD", "/bin/true")
	cfg, err := Load(writeConfig(t, `
jobs:
  - name: probe
    schedule: "* * * * *"
    command: ["${CRONUS_TEST_CMD}"]
    timeout: "${CRONUS_TEST_UNSET_SENTINEL:-5m}"
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Jobs[0].Command[0]; got != "/bin/true" {
		t.Errorf("command = %q, want /bin/true", got)
	}
	if got := cfg.Jobs[0].Timeout; got != "5m" {
		t.Errorf("timeout = %q, want 5m", got)
	}
}

func TestLoad_UnresolvedVariable(t *testing.T) {
	_, err := Load(writeConfig(t, `
jobs:
  - name: probe
    schedule: "* * * * *"
    command: ["${CRONUS_TEST_UNSET_SENTINEL}"]
`))
	if err == nil {
		t.Fatal("expected error for unresolved variable")
	}
	if !strings.Contains(err.Error(), "CRONUS_TEST_UNSET_SENTINEL") {
		t.Errorf("error should name the variable: %v", err)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("CRONUS_TEST_SET", "value")
	tests := []struct{ in, want string }{
		{"plain", "plain"},
		{"${CRONUS_TEST_SET}", "value"},
		{"${CRONUS_TEST_SET:-fallback}", "value"},
		{"${CRONUS_TEST_UNSET_SENTINEL:-fallback}", "fallback"},
		{"${CRONUS_TEST_UNSET_SENTINEL:-}", ""},
		{"a ${CRONUS_TEST_SET} b", "a value b"},
	}
	for _, tt := range tests {
		got, err := expandEnv([]byte(tt.in))
		if err != nil {
			t.Errorf("expandEnv(%q): %v", tt.in, err)
			continue
		}
		if string(got) != tt.want {
			t.Errorf("expandEnv(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/etc/xdg-test")
	path, err := DefaultPath()
	if err != nil {
		t.Fatalf("DefaultPath: %v", err)
	}
	want := filepath.Join("/etc/xdg-test", "cronus", "config.yaml")
	if path != want {
		t.Errorf("DefaultPath() = %q, want %q", path, want)
	}
}

func TestDefaultPath_HomeFallback(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/probe")
	path, err := DefaultPath()
	if err != nil {
		t.Fatalf("DefaultPath: %v", err)
	}
	want := filepath.Join("/home/probe", ".config", "cronus", "config.yaml")
	if path != want {
		t.Errorf("DefaultPath() = %q, want %q", path, want)
	}
}
