package daemon

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/flemzord/cronus/internal/config"
	"github.com/flemzord/cronus/internal/journal"
	"github.com/flemzord/cronus/pkg/cron"
)

// newTestRunner wires a runner to a throwaway journal and hub. The
// returned subscription sees every published event.
func newTestRunner(t *testing.T, job config.Job) (*runner, *Subscription) {
	t.Helper()
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })

	hub := NewHub(nil, nil)
	sub := hub.Subscribe(16)
	return &runner{
		job:     job,
		logger:  testLogger(),
		journal: j,
		metrics: NewMetrics(),
		hub:     hub,
		tracer:  noop.NewTracerProvider().Tracer(""),
		now:     time.Now,
	}, sub
}

func testJob(name string, command ...string) config.Job {
	return config.Job{
		Name:     name,
		Pattern:  cron.MustParse("* * * * *"),
		Command:  command,
		Location: time.UTC,
	}
}

func TestRunner_Success(t *testing.T) {
	t.Parallel()
	r, sub := newTestRunner(t, testJob("greet", "sh", "-c", "exit 0"))

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	runs, err := r.journal.Recent(context.Background(), "greet", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("len(runs) = %d, want 1", len(runs))
	}
	if runs[0].Status != journal.StatusOK {
		t.Errorf("status = %q, want ok", runs[0].Status)
	}
	if runs[0].Error != "" {
		t.Errorf("error = %q, want empty", runs[0].Error)
	}

	started := <-sub.C
	if started.Type != EventJobStarted || started.Job != "greet" {
		t.Errorf("first event = %+v, want job.started for greet", started)
	}
	finished := <-sub.C
	if finished.Type != EventJobFinished || finished.Status != "ok" {
		t.Errorf("second event = %+v, want job.finished ok", finished)
	}

	if got := testutil.ToFloat64(r.metrics.JobRuns.WithLabelValues("greet", "ok")); got != 1 {
		t.Errorf("job_runs_total{greet,ok} = %v, want 1", got)
	}
}

func TestRunner_Failure(t *testing.T) {
	t.Parallel()
	r, sub := newTestRunner(t, testJob("broken", "sh", "-c", "echo boom >&2; exit 3"))

	err := r.Run(context.Background())
	if err == nil {
		t.Fatal("Run succeeded, want failure")
	}
	if !strings.Contains(err.Error(), "exit status 3") {
		t.Errorf("error = %v, want exit status 3", err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error = %v, want captured output", err)
	}

	runs, jerr := r.journal.Recent(context.Background(), "broken", 10)
	if jerr != nil {
		t.Fatalf("Recent: %v", jerr)
	}
	if len(runs) != 1 || runs[0].Status != journal.StatusError {
		t.Fatalf("runs = %+v, want one error run", runs)
	}
	if !strings.Contains(runs[0].Error, "boom") {
		t.Errorf("journaled error = %q, want captured output", runs[0].Error)
	}

	<-sub.C // job.started
	finished := <-sub.C
	if finished.Status != "error" || !strings.Contains(finished.Error, "exit status 3") {
		t.Errorf("finished event = %+v, want error status", finished)
	}
	if got := testutil.ToFloat64(r.metrics.JobRuns.WithLabelValues("broken", "error")); got != 1 {
		t.Errorf("job_runs_total{broken,error} = %v, want 1", got)
	}
}

func TestRunner_Timeout(t *testing.T) {
	t.Parallel()
	job := testJob("slow", "sh", "-c", "sleep 5")
	job.Timeout = 50 * time.Millisecond
	r, _ := newTestRunner(t, job)

	start := time.Now()
	err := r.Run(context.Background())
	if err == nil {
		t.Fatal("Run succeeded, want timeout failure")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Run took %v, timeout did not bite", elapsed)
	}

	runs, jerr := r.journal.Recent(context.Background(), "slow", 10)
	if jerr != nil {
		t.Fatalf("Recent: %v", jerr)
	}
	if len(runs) != 1 || runs[0].Status != journal.StatusError {
		t.Fatalf("runs = %+v, want one error run", runs)
	}
}

func TestRunner_TimeoutKillsChildren(t *testing.T) {
	t.Parallel()
	// The shell exits only when its background child does. Without a
	// process-group kill the child survives the timeout holding the
	// output pipe, and the run blocks for the child's full duration.
	job := testJob("spawner", "sh", "-c", "sleep 3 & wait")
	job.Timeout = 50 * time.Millisecond
	r, _ := newTestRunner(t, job)

	start := time.Now()
	if err := r.Run(context.Background()); err == nil {
		t.Fatal("Run succeeded, want timeout failure")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Run took %v; a background child outlived the timeout", elapsed)
	}
}

func TestRunner_SetsJobEnv(t *testing.T) {
	t.Parallel()
	r, _ := newTestRunner(t, testJob("envjob", "sh", "-c", `test "$CRONUS_JOB" = envjob`))

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v, want CRONUS_JOB visible to the command", err)
	}
}

func TestRunner_SkipsWhileBusy(t *testing.T) {
	t.Parallel()
	r, sub := newTestRunner(t, testJob("busy", "sh", "-c", "exit 0"))

	r.busy.Lock()
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run while busy = %v, want nil", err)
	}
	r.busy.Unlock()

	runs, err := r.journal.Recent(context.Background(), "busy", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != journal.StatusSkipped {
		t.Fatalf("runs = %+v, want one skipped run", runs)
	}
	if got := testutil.ToFloat64(r.metrics.JobRuns.WithLabelValues("busy", "skipped")); got != 1 {
		t.Errorf("job_runs_total{busy,skipped} = %v, want 1", got)
	}

	ev := <-sub.C
	if ev.Type != EventJobFinished || ev.Status != "skipped" {
		t.Errorf("event = %+v, want job.finished skipped", ev)
	}
}

func TestTailBuffer(t *testing.T) {
	t.Parallel()

	t.Run("under limit", func(t *testing.T) {
		tail := &tailBuffer{limit: 16}
		_, _ = tail.Write([]byte("hello "))
		_, _ = tail.Write([]byte("world"))
		if got := tail.String(); got != "hello world" {
			t.Errorf("String() = %q, want hello world", got)
		}
	})

	t.Run("overflow keeps tail", func(t *testing.T) {
		tail := &tailBuffer{limit: 8}
		_, _ = tail.Write([]byte("abcdefgh"))
		_, _ = tail.Write([]byte("XYZ"))
		if got := tail.String(); got != "...defghXYZ" {
			t.Errorf("String() = %q, want ...defghXYZ", got)
		}
	})

	t.Run("single oversized write", func(t *testing.T) {
		tail := &tailBuffer{limit: 4}
		_, _ = tail.Write([]byte("0123456789"))
		if got := tail.String(); got != "...6789" {
			t.Errorf("String() = %q, want ...6789", got)
		}
	})
}
