package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/flemzord/cronus/internal/config"
	"github.com/flemzord/cronus/internal/daemon"
	"github.com/flemzord/cronus/internal/journal"
	"github.com/flemzord/cronus/pkg/cron"
	"github.com/flemzord/cronus/pkg/scheduler/schedtest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testJob(name string, command ...string) config.Job {
	return config.Job{
		Name:     name,
		Pattern:  cron.MustParse("*/5 * * * *"),
		Command:  command,
		Location: time.UTC,
	}
}

// startTestServer brings up a daemon on a fake timer plus a real
// admin server on an ephemeral loopback port.
func startTestServer(t *testing.T, jobs ...config.Job) (*Server, *daemon.Daemon) {
	t.Helper()
	cfg := &config.Resolved{
		Workers:      2,
		ShutdownWait: time.Second,
		Location:     time.UTC,
		JournalPath:  filepath.Join(t.TempDir(), "journal.db"),
		Retain:       24 * time.Hour,
		Sample:       1,
		Jobs:         jobs,
	}
	d := daemon.New(cfg, daemon.Options{
		Logger: testLogger(),
		Timer:  &schedtest.MockTimer{},
	})
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.Stop(ctx)
	})

	s := New("127.0.0.1:0", d, testLogger())
	if err := s.Start(); err != nil {
		t.Fatalf("server start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s, d
}

func get(t *testing.T, s *Server, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get("http://" + s.Addr() + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading %s body: %v", path, err)
	}
	return resp, body
}

func TestServer_Health(t *testing.T) {
	t.Parallel()
	s, _ := startTestServer(t, testJob("tick", "true"))

	resp, body := get(t, s, "/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var h HealthResponse
	if err := json.Unmarshal(body, &h); err != nil {
		t.Fatalf("decoding body %q: %v", body, err)
	}
	if h.Status != "ok" || h.Scheduler != "running" || h.Jobs != 1 {
		t.Errorf("health = %+v", h)
	}
}

func TestServer_HealthAfterStop(t *testing.T) {
	t.Parallel()
	s, d := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// Stop the daemon but keep the HTTP listener alive so the probe
	// can still be answered.
	if err := d.Stop(ctx); err != nil {
		t.Fatalf("daemon stop: %v", err)
	}

	resp, _ := get(t, s, "/healthz")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestServer_ListJobs(t *testing.T) {
	t.Parallel()
	s, _ := startTestServer(t, testJob("backup", "sh", "-c", "exit 0"), testJob("probe", "true"))

	resp, body := get(t, s, "/api/jobs")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var jobs []jobJSON
	if err := json.Unmarshal(body, &jobs); err != nil {
		t.Fatalf("decoding body %q: %v", body, err)
	}
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2", len(jobs))
	}
	if jobs[0].Name != "backup" || jobs[1].Name != "probe" {
		t.Errorf("job order = %q, %q", jobs[0].Name, jobs[1].Name)
	}
	if want := "0,5,10,15,20,25,30,35,40,45,50,55 * * * *"; jobs[0].Schedule != want {
		t.Errorf("schedule = %q, want %q", jobs[0].Schedule, want)
	}
	if len(jobs[0].Next) != upcomingCount {
		t.Errorf("got %d upcoming occurrences, want %d", len(jobs[0].Next), upcomingCount)
	}
	// Occurrences must be strictly increasing RFC3339 instants.
	for i := 1; i < len(jobs[0].Next); i++ {
		prev, err1 := time.Parse(time.RFC3339, jobs[0].Next[i-1])
		cur, err2 := time.Parse(time.RFC3339, jobs[0].Next[i])
		if err1 != nil || err2 != nil || !cur.After(prev) {
			t.Errorf("occurrences not increasing: %v", jobs[0].Next)
			break
		}
	}
}

func TestServer_GetJob(t *testing.T) {
	t.Parallel()
	s, _ := startTestServer(t, testJob("backup", "true"))

	resp, body := get(t, s, "/api/jobs/backup")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out struct {
		jobJSON
		Runs []runJSON `json:"runs"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decoding body %q: %v", body, err)
	}
	if out.Name != "backup" {
		t.Errorf("name = %q", out.Name)
	}
	if out.Runs == nil {
		t.Error("runs field absent; want empty array")
	}

	resp, _ = get(t, s, "/api/jobs/nope")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown job status = %d, want 404", resp.StatusCode)
	}
}

func TestServer_RunJob(t *testing.T) {
	t.Parallel()
	s, d := startTestServer(t, testJob("quick", "sh", "-c", "exit 0"))

	resp, err := http.Post("http://"+s.Addr()+"/api/jobs/quick/run", "", nil)
	if err != nil {
		t.Fatalf("POST run: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want 202", resp.StatusCode)
	}

	resp, err = http.Post("http://"+s.Addr()+"/api/jobs/nope/run", "", nil)
	if err != nil {
		t.Fatalf("POST run: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown job status = %d, want 404", resp.StatusCode)
	}

	// The fired run lands in the journal eventually. The row appears
	// as running when Begin commits, so poll until it reaches a
	// terminal status.
	deadline := time.Now().Add(5 * time.Second)
	for {
		runs, err := d.Journal().Recent(context.Background(), "quick", 10)
		if err != nil {
			t.Fatalf("journal query: %v", err)
		}
		if len(runs) > 0 && runs[0].Status != journal.StatusRunning {
			if runs[0].Status != journal.StatusOK {
				t.Errorf("run status = %q, want ok", runs[0].Status)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("manual run never finished in the journal")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServer_History(t *testing.T) {
	t.Parallel()
	s, d := startTestServer(t, testJob("tick", "true"))

	id, err := d.Journal().Begin(context.Background(), "tick", "*/5 * * * *", time.Now())
	if err != nil {
		t.Fatalf("journal begin: %v", err)
	}
	if err := d.Journal().Finish(context.Background(), id, "ok", "", time.Second); err != nil {
		t.Fatalf("journal finish: %v", err)
	}

	resp, body := get(t, s, "/api/history?job=tick&limit=5")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var runs []runJSON
	if err := json.Unmarshal(body, &runs); err != nil {
		t.Fatalf("decoding body %q: %v", body, err)
	}
	if len(runs) != 1 || runs[0].Job != "tick" || runs[0].Status != "ok" {
		t.Errorf("history = %+v", runs)
	}

	resp, _ = get(t, s, "/api/history?limit=zero")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", resp.StatusCode)
	}
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()
	s, _ := startTestServer(t, testJob("tick", "true"))

	resp, body := get(t, s, "/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(string(body), "cronus_jobs_scheduled 1") {
		t.Error("metrics output missing cronus_jobs_scheduled")
	}
}

func TestServer_EventStream(t *testing.T) {
	t.Parallel()
	s, d := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, fmt.Sprintf("ws://%s/ws/events", s.Addr()), nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	// The subscription races the dial; retry until the published
	// event arrives at a live subscriber.
	got := make(chan daemon.Event, 1)
	go func() {
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var ev daemon.Event
			if json.Unmarshal(data, &ev) == nil && ev.Type == daemon.EventJobFinished {
				got <- ev
				return
			}
		}
	}()

	deadline := time.Now().Add(3 * time.Second)
	for {
		d.Hub().Publish(daemon.Event{
			Type:   daemon.EventJobFinished,
			Time:   time.Now(),
			Job:    "tick",
			Status: "ok",
		})
		select {
		case ev := <-got:
			if ev.Job != "tick" || ev.Status != "ok" {
				t.Errorf("event = %+v", ev)
			}
			return
		case <-time.After(50 * time.Millisecond):
		}
		if time.Now().After(deadline) {
			t.Fatal("published event never reached the websocket client")
		}
	}
}
