package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/cronus/internal/config"
	"github.com/flemzord/cronus/internal/journal"
)

// ErrJobBusy is returned by an out-of-band fire while the job's
// previous run is still executing.
var ErrJobBusy = errors.New("daemon: job already running")

// outputTailLimit bounds how much command output is kept for error
// reports.
const outputTailLimit = 4 << 10

// runner executes one configured job. Every execution is journaled,
// traced, counted, and announced on the hub.
type runner struct {
	job     config.Job
	logger  *slog.Logger
	journal *journal.Journal
	metrics *Metrics
	hub     *Hub
	tracer  trace.Tracer
	now     func() time.Time

	// busy serializes executions of this job across the scheduled and
	// out-of-band paths. A scheduled occurrence that loses the race is
	// journaled as skipped; an out-of-band fire reports ErrJobBusy.
	busy sync.Mutex
}

// Run is the scheduler action for the job's pattern.
func (r *runner) Run(ctx context.Context) error {
	if !r.busy.TryLock() {
		r.recordSkipped()
		return nil
	}
	defer r.busy.Unlock()
	return r.execute(ctx)
}

// execute performs one run. The caller holds r.busy.
func (r *runner) execute(ctx context.Context) error {
	started := r.now()
	ctx, span := r.tracer.Start(ctx, "cronus.job.run", trace.WithAttributes(
		attribute.String("cronus.job", r.job.Name),
		attribute.String("cronus.pattern", r.job.Pattern.String()),
	))
	defer span.End()

	r.logger.Info("daemon: job starting", "job", r.job.Name)
	r.hub.Publish(Event{Type: EventJobStarted, Time: started, Job: r.job.Name})

	id, jerr := r.journal.Begin(ctx, r.job.Name, r.job.Pattern.String(), started)
	if jerr != nil {
		r.logger.Error("daemon: journal write failed", "job", r.job.Name, "error", jerr)
	}

	err := r.runCommand(ctx)
	elapsed := r.now().Sub(started)

	status := journal.StatusOK
	errText := ""
	if err != nil {
		status = journal.StatusError
		errText = err.Error()
	}

	span.SetAttributes(attribute.String("cronus.status", string(status)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Warn("daemon: job failed", "job", r.job.Name, "duration", elapsed, "error", err)
	} else {
		r.logger.Info("daemon: job finished", "job", r.job.Name, "duration", elapsed)
	}

	r.metrics.JobRuns.WithLabelValues(r.job.Name, string(status)).Inc()
	r.metrics.JobDuration.WithLabelValues(r.job.Name).Observe(elapsed.Seconds())

	if jerr == nil {
		// The run context may be cancelled by now; the journal write
		// must still land.
		if ferr := r.journal.Finish(context.WithoutCancel(ctx), id, status, errText, elapsed); ferr != nil {
			r.logger.Error("daemon: journal write failed", "job", r.job.Name, "error", ferr)
		}
	}

	r.hub.Publish(Event{
		Type:     EventJobFinished,
		Time:     r.now(),
		Job:      r.job.Name,
		Status:   string(status),
		Duration: elapsed.Milliseconds(),
		Error:    errText,
	})
	return err
}

// cmdWaitDelay bounds how long a cancelled run may hold its output
// pipes open before they are abandoned. It only matters when a child
// survives the group kill, or on platforms without one.
const cmdWaitDelay = 5 * time.Second

// runCommand runs the job's command with CRONUS_JOB in its
// environment, keeping the output tail for error reports. The command
// gets its own process group so cancellation reaches children too;
// killing only the direct child would leave grandchildren holding the
// inherited output pipes, keeping the run alive past its timeout.
func (r *runner) runCommand(ctx context.Context) error {
	if r.job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.job.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.job.Command[0], r.job.Command[1:]...)
	cmd.Env = append(os.Environ(), "CRONUS_JOB="+r.job.Name)
	tail := &tailBuffer{limit: outputTailLimit}
	cmd.Stdout = tail
	cmd.Stderr = tail
	cmd.WaitDelay = cmdWaitDelay
	setProcessGroup(cmd)

	if err := cmd.Run(); err != nil {
		if excerpt := tail.String(); excerpt != "" {
			return fmt.Errorf("%w\noutput: %s", err, excerpt)
		}
		return err
	}
	return nil
}

// recordSkipped journals an occurrence that fired while the previous
// run of the same job was still executing.
func (r *runner) recordSkipped() {
	at := r.now()
	r.logger.Warn("daemon: occurrence skipped, previous run still active", "job", r.job.Name)
	r.metrics.JobRuns.WithLabelValues(r.job.Name, string(journal.StatusSkipped)).Inc()

	ctx := context.Background()
	id, err := r.journal.Begin(ctx, r.job.Name, r.job.Pattern.String(), at)
	if err == nil {
		err = r.journal.Finish(ctx, id, journal.StatusSkipped, "", 0)
	}
	if err != nil {
		r.logger.Error("daemon: journal write failed", "job", r.job.Name, "error", err)
	}

	r.hub.Publish(Event{
		Type:   EventJobFinished,
		Time:   at,
		Job:    r.job.Name,
		Status: string(journal.StatusSkipped),
	})
}

// tailBuffer is an io.Writer keeping only the last limit bytes.
// exec.Cmd serializes writes when the same writer serves stdout and
// stderr, so no locking is needed.
type tailBuffer struct {
	limit     int
	buf       []byte
	truncated bool
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if n > t.limit {
		t.buf = append(t.buf[:0], p[n-t.limit:]...)
		t.truncated = true
		return n, nil
	}
	if over := len(t.buf) + n - t.limit; over > 0 {
		t.buf = t.buf[over:]
		t.truncated = true
	}
	t.buf = append(t.buf, p...)
	return n, nil
}

// String returns the retained tail, prefixed with an ellipsis when
// earlier output was discarded.
func (t *tailBuffer) String() string {
	if t.truncated {
		return "..." + string(t.buf)
	}
	return string(t.buf)
}
