// Package daemon wires configured jobs into the scheduler and carries
// the runtime services around them: the execution journal, the event
// hub, prometheus metrics, tracing, and the optional admin server.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/cronus/internal/config"
	"github.com/flemzord/cronus/internal/journal"
	"github.com/flemzord/cronus/internal/telemetry"
	"github.com/flemzord/cronus/pkg/scheduler"
)

// ErrUnknownJob is returned by RunJob for a name not in the config.
var ErrUnknownJob = errors.New("daemon: unknown job")

// stopGrace pads the shutdown deadline beyond the scheduler's drain
// wait so the admin server and the telemetry flush get their turn.
const stopGrace = 5 * time.Second

// AdminServer is the admin HTTP surface. It is started last and
// stopped first, so handlers only ever see a running daemon.
type AdminServer interface {
	Start() error
	Stop(ctx context.Context) error
}

// Options carries the daemon's swappable parts. The zero value uses
// slog.Default(), the real clock, and a real timer pool.
type Options struct {
	Logger *slog.Logger
	// Now substitutes the clock, for tests.
	Now func() time.Time
	// Timer substitutes the scheduler's timer pool, for tests.
	Timer scheduler.Timer
}

// Daemon runs configured jobs until stopped.
type Daemon struct {
	cfg     *config.Resolved
	logger  *slog.Logger
	now     func() time.Time
	timer   scheduler.Timer
	metrics *Metrics
	hub     *Hub
	tracer  trace.Tracer

	baseCtx    context.Context
	baseCancel context.CancelFunc

	// mu guards the lifecycle flags and field installation during
	// Start; teardown runs outside it so admin handlers calling the
	// accessors never block shutdown.
	mu                sync.Mutex
	started           bool
	stopped           bool
	admin             AdminServer
	journal           *journal.Journal
	sched             *scheduler.Scheduler
	runners           map[string]*runner
	telemetryShutdown func(context.Context) error
}

// New builds a daemon from a resolved config. Nothing is opened until
// Start.
func New(cfg *config.Resolved, opts Options) *Daemon {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	d := &Daemon{
		cfg:     cfg,
		logger:  logger,
		now:     now,
		timer:   opts.Timer,
		metrics: NewMetrics(),
		tracer:  otel.Tracer("github.com/flemzord/cronus/internal/daemon"),
		runners: make(map[string]*runner),
	}
	d.hub = NewHub(logger, d.metrics.EventsDropped.Inc)
	d.baseCtx, d.baseCancel = context.WithCancel(context.Background())
	return d
}

// SetAdmin installs the admin server. Must be called before Start.
func (d *Daemon) SetAdmin(a AdminServer) {
	d.mu.Lock()
	d.admin = a
	d.mu.Unlock()
}

// Hub returns the event hub.
func (d *Daemon) Hub() *Hub { return d.hub }

// Metrics returns the daemon's prometheus instruments.
func (d *Daemon) Metrics() *Metrics { return d.metrics }

// Jobs returns the configured jobs in declaration order.
func (d *Daemon) Jobs() []config.Job { return d.cfg.Jobs }

// Journal returns the execution journal, or nil before Start.
func (d *Daemon) Journal() *journal.Journal {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.journal
}

// Running reports whether the scheduler is running.
func (d *Daemon) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sched != nil && d.sched.Running()
}

// Start opens the journal, sets up telemetry, schedules and starts
// every job, and finally starts the admin server when one is set.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return errors.New("daemon: stopped")
	}
	if d.started {
		return errors.New("daemon: already started")
	}
	if err := d.startLocked(ctx); err != nil {
		d.stopped = true
		_ = d.teardown(context.Background())
		return err
	}
	d.started = true
	d.logger.Info("daemon: started", "jobs", len(d.cfg.Jobs))
	return nil
}

func (d *Daemon) startLocked(ctx context.Context) error {
	j, err := journal.Open(d.cfg.JournalPath)
	if err != nil {
		return fmt.Errorf("daemon: %w", err)
	}
	d.journal = j

	shutdown, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint: d.cfg.OTLPEndpoint,
		Sample:   d.cfg.Sample,
	})
	if err != nil {
		return fmt.Errorf("daemon: %w", err)
	}
	d.telemetryShutdown = shutdown

	sched, err := scheduler.New(scheduler.Config{
		Timer:        d.timer,
		Workers:      d.cfg.Workers,
		ShutdownWait: d.cfg.ShutdownWait,
		Location:     d.cfg.Location,
		Now:          d.now,
		Logger:       d.logger,
	})
	if err != nil {
		return fmt.Errorf("daemon: %w", err)
	}
	d.sched = sched

	for _, job := range d.cfg.Jobs {
		r := &runner{
			job:     job,
			logger:  d.logger,
			journal: j,
			metrics: d.metrics,
			hub:     d.hub,
			tracer:  d.tracer,
			now:     d.now,
		}
		d.runners[job.Name] = r
		if _, err := sched.ScheduleIn(job.Pattern, job.Location, r.Run, job.StopOnFailure); err != nil {
			return fmt.Errorf("daemon: scheduling %q: %w", job.Name, err)
		}
	}
	if err := sched.Start(); err != nil {
		return fmt.Errorf("daemon: %w", err)
	}
	d.metrics.JobsScheduled.Set(float64(len(d.cfg.Jobs)))
	d.hub.Publish(Event{Type: EventSchedulerStarted, Time: d.now()})

	if d.admin != nil {
		if err := d.admin.Start(); err != nil {
			return fmt.Errorf("daemon: %w", err)
		}
	}
	return nil
}

// Run starts the daemon and blocks until SIGINT, SIGTERM, or context
// cancellation, then stops it.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		d.logger.Info("daemon: shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		d.logger.Info("daemon: shutting down", "reason", context.Cause(ctx))
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), d.cfg.ShutdownWait+stopGrace)
	defer cancel()
	return d.Stop(stopCtx)
}

// Stop shuts everything down in reverse start order: admin server,
// scheduler, hub, telemetry, then the journal after pruning it. Stop
// is idempotent.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	wasStarted := d.started
	d.mu.Unlock()
	if !wasStarted {
		return nil
	}

	d.hub.Publish(Event{Type: EventSchedulerStopped, Time: d.now()})
	err := d.teardown(ctx)
	d.logger.Info("daemon: stopped")
	return err
}

func (d *Daemon) teardown(ctx context.Context) error {
	var errs []error
	if d.admin != nil {
		if err := d.admin.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("daemon: admin stop: %w", err))
		}
	}
	if d.sched != nil {
		if err := d.sched.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	d.baseCancel()
	d.hub.Close()
	if d.telemetryShutdown != nil {
		if err := d.telemetryShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("daemon: telemetry shutdown: %w", err))
		}
	}
	if d.journal != nil {
		if n, err := d.journal.Prune(ctx, d.cfg.Retain); err != nil {
			errs = append(errs, err)
		} else if n > 0 {
			d.logger.Info("daemon: journal pruned", "removed", n)
		}
		if err := d.journal.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RunJob fires the named job's action out-of-band. The run happens on
// its own goroutine under the daemon's base context; RunJob only
// reports lookup and busy failures.
func (d *Daemon) RunJob(name string) error {
	d.mu.Lock()
	r, ok := d.runners[name]
	live := d.started && !d.stopped
	d.mu.Unlock()
	if !ok {
		return ErrUnknownJob
	}
	if !live {
		return errors.New("daemon: not running")
	}
	if !r.busy.TryLock() {
		return ErrJobBusy
	}
	go func() {
		defer r.busy.Unlock()
		if err := r.execute(d.baseCtx); err != nil {
			d.logger.Warn("daemon: manual run failed", "job", name, "error", err)
		}
	}()
	return nil
}
