// Package scheduler executes actions on cron patterns. Each scheduled
// pattern re-arms its next occurrence before running its action, so a
// slow execution never delays the following one and at most one
// execution per pattern is in flight; occurrences that come due while
// their predecessor still runs are skipped.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flemzord/cronus/pkg/cron"
)

var (
	// ErrStarted is returned by Start on a scheduler that already
	// started.
	ErrStarted = errors.New("scheduler: already started")
	// ErrStopped is returned by Start and Schedule after Stop.
	ErrStopped = errors.New("scheduler: stopped")
	// ErrCancelled is reported by Entry.Err after a cancellation.
	ErrCancelled = errors.New("scheduler: entry cancelled")
	// ErrNeverFires is returned by Schedule for a pattern with no
	// occurrences.
	ErrNeverFires = errors.New("scheduler: pattern never fires")
)

// Action is the work an entry performs at each occurrence. The context
// is cancelled by Stop and by Cancel(interrupt).
type Action func(ctx context.Context) error

// Config configures a Scheduler. The zero value is usable: local time,
// the real clock, and a built-in timer pool.
type Config struct {
	// Timer runs the delayed callbacks. Nil builds a TimerPool from
	// the fields below; a non-nil Timer makes them irrelevant except
	// ShutdownWait.
	Timer Timer

	Workers             int
	WorkerName          func(i int) string
	OnReject            func()
	KeepCancelled       bool
	RunPendingAfterStop bool

	// ShutdownWait bounds how long Stop waits for the timer to drain.
	// Zero drops pending work immediately.
	ShutdownWait time.Duration
	// Location is the zone occurrences are computed in for Schedule.
	// Defaults to time.Local.
	Location *time.Location
	// Now is the clock used to compute delays. Defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

const (
	phaseBuffering = iota
	phaseDraining
	phaseRunning
	phaseStopped
)

// Scheduler runs scheduled patterns. Entries scheduled before Start
// are buffered and armed by Start; later ones are armed immediately.
type Scheduler struct {
	timer        Timer
	shutdownWait time.Duration
	loc          *time.Location
	now          func() time.Time
	logger       *slog.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc

	// mu guards phase and the buffered reference; the maps themselves
	// are safe for concurrent use, so firings never take mu.
	mu       sync.RWMutex
	phase    int
	buffered *sync.Map // *Entry -> struct{}

	entries sync.Map // *Entry -> *record
}

// record tracks one live entry's timer tasks: current is the task
// whose callback is executing or just executed, next the armed one.
type record struct {
	current TimerTask
	next    TimerTask
}

// New builds a scheduler from cfg.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("scheduler: negative worker count %d", cfg.Workers)
	}
	if cfg.ShutdownWait < 0 {
		return nil, fmt.Errorf("scheduler: negative shutdown wait %v", cfg.ShutdownWait)
	}
	s := &Scheduler{
		shutdownWait: cfg.ShutdownWait,
		loc:          cfg.Location,
		now:          cfg.Now,
		logger:       cfg.Logger,
		buffered:     &sync.Map{},
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.timer = cfg.Timer
	if s.timer == nil {
		s.timer = NewTimer(TimerConfig{
			Workers:             cfg.Workers,
			WorkerName:          cfg.WorkerName,
			OnReject:            cfg.OnReject,
			KeepCancelled:       cfg.KeepCancelled,
			RunPendingAfterStop: cfg.RunPendingAfterStop,
			Logger:              s.logger,
		})
	}
	s.baseCtx, s.baseCancel = context.WithCancel(context.Background())
	return s, nil
}

// Schedule submits a pattern for repeated execution in the scheduler's
// location. Before Start the entry is parked and armed by Start; after
// Start it is armed immediately. Patterns that can never fire and nil
// actions are rejected.
func (s *Scheduler) Schedule(p cron.Pattern, action Action, stopOnFailure bool) (*Entry, error) {
	return s.ScheduleIn(p, s.loc, action, stopOnFailure)
}

// ScheduleIn is Schedule with the occurrence computation pinned to loc
// instead of the scheduler's location.
func (s *Scheduler) ScheduleIn(p cron.Pattern, loc *time.Location, action Action, stopOnFailure bool) (*Entry, error) {
	if action == nil {
		return nil, errors.New("scheduler: nil action")
	}
	if p.IsEmpty() {
		return nil, ErrNeverFires
	}
	if loc == nil {
		loc = s.loc
	}
	e := &Entry{
		id:            uuid.New(),
		pattern:       p,
		loc:           loc,
		action:        action,
		stopOnFailure: stopOnFailure,
		sched:         s,
		done:          make(chan struct{}),
	}

	s.mu.RLock()
	switch s.phase {
	case phaseStopped:
		s.mu.RUnlock()
		return nil, ErrStopped
	case phaseBuffering:
		s.buffered.Store(e, struct{}{})
		s.mu.RUnlock()
		return e, nil
	}
	s.mu.RUnlock()
	s.arm(e)
	return e, nil
}

// Start arms all buffered entries and begins executing. Start on a
// started scheduler returns ErrStarted, on a stopped one ErrStopped.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	switch s.phase {
	case phaseStopped:
		s.mu.Unlock()
		return ErrStopped
	case phaseDraining, phaseRunning:
		s.mu.Unlock()
		return ErrStarted
	}
	parked := s.buffered
	s.buffered = nil
	s.phase = phaseDraining
	s.mu.Unlock()

	armed := 0
	parked.Range(func(key, _ any) bool {
		e := key.(*Entry)
		if !e.isDone() {
			s.arm(e)
			armed++
		}
		return true
	})

	s.mu.Lock()
	s.phase = phaseRunning
	s.mu.Unlock()
	s.logger.Info("scheduler: started", "entries", armed)
	return nil
}

// Stop cancels every execution context and shuts the timer down,
// waiting up to ShutdownWait for it to drain. Entries stay cancellable
// afterwards. Stop is idempotent.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.phase == phaseStopped {
		s.mu.Unlock()
		return nil
	}
	s.buffered = nil
	s.phase = phaseStopped
	s.mu.Unlock()

	s.baseCancel()
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownWait)
	defer cancel()
	err := s.timer.Stop(ctx)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if err != nil {
		s.logger.Debug("scheduler: timer drain cut short", "wait", s.shutdownWait)
	}
	s.logger.Info("scheduler: stopped")
	return nil
}

// Running reports whether the scheduler is between Start and Stop.
func (s *Scheduler) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase == phaseDraining || s.phase == phaseRunning
}

// Len returns the number of buffered and live entries.
func (s *Scheduler) Len() int {
	n := 0
	s.mu.RLock()
	if s.buffered != nil {
		s.buffered.Range(func(_, _ any) bool { n++; return true })
	}
	s.mu.RUnlock()
	s.entries.Range(func(_, _ any) bool { n++; return true })
	return n
}

// arm installs an entry's first timer task. An entry cancelled while
// its record was being installed is removed again here, so no armed
// task outlives its cancellation.
func (s *Scheduler) arm(e *Entry) {
	s.entries.Store(e, &record{next: s.submit(e, true)})
	if e.isDone() {
		s.removeEntry(e, false)
	}
}

// submit computes the delay to the entry's next occurrence and hands
// the firing callback to the timer. The first arming is inclusive so
// an occurrence happening right now is not missed; re-arms are
// exclusive.
func (s *Scheduler) submit(e *Entry, inclusive bool) TimerTask {
	now := s.now().In(e.loc)
	next, ok := e.pattern.Next(now, inclusive)
	if !ok {
		// Unreachable: emptiness is rejected by Schedule.
		return rejectedTask{}
	}
	var delay time.Duration
	if !next.Equal(now) {
		delay = next.Sub(now)
	}
	return s.timer.AfterFunc(delay, func() { s.fire(e) })
}

// fire is one occurrence callback. It re-arms before acting: the
// record swap installs the successor task first, so the action's
// runtime never postpones the next occurrence. Losing the swap means
// the entry was cancelled concurrently, in which case the just-armed
// task is cancelled and nothing runs. An occurrence whose predecessor
// is still executing is skipped, keeping executions of one pattern
// non-overlapping; its successor stays armed.
func (s *Scheduler) fire(e *Entry) {
	v, ok := s.entries.Load(e)
	if !ok {
		return
	}
	old := v.(*record)
	next := &record{current: old.next, next: s.submit(e, false)}
	if !s.entries.CompareAndSwap(e, old, next) {
		next.next.Cancel()
		return
	}

	ctx, claimed := e.tryBeginRun(s.baseCtx)
	if !claimed {
		s.logger.Debug("scheduler: skipping occurrence, previous run still active",
			"pattern", e.patternText(),
		)
		return
	}
	err := e.invoke(ctx)
	e.endRun()
	if err == nil {
		return
	}
	if e.stopOnFailure {
		e.complete(err)
		s.removeEntry(e, false)
		return
	}
	s.logger.Warn("scheduler: ignoring action failure",
		"pattern", e.patternText(),
		"error", err,
	)
}

// removeEntry takes an entry out of the buffer or the live map and
// cancels its tasks. A buffered entry has no tasks yet, so finding it
// there ends the removal.
func (s *Scheduler) removeEntry(e *Entry, interrupt bool) {
	s.mu.RLock()
	if s.phase == phaseBuffering {
		if _, loaded := s.buffered.LoadAndDelete(e); loaded {
			s.mu.RUnlock()
			return
		}
	}
	s.mu.RUnlock()

	if v, loaded := s.entries.LoadAndDelete(e); loaded {
		rec := v.(*record)
		if rec.current != nil {
			rec.current.Cancel()
		}
		if rec.next != nil {
			rec.next.Cancel()
		}
	}
	if interrupt {
		e.interruptRun()
	}
}
