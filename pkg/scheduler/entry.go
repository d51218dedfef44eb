package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flemzord/cronus/pkg/cron"
)

// Entry is the handle returned by Schedule. It stays live until it is
// cancelled or, for stop-on-failure entries, until its action fails;
// Done and Err observe that completion.
type Entry struct {
	id            uuid.UUID
	pattern       cron.Pattern
	loc           *time.Location
	action        Action
	stopOnFailure bool
	sched         *Scheduler

	mu        sync.Mutex
	completed bool
	running   bool
	err       error
	runCancel context.CancelFunc
	done      chan struct{}
}

// ID returns the entry's unique identifier.
func (e *Entry) ID() uuid.UUID { return e.id }

// Pattern returns the scheduled pattern.
func (e *Entry) Pattern() cron.Pattern { return e.pattern }

// Location returns the zone the pattern's occurrences are computed in.
func (e *Entry) Location() *time.Location { return e.loc }

// Done returns a channel closed when the entry completes: after Cancel,
// or after a failing action on a stop-on-failure entry. Entries that
// keep running never close it.
func (e *Entry) Done() <-chan struct{} { return e.done }

// Err returns nil while the entry is live, ErrCancelled after Cancel,
// or the action's error after a stop-on-failure completion.
func (e *Entry) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Cancel stops all future executions of the entry and reports whether
// this call was the one that completed it. When interrupt is set the
// context of an in-flight execution is cancelled as well; otherwise a
// running action finishes undisturbed.
func (e *Entry) Cancel(interrupt bool) bool {
	first := e.complete(ErrCancelled)
	e.sched.removeEntry(e, interrupt)
	return first
}

func (e *Entry) complete(err error) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.completed {
		return false
	}
	e.completed = true
	e.err = err
	close(e.done)
	return true
}

func (e *Entry) isDone() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.completed
}

// tryBeginRun claims the entry's single execution slot and derives the
// context for that run, remembering its cancel hook for
// Cancel(interrupt). It reports false when an earlier occurrence is
// still executing; the caller must then skip this occurrence.
func (e *Entry) tryBeginRun(base context.Context) (context.Context, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil, false
	}
	e.running = true
	ctx, cancel := context.WithCancel(base)
	e.runCancel = cancel
	return ctx, true
}

func (e *Entry) endRun() {
	e.mu.Lock()
	e.running = false
	cancel := e.runCancel
	e.runCancel = nil
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (e *Entry) interruptRun() {
	e.mu.Lock()
	cancel := e.runCancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// invoke runs the action, converting a panic into an error.
func (e *Entry) invoke(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduler: action panicked: %v", r)
		}
	}()
	return e.action(ctx)
}

// patternText names the entry in log records: the source expression
// when parsed, the canonical form otherwise.
func (e *Entry) patternText() string {
	if src := e.pattern.Source(); src != "" {
		return src
	}
	return e.pattern.String()
}
