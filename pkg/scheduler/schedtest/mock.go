// Package schedtest provides test doubles for the scheduler package.
package schedtest

import (
	"context"
	"sync"
	"time"

	"github.com/flemzord/cronus/pkg/scheduler"
)

// Clock is a hand-advanced clock for scheduler.Config.Now.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock frozen at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set jumps the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// MockTimer is a test double for scheduler.Timer. It records every
// submission; tests fire tasks by hand instead of waiting for real
// deadlines.
type MockTimer struct {
	StopFunc func(ctx context.Context) error

	mu      sync.Mutex
	tasks   []*MockTask
	stopped bool
}

// Compile-time interface check.
var _ scheduler.Timer = (*MockTimer)(nil)

// AfterFunc implements scheduler.Timer. After Stop it records nothing
// and returns a task whose Cancel reports false.
func (m *MockTimer) AfterFunc(d time.Duration, fn func()) scheduler.TimerTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return &MockTask{Delay: d, cancelled: true}
	}
	t := &MockTask{Delay: d, fn: fn}
	m.tasks = append(m.tasks, t)
	return t
}

// Stop implements scheduler.Timer.
func (m *MockTimer) Stop(ctx context.Context) error {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
	if m.StopFunc != nil {
		return m.StopFunc(ctx)
	}
	return nil
}

// Stopped reports whether Stop was called.
func (m *MockTimer) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// Tasks returns a snapshot of every recorded submission in order.
func (m *MockTimer) Tasks() []*MockTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MockTask(nil), m.tasks...)
}

// Last returns the most recent submission, or nil.
func (m *MockTimer) Last() *MockTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.tasks) == 0 {
		return nil
	}
	return m.tasks[len(m.tasks)-1]
}

// MockTask is one recorded submission. Fire runs its callback on the
// calling goroutine.
type MockTask struct {
	Delay time.Duration

	fn        func()
	mu        sync.Mutex
	cancelled bool
	fired     bool
}

// Cancel implements scheduler.TimerTask.
func (t *MockTask) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled || t.fired {
		return false
	}
	t.cancelled = true
	return true
}

// Cancelled reports whether Cancel succeeded on this task.
func (t *MockTask) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Fire runs the callback as if the deadline arrived, reporting false
// for cancelled or already-fired tasks.
func (t *MockTask) Fire() bool {
	t.mu.Lock()
	if t.cancelled || t.fired {
		t.mu.Unlock()
		return false
	}
	t.fired = true
	fn := t.fn
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
	return true
}
