package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

const waitLong = 5 * time.Second

func stopPool(t *testing.T, p *TimerPool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitLong)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Errorf("stop: %v", err)
	}
}

func TestTimerPool_RunsCallback(t *testing.T) {
	t.Parallel()

	p := NewTimer(TimerConfig{Workers: 2})
	ran := make(chan struct{})
	p.AfterFunc(10*time.Millisecond, func() { close(ran) })

	select {
	case <-ran:
	case <-time.After(waitLong):
		t.Fatal("callback did not run")
	}
	stopPool(t, p)
}

func TestTimerPool_DeadlineOrder(t *testing.T) {
	t.Parallel()

	// One worker serializes execution, so callbacks run in deadline
	// order even if both come due together.
	p := NewTimer(TimerConfig{Workers: 1})
	order := make(chan string, 2)
	p.AfterFunc(500*time.Millisecond, func() { order <- "late" })
	p.AfterFunc(50*time.Millisecond, func() { order <- "early" })

	for _, want := range []string{"early", "late"} {
		select {
		case got := <-order:
			if got != want {
				t.Fatalf("callback order: got %q, want %q", got, want)
			}
		case <-time.After(waitLong):
			t.Fatal("callback did not run")
		}
	}
	stopPool(t, p)
}

func TestTimerPool_CancelPending(t *testing.T) {
	t.Parallel()

	p := NewTimer(TimerConfig{})
	task := p.AfterFunc(time.Hour, func() { t.Error("cancelled callback ran") })
	if !task.Cancel() {
		t.Fatal("first Cancel = false, want true")
	}
	if task.Cancel() {
		t.Fatal("second Cancel = true, want false")
	}
	if got := p.Pending(); got != 0 {
		t.Errorf("Pending() = %d, want 0 after eager removal", got)
	}
	stopPool(t, p)
}

func TestTimerPool_KeepCancelled(t *testing.T) {
	t.Parallel()

	p := NewTimer(TimerConfig{KeepCancelled: true})
	task := p.AfterFunc(time.Hour, func() { t.Error("cancelled callback ran") })
	if !task.Cancel() {
		t.Fatal("Cancel = false, want true")
	}
	if got := p.Pending(); got != 1 {
		t.Errorf("Pending() = %d, want 1 with KeepCancelled", got)
	}
	stopPool(t, p)
}

func TestTimerPool_RejectAfterStop(t *testing.T) {
	t.Parallel()

	var rejected atomic.Int32
	p := NewTimer(TimerConfig{OnReject: func() { rejected.Add(1) }})
	stopPool(t, p)

	task := p.AfterFunc(time.Millisecond, func() { t.Error("callback ran after stop") })
	if got := rejected.Load(); got != 1 {
		t.Errorf("rejections = %d, want 1", got)
	}
	if task.Cancel() {
		t.Error("Cancel on a rejected task = true, want false")
	}
}

func TestTimerPool_StopDropsPending(t *testing.T) {
	t.Parallel()

	p := NewTimer(TimerConfig{})
	fired := make(chan struct{})
	p.AfterFunc(time.Hour, func() { close(fired) })
	stopPool(t, p)

	select {
	case <-fired:
		t.Error("pending callback ran after stop")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTimerPool_RunPendingAfterStop(t *testing.T) {
	t.Parallel()

	p := NewTimer(TimerConfig{RunPendingAfterStop: true})
	fired := make(chan struct{})
	p.AfterFunc(30*time.Millisecond, func() { close(fired) })
	stopPool(t, p)

	select {
	case <-fired:
	case <-time.After(waitLong):
		t.Error("pending callback did not run before stop returned")
	}
}

func TestTimerPool_StopDeadline(t *testing.T) {
	t.Parallel()

	p := NewTimer(TimerConfig{Workers: 1})
	started := make(chan struct{})
	unblock := make(chan struct{})
	p.AfterFunc(0, func() {
		close(started)
		<-unblock
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := p.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Stop with a stuck worker = %v, want deadline exceeded", err)
	}
	close(unblock)
}

func TestTimerPool_WorkerSurvivesPanic(t *testing.T) {
	t.Parallel()

	p := NewTimer(TimerConfig{Workers: 1})
	p.AfterFunc(0, func() { panic("boom") })

	ran := make(chan struct{})
	p.AfterFunc(10*time.Millisecond, func() { close(ran) })
	select {
	case <-ran:
	case <-time.After(waitLong):
		t.Fatal("worker did not survive a panicking callback")
	}
	stopPool(t, p)
}
