package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Timer is the scheduler's clock and execution dependency: it runs
// callbacks after a delay on its own workers. The built-in
// implementation is NewTimer; tests substitute a fake.
type Timer interface {
	// AfterFunc arranges for fn to run after d. A non-positive delay
	// runs as soon as a worker is free.
	AfterFunc(d time.Duration, fn func()) TimerTask
	// Stop shuts the timer down and waits for draining until ctx is
	// done, after which remaining work is abandoned and ctx's error
	// returned.
	Stop(ctx context.Context) error
}

// TimerTask is a handle to one pending callback. Cancel prevents the
// callback from running and reports whether it did so; cancelling a
// fired or already-cancelled task reports false.
type TimerTask interface {
	Cancel() bool
}

// TimerConfig configures the built-in timer pool. The zero value is
// usable.
type TimerConfig struct {
	// Workers is the number of callback goroutines. Defaults to 4.
	Workers int
	// WorkerName names each worker for log records.
	WorkerName func(i int) string
	// OnReject is invoked for every callback submitted after Stop.
	OnReject func()
	// KeepCancelled leaves cancelled entries in the delay queue to be
	// discarded when their deadline pops, instead of removing them
	// eagerly.
	KeepCancelled bool
	// RunPendingAfterStop lets not-yet-due entries fire at their
	// deadlines during shutdown instead of being dropped.
	RunPendingAfterStop bool
	Logger              *slog.Logger
}

const defaultWorkers = 4

func (c TimerConfig) withDefaults() TimerConfig {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.WorkerName == nil {
		c.WorkerName = func(i int) string { return fmt.Sprintf("timer-%d", i) }
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// TimerPool is the built-in Timer: a delay queue served by a dispatcher
// goroutine and a fixed worker pool.
type TimerPool struct {
	cfg TimerConfig

	mu      sync.Mutex
	queue   timerHeap
	seq     uint64
	stopped bool

	wake           chan struct{}
	runq           chan func()
	force          chan struct{}
	forceOnce      sync.Once
	dispatcherDone chan struct{}
	workersDone    chan struct{}
}

// NewTimer starts a timer pool. The pool runs until Stop.
func NewTimer(cfg TimerConfig) *TimerPool {
	p := &TimerPool{
		cfg:            cfg.withDefaults(),
		wake:           make(chan struct{}, 1),
		runq:           make(chan func()),
		force:          make(chan struct{}),
		dispatcherDone: make(chan struct{}),
		workersDone:    make(chan struct{}),
	}
	var wg sync.WaitGroup
	for i := range p.cfg.Workers {
		wg.Add(1)
		go p.worker(i, &wg)
	}
	go func() {
		wg.Wait()
		close(p.workersDone)
	}()
	go p.dispatch()
	return p
}

// AfterFunc implements Timer. After Stop it schedules nothing, invokes
// OnReject, and returns a task whose Cancel reports false.
func (p *TimerPool) AfterFunc(d time.Duration, fn func()) TimerTask {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		if p.cfg.OnReject != nil {
			p.cfg.OnReject()
		}
		return rejectedTask{}
	}
	t := &timerTask{pool: p, at: time.Now().Add(d), seq: p.seq, fn: fn}
	p.seq++
	heap.Push(&p.queue, t)
	p.mu.Unlock()
	p.signalWake()
	return t
}

// Stop implements Timer. Intake closes immediately; in-flight
// callbacks, and pending ones when RunPendingAfterStop is set, are
// given until ctx is done to drain.
func (p *TimerPool) Stop(ctx context.Context) error {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.signalWake()

	done := make(chan struct{})
	go func() {
		<-p.dispatcherDone
		<-p.workersDone
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		p.forceOnce.Do(func() { close(p.force) })
		return ctx.Err()
	}
}

// Pending returns the number of entries in the delay queue, including
// kept cancelled ones.
func (p *TimerPool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

func (p *TimerPool) signalWake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// dispatch pops due entries off the delay queue and hands their
// callbacks to the workers, sleeping until the earliest deadline in
// between.
func (p *TimerPool) dispatch() {
	defer close(p.dispatcherDone)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	for {
		p.mu.Lock()
		if p.stopped && (!p.cfg.RunPendingAfterStop || len(p.queue) == 0) {
			p.queue = nil
			p.mu.Unlock()
			close(p.runq)
			return
		}
		var due *timerTask
		wait := time.Duration(-1)
		if len(p.queue) > 0 {
			if d := time.Until(p.queue[0].at); d <= 0 {
				due = heap.Pop(&p.queue).(*timerTask)
			} else {
				wait = d
			}
		}
		p.mu.Unlock()

		if due != nil {
			if !due.state.CompareAndSwap(taskPending, taskFired) {
				continue
			}
			select {
			case p.runq <- due.fn:
			case <-p.force:
				return
			}
			continue
		}
		if wait < 0 {
			select {
			case <-p.wake:
			case <-p.force:
				return
			}
			continue
		}
		timer.Reset(wait)
		select {
		case <-timer.C:
		case <-p.wake:
			timer.Stop()
		case <-p.force:
			timer.Stop()
			return
		}
	}
}

func (p *TimerPool) worker(i int, wg *sync.WaitGroup) {
	defer wg.Done()
	log := p.cfg.Logger.With("worker", p.cfg.WorkerName(i))
	log.Debug("scheduler: timer worker started")
	defer log.Debug("scheduler: timer worker stopped")
	for {
		select {
		case <-p.force:
			return
		case fn, ok := <-p.runq:
			if !ok {
				return
			}
			p.invoke(log, fn)
		}
	}
}

// invoke runs one callback, keeping the worker alive across panics.
func (p *TimerPool) invoke(log *slog.Logger, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("scheduler: timer callback panicked", "panic", r)
		}
	}()
	fn()
}

const (
	taskPending int32 = iota
	taskFired
	taskCancelled
)

type timerTask struct {
	pool  *TimerPool
	at    time.Time
	seq   uint64
	fn    func()
	index int
	state atomic.Int32
}

// Cancel implements TimerTask.
func (t *timerTask) Cancel() bool {
	if !t.state.CompareAndSwap(taskPending, taskCancelled) {
		return false
	}
	if !t.pool.cfg.KeepCancelled {
		t.pool.remove(t)
	}
	return true
}

func (p *TimerPool) remove(t *timerTask) {
	p.mu.Lock()
	if t.index >= 0 {
		heap.Remove(&p.queue, t.index)
	}
	p.mu.Unlock()
	p.signalWake()
}

// rejectedTask is returned for submissions after Stop.
type rejectedTask struct{}

func (rejectedTask) Cancel() bool { return false }

// timerHeap orders tasks by deadline, breaking ties by submission
// order.
type timerHeap []*timerTask

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if !h[i].at.Equal(h[j].at) {
		return h[i].at.Before(h[j].at)
	}
	return h[i].seq < h[j].seq
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*timerTask)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
