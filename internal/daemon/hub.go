package daemon

import (
	"log/slog"
	"sync"
	"time"
)

// Event types published on the hub.
const (
	EventSchedulerStarted = "scheduler.started"
	EventSchedulerStopped = "scheduler.stopped"
	EventJobStarted       = "job.started"
	EventJobFinished      = "job.finished"
)

// Event is one hub notification, shaped for JSON transport to admin
// clients. Job fields are empty on scheduler lifecycle events.
type Event struct {
	Type     string    `json:"type"`
	Time     time.Time `json:"time"`
	Job      string    `json:"job,omitempty"`
	Status   string    `json:"status,omitempty"`
	Duration int64     `json:"duration_ms,omitempty"`
	Error    string    `json:"error,omitempty"`
}

const defaultSubscriberBuffer = 64

// Hub fans events out to subscribers. Delivery is best-effort: a
// subscriber whose buffer is full loses the event rather than blocking
// the publisher.
type Hub struct {
	logger *slog.Logger
	onDrop func()

	mu     sync.RWMutex
	closed bool
	subs   map[*Subscription]struct{}
}

// NewHub creates a hub. onDrop, when non-nil, is invoked once per
// event lost to a full subscriber buffer.
func NewHub(logger *slog.Logger, onDrop func()) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger,
		onDrop: onDrop,
		subs:   make(map[*Subscription]struct{}),
	}
}

// Subscription is one subscriber's view of the hub. C is closed by
// Cancel and by Hub.Close.
type Subscription struct {
	C <-chan Event

	hub  *Hub
	ch   chan Event
	once sync.Once
}

// Cancel detaches the subscription and closes C. Safe to call more
// than once and concurrently with publishing.
func (s *Subscription) Cancel() {
	s.hub.mu.Lock()
	delete(s.hub.subs, s)
	s.hub.mu.Unlock()
	s.closeCh()
}

func (s *Subscription) closeCh() {
	s.once.Do(func() { close(s.ch) })
}

// Subscribe registers a subscriber with the given buffer size (the
// default when buffer <= 0). Subscribing to a closed hub returns a
// subscription whose channel is already closed.
func (h *Hub) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	s := &Subscription{hub: h, ch: make(chan Event, buffer)}
	s.C = s.ch

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		s.closeCh()
		return s
	}
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Publish delivers ev to every subscriber that has buffer room and
// drops it for the rest.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		select {
		case s.ch <- ev:
		default:
			if h.onDrop != nil {
				h.onDrop()
			}
			h.logger.Debug("daemon: event dropped for slow subscriber", "type", ev.Type)
		}
	}
}

// Close detaches and closes every subscription. Publish on a closed
// hub is a no-op.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.subs {
		s.closeCh()
	}
	h.subs = nil
}
