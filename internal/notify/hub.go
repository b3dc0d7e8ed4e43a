package notify

import (
	"sync"

	"github.com/google/uuid"
)

// DefaultBufferSize is the per-observer queue length used when NewHub is
// given a non-positive size.
const DefaultBufferSize = 256

// Reasons an observer leaves the set, reported to Metrics.
const (
	ReasonLeft     = "left"
	ReasonSlow     = "slow"
	ReasonGone     = "gone"
	ReasonShutdown = "shutdown"
)

// Logger defines the logging interface used by the Hub.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Metrics receives hub activity. Implementations must be safe for
// concurrent use.
type Metrics interface {
	SetObservers(n int)
	ObserverRemoved(reason string)
	EventBroadcast(kind string, delivered, dropped int)
}

type noopMetrics struct{}

func (noopMetrics) SetObservers(int)                {}
func (noopMetrics) ObserverRemoved(string)          {}
func (noopMetrics) EventBroadcast(string, int, int) {}

// Observer is one joined listener. It is created by Hub.Join and owned by
// the hub until it leaves.
type Observer struct {
	id        string
	events    chan ChangeEvent
	done      chan struct{}
	closeOnce sync.Once
}

// ID returns the observer's unique identifier.
func (o *Observer) ID() string {
	return o.id
}

// Events returns the observer's delivery queue. The channel is never
// closed; use Done to learn that the observer has been removed.
func (o *Observer) Events() <-chan ChangeEvent {
	return o.events
}

// Done is closed once the observer has left the hub, whether by Leave,
// by being dropped during a broadcast, or by Hub.Close.
func (o *Observer) Done() <-chan struct{} {
	return o.done
}

func (o *Observer) markDone() {
	o.closeOnce.Do(func() { close(o.done) })
}

// Hub maintains the live observer set and broadcasts change events to it.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - mu guards the observer set; it is never held while sending.
//   - sendMu serialises broadcasts so events keep their issue order.
type Hub struct {
	mu        sync.Mutex
	observers map[*Observer]struct{}
	closed    bool

	sendMu sync.Mutex

	bufferSize int
	logger     Logger
	metrics    Metrics
}

// NewHub creates a hub whose observers queue up to bufferSize events.
func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		observers:  make(map[*Observer]struct{}),
		bufferSize: bufferSize,
		logger:     noopLogger{},
		metrics:    noopMetrics{},
	}
}

// SetLogger sets the logger for the hub.
func (h *Hub) SetLogger(logger Logger) {
	h.logger = logger
}

// SetMetrics sets the metrics sink for the hub.
func (h *Hub) SetMetrics(m Metrics) {
	h.metrics = m
}

// Join registers a new observer with an empty queue.
//
// Joining a closed hub returns an observer whose Done channel is already
// closed, so callers need no special case for shutdown.
func (h *Hub) Join() *Observer {
	obs := &Observer{
		id:     uuid.NewString(),
		events: make(chan ChangeEvent, h.bufferSize),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		obs.markDone()
		return obs
	}
	h.observers[obs] = struct{}{}
	count := len(h.observers)
	h.metrics.SetObservers(count)
	h.mu.Unlock()

	h.logger.Debug("observer joined", "observer_id", obs.id, "observers", count)
	return obs
}

// Leave removes an observer. Calling it more than once, or for an observer
// that was already dropped, does nothing.
func (h *Hub) Leave(obs *Observer) {
	if obs == nil {
		return
	}
	h.remove(obs, ReasonLeft)
}

// remove deletes obs from the set and closes its Done channel. It reports
// whether obs was still a member.
func (h *Hub) remove(obs *Observer, reason string) bool {
	h.mu.Lock()
	_, member := h.observers[obs]
	if member {
		delete(h.observers, obs)
		// The gauge is written under mu so concurrent updates land in order.
		h.metrics.SetObservers(len(h.observers))
	}
	count := len(h.observers)
	h.mu.Unlock()

	obs.markDone()

	if !member {
		return false
	}

	h.metrics.ObserverRemoved(reason)
	h.logger.Debug("observer removed", "observer_id", obs.id, "reason", reason, "observers", count)
	return true
}

// Broadcast offers ev to every joined observer and returns how many
// accepted it.
//
// Delivery never blocks: an observer with a full queue is removed, as is
// one whose Done channel was closed while the event was in flight.
func (h *Hub) Broadcast(ev ChangeEvent) int {
	h.sendMu.Lock()
	defer h.sendMu.Unlock()

	h.mu.Lock()
	targets := make([]*Observer, 0, len(h.observers))
	for obs := range h.observers {
		targets = append(targets, obs)
	}
	h.mu.Unlock()

	delivered := 0
	var dropped []*Observer
	var gone []*Observer

	for _, obs := range targets {
		select {
		case <-obs.done:
			gone = append(gone, obs)
			continue
		default:
		}

		select {
		case obs.events <- ev:
			delivered++
		default:
			dropped = append(dropped, obs)
		}
	}

	for _, obs := range dropped {
		if h.remove(obs, ReasonSlow) {
			h.logger.Warn("observer dropped: queue full",
				"observer_id", obs.id,
				"kind", string(ev.Kind),
				"student_id", ev.StudentID,
			)
		}
	}
	for _, obs := range gone {
		h.remove(obs, ReasonGone)
	}

	h.metrics.EventBroadcast(string(ev.Kind), delivered, len(dropped)+len(gone))
	return delivered
}

// Count returns the number of joined observers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

// Close removes every observer and refuses new ones. It is safe to call
// more than once.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	all := make([]*Observer, 0, len(h.observers))
	for obs := range h.observers {
		all = append(all, obs)
	}
	h.observers = make(map[*Observer]struct{})
	h.metrics.SetObservers(0)
	h.mu.Unlock()

	for _, obs := range all {
		obs.markDone()
		h.metrics.ObserverRemoved(ReasonShutdown)
	}

	h.logger.Info("observer hub closed", "observers", len(all))
}

// Closed reports whether Close has been called.
func (h *Hub) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}
