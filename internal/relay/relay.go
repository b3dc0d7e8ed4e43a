package relay

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nerrad567/gatekeeper-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/gatekeeper-core/internal/notify"
)

// defaultRejoinDelay is the pause before joining again after being dropped.
const defaultRejoinDelay = time.Second

// Publisher sends one message to the broker.
// *mqtt.Client satisfies this interface.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Source is the observer hub the relay listens on.
// *notify.Hub satisfies this interface.
type Source interface {
	Join() *notify.Observer
	Leave(obs *notify.Observer)
	Closed() bool
}

// Logger defines the logging interface used by the relay.
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

// Relay republishes hub events to MQTT.
type Relay struct {
	source      Source
	publisher   Publisher
	qos         byte
	rejoinDelay time.Duration
	logger      Logger
}

// New creates a relay publishing at the given QoS. Call Run to start it.
func New(source Source, publisher Publisher, qos byte) *Relay {
	return &Relay{
		source:      source,
		publisher:   publisher,
		qos:         qos,
		rejoinDelay: defaultRejoinDelay,
		logger:      noopLogger{},
	}
}

// SetLogger sets the logger for the relay.
func (r *Relay) SetLogger(logger Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Run forwards events until ctx is cancelled or the hub is closed.
// It always returns nil once the hub is closed, and ctx.Err() on cancellation.
func (r *Relay) Run(ctx context.Context) error {
	for {
		obs := r.source.Join()
		r.logger.Info("event relay attached", "observer_id", obs.ID())

		err := r.forward(ctx, obs)
		r.source.Leave(obs)
		if err != nil {
			return err
		}

		if r.source.Closed() {
			r.logger.Info("event relay stopped: hub closed")
			return nil
		}

		r.logger.Warn("event relay dropped by hub, rejoining", "delay", r.rejoinDelay.String())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.rejoinDelay):
		}
	}
}

// forward drains obs until the hub lets it go (nil) or ctx ends (ctx.Err()).
// Events already queued when the observer is dropped are still published.
func (r *Relay) forward(ctx context.Context, obs *notify.Observer) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-obs.Events():
			r.publish(ev)
		case <-obs.Done():
			for {
				select {
				case ev := <-obs.Events():
					r.publish(ev)
				default:
					return nil
				}
			}
		}
	}
}

func (r *Relay) publish(ev notify.ChangeEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		r.logger.Error("encoding change event", "error", err, "student_id", ev.StudentID)
		return
	}

	topic := mqtt.Topics{}.StudentEvent(ev.StudentID)
	if err := r.publisher.Publish(topic, payload, r.qos, false); err != nil {
		r.logger.Warn("publishing change event",
			"error", err,
			"topic", topic,
			"kind", string(ev.Kind),
		)
		return
	}
	r.logger.Debug("change event published", "topic", topic, "kind", string(ev.Kind))
}
