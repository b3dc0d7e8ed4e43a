package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gatekeeper-core/internal/notify"
)

type published struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

// fakePublisher records messages. When gate is non-nil every Publish
// signals entered and then waits until gate is closed.
type fakePublisher struct {
	mu       sync.Mutex
	messages []published
	err      error
	entered  chan struct{}
	gate     chan struct{}
}

func (f *fakePublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if f.gate != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, published{Topic: topic, Payload: payload, QoS: qos, Retained: retained})
	return f.err
}

func (f *fakePublisher) snapshot() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]published, len(f.messages))
	copy(out, f.messages)
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func startRelay(t *testing.T, r *Relay) (cancel func(), result <-chan error) {
	t.Helper()
	ctx, cancelFn := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()
	return cancelFn, errCh
}

func TestRelay_PublishesEvents(t *testing.T) {
	hub := notify.NewHub(8)
	pub := &fakePublisher{}
	r := New(hub, pub, 1)

	cancel, errCh := startRelay(t, r)
	defer cancel()

	waitFor(t, "relay to join", func() bool { return hub.Count() == 1 })

	hub.Broadcast(notify.Created("S1", "Alice"))
	hub.Broadcast(notify.Deleted("S1"))

	waitFor(t, "two messages", func() bool { return len(pub.snapshot()) == 2 })

	msgs := pub.snapshot()
	for _, m := range msgs {
		if m.Topic != "gatekeeper/events/students/S1" {
			t.Errorf("Topic = %q", m.Topic)
		}
		if m.QoS != 1 || m.Retained {
			t.Errorf("QoS = %d, Retained = %v, want 1/false", m.QoS, m.Retained)
		}
	}

	var first notify.ChangeEvent
	if err := json.Unmarshal(msgs[0].Payload, &first); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if first.Kind != notify.KindCreated || first.Name != "Alice" {
		t.Errorf("first event = %+v, want created Alice", first)
	}

	var second notify.ChangeEvent
	if err := json.Unmarshal(msgs[1].Payload, &second); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if second.Kind != notify.KindDeleted {
		t.Errorf("second event kind = %q, want deleted", second.Kind)
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if got := hub.Count(); got != 0 {
		t.Errorf("Count() = %d after cancel, want 0", got)
	}
}

func TestRelay_StopsWhenHubCloses(t *testing.T) {
	hub := notify.NewHub(8)
	r := New(hub, &fakePublisher{}, 0)

	cancel, errCh := startRelay(t, r)
	defer cancel()

	waitFor(t, "relay to join", func() bool { return hub.Count() == 1 })
	hub.Close()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after hub closed")
	}
}

func TestRelay_PublishErrorDoesNotStop(t *testing.T) {
	hub := notify.NewHub(8)
	pub := &fakePublisher{err: errors.New("broker unavailable")}
	r := New(hub, pub, 1)

	cancel, _ := startRelay(t, r)
	defer cancel()

	waitFor(t, "relay to join", func() bool { return hub.Count() == 1 })

	hub.Broadcast(notify.Created("S1", "Alice"))
	hub.Broadcast(notify.Created("S2", "Bob"))

	waitFor(t, "both publish attempts", func() bool { return len(pub.snapshot()) == 2 })
	if got := hub.Count(); got != 1 {
		t.Errorf("Count() = %d, want relay still joined", got)
	}
}

func TestRelay_RejoinsAfterDrop(t *testing.T) {
	hub := notify.NewHub(1)
	pub := &fakePublisher{
		entered: make(chan struct{}, 1),
		gate:    make(chan struct{}),
	}
	r := New(hub, pub, 1)
	r.rejoinDelay = 10 * time.Millisecond

	cancel, _ := startRelay(t, r)
	defer cancel()

	waitFor(t, "relay to join", func() bool { return hub.Count() == 1 })

	hub.Broadcast(notify.Created("S1", "Alice"))
	select {
	case <-pub.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("relay never started publishing")
	}

	// The relay is stuck in Publish: S2 fills its queue, S3 overflows it.
	hub.Broadcast(notify.Created("S2", "Bob"))
	hub.Broadcast(notify.Created("S3", "Carol"))
	if got := hub.Count(); got != 0 {
		t.Fatalf("Count() = %d, want relay dropped", got)
	}

	close(pub.gate)

	waitFor(t, "relay to rejoin", func() bool { return hub.Count() == 1 })

	hub.Broadcast(notify.Created("S4", "Dan"))
	waitFor(t, "event after rejoin", func() bool {
		for _, m := range pub.snapshot() {
			if m.Topic == "gatekeeper/events/students/S4" {
				return true
			}
		}
		return false
	})

	for _, m := range pub.snapshot() {
		if m.Topic == "gatekeeper/events/students/S3" {
			t.Error("event broadcast while detached was published")
		}
	}
}
