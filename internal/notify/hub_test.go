package notify

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

// recordingMetrics captures hub activity for assertions.
type recordingMetrics struct {
	mu        sync.Mutex
	observers int
	removed   map[string]int
	delivered int
	dropped   int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{removed: make(map[string]int)}
}

func (m *recordingMetrics) SetObservers(n int) {
	m.mu.Lock()
	m.observers = n
	m.mu.Unlock()
}

func (m *recordingMetrics) ObserverRemoved(reason string) {
	m.mu.Lock()
	m.removed[reason]++
	m.mu.Unlock()
}

func (m *recordingMetrics) EventBroadcast(_ string, delivered, dropped int) {
	m.mu.Lock()
	m.delivered += delivered
	m.dropped += dropped
	m.mu.Unlock()
}

// receive waits briefly for one event on obs.
func receive(t *testing.T, obs *Observer) ChangeEvent {
	t.Helper()
	select {
	case ev := <-obs.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatalf("observer %s: no event within 1s", obs.ID())
		return ChangeEvent{}
	}
}

// expectNone asserts obs has nothing queued.
func expectNone(t *testing.T, obs *Observer) {
	t.Helper()
	select {
	case ev := <-obs.Events():
		t.Fatalf("observer %s: unexpected event %+v", obs.ID(), ev)
	default:
	}
}

func isDone(obs *Observer) bool {
	select {
	case <-obs.Done():
		return true
	default:
		return false
	}
}

func TestNewHub_DefaultBuffer(t *testing.T) {
	hub := NewHub(0)
	obs := hub.Join()

	if got := cap(obs.events); got != DefaultBufferSize {
		t.Errorf("queue capacity = %d, want %d", got, DefaultBufferSize)
	}
}

func TestHub_JoinLeave(t *testing.T) {
	metrics := newRecordingMetrics()
	hub := NewHub(4)
	hub.SetMetrics(metrics)

	a := hub.Join()
	b := hub.Join()

	if a.ID() == "" || a.ID() == b.ID() {
		t.Errorf("observer IDs not unique: %q, %q", a.ID(), b.ID())
	}
	if got := hub.Count(); got != 2 {
		t.Fatalf("Count() = %d, want 2", got)
	}

	hub.Leave(a)

	if got := hub.Count(); got != 1 {
		t.Errorf("Count() after Leave = %d, want 1", got)
	}
	if !isDone(a) {
		t.Error("Done() not closed after Leave")
	}
	if isDone(b) {
		t.Error("Leave closed another observer's Done()")
	}
	if metrics.observers != 1 {
		t.Errorf("observers gauge = %d, want 1", metrics.observers)
	}
}

func TestHub_LeaveIdempotent(t *testing.T) {
	metrics := newRecordingMetrics()
	hub := NewHub(4)
	hub.SetMetrics(metrics)

	obs := hub.Join()
	hub.Leave(obs)
	hub.Leave(obs)
	hub.Leave(nil)

	if got := hub.Count(); got != 0 {
		t.Errorf("Count() = %d, want 0", got)
	}
	if got := metrics.removed[ReasonLeft]; got != 1 {
		t.Errorf("removals recorded = %d, want 1", got)
	}

	// Leave on an observer the hub already dropped is also a no-op.
	slow := NewHub(1)
	dropped := slow.Join()
	slow.Broadcast(Created("S1", "Alice"))
	slow.Broadcast(Created("S2", "Bob"))
	if !isDone(dropped) {
		t.Fatal("full observer was not dropped")
	}
	slow.Leave(dropped)
}

func TestHub_BroadcastDeliversToAll(t *testing.T) {
	hub := NewHub(8)

	observers := make([]*Observer, 5)
	for i := range observers {
		observers[i] = hub.Join()
	}

	ev := Created("S1", "Alice")
	if got := hub.Broadcast(ev); got != len(observers) {
		t.Errorf("Broadcast() delivered = %d, want %d", got, len(observers))
	}

	for _, obs := range observers {
		if got := receive(t, obs); got != ev {
			t.Errorf("received %+v, want %+v", got, ev)
		}
		// Exactly one event per mutation.
		expectNone(t, obs)
	}
}

func TestHub_BroadcastWithoutObservers(t *testing.T) {
	hub := NewHub(8)

	if got := hub.Broadcast(Deleted("S1")); got != 0 {
		t.Errorf("Broadcast() delivered = %d, want 0", got)
	}
}

func TestHub_JoinAfterBroadcastMissesEvent(t *testing.T) {
	hub := NewHub(8)

	early := hub.Join()
	hub.Broadcast(Created("S1", "Alice"))
	late := hub.Join()

	receive(t, early)
	expectNone(t, late)

	hub.Broadcast(Deleted("S1"))
	if got := receive(t, late); got.Kind != KindDeleted {
		t.Errorf("late observer got %+v, want deleted event", got)
	}
}

func TestHub_SlowObserverDropped(t *testing.T) {
	const healthy = 10
	const events = 50

	metrics := newRecordingMetrics()
	hub := NewHub(1)
	hub.SetMetrics(metrics)

	slow := hub.Join() // never reads

	var wg sync.WaitGroup
	counts := make([]int, healthy)
	for i := 0; i < healthy; i++ {
		obs := hub.Join()
		wg.Add(1)
		go func(i int, obs *Observer) {
			defer wg.Done()
			for counts[i] < events {
				select {
				case <-obs.Events():
					counts[i]++
				case <-obs.Done():
					return
				}
			}
		}(i, obs)
	}

	start := time.Now()
	for n := 0; n < events; n++ {
		hub.Broadcast(Updated("S1", "Alice"))
		// Let readers drain the one-slot queues.
		waitFor(t, func() bool { return queuedExcept(hub, slow) == 0 })
	}
	elapsed := time.Since(start)

	if !isDone(slow) {
		t.Fatal("slow observer was not removed")
	}
	if metrics.removed[ReasonSlow] != 1 {
		t.Errorf("slow removals = %d, want 1", metrics.removed[ReasonSlow])
	}
	if got := hub.Count(); got != healthy {
		t.Errorf("Count() = %d, want %d healthy observers", got, healthy)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("healthy observers did not receive every event")
	}
	for i, c := range counts {
		if c != events {
			t.Errorf("healthy observer %d received %d events, want %d", i, c, events)
		}
	}
	if elapsed > 5*time.Second {
		t.Errorf("broadcasts took %v with a stalled observer", elapsed)
	}
}

// queuedExcept sums the queue lengths of joined observers other than skip.
func queuedExcept(h *Hub, skip *Observer) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for obs := range h.observers {
		if obs != skip {
			n += len(obs.events)
		}
	}
	return n
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 2s")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHub_BroadcastSkipsDoneObserver(t *testing.T) {
	metrics := newRecordingMetrics()
	hub := NewHub(4)
	hub.SetMetrics(metrics)

	obs := hub.Join()
	obs.markDone() // connection noticed it was broken before leaving

	if got := hub.Broadcast(Created("S1", "Alice")); got != 0 {
		t.Errorf("Broadcast() delivered = %d, want 0", got)
	}
	if got := hub.Count(); got != 0 {
		t.Errorf("Count() = %d, want 0", got)
	}
	if metrics.removed[ReasonGone] != 1 {
		t.Errorf("gone removals = %d, want 1", metrics.removed[ReasonGone])
	}
}

func TestHub_Ordering(t *testing.T) {
	const events = 200

	hub := NewHub(events)
	a := hub.Join()
	b := hub.Join()

	for i := 0; i < events; i++ {
		hub.Broadcast(Updated("S1", string(rune('A'+i%26))))
	}

	for _, obs := range []*Observer{a, b} {
		for i := 0; i < events; i++ {
			got := receive(t, obs)
			if want := string(rune('A' + i%26)); got.Name != want {
				t.Fatalf("event %d name = %q, want %q", i, got.Name, want)
			}
		}
	}
}

func TestHub_ConcurrentJoinLeaveBroadcast(t *testing.T) {
	hub := NewHub(16)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				obs := hub.Join()
				hub.Leave(obs)
				hub.Leave(obs)
			}
		}()
	}

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				hub.Broadcast(Created("S1", "Alice"))
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(stop)
	wg.Wait()

	if got := hub.Count(); got != 0 {
		t.Errorf("Count() = %d, want 0 after all observers left", got)
	}
}

func TestHub_ObserverGaugeMatchesCount(t *testing.T) {
	metrics := newRecordingMetrics()
	hub := NewHub(4)
	hub.SetMetrics(metrics)

	// Keep a few observers joined so the final value is non-zero.
	stay := []*Observer{hub.Join(), hub.Join(), hub.Join()}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				obs := hub.Join()
				hub.Leave(obs)
			}
		}()
	}
	wg.Wait()

	metrics.mu.Lock()
	gauge := metrics.observers
	metrics.mu.Unlock()

	if got := hub.Count(); gauge != got || got != len(stay) {
		t.Errorf("gauge = %d, Count() = %d, want both %d", gauge, got, len(stay))
	}
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(4)
	a := hub.Join()
	b := hub.Join()

	if hub.Closed() {
		t.Fatal("Closed() = true before Close()")
	}
	hub.Close()
	hub.Close()

	if !hub.Closed() {
		t.Error("Closed() = false after Close()")
	}

	if !isDone(a) || !isDone(b) {
		t.Error("Close() did not close observers' Done()")
	}
	if got := hub.Count(); got != 0 {
		t.Errorf("Count() = %d, want 0", got)
	}

	late := hub.Join()
	if !isDone(late) {
		t.Error("Join() after Close() returned a live observer")
	}
	if got := hub.Broadcast(Created("S1", "Alice")); got != 0 {
		t.Errorf("Broadcast() after Close() delivered = %d, want 0", got)
	}
}

func TestChangeEvent_JSON(t *testing.T) {
	tests := []struct {
		name string
		ev   ChangeEvent
		want string
	}{
		{
			name: "created",
			ev:   Created("S1", "Alice"),
			want: `{"kind":"created","student_id":"S1","name":"Alice","message":"student added"}`,
		},
		{
			name: "updated",
			ev:   Updated("S1", "Alicia"),
			want: `{"kind":"updated","student_id":"S1","name":"Alicia","message":"student updated"}`,
		},
		{
			name: "deleted omits name",
			ev:   Deleted("S1"),
			want: `{"kind":"deleted","student_id":"S1","message":"student deleted"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.ev)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Marshal() = %s, want %s", got, tt.want)
			}
		})
	}
}
