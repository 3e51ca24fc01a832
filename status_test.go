package offsync

import (
	"log/slog"
	"testing"
)

func newTestPublisher() *statusPublisher {
	return newStatusPublisher(EngineIdle, slog.Default())
}

func TestPublisherDeliversInOrder(t *testing.T) {
	p := newTestPublisher()

	var seen []EngineStatus
	p.Subscribe(func(s EngineStatus) { seen = append(seen, s) })

	seq := []EngineStatus{EngineSyncing, EngineFailed, EngineIdle, EngineSyncing, EngineCompleted, EngineIdle}
	for _, s := range seq {
		p.publish(s)
	}

	if len(seen) != len(seq) {
		t.Fatalf("delivered %d transitions, want %d", len(seen), len(seq))
	}
	for i := range seq {
		if seen[i] != seq[i] {
			t.Fatalf("delivery order = %v, want %v", seen, seq)
		}
	}
	if p.Current() != EngineIdle {
		t.Errorf("Current = %s, want idle", p.Current())
	}
}

func TestPublisherUnsubscribe(t *testing.T) {
	p := newTestPublisher()

	count := 0
	unsubscribe := p.Subscribe(func(EngineStatus) { count++ })
	p.publish(EngineSyncing)
	unsubscribe()
	p.publish(EngineCompleted)

	if count != 1 {
		t.Errorf("handler called %d times after unsubscribe, want 1", count)
	}
}

func TestPublisherSurvivesPanickingHandler(t *testing.T) {
	p := newTestPublisher()

	p.Subscribe(func(EngineStatus) { panic("boom") })
	delivered := false
	p.Subscribe(func(EngineStatus) { delivered = true })

	p.publish(EngineSyncing)

	if !delivered {
		t.Error("a panicking handler must not block later subscribers")
	}
	if p.Current() != EngineSyncing {
		t.Errorf("Current = %s, want syncing", p.Current())
	}
}

func TestPublisherHandlerMaySubscribe(t *testing.T) {
	p := newTestPublisher()

	nested := 0
	p.Subscribe(func(EngineStatus) {
		p.Subscribe(func(EngineStatus) { nested++ })
	})

	p.publish(EngineSyncing)
	p.publish(EngineIdle)

	if nested == 0 {
		t.Error("subscription made inside a handler never received a transition")
	}
}
