package offsync

import (
	"log/slog"
	"sort"
	"sync"
)

// EngineStatus is the aggregate engine state. Exactly one value holds at
// any time; transitions are delivered to subscribers in order with no
// coalescing.
type EngineStatus string

const (
	EngineIdle      EngineStatus = "idle"
	EngineSyncing   EngineStatus = "syncing"
	EngineCompleted EngineStatus = "completed"
	EngineFailed    EngineStatus = "failed"
	EnginePaused    EngineStatus = "paused"
)

// StatusHandler observes engine status transitions. Handlers run
// synchronously on the publishing goroutine and must return quickly.
type StatusHandler func(EngineStatus)

// statusPublisher holds the current engine status and multicasts every
// transition. New subscribers receive only future transitions; the current
// value is queryable on demand.
type statusPublisher struct {
	// pubMu serializes publishes so transitions reach subscribers in order.
	// mu guards the subscriber table and current value, and is never held
	// while handlers run, so handlers may subscribe or query freely.
	pubMu   sync.Mutex
	mu      sync.Mutex
	current EngineStatus
	nextID  int
	subs    map[int]StatusHandler
	logger  *slog.Logger
}

func newStatusPublisher(initial EngineStatus, logger *slog.Logger) *statusPublisher {
	return &statusPublisher{
		current: initial,
		subs:    make(map[int]StatusHandler),
		logger:  logger,
	}
}

// Current returns the status as of the last transition.
func (p *statusPublisher) Current() EngineStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Subscribe registers a handler for future transitions and returns an
// unsubscribe function. No history is replayed.
func (p *statusPublisher) Subscribe(handler StatusHandler) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	p.subs[id] = handler
	p.logger.Debug("status subscriber added", "subscriber_count", len(p.subs))

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

// publish records the transition and notifies all subscribers in
// registration order. Publishes are serialized so transitions are observed
// in order and uncoalesced.
func (p *statusPublisher) publish(status EngineStatus) {
	p.pubMu.Lock()
	defer p.pubMu.Unlock()

	p.mu.Lock()
	p.logger.Debug("engine status transition", "from", p.current, "to", status)
	p.current = status
	ids := make([]int, 0, len(p.subs))
	for id := range p.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]StatusHandler, len(ids))
	for i, id := range ids {
		handlers[i] = p.subs[id]
	}
	p.mu.Unlock()

	for _, handler := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("status subscriber panic recovered", "panic", r, "status", status)
				}
			}()
			handler(status)
		}()
	}
}
