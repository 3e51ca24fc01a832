package offsync

import (
	"context"
	"errors"
	"sync"
	"time"
)

// TestStore implements an in-memory Store for testing with optional
// failure injection.
type TestStore struct {
	mu        sync.Mutex
	items     map[string]SyncItem
	loadErr   error
	saveErr   error
	saveCalls int
}

func NewTestStore() *TestStore {
	return &TestStore{items: make(map[string]SyncItem)}
}

func (s *TestStore) Load(_ context.Context) ([]SyncItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	out := make([]SyncItem, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it.Clone())
	}
	return out, nil
}

func (s *TestStore) Save(_ context.Context, items []SyncItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCalls++
	if s.saveErr != nil {
		return s.saveErr
	}
	next := make(map[string]SyncItem, len(items))
	for _, it := range items {
		next[it.ID] = it.Clone()
	}
	s.items = next
	return nil
}

func (s *TestStore) Close() error { return nil }

func (s *TestStore) SetLoadError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadErr = err
}

func (s *TestStore) SetSaveError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

func (s *TestStore) Get(id string) (SyncItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	return it.Clone(), ok
}

func (s *TestStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *TestStore) SaveCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveCalls
}

// dispatchCall records one Dispatch invocation for assertions.
type dispatchCall struct {
	Entity    string
	Operation Operation
	Payload   Payload
}

// dispatchReply scripts one Dispatch outcome.
type dispatchReply struct {
	result DispatchResult
	err    error
}

// TestTransport implements a scriptable Transport for testing. Replies
// are consumed in FIFO order; when the script is empty every dispatch
// succeeds as applied.
type TestTransport struct {
	mu      sync.Mutex
	calls   []dispatchCall
	replies []dispatchReply
	block   chan struct{}
}

func NewTestTransport() *TestTransport {
	return &TestTransport{}
}

func (t *TestTransport) Dispatch(ctx context.Context, entity string, op Operation, payload Payload) (DispatchResult, error) {
	t.mu.Lock()
	t.calls = append(t.calls, dispatchCall{Entity: entity, Operation: op, Payload: payload.Clone()})
	var reply dispatchReply
	scripted := len(t.replies) > 0
	if scripted {
		reply = t.replies[0]
		t.replies = t.replies[1:]
	}
	block := t.block
	t.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return DispatchResult{}, ctx.Err()
		}
	}

	if !scripted {
		return DispatchResult{Status: DispatchApplied}, nil
	}
	return reply.result, reply.err
}

func (t *TestTransport) Close() error { return nil }

// QueueError scripts a failed dispatch.
func (t *TestTransport) QueueError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replies = append(t.replies, dispatchReply{err: err})
}

// QueueConflict scripts a conflict dispatch carrying the server's payload.
func (t *TestTransport) QueueConflict(server Payload) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replies = append(t.replies, dispatchReply{
		result: DispatchResult{Status: DispatchConflict, ServerPayload: server.Clone()},
	})
}

// QueueApplied scripts an explicit success, useful between scripted
// failures.
func (t *TestTransport) QueueApplied() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replies = append(t.replies, dispatchReply{result: DispatchResult{Status: DispatchApplied}})
}

// Block makes every subsequent dispatch park until Unblock is called,
// so tests can hold a cycle open deterministically.
func (t *TestTransport) Block() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.block = make(chan struct{})
}

func (t *TestTransport) Unblock() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.block != nil {
		close(t.block)
		t.block = nil
	}
}

func (t *TestTransport) Calls() []dispatchCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]dispatchCall, len(t.calls))
	copy(out, t.calls)
	return out
}

func (t *TestTransport) CallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}

// TestMonitor implements a ConnectivityMonitor whose state tests drive
// directly.
type TestMonitor struct {
	mu    sync.Mutex
	state ConnState
	ch    chan ConnState
}

func NewTestMonitor(initial ConnState) *TestMonitor {
	return &TestMonitor{state: initial, ch: make(chan ConnState, 16)}
}

func (m *TestMonitor) Current() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *TestMonitor) Watch(ctx context.Context) (<-chan ConnState, error) {
	return m.ch, nil
}

// Set updates the state and delivers it to the watcher.
func (m *TestMonitor) Set(st ConnState) {
	m.mu.Lock()
	m.state = st
	m.mu.Unlock()
	m.ch <- st
}

// TestClock implements Clock with manually advanced time. Timers and
// tickers fire only through Advance or direct channel sends from the
// test.
type TestClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*testTimer
}

func NewTestClock(start time.Time) *TestClock {
	return &TestClock{now: start}
}

func (c *TestClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *TestClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &testTimer{clock: c, ch: make(chan time.Time, 1), deadline: c.now.Add(d), active: true}
	c.timers = append(c.timers, t)
	return t
}

func (c *TestClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &testTimer{clock: c, ch: make(chan time.Time, 1), deadline: c.now.Add(d), period: d, active: true}
	c.timers = append(c.timers, t)
	return &testTicker{t}
}

// Advance moves the clock forward and fires every timer or ticker whose
// deadline passes.
func (c *TestClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	fired := make([]*testTimer, 0, len(c.timers))
	for _, t := range c.timers {
		if t.active && !t.deadline.After(now) {
			fired = append(fired, t)
			if t.period > 0 {
				t.deadline = now.Add(t.period)
			} else {
				t.active = false
			}
		}
	}
	c.mu.Unlock()

	for _, t := range fired {
		select {
		case t.ch <- now:
		default:
		}
	}
}

type testTimer struct {
	clock    *TestClock
	ch       chan time.Time
	deadline time.Time
	period   time.Duration
	active   bool
}

func (t *testTimer) C() <-chan time.Time { return t.ch }

func (t *testTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := t.active
	t.active = false
	return was
}

func (t *testTimer) Reset(d time.Duration) bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := t.active
	t.deadline = t.clock.now.Add(d)
	t.active = true
	return was
}

// testTicker adapts testTimer to the Ticker signatures.
type testTicker struct{ *testTimer }

func (t *testTicker) Stop()                  { t.testTimer.Stop() }
func (t *testTicker) Reset(d time.Duration) { t.testTimer.Reset(d) }

var errTestUnavailable = errors.New("remote unavailable")
