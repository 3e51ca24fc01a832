// Package connectivity provides ConnectivityMonitor implementations:
// a manual monitor fed by the host application (mobile shells usually
// already know their network state) and a probe monitor that infers
// reachability by polling an HTTP endpoint.
package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/offlinekit/offsync"
)

// ManualMonitor is a ConnectivityMonitor whose state the host
// application sets explicitly via Set.
type ManualMonitor struct {
	mu       sync.Mutex
	state    offsync.ConnState
	watchers map[int]chan offsync.ConnState
	nextID   int
}

var _ offsync.ConnectivityMonitor = (*ManualMonitor)(nil)

// NewManualMonitor creates a monitor starting in the given state.
func NewManualMonitor(initial offsync.ConnState) *ManualMonitor {
	return &ManualMonitor{
		state:    initial,
		watchers: make(map[int]chan offsync.ConnState),
	}
}

func (m *ManualMonitor) Current() offsync.ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Watch returns a channel of state changes. The channel is closed when
// ctx is cancelled.
func (m *ManualMonitor) Watch(ctx context.Context) (<-chan offsync.ConnState, error) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	ch := make(chan offsync.ConnState, 16)
	m.watchers[id] = ch
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

// Set publishes a new connectivity state to all watchers. Watchers that
// fall behind drop the oldest update rather than block the caller.
func (m *ManualMonitor) Set(state offsync.ConnState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state == m.state {
		return
	}
	m.state = state
	for _, ch := range m.watchers {
		select {
		case ch <- state:
		default:
		}
	}
}

// SetOnline is shorthand for toggling reachability on an unmetered link.
func (m *ManualMonitor) SetOnline(online bool) {
	m.Set(offsync.ConnState{Online: online})
}

// ProbeMonitor infers connectivity by issuing HEAD requests against a
// probe URL on an interval. Any 2xx-5xx response counts as online; only
// transport-level failures count as offline.
type ProbeMonitor struct {
	client   *http.Client
	url      string
	interval time.Duration
	clock    offsync.Clock

	mu       sync.Mutex
	state    offsync.ConnState
	watchers map[int]chan offsync.ConnState
	nextID   int
	started  bool
}

var _ offsync.ConnectivityMonitor = (*ProbeMonitor)(nil)

// ProbeOption configures a ProbeMonitor.
type ProbeOption func(*ProbeMonitor)

// WithProbeClient replaces the default http.Client.
func WithProbeClient(client *http.Client) ProbeOption {
	return func(p *ProbeMonitor) {
		if client != nil {
			p.client = client
		}
	}
}

// WithProbeInterval changes the polling interval (default 30s).
func WithProbeInterval(d time.Duration) ProbeOption {
	return func(p *ProbeMonitor) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithProbeClock injects a clock, mainly for tests.
func WithProbeClock(clock offsync.Clock) ProbeOption {
	return func(p *ProbeMonitor) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// NewProbeMonitor creates a monitor polling the given URL. The monitor
// assumes it is online until the first probe says otherwise.
func NewProbeMonitor(url string, opts ...ProbeOption) *ProbeMonitor {
	p := &ProbeMonitor{
		client:   &http.Client{Timeout: 10 * time.Second},
		url:      url,
		interval: 30 * time.Second,
		clock:    offsync.NewRealClock(),
		state:    offsync.ConnState{Online: true},
		watchers: make(map[int]chan offsync.ConnState),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *ProbeMonitor) Current() offsync.ConnState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Watch starts the probe loop on first use and returns a channel of
// state changes. The channel is closed when ctx is cancelled.
func (p *ProbeMonitor) Watch(ctx context.Context) (<-chan offsync.ConnState, error) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	ch := make(chan offsync.ConnState, 16)
	p.watchers[id] = ch
	start := !p.started
	p.started = true
	p.mu.Unlock()

	if start {
		go p.loop(ctx)
	}

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		delete(p.watchers, id)
		p.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

func (p *ProbeMonitor) loop(ctx context.Context) {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			p.publish(p.probe(ctx))
		}
	}
}

func (p *ProbeMonitor) probe(ctx context.Context) offsync.ConnState {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return offsync.ConnState{}
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return offsync.ConnState{}
	}
	resp.Body.Close()
	return offsync.ConnState{Online: true}
}

func (p *ProbeMonitor) publish(state offsync.ConnState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if state == p.state {
		return
	}
	p.state = state
	for _, ch := range p.watchers {
		select {
		case ch <- state:
		default:
		}
	}
}
