package offsync

import "context"

// ConnState is one reachability snapshot from the connectivity source.
type ConnState struct {
	Online  bool
	Metered bool
}

// ConnectivityMonitor produces a reachability signal on every change in
// connectivity class. The engine subscribes once at startup and treats
// each offline-to-online edge as a sync trigger; a same-state repeat is
// not a trigger.
//
// When the engine is configured wifi-only, a metered-only state counts as
// offline for triggering and gating purposes.
type ConnectivityMonitor interface {
	// Current returns the latest known state.
	Current() ConnState

	// Watch returns a channel of state snapshots, emitted on change. The
	// channel is closed when ctx is done or the monitor is closed.
	Watch(ctx context.Context) (<-chan ConnState, error)
}
