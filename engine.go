package offsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	syncErrors "github.com/offlinekit/offsync/errors"
	"github.com/offlinekit/offsync/logging"
)

// Trigger names, used in logs, metrics and Stats.LastSyncTimes.
const (
	TriggerTimer        = "timer"
	TriggerConnectivity = "connectivity"
	TriggerDebounce     = "debounce"
	TriggerManual       = "manual"
	TriggerRetry        = "retry"
	TriggerResume       = "resume"
)

// Stats is a point-in-time snapshot of the engine for callers.
type Stats struct {
	TotalQueued     int
	Pending         int
	Failed          int
	LastSyncTimes   map[string]time.Time
	Online          bool
	Status          EngineStatus
	AutoSyncEnabled bool
}

// Engine is the offline-first synchronization engine. It owns the durable
// work queue of pending mutations, decides when sync cycles run, drains
// the queue in priority order through the executor, and publishes status
// transitions to subscribers.
//
// At most one cycle executes at any time; concurrent triggers are
// serialized through a mutual-exclusion gate, and a trigger that fires
// while a cycle is running is a no-op rather than queued.
type Engine struct {
	store     Store
	transport Transport
	executor *Executor
	monitor  ConnectivityMonitor
	retry    RetryPolicy
	clock    Clock
	logger   *slog.Logger
	metrics  MetricsCollector
	status   *statusPublisher

	// storeMu serializes every load-mutate-save sequence against the
	// persisted queue, including a running cycle's per-item persists, so
	// no operation observes or clobbers a half-applied write.
	storeMu sync.Mutex

	// cycleGate is the single-flight token for sync cycles.
	cycleGate chan struct{}

	cancelFlag atomic.Bool

	mu            sync.Mutex // engine state and mutable settings
	started       bool
	closed        bool
	paused        bool
	autoSync      bool
	syncInterval  time.Duration
	debounceDelay time.Duration
	wifiOnly      bool
	conn          ConnState
	lastSync      map[string]time.Time

	enqueued  chan struct{}
	retryReq  chan time.Duration
	reload    chan struct{}
	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup
}

// NewEngine constructs an engine around the injected collaborators. The
// store and transport are required; everything else has defaults
// (5 minute interval, 1s debounce, fixed 3x30s retry policy, strategy
// dispatch resolver, real clock, always-online connectivity).
func NewEngine(store Store, transport Transport, opts ...EngineOption) (*Engine, error) {
	if store == nil {
		return nil, syncErrors.NewValidationError(syncErrors.OpConfigure, errors.New("store is required"))
	}
	if transport == nil {
		return nil, syncErrors.NewValidationError(syncErrors.OpConfigure, errors.New("transport is required"))
	}

	o := &engineOptions{
		autoSync:      true,
		syncInterval:  DefaultSyncInterval,
		debounceDelay: DefaultDebounceDelay,
		retryPolicy:   DefaultRetryPolicy(),
		resolver:      &StrategyResolver{},
		clock:         NewRealClock(),
		metrics:       &NoOpMetricsCollector{},
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.logger == nil {
		o.logger = logging.Default().WithComponent(logging.Component("engine")).Logger
	}

	e := &Engine{
		store:         store,
		transport:     transport,
		monitor:       o.monitor,
		retry:         o.retryPolicy,
		clock:         o.clock,
		logger:        o.logger,
		metrics:       o.metrics,
		autoSync:      o.autoSync,
		syncInterval:  o.syncInterval,
		debounceDelay: o.debounceDelay,
		wifiOnly:      o.wifiOnly,
		conn:          ConnState{Online: true},
		lastSync:      make(map[string]time.Time),
		cycleGate:     make(chan struct{}, 1),
		enqueued:      make(chan struct{}, 1),
		retryReq:      make(chan time.Duration, 1),
		reload:        make(chan struct{}, 1),
	}
	e.executor = NewExecutor(transport, o.resolver, o.logger, o.metrics)
	e.status = newStatusPublisher(EngineIdle, o.logger)
	return e, nil
}

// Start verifies the persisted queue is readable, recovers items left
// mid-flight by a crash, subscribes to connectivity changes, and launches
// the trigger loop. Persistence failures propagate to the caller here;
// after Start they only surface through the status stream and Stats.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return syncErrors.New(syncErrors.OpConfigure, errors.New("engine is closed"))
	}
	if e.started {
		e.mu.Unlock()
		return syncErrors.New(syncErrors.OpConfigure, errors.New("engine already started"))
	}
	e.started = true
	e.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.runCtx, e.runCancel = runCtx, cancel

	// Fail fast if the gateway cannot back us up, and normalize items a
	// previous process left in the syncing state.
	if err := e.recoverQueue(ctx); err != nil {
		cancel()
		return err
	}

	var connCh <-chan ConnState
	if e.monitor != nil {
		ch, err := e.monitor.Watch(runCtx)
		if err != nil {
			cancel()
			return syncErrors.NewWithComponent(syncErrors.OpConfigure, "connectivity", err)
		}
		connCh = ch
		e.setConnState(e.monitor.Current())
	}

	e.wg.Add(1)
	go e.run(runCtx, connCh)

	e.logger.Info("sync engine started",
		"auto_sync", e.autoSyncEnabled(),
		"sync_interval", e.intervalSetting(),
		"wifi_only", e.wifiOnlySetting())
	return nil
}

// Close stops the trigger loop, waits for any in-flight cycle, and closes
// the transport and store.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	started := e.started
	e.mu.Unlock()

	if started {
		e.runCancel()
	}
	e.wg.Wait()

	var errs []error
	if err := e.transport.Close(); err != nil {
		errs = append(errs, syncErrors.NewWithComponent(syncErrors.OpClose, "transport", err))
	}
	if err := e.store.Close(); err != nil {
		errs = append(errs, syncErrors.NewWithComponent(syncErrors.OpClose, "store", err))
	}
	if len(errs) > 0 {
		return syncErrors.New(syncErrors.OpClose, fmt.Errorf("multiple close errors: %v", errs))
	}

	e.logger.Info("sync engine closed")
	return nil
}

// Add enqueues a mutation. Re-adding an existing id replaces the stored
// item atomically, so the queue holds exactly one item per id. The call
// returns once the item is persisted; the actual sync happens after the
// debounce delay so bursts collapse into one cycle.
func (e *Engine) Add(ctx context.Context, item SyncItem) error {
	if err := e.checkOpen(syncErrors.OpEnqueue); err != nil {
		return err
	}
	if err := item.Validate(); err != nil {
		return err
	}

	if item.CreatedAt.IsZero() {
		item.CreatedAt = e.clock.Now()
	}
	item.Status = ItemPending
	item.RetryCount = 0
	item.LastRetryAt = time.Time{}
	item.LastError = ""

	err := e.updateQueue(ctx, syncErrors.OpEnqueue, func(q map[string]SyncItem) {
		q[item.ID] = item
	})
	if err != nil {
		return err
	}

	e.logger.Debug("item enqueued",
		"item_id", item.ID,
		"entity", item.Entity,
		"operation", item.Operation,
		"priority", item.Priority)
	e.signalEnqueued()
	return nil
}

// Remove takes an item out of the queue regardless of its status. Removing
// an absent id is a no-op.
func (e *Engine) Remove(ctx context.Context, id string) error {
	if err := e.checkOpen(syncErrors.OpRemove); err != nil {
		return err
	}
	return e.updateQueue(ctx, syncErrors.OpRemove, func(q map[string]SyncItem) {
		delete(q, id)
	})
}

// ClearQueue drops every queued item.
func (e *Engine) ClearQueue(ctx context.Context) error {
	if err := e.checkOpen(syncErrors.OpClear); err != nil {
		return err
	}
	return e.updateQueue(ctx, syncErrors.OpClear, func(q map[string]SyncItem) {
		for id := range q {
			delete(q, id)
		}
	})
}

// RetryFailed returns items whose retry budget was exhausted to the
// pending state with a fresh budget, and nudges the debounce trigger.
func (e *Engine) RetryFailed(ctx context.Context) error {
	if err := e.checkOpen(syncErrors.OpRetry); err != nil {
		return err
	}

	revived := 0
	err := e.updateQueue(ctx, syncErrors.OpRetry, func(q map[string]SyncItem) {
		for id, it := range q {
			if it.Status != ItemFailed {
				continue
			}
			it.Status = ItemPending
			it.RetryCount = 0
			it.LastError = ""
			q[id] = it
			revived++
		}
	})
	if err != nil {
		return err
	}

	if revived > 0 {
		e.logger.Info("failed items returned to queue", "count", revived)
		e.signalEnqueued()
	}
	return nil
}

// ApplyResolution settles a conflict that was deferred to manual review.
// The caller-provided payload replaces the queued one and the item is
// switched to client-wins so the next attempt submits the decision as is.
func (e *Engine) ApplyResolution(ctx context.Context, id string, payload Payload) error {
	if err := e.checkOpen(syncErrors.OpResolve); err != nil {
		return err
	}

	found := false
	err := e.updateQueue(ctx, syncErrors.OpResolve, func(q map[string]SyncItem) {
		it, ok := q[id]
		if !ok {
			return
		}
		found = true
		it.Payload = payload.Clone()
		it.Resolution = ClientWins
		it.Status = ItemPending
		it.RetryCount = 0
		it.LastError = ""
		q[id] = it
	})
	if err != nil {
		return err
	}
	if !found {
		return syncErrors.NewValidationError(syncErrors.OpResolve, fmt.Errorf("no queued item with id %q", id))
	}

	e.logger.Info("manual resolution applied", "item_id", id)
	e.signalEnqueued()
	return nil
}

// SyncNow runs a cycle immediately. force bypasses the connectivity gate
// but never the single-flight rule. It returns false when the engine is
// paused, gated offline, or a cycle is already running.
func (e *Engine) SyncNow(ctx context.Context, force bool) bool {
	e.mu.Lock()
	if e.closed || e.paused {
		e.mu.Unlock()
		return false
	}
	e.mu.Unlock()

	if !force && !e.reachable() {
		e.logger.Debug("manual sync skipped while offline")
		return false
	}

	select {
	case e.cycleGate <- struct{}{}:
	default:
		e.logger.Debug("manual sync skipped, cycle already in progress")
		return false
	}
	defer func() { <-e.cycleGate }()

	e.runCycle(ctx, TriggerManual)
	return true
}

// Pause suspends all triggers. An in-flight cycle finishes its current
// item and then stops; queue contents are untouched.
func (e *Engine) Pause() {
	e.mu.Lock()
	if e.paused || e.closed {
		e.mu.Unlock()
		return
	}
	e.paused = true
	e.mu.Unlock()

	e.logger.Info("sync engine paused")
	e.pokeReload()
	e.status.publish(EnginePaused)
}

// Resume re-arms the periodic timer and, if the queue has pending work and
// the engine is reachable, immediately fires a trigger.
func (e *Engine) Resume() {
	e.mu.Lock()
	if !e.paused || e.closed {
		e.mu.Unlock()
		return
	}
	e.paused = false
	started := e.started
	e.mu.Unlock()

	e.logger.Info("sync engine resumed")
	e.pokeReload()
	e.status.publish(EngineIdle)

	if started && e.reachable() && e.hasPending(e.runCtx) {
		e.triggerCycle(TriggerResume)
	}
}

// CancelSync soft-aborts the scheduling of the current cycle: the item
// being executed finishes, remaining snapshot items are skipped, and the
// engine settles back to idle without altering queue contents.
func (e *Engine) CancelSync() {
	e.cancelFlag.Store(true)
	e.logger.Info("sync cycle cancellation requested")
}

// Status returns the current aggregate engine status.
func (e *Engine) Status() EngineStatus {
	return e.status.Current()
}

// SubscribeStatus registers a handler for future status transitions and
// returns an unsubscribe function. Missed history is not replayed.
func (e *Engine) SubscribeStatus(handler StatusHandler) func() {
	return e.status.Subscribe(handler)
}

// Stats reports queue counts and engine state for display layers.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	items, err := e.readQueue(ctx)
	if err != nil {
		return Stats{}, err
	}

	s := Stats{
		TotalQueued: len(items),
		Online:      e.reachable(),
		Status:      e.status.Current(),
	}
	for _, it := range items {
		switch it.Status {
		case ItemFailed:
			s.Failed++
		default:
			s.Pending++
		}
	}

	e.mu.Lock()
	s.AutoSyncEnabled = e.autoSync
	s.LastSyncTimes = make(map[string]time.Time, len(e.lastSync))
	for k, v := range e.lastSync {
		s.LastSyncTimes[k] = v
	}
	e.mu.Unlock()

	return s, nil
}

// SetAutoSync enables or disables the periodic trigger at runtime.
func (e *Engine) SetAutoSync(enabled bool) {
	e.mu.Lock()
	e.autoSync = enabled
	e.mu.Unlock()
	e.pokeReload()
}

// SetSyncInterval changes the periodic trigger interval at runtime.
func (e *Engine) SetSyncInterval(d time.Duration) error {
	if d <= 0 {
		return syncErrors.NewValidationError(syncErrors.OpConfigure, errors.New("sync interval must be positive"))
	}
	e.mu.Lock()
	e.syncInterval = d
	e.mu.Unlock()
	e.pokeReload()
	return nil
}

// SetWifiOnly changes the metered-connectivity gate at runtime.
func (e *Engine) SetWifiOnly(enabled bool) {
	e.mu.Lock()
	e.wifiOnly = enabled
	e.mu.Unlock()
}

// run is the trigger loop. It owns the periodic ticker, the enqueue
// debounce timer, the post-failure retry timer, and the connectivity
// subscription, and funnels all of them through the single-flight gate.
func (e *Engine) run(ctx context.Context, connCh <-chan ConnState) {
	defer e.wg.Done()

	var ticker Ticker
	var tickerC <-chan time.Time
	armTicker := func() {
		if ticker != nil {
			ticker.Stop()
			ticker, tickerC = nil, nil
		}
		e.mu.Lock()
		auto, interval, paused := e.autoSync, e.syncInterval, e.paused
		e.mu.Unlock()
		if auto && !paused {
			ticker = e.clock.NewTicker(interval)
			tickerC = ticker.C()
		}
	}
	armTicker()
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	var debounce Timer
	var debounceC <-chan time.Time
	stopDebounce := func() {
		if debounce != nil {
			debounce.Stop()
			debounce, debounceC = nil, nil
		}
	}
	defer stopDebounce()

	var retryTimer Timer
	var retryC <-chan time.Time
	stopRetry := func() {
		if retryTimer != nil {
			retryTimer.Stop()
			retryTimer, retryC = nil, nil
		}
	}
	defer stopRetry()

	prevReachable := e.reachable()

	for {
		select {
		case <-ctx.Done():
			return

		case <-e.reload:
			armTicker()
			if e.isPaused() {
				stopDebounce()
				stopRetry()
			}

		case <-e.enqueued:
			if e.isPaused() {
				continue
			}
			e.mu.Lock()
			delay := e.debounceDelay
			e.mu.Unlock()
			if debounce == nil {
				debounce = e.clock.NewTimer(delay)
				debounceC = debounce.C()
			} else {
				debounce.Reset(delay)
			}

		case <-debounceC:
			debounce, debounceC = nil, nil
			e.triggerCycle(TriggerDebounce)

		case <-tickerC:
			e.triggerCycle(TriggerTimer)

		case d := <-e.retryReq:
			if e.isPaused() {
				continue
			}
			if retryTimer == nil {
				retryTimer = e.clock.NewTimer(d)
				retryC = retryTimer.C()
			} else {
				retryTimer.Reset(d)
			}

		case <-retryC:
			retryTimer, retryC = nil, nil
			e.triggerCycle(TriggerRetry)

		case st, ok := <-connCh:
			if !ok {
				connCh = nil
				continue
			}
			e.setConnState(st)
			nowReachable := e.reachable()
			if nowReachable && !prevReachable {
				e.logger.Info("connectivity regained", "online", st.Online, "metered", st.Metered)
				e.triggerCycle(TriggerConnectivity)
			}
			prevReachable = nowReachable
		}
	}
}

// triggerCycle starts a cycle for an automatic trigger, subject to the
// pause state, the connectivity gate, a non-empty queue, and the
// single-flight rule. A trigger that loses the gate race is dropped.
func (e *Engine) triggerCycle(trigger string) bool {
	if e.isPaused() {
		e.logger.Debug("trigger ignored while paused", "trigger", trigger)
		return false
	}
	if !e.reachable() {
		e.logger.Debug("trigger ignored while offline", "trigger", trigger)
		return false
	}
	if !e.hasPending(e.runCtx) {
		e.logger.Debug("trigger ignored, queue empty", "trigger", trigger)
		return false
	}

	select {
	case e.cycleGate <- struct{}{}:
	default:
		e.logger.Debug("sync already in progress", "trigger", trigger)
		return false
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() { <-e.cycleGate }()
		e.runCycle(e.runCtx, trigger)
	}()
	return true
}

// runCycle drains one snapshot of the pending queue. The caller must hold
// the cycle gate.
func (e *Engine) runCycle(ctx context.Context, trigger string) {
	start := e.clock.Now()
	cycleLog := e.logger.With("cycle_id", uuid.NewString(), "trigger", trigger)
	e.cancelFlag.Store(false)

	snapshot, err := e.claimSnapshot(ctx)
	if err != nil {
		cycleLog.Error("failed to load sync queue", "error", err)
		e.status.publish(EngineFailed)
		e.status.publish(e.settleStatus())
		return
	}
	if len(snapshot) == 0 {
		cycleLog.Debug("queue empty, nothing to sync")
		return
	}

	e.status.publish(EngineSyncing)
	cycleLog.Info("sync cycle started", "items", len(snapshot))

	succeeded, failed, deferred := 0, 0, 0
	minAttempts := -1
	interrupted := false
	for i, it := range snapshot {
		if e.cancelFlag.Load() {
			cycleLog.Info("sync cycle cancelled", "processed", i, "remaining", len(snapshot)-i)
			interrupted = true
			break
		}
		if e.isPaused() {
			cycleLog.Info("sync cycle paused", "processed", i, "remaining", len(snapshot)-i)
			interrupted = true
			break
		}

		execErr := e.executor.Execute(ctx, it.Clone())
		switch {
		case execErr == nil:
			succeeded++
			// Persist the removal immediately so a crash mid-cycle does
			// not re-process an item the remote already accepted. Only
			// the claimed (still syncing) item is removed: an Add that
			// raced the dispatch reset the status to pending, and that
			// fresh mutation must survive the old attempt's outcome.
			if perr := e.updateQueue(ctx, syncErrors.OpCycle, func(q map[string]SyncItem) {
				if cur, ok := q[it.ID]; ok && cur.Status == ItemSyncing {
					delete(q, it.ID)
				}
			}); perr != nil {
				cycleLog.Error("failed to persist completed item, aborting cycle", "item_id", it.ID, "error", perr)
				e.status.publish(EngineFailed)
				e.status.publish(e.settleStatus())
				return
			}

		case errors.Is(execErr, ErrManualResolution):
			// Neither success nor failure: the item stays pending with its
			// retry budget intact until a resolution is applied.
			deferred++

		default:
			failed++
			now := e.clock.Now()
			retryable := syncErrors.IsRetryable(execErr)
			exhausted := false
			if perr := e.updateQueue(ctx, syncErrors.OpCycle, func(q map[string]SyncItem) {
				cur, ok := q[it.ID]
				if !ok || cur.Status != ItemSyncing {
					// Removed or re-enqueued while in flight; the old
					// attempt's bookkeeping does not apply to it.
					return
				}
				cur.RetryCount++
				cur.LastRetryAt = now
				cur.LastError = execErr.Error()
				if retryable && e.retry.ShouldRetry(cur.RetryCount) {
					cur.Status = ItemPending
				} else {
					// Terminal errors and exhausted budgets both park the
					// item until RetryFailed or Remove.
					cur.Status = ItemFailed
					exhausted = true
				}
				q[it.ID] = cur
			}); perr != nil {
				cycleLog.Error("failed to persist item failure, aborting cycle", "item_id", it.ID, "error", perr)
				e.status.publish(EngineFailed)
				e.status.publish(e.settleStatus())
				return
			}

			attempts := it.RetryCount + 1
			if exhausted {
				cycleLog.Warn("item parked as failed",
					"item_id", it.ID, "attempts", attempts, "retryable", retryable, "error", execErr)
			} else {
				cycleLog.Warn("item failed, will retry",
					"item_id", it.ID, "attempt", attempts, "error", execErr)
				if minAttempts < 0 || attempts < minAttempts {
					minAttempts = attempts
				}
			}
		}
	}

	// Return any claims the cycle did not settle (skipped after a break,
	// or deferred to manual resolution) to the pending state.
	if perr := e.updateQueue(ctx, syncErrors.OpCycle, func(q map[string]SyncItem) {
		for _, it := range snapshot {
			if cur, ok := q[it.ID]; ok && cur.Status == ItemSyncing {
				cur.Status = ItemPending
				q[it.ID] = cur
			}
		}
	}); perr != nil {
		cycleLog.Error("failed to release unsettled items", "error", perr)
		e.status.publish(EngineFailed)
		e.status.publish(e.settleStatus())
		return
	}

	duration := e.clock.Now().Sub(start)
	e.metrics.RecordCycleDuration(trigger, duration)
	e.metrics.RecordItems(succeeded, failed)
	e.recordSyncTime(trigger)

	if failed > 0 {
		e.status.publish(EngineFailed)
		if minAttempts > 0 {
			delay := e.retry.NextDelay(minAttempts)
			e.metrics.RecordRetries(1)
			cycleLog.Info("scheduling retry cycle", "delay", delay)
			select {
			case e.retryReq <- delay:
			default:
			}
		}
	} else if !interrupted {
		// A cycle broken off by cancel or pause did not process every
		// item, so it never reaches completed.
		e.status.publish(EngineCompleted)
	}
	e.status.publish(e.settleStatus())

	cycleLog.Info("sync cycle finished",
		"succeeded", succeeded,
		"failed", failed,
		"deferred", deferred,
		"duration", duration)
}

// recoverQueue verifies the store is readable and returns items a crashed
// process left marked syncing to pending.
func (e *Engine) recoverQueue(ctx context.Context) error {
	return e.updateQueue(ctx, syncErrors.OpLoad, func(q map[string]SyncItem) {
		for id, it := range q {
			if it.Status == ItemSyncing {
				it.Status = ItemPending
				q[id] = it
			}
		}
	})
}

// updateQueue runs one scoped load-mutate-save sequence under the queue
// lock. Every queue mutation in the engine goes through here.
func (e *Engine) updateQueue(ctx context.Context, op syncErrors.Operation, mutate func(map[string]SyncItem)) error {
	e.storeMu.Lock()
	defer e.storeMu.Unlock()

	items, err := e.store.Load(ctx)
	if err != nil {
		return syncErrors.NewStorageError(op, err)
	}

	queue := make(map[string]SyncItem, len(items))
	for _, it := range items {
		queue[it.ID] = it
	}

	mutate(queue)

	out := make([]SyncItem, 0, len(queue))
	for _, it := range queue {
		out = append(out, it)
	}
	if err := e.store.Save(ctx, out); err != nil {
		return syncErrors.NewStorageError(op, err)
	}
	return nil
}

func (e *Engine) readQueue(ctx context.Context) ([]SyncItem, error) {
	e.storeMu.Lock()
	defer e.storeMu.Unlock()

	items, err := e.store.Load(ctx)
	if err != nil {
		return nil, syncErrors.NewStorageError(syncErrors.OpLoad, err)
	}
	return items, nil
}

// claimSnapshot loads the items eligible for this cycle, marks them
// syncing so that queue mutations racing the cycle stay distinguishable
// from the claimed versions, and returns them in processing order:
// priority descending, then CreatedAt ascending. Items parked as failed
// are excluded until explicitly retried.
func (e *Engine) claimSnapshot(ctx context.Context) ([]SyncItem, error) {
	e.storeMu.Lock()
	defer e.storeMu.Unlock()

	items, err := e.store.Load(ctx)
	if err != nil {
		return nil, syncErrors.NewStorageError(syncErrors.OpCycle, err)
	}

	snapshot := make([]SyncItem, 0, len(items))
	all := make([]SyncItem, 0, len(items))
	for _, it := range items {
		if it.Status != ItemFailed {
			it.Status = ItemSyncing
			snapshot = append(snapshot, it)
		}
		all = append(all, it)
	}
	if len(snapshot) == 0 {
		return nil, nil
	}
	if err := e.store.Save(ctx, all); err != nil {
		return nil, syncErrors.NewStorageError(syncErrors.OpCycle, err)
	}

	sortItems(snapshot)
	return snapshot, nil
}

// pendingSnapshot returns the items eligible for a cycle without
// claiming them; used to decide whether a trigger is worth firing.
func (e *Engine) pendingSnapshot(ctx context.Context) ([]SyncItem, error) {
	items, err := e.readQueue(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := make([]SyncItem, 0, len(items))
	for _, it := range items {
		if it.Status == ItemFailed {
			continue
		}
		snapshot = append(snapshot, it)
	}
	sortItems(snapshot)
	return snapshot, nil
}

func (e *Engine) hasPending(ctx context.Context) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	snapshot, err := e.pendingSnapshot(ctx)
	if err != nil {
		e.logger.Error("failed to inspect sync queue", "error", err)
		return false
	}
	return len(snapshot) > 0
}

func (e *Engine) checkOpen(op syncErrors.Operation) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return syncErrors.New(op, errors.New("engine is closed"))
	}
	return nil
}

func (e *Engine) isPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// reachable applies the wifi-only gate to the latest connectivity state.
// Without a monitor the engine assumes it is online.
func (e *Engine) reachable() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.conn.Online {
		return false
	}
	if e.wifiOnly && e.conn.Metered {
		return false
	}
	return true
}

func (e *Engine) setConnState(st ConnState) {
	e.mu.Lock()
	e.conn = st
	e.mu.Unlock()
}

func (e *Engine) settleStatus() EngineStatus {
	if e.isPaused() {
		return EnginePaused
	}
	return EngineIdle
}

func (e *Engine) recordSyncTime(trigger string) {
	now := e.clock.Now()
	e.mu.Lock()
	e.lastSync[trigger] = now
	e.lastSync["last"] = now
	e.mu.Unlock()
}

func (e *Engine) signalEnqueued() {
	select {
	case e.enqueued <- struct{}{}:
	default:
	}
}

func (e *Engine) pokeReload() {
	select {
	case e.reload <- struct{}{}:
	default:
	}
}

func (e *Engine) autoSyncEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.autoSync
}

func (e *Engine) intervalSetting() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.syncInterval
}

func (e *Engine) wifiOnlySetting() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.wifiOnly
}
