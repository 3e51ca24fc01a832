// Package offsync provides an offline-first synchronization engine for
// client applications. Mutations are enqueued into a durable queue and
// drained to a remote endpoint in priority order by a scheduler that
// reacts to timers, connectivity changes, enqueue bursts, and manual
// requests. Failed dispatches are retried under a pluggable retry
// policy, conflicting writes are settled by pluggable resolution
// strategies, and engine status transitions are published to
// subscribers.
package offsync
