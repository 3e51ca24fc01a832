package offsync

import (
	"context"
)

// Conflict carries the context needed to settle a disagreement between
// local and remote state for one item. Keep this generic and
// domain-agnostic; payloads are opaque.
type Conflict struct {
	ItemID   string           // queue identifier of the item in conflict
	Entity   string           // logical collection the item targets
	Strategy ConflictStrategy // strategy declared at enqueue time

	Server Payload // the remote authority's current payload
	Client Payload // the locally queued payload
}

// Resolution captures the decision and any follow-up data.
type Resolution struct {
	Payload  Payload  // payload to resubmit; nil when Deferred
	Deferred bool     // true when resolution is handed to an external decision-maker
	Decision string   // e.g. "keep_server", "keep_client", "merge", "manual_review"
	Reasons  []string // human-readable annotations for audit/telemetry
}

// ConflictResolver is the Strategy interface for conflict resolution.
type ConflictResolver interface {
	Resolve(ctx context.Context, c Conflict) (Resolution, error)
}
