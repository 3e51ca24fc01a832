package offsync

import (
	"fmt"
	"sort"
	"time"

	syncErrors "github.com/offlinekit/offsync/errors"
)

// Payload is an opaque key/value mapping carried by a sync item. The engine
// never interprets it beyond pass-through and shallow merge.
type Payload map[string]any

// Clone returns a shallow copy of the payload. Nested values are shared,
// which matches the shallow-merge resolution model.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Operation identifies the kind of mutation a sync item represents.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"

	// OperationRead represents a pull-refresh request, not a mutation,
	// and never conflicts.
	OperationRead Operation = "read"
)

// IsValid returns true if the operation is recognized.
func (o Operation) IsValid() bool {
	switch o {
	case OperationCreate, OperationUpdate, OperationDelete, OperationRead:
		return true
	default:
		return false
	}
}

func (o Operation) String() string {
	return string(o)
}

// Priority orders items within a sync cycle. Higher priorities are
// processed first; ties break on CreatedAt (earlier first).
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// IsValid returns true if the priority is recognized.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// Rank returns the numeric ordering weight of the priority. Higher values
// are processed first.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	default:
		return 0
	}
}

func (p Priority) String() string {
	return string(p)
}

// ConflictStrategy declares how a conflict for an item is settled. It is
// fixed at enqueue time and not renegotiable mid-flight.
type ConflictStrategy string

const (
	ServerWins ConflictStrategy = "server-wins"
	ClientWins ConflictStrategy = "client-wins"
	MergeWins  ConflictStrategy = "merge"
	Manual     ConflictStrategy = "manual"
)

// IsValid returns true if the strategy is recognized.
func (s ConflictStrategy) IsValid() bool {
	switch s {
	case ServerWins, ClientWins, MergeWins, Manual:
		return true
	default:
		return false
	}
}

func (s ConflictStrategy) String() string {
	return string(s)
}

// ItemStatus tracks the lifecycle of a queued item. Completed items are
// removed from the queue rather than retained.
type ItemStatus string

const (
	ItemPending ItemStatus = "pending"
	ItemSyncing ItemStatus = "syncing"
	ItemFailed  ItemStatus = "failed"
)

// SyncItem is one pending mutation awaiting delivery to the remote
// authority. Exactly one item per ID exists in the queue at any time;
// enqueueing an existing ID replaces the stored item.
type SyncItem struct {
	ID          string           `json:"id"`
	Entity      string           `json:"entity"`
	Operation   Operation        `json:"operation"`
	Payload     Payload          `json:"payload,omitempty"`
	Priority    Priority         `json:"priority"`
	Resolution  ConflictStrategy `json:"conflict_resolution"`
	CreatedAt   time.Time        `json:"created_at"`
	Status      ItemStatus       `json:"status"`
	RetryCount  int              `json:"retry_count"`
	LastRetryAt time.Time        `json:"last_retry_at,omitzero"`
	LastError   string           `json:"last_error,omitempty"`
}

// Validate checks the item for enqueue. Empty priority and strategy get
// defaults; everything else must be well formed.
func (it *SyncItem) Validate() error {
	if it.ID == "" {
		return syncErrors.NewValidationError(syncErrors.OpEnqueue, fmt.Errorf("item id is required"))
	}
	if it.Entity == "" {
		return syncErrors.NewValidationError(syncErrors.OpEnqueue, fmt.Errorf("item entity is required"))
	}
	if it.Priority == "" {
		it.Priority = PriorityNormal
	}
	if it.Resolution == "" {
		it.Resolution = ServerWins
	}
	if !it.Operation.IsValid() {
		return syncErrors.NewValidationError(syncErrors.OpEnqueue, fmt.Errorf("unknown operation %q", it.Operation))
	}
	if !it.Priority.IsValid() {
		return syncErrors.NewValidationError(syncErrors.OpEnqueue, fmt.Errorf("unknown priority %q", it.Priority))
	}
	if !it.Resolution.IsValid() {
		return syncErrors.NewValidationError(syncErrors.OpEnqueue, fmt.Errorf("unknown conflict strategy %q", it.Resolution))
	}
	return nil
}

// Clone returns a copy of the item with its own payload map, so the
// executor never sees a live reference into the queue.
func (it SyncItem) Clone() SyncItem {
	out := it
	out.Payload = it.Payload.Clone()
	return out
}

// sortItems orders items by priority descending, then CreatedAt ascending,
// then ID for a stable total order.
func sortItems(items []SyncItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Priority.Rank() != items[j].Priority.Rank() {
			return items[i].Priority.Rank() > items[j].Priority.Rank()
		}
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
}
