package offsync

import "context"

// Store is the persistence gateway for the pending-item set. It must be
// crash-consistent: an interrupted Save may not drop an item that was
// already acknowledged as enqueued, nor duplicate one. Implementations
// typically achieve this with a single transaction per Save.
//
// The engine treats the store as a scoped resource: every mutating
// operation loads, mutates a working copy, and saves under the engine's
// queue lock, so implementations do not need their own cross-operation
// serialization beyond basic connection safety.
type Store interface {
	// Load returns the full persisted item set.
	Load(ctx context.Context) ([]SyncItem, error)

	// Save atomically replaces the persisted item set.
	Save(ctx context.Context, items []SyncItem) error

	// Close releases the underlying resources.
	Close() error
}
