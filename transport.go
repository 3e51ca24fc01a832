package offsync

import "context"

// DispatchStatus classifies a transport response.
type DispatchStatus string

const (
	// DispatchApplied means the remote authority accepted the operation.
	DispatchApplied DispatchStatus = "applied"

	// DispatchConflict means the remote reports the entity changed since
	// the last sync. The server's current payload accompanies the result.
	DispatchConflict DispatchStatus = "conflict"
)

// DispatchResult is the interpreted outcome of one transport round trip.
// A conflict is a normal result, not an error; transport errors (network
// failures, timeouts) are returned as errors.
type DispatchResult struct {
	Status DispatchStatus

	// ServerPayload carries the server's view of the entity. Always set on
	// conflict; optionally set on applied (e.g. for read operations).
	ServerPayload Payload
}

// Transport moves one operation to the remote authority. Implementations
// live outside the engine core; transport/httptransport ships an HTTP one.
type Transport interface {
	Dispatch(ctx context.Context, entity string, op Operation, payload Payload) (DispatchResult, error)
	Close() error
}
