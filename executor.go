package offsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	syncErrors "github.com/offlinekit/offsync/errors"
)

// ErrManualResolution marks an execution outcome that is neither success
// nor failure: the item's conflict strategy is manual and an external
// decision-maker must settle it. The scheduler leaves such items pending
// without consuming retry budget.
var ErrManualResolution = errors.New("conflict deferred to manual resolution")

// Executor processes a single SyncItem against the transport boundary and
// settles conflicts through the resolver. It never touches queue state;
// the scheduler owns all status and membership mutations based on the
// returned outcome. This keeps the executor free of persistence concerns
// and independently testable with a stub transport.
type Executor struct {
	transport Transport
	resolver  ConflictResolver
	logger    *slog.Logger
	metrics   MetricsCollector
}

// NewExecutor constructs an Executor. resolver, logger and metrics may be
// nil, in which case the strategy dispatcher, the default logger and a
// no-op collector are used.
func NewExecutor(transport Transport, resolver ConflictResolver, logger *slog.Logger, metrics MetricsCollector) *Executor {
	if resolver == nil {
		resolver = &StrategyResolver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = &NoOpMetricsCollector{}
	}
	return &Executor{
		transport: transport,
		resolver:  resolver,
		logger:    logger,
		metrics:   metrics,
	}
}

// Execute dispatches one item. A nil return means the remote authority
// accepted the operation. A conflict response is resolved via the item's
// declared strategy and resubmitted within the same attempt, so the extra
// round trip does not consume retry budget.
func (x *Executor) Execute(ctx context.Context, item SyncItem) error {
	x.logger.Debug("dispatching item",
		"item_id", item.ID,
		"entity", item.Entity,
		"operation", item.Operation,
		"priority", item.Priority)

	result, err := x.transport.Dispatch(ctx, item.Entity, item.Operation, item.Payload)
	if err != nil {
		return x.wrapDispatchError(err)
	}

	if result.Status != DispatchConflict {
		return nil
	}

	// A pull-refresh carries no local mutation to defend; the server's
	// payload is authoritative by definition.
	if item.Operation == OperationRead {
		x.logger.Debug("conflict response on read treated as success", "item_id", item.ID)
		return nil
	}

	x.logger.Info("conflict reported by remote",
		"item_id", item.ID,
		"entity", item.Entity,
		"strategy", item.Resolution)

	resolution, err := x.resolver.Resolve(ctx, Conflict{
		ItemID:   item.ID,
		Entity:   item.Entity,
		Strategy: item.Resolution,
		Server:   result.ServerPayload,
		Client:   item.Payload,
	})
	if err != nil {
		return syncErrors.WrapOpComponent(err, syncErrors.OpResolve, "resolver")
	}

	if resolution.Deferred {
		x.logger.Info("conflict deferred for manual resolution",
			"item_id", item.ID,
			"reasons", resolution.Reasons)
		return ErrManualResolution
	}

	x.metrics.RecordConflicts(1)
	x.logger.Debug("conflict resolved, resubmitting",
		"item_id", item.ID,
		"decision", resolution.Decision,
		"reasons", resolution.Reasons)

	resubmit, err := x.transport.Dispatch(ctx, item.Entity, item.Operation, resolution.Payload)
	if err != nil {
		return x.wrapDispatchError(err)
	}
	if resubmit.Status == DispatchConflict {
		// The entity moved again between resolution and resubmit. Treat it
		// as a transient failure and let the retry policy take over.
		return syncErrors.NewRetryable(syncErrors.OpExecute,
			fmt.Errorf("entity %q still in conflict after %s resolution", item.Entity, item.Resolution))
	}

	return nil
}

// wrapDispatchError classifies transport errors. Anything not already
// structured counts as a retryable network failure.
func (x *Executor) wrapDispatchError(err error) error {
	var syncErr *syncErrors.SyncError
	if errors.As(err, &syncErr) {
		return syncErrors.WrapOpComponent(err, syncErrors.OpDispatch, "transport")
	}
	return syncErrors.NewNetworkError(syncErrors.OpDispatch, err)
}
