package offsync

import (
	"context"
	"fmt"

	syncErrors "github.com/offlinekit/offsync/errors"
)

var (
	_ ConflictResolver = (*ServerWinsResolver)(nil)
	_ ConflictResolver = (*ClientWinsResolver)(nil)
	_ ConflictResolver = (*ShallowMergeResolver)(nil)
	_ ConflictResolver = (*ManualReviewResolver)(nil)
	_ ConflictResolver = (*StrategyResolver)(nil)
)

// ServerWinsResolver keeps the remote authority's payload unchanged.
type ServerWinsResolver struct{}

func (r *ServerWinsResolver) Resolve(ctx context.Context, c Conflict) (Resolution, error) {
	return Resolution{Payload: c.Server.Clone(), Decision: "keep_server", Reasons: []string{"server wins"}}, nil
}

// ClientWinsResolver keeps the locally queued payload unchanged.
type ClientWinsResolver struct{}

func (r *ClientWinsResolver) Resolve(ctx context.Context, c Conflict) (Resolution, error) {
	return Resolution{Payload: c.Client.Clone(), Decision: "keep_client", Reasons: []string{"client wins"}}, nil
}

// ShallowMergeResolver starts from the server payload and overwrites every
// key present in the client payload with the client's value. There is no
// recursive merge and no three-way diff; this policy is simple and lossy
// on nested structures, which is intentional.
type ShallowMergeResolver struct{}

func (r *ShallowMergeResolver) Resolve(ctx context.Context, c Conflict) (Resolution, error) {
	return Resolution{Payload: mergePayloads(c.Server, c.Client), Decision: "merge", Reasons: []string{"shallow field overwrite"}}, nil
}

// ManualReviewResolver defers the conflict to an external decision-maker.
// The item stays pending until an explicit resolution is applied.
type ManualReviewResolver struct{ Reason string }

func (r *ManualReviewResolver) Resolve(ctx context.Context, c Conflict) (Resolution, error) {
	reasons := []string{"manual review required"}
	if r.Reason != "" {
		reasons = append(reasons, r.Reason)
	}
	return Resolution{Deferred: true, Decision: "manual_review", Reasons: reasons}, nil
}

// StrategyResolver dispatches to the strategy declared on the item at
// enqueue time. It is the engine's default resolver.
type StrategyResolver struct{}

func (r *StrategyResolver) Resolve(ctx context.Context, c Conflict) (Resolution, error) {
	switch c.Strategy {
	case ServerWins:
		return (&ServerWinsResolver{}).Resolve(ctx, c)
	case ClientWins:
		return (&ClientWinsResolver{}).Resolve(ctx, c)
	case MergeWins:
		return (&ShallowMergeResolver{}).Resolve(ctx, c)
	case Manual:
		return (&ManualReviewResolver{}).Resolve(ctx, c)
	default:
		return Resolution{}, syncErrors.NewConflictError(syncErrors.OpResolve,
			fmt.Errorf("unknown conflict strategy %q for item %q", c.Strategy, c.ItemID))
	}
}

// mergePayloads implements the shallow merge policy: server values first,
// client values overwrite key by key.
func mergePayloads(server, client Payload) Payload {
	out := make(Payload, len(server)+len(client))
	for k, v := range server {
		out[k] = v
	}
	for k, v := range client {
		out[k] = v
	}
	return out
}
