package offsync

import (
	"context"
	"errors"
	"testing"

	syncErrors "github.com/offlinekit/offsync/errors"
)

func newTestExecutor(transport *TestTransport) *Executor {
	return NewExecutor(transport, nil, nil, nil)
}

func TestExecuteSuccess(t *testing.T) {
	transport := NewTestTransport()
	x := newTestExecutor(transport)

	err := x.Execute(context.Background(), testItem("n1"))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if transport.CallCount() != 1 {
		t.Errorf("expected 1 dispatch, got %d", transport.CallCount())
	}
}

func TestExecuteWrapsBareTransportError(t *testing.T) {
	transport := NewTestTransport()
	transport.QueueError(errTestUnavailable)
	x := newTestExecutor(transport)

	err := x.Execute(context.Background(), testItem("n1"))
	if err == nil {
		t.Fatal("Execute should have failed")
	}
	if !syncErrors.IsRetryable(err) {
		t.Error("bare transport errors should be classified retryable")
	}
	if !errors.Is(err, errTestUnavailable) {
		t.Error("cause should be preserved through wrapping")
	}
}

func TestExecutePreservesStructuredErrors(t *testing.T) {
	transport := NewTestTransport()
	transport.QueueError(syncErrors.NewValidationError(syncErrors.OpDispatch, errTestUnavailable))
	x := newTestExecutor(transport)

	err := x.Execute(context.Background(), testItem("n1"))
	if err == nil {
		t.Fatal("Execute should have failed")
	}
	if syncErrors.IsRetryable(err) {
		t.Error("validation errors must stay non-retryable through wrapping")
	}
}

func TestExecuteConflictServerWins(t *testing.T) {
	transport := NewTestTransport()
	transport.QueueConflict(Payload{"title": "server"})
	x := newTestExecutor(transport)

	it := testItem("n1")
	it.Resolution = ServerWins
	if err := x.Execute(context.Background(), it); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	calls := transport.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected conflict + resubmit, got %d dispatches", len(calls))
	}
	if calls[1].Payload["title"] != "server" {
		t.Errorf("resubmit payload = %v, want server payload", calls[1].Payload)
	}
}

func TestExecuteConflictClientWins(t *testing.T) {
	transport := NewTestTransport()
	transport.QueueConflict(Payload{"title": "server"})
	x := newTestExecutor(transport)

	it := testItem("n1")
	it.Resolution = ClientWins
	it.Payload = Payload{"title": "client"}
	if err := x.Execute(context.Background(), it); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	calls := transport.Calls()
	if calls[1].Payload["title"] != "client" {
		t.Errorf("resubmit payload = %v, want client payload", calls[1].Payload)
	}
}

func TestExecuteConflictMerge(t *testing.T) {
	transport := NewTestTransport()
	transport.QueueConflict(Payload{"a": float64(1), "b": float64(2)})
	x := newTestExecutor(transport)

	it := testItem("n1")
	it.Resolution = MergeWins
	it.Payload = Payload{"b": float64(3), "c": float64(4)}
	if err := x.Execute(context.Background(), it); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	calls := transport.Calls()
	got := calls[1].Payload
	want := Payload{"a": float64(1), "b": float64(3), "c": float64(4)}
	if len(got) != len(want) {
		t.Fatalf("merged payload = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("merged[%q] = %v, want %v", k, got[k], v)
		}
	}
}

func TestExecuteConflictManualDefers(t *testing.T) {
	transport := NewTestTransport()
	transport.QueueConflict(Payload{"title": "server"})
	x := newTestExecutor(transport)

	it := testItem("n1")
	it.Resolution = Manual
	err := x.Execute(context.Background(), it)
	if !errors.Is(err, ErrManualResolution) {
		t.Fatalf("expected ErrManualResolution, got %v", err)
	}
	if transport.CallCount() != 1 {
		t.Errorf("deferred conflicts must not resubmit, got %d dispatches", transport.CallCount())
	}
}

func TestExecuteConflictOnReadIsSuccess(t *testing.T) {
	transport := NewTestTransport()
	transport.QueueConflict(Payload{"title": "server"})
	x := newTestExecutor(transport)

	it := testItem("n1")
	it.Operation = OperationRead
	if err := x.Execute(context.Background(), it); err != nil {
		t.Fatalf("conflict on read should succeed, got %v", err)
	}
	if transport.CallCount() != 1 {
		t.Errorf("read conflicts must not resubmit, got %d dispatches", transport.CallCount())
	}
}

func TestExecuteDoubleConflictIsRetryable(t *testing.T) {
	transport := NewTestTransport()
	transport.QueueConflict(Payload{"title": "server v1"})
	transport.QueueConflict(Payload{"title": "server v2"})
	x := newTestExecutor(transport)

	it := testItem("n1")
	it.Resolution = ClientWins
	err := x.Execute(context.Background(), it)
	if err == nil {
		t.Fatal("Execute should have failed on the second conflict")
	}
	if !syncErrors.IsRetryable(err) {
		t.Error("a conflict surviving resolution should be retryable")
	}
}

func TestExecuteUnknownStrategyFails(t *testing.T) {
	transport := NewTestTransport()
	transport.QueueConflict(Payload{"title": "server"})
	x := newTestExecutor(transport)

	it := testItem("n1")
	it.Resolution = "coin-flip"
	err := x.Execute(context.Background(), it)
	if err == nil {
		t.Fatal("Execute with unknown strategy should have failed")
	}
	if syncErrors.IsRetryable(err) {
		t.Error("unknown strategies are terminal, not retryable")
	}
}
