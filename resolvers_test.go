package offsync

import (
	"context"
	"testing"
)

func TestShallowMerge(t *testing.T) {
	r := &ShallowMergeResolver{}
	res, err := r.Resolve(context.Background(), Conflict{
		Server: Payload{"a": 1, "b": 2},
		Client: Payload{"b": 3, "c": 4},
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Deferred {
		t.Fatal("merge must not defer")
	}

	want := Payload{"a": 1, "b": 3, "c": 4}
	if len(res.Payload) != len(want) {
		t.Fatalf("merged = %v, want %v", res.Payload, want)
	}
	for k, v := range want {
		if res.Payload[k] != v {
			t.Errorf("merged[%q] = %v, want %v", k, res.Payload[k], v)
		}
	}
}

func TestServerAndClientWins(t *testing.T) {
	c := Conflict{
		Server: Payload{"title": "server"},
		Client: Payload{"title": "client"},
	}
	ctx := context.Background()

	res, err := (&ServerWinsResolver{}).Resolve(ctx, c)
	if err != nil {
		t.Fatalf("server-wins Resolve failed: %v", err)
	}
	if res.Payload["title"] != "server" {
		t.Errorf("server-wins payload = %v", res.Payload)
	}

	res, err = (&ClientWinsResolver{}).Resolve(ctx, c)
	if err != nil {
		t.Fatalf("client-wins Resolve failed: %v", err)
	}
	if res.Payload["title"] != "client" {
		t.Errorf("client-wins payload = %v", res.Payload)
	}
}

func TestResolversReturnCopies(t *testing.T) {
	server := Payload{"title": "server"}
	res, err := (&ServerWinsResolver{}).Resolve(context.Background(), Conflict{Server: server})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	res.Payload["title"] = "mutated"
	if server["title"] != "server" {
		t.Error("resolver leaked a reference to the conflict payload")
	}
}

func TestManualReviewDefers(t *testing.T) {
	r := &ManualReviewResolver{Reason: "schema change"}
	res, err := r.Resolve(context.Background(), Conflict{})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !res.Deferred {
		t.Error("manual review must defer")
	}
	if len(res.Reasons) != 2 {
		t.Errorf("reasons = %v", res.Reasons)
	}
}

func TestStrategyResolverDispatch(t *testing.T) {
	ctx := context.Background()
	r := &StrategyResolver{}
	c := Conflict{
		Strategy: ServerWins,
		Server:   Payload{"v": "s"},
		Client:   Payload{"v": "c"},
	}

	res, err := r.Resolve(ctx, c)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Payload["v"] != "s" {
		t.Errorf("dispatch to server-wins produced %v", res.Payload)
	}

	c.Strategy = "unknown"
	if _, err := r.Resolve(ctx, c); err == nil {
		t.Error("unknown strategy should have failed")
	}
}
