package memory

import (
	"context"
	"testing"
	"time"

	"github.com/offlinekit/offsync"
)

func TestSaveReplacesSet(t *testing.T) {
	s := New()
	ctx := context.Background()

	first := []offsync.SyncItem{
		{ID: "a", Entity: "notes", Operation: offsync.OperationCreate, CreatedAt: time.Now()},
		{ID: "b", Entity: "notes", Operation: offsync.OperationCreate, CreatedAt: time.Now()},
	}
	if err := s.Save(ctx, first); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	second := []offsync.SyncItem{
		{ID: "c", Entity: "notes", Operation: offsync.OperationDelete, CreatedAt: time.Now()},
	}
	if err := s.Save(ctx, second); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	items, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(items) != 1 || items[0].ID != "c" {
		t.Errorf("Load = %v, want only item c", items)
	}
}

func TestLoadReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Save(ctx, []offsync.SyncItem{
		{ID: "a", Entity: "notes", Operation: offsync.OperationUpdate, Payload: offsync.Payload{"k": "v"}},
	}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	items, _ := s.Load(ctx)
	items[0].Payload["k"] = "mutated"

	again, _ := s.Load(ctx)
	if again[0].Payload["k"] != "v" {
		t.Error("Load leaked a shared payload map")
	}
}

func TestClosedStoreRejectsOperations(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := s.Load(ctx); err != ErrStoreClosed {
		t.Errorf("Load after Close = %v, want ErrStoreClosed", err)
	}
	if err := s.Save(ctx, nil); err != ErrStoreClosed {
		t.Errorf("Save after Close = %v, want ErrStoreClosed", err)
	}
}

func TestContextCancellation(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Load(ctx); err == nil {
		t.Error("Load with cancelled context should fail")
	}
	if err := s.Save(ctx, nil); err == nil {
		t.Error("Save with cancelled context should fail")
	}
}
