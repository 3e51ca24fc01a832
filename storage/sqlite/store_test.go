package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offlinekit/offsync"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queue.db")
	store, err := NewWithDataSource("file:" + path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleItems() []offsync.SyncItem {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return []offsync.SyncItem{
		{
			ID:         "n1",
			Entity:     "notes",
			Operation:  offsync.OperationUpdate,
			Payload:    offsync.Payload{"title": "hello", "pinned": true},
			Priority:   offsync.PriorityHigh,
			Resolution: offsync.MergeWins,
			CreatedAt:  now,
			Status:     offsync.ItemPending,
		},
		{
			ID:          "n2",
			Entity:      "tasks",
			Operation:   offsync.OperationDelete,
			Priority:    offsync.PriorityNormal,
			Resolution:  offsync.ServerWins,
			CreatedAt:   now.Add(time.Second),
			Status:      offsync.ItemFailed,
			RetryCount:  3,
			LastRetryAt: now.Add(2 * time.Second),
			LastError:   "network error",
		},
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleItems()))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	byID := make(map[string]offsync.SyncItem, len(loaded))
	for _, it := range loaded {
		byID[it.ID] = it
	}

	n1 := byID["n1"]
	assert.Equal(t, "notes", n1.Entity)
	assert.Equal(t, offsync.OperationUpdate, n1.Operation)
	assert.Equal(t, offsync.PriorityHigh, n1.Priority)
	assert.Equal(t, offsync.MergeWins, n1.Resolution)
	assert.Equal(t, offsync.ItemPending, n1.Status)
	assert.Equal(t, "hello", n1.Payload["title"])
	assert.Equal(t, true, n1.Payload["pinned"])
	assert.True(t, n1.LastRetryAt.IsZero())

	n2 := byID["n2"]
	assert.Equal(t, offsync.ItemFailed, n2.Status)
	assert.Equal(t, 3, n2.RetryCount)
	assert.Equal(t, "network error", n2.LastError)
	assert.False(t, n2.LastRetryAt.IsZero())
}

func TestSaveReplacesPreviousQueue(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleItems()))
	require.NoError(t, store.Save(ctx, sampleItems()[:1]))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "n1", loaded[0].ID)
}

func TestQueueSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")
	ctx := context.Background()

	store, err := NewWithDataSource("file:" + path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, sampleItems()))
	require.NoError(t, store.Close())

	reopened, err := NewWithDataSource("file:" + path)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
}

func TestClosedStoreRejectsOperations(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Close())

	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, store.Save(context.Background(), nil), ErrStoreClosed)
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(&Config{})
	assert.Error(t, err)
}

func TestDefaultConfigEnablesWAL(t *testing.T) {
	cfg := DefaultConfig("file:queue.db")
	assert.Contains(t, cfg.DataSourceName, "_journal_mode=WAL")
	assert.Equal(t, "sync_queue", cfg.TableName)
}
