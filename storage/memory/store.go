// Package memory provides a volatile in-memory implementation of the
// offsync Store, intended for tests and for applications that can
// tolerate losing the queue on restart.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/offlinekit/offsync"
)

// ErrStoreClosed is returned for operations on a closed store.
var ErrStoreClosed = errors.New("store is closed")

// Store keeps the queue in a mutex-guarded map. Load and Save deep-copy
// items so callers never share payload maps with the store.
type Store struct {
	mu     sync.RWMutex
	items  map[string]offsync.SyncItem
	closed bool
}

var _ offsync.Store = (*Store)(nil)

func New() *Store {
	return &Store{items: make(map[string]offsync.SyncItem)}
}

func (s *Store) Load(ctx context.Context) ([]offsync.SyncItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	out := make([]offsync.SyncItem, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it.Clone())
	}
	return out, nil
}

func (s *Store) Save(ctx context.Context, items []offsync.SyncItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	next := make(map[string]offsync.SyncItem, len(items))
	for _, it := range items {
		next[it.ID] = it.Clone()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.items = next
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.items = nil
	return nil
}
