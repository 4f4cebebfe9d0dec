package progress

import (
	"context"
	"sync"
	"time"

	"github.com/mohammad-safakhou/postwise/internal/content"
)

type memoryEntry struct {
	state    content.ChainState
	storedAt time.Time
}

// MemoryStore is the in-process Store used when redis is not configured.
// Every Put triggers an opportunistic sweep of expired entries in a
// separate goroutine so the writer never waits on cleanup.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates a store with the given TTL; zero means DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Put(_ context.Context, id string, state content.ChainState) error {
	now := s.now()
	s.mu.Lock()
	s.entries[id] = memoryEntry{state: state.Clone(), storedAt: now}
	s.mu.Unlock()
	go s.sweep()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (content.ChainState, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok || s.now().Sub(e.storedAt) > s.ttl {
		return content.ChainState{}, false, nil
	}
	return e.state.Clone(), true, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

// sweep drops every entry older than the TTL. One pass over the map.
func (s *MemoryStore) sweep() {
	cutoff := s.now().Add(-s.ttl)
	s.mu.Lock()
	for id, e := range s.entries {
		if e.storedAt.Before(cutoff) {
			delete(s.entries, id)
		}
	}
	s.mu.Unlock()
}
