package journal

import (
	"context"
	"sync"
)

// MemoryStore keeps entries in memory. Used by tests, which have no
// Redis to write to.
type MemoryStore struct {
	mu      sync.Mutex
	entries []*Entry
}

var _ Store = &MemoryStore{}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) InsertMany(_ context.Context, entries []*Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entries...)
	return nil
}

func (s *MemoryStore) Entries() []*Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Entry(nil), s.entries...)
}
