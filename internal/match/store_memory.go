package match

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryEntry struct {
	mu      sync.Mutex
	match   *Match
	deleted bool
}

// MemoryStore keeps matches in process memory. Each match has its own lock,
// so updates to different matches never wait on each other.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
	}
}

func (s *MemoryStore) Create(ctx context.Context, m *Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[m.ID]; exists {
		return fmt.Errorf("%w: match %s already exists", ErrConflict, m.ID)
	}
	s.entries[m.ID] = &memoryEntry{match: m.Clone()}
	return nil
}

func (s *MemoryStore) entry(id string) (*memoryEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Match, error) {
	e, ok := s.entry(id)
	if !ok {
		return nil, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, ErrNotFound
	}
	return e.match.Clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, fn func(*Match) error) (*Match, error) {
	e, ok := s.entry(id)
	if !ok {
		return nil, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, ErrNotFound
	}

	working := e.match.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	e.match = working
	return working.Clone(), nil
}

func (s *MemoryStore) DeleteIdle(ctx context.Context, before time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, e := range s.entries {
		e.mu.Lock()
		if e.match.UpdatedAt.Before(before) {
			// Updates already holding the entry observe the flag and give up.
			e.deleted = true
			delete(s.entries, id)
			ids = append(ids, id)
		}
		e.mu.Unlock()
	}
	return ids, nil
}

// Count returns the number of stored matches.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
