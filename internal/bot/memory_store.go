package bot

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the in-process ConversationStore. Expiry is checked lazily
// on read; there is no background sweep.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]State
	ttl    time.Duration
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states: make(map[string]State),
		ttl:    StateTTL,
		now:    time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, phone string) (*State, error) {
	s.mu.RLock()
	st, ok := s.states[phone]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	if s.now().Sub(st.UpdatedAt) > s.ttl {
		s.mu.Lock()
		// re-check under the write lock, another goroutine may have refreshed it
		if cur, ok := s.states[phone]; ok && s.now().Sub(cur.UpdatedAt) > s.ttl {
			delete(s.states, phone)
		}
		s.mu.Unlock()
		return nil, nil
	}

	copied := st
	return &copied, nil
}

func (s *MemoryStore) Set(_ context.Context, phone string, st *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *st
	stored.UpdatedAt = s.now()
	s.states[phone] = stored
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, phone)
	return nil
}
