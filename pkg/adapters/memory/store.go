package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/dialogtree/pkg/domain"
	"github.com/aretw0/dialogtree/pkg/history"
)

// Store implements ports.SessionStore in memory.
// Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	states  map[string]*domain.State
	history map[string][]byte
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		states:  make(map[string]*domain.State),
		history: make(map[string][]byte),
	}
}

// Save persists a copy of the state.
func (s *Store) Save(ctx context.Context, sessionID string, state *domain.State) error {
	copied := state.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[sessionID] = copied
	return nil
}

// Load returns a copy so callers cannot mutate stored state by pointer.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return state.Snapshot(), nil
}

// Delete removes the state and history of a session.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, sessionID)
	delete(s.history, sessionID)
	return nil
}

// List returns the stored session ids in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.states))
	for id := range s.states {
		sessions = append(sessions, id)
	}
	sort.Strings(sessions)
	return sessions, nil
}

// SaveHistory keeps the serialized tree, so later appends by the caller
// do not leak into the store.
func (s *Store) SaveHistory(ctx context.Context, sessionID string, tree *history.Tree) error {
	data, err := tree.Serialize()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[sessionID] = data
	return nil
}

// LoadHistory parses the stored tree.
func (s *Store) LoadHistory(ctx context.Context, sessionID string) (*history.Tree, error) {
	s.mu.RLock()
	data, ok := s.history[sessionID]
	s.mu.RUnlock()

	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return history.Deserialize(data)
}
