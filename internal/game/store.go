// internal/game/store.go
package game

import (
	"sync"

	"github.com/jason-s-yu/gamehub/internal/models"
)

// Store maps a room id to the state of the game running in it. Values are
// replaced wholesale; nothing outside the owning rule module edits them.
type Store struct {
	mu     sync.RWMutex
	states map[string]State
}

func NewStore() *Store {
	return &Store{
		states: make(map[string]State),
	}
}

func (s *Store) Set(roomID string, st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[roomID] = st
}

func (s *Store) Get(roomID string) (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[roomID]
	return st, ok
}

// Update applies fn to the currently stored state and stores the result.
// When no state exists it returns ErrGameNotFound; when fn fails the stored
// state is left as it was.
func (s *Store) Update(roomID string, fn func(State) (State, error)) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.states[roomID]
	if !ok {
		return nil, models.ErrGameNotFound
	}
	next, err := fn(cur)
	if err != nil {
		return nil, err
	}
	s.states[roomID] = next
	return next, nil
}

func (s *Store) Delete(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, roomID)
}

func (s *Store) Has(roomID string) bool {
	_, ok := s.Get(roomID)
	return ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}
