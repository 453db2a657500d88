package application

import "sync"

// Store serializes writes to one slice of state. Every mutation is a pure
// reducer applied under the lock, so readers always observe a complete
// value and never a half-applied transition.
type Store[S any] struct {
	mu    sync.RWMutex
	state S
}

func NewStore[S any](initial S) *Store[S] {
	return &Store[S]{state: initial}
}

func (s *Store[S]) State() S {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

// Dispatch replaces the state with reduce(state) and returns the new value.
func (s *Store[S]) Dispatch(reduce func(S) S) S {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = reduce(s.state)
	return s.state
}
