package params

import (
	"sync"
	"sync/atomic"
)

// Store holds the latest Parameters snapshot.
// Readers always see a whole snapshot; writers replace it atomically.
type Store struct {
	current atomic.Pointer[Parameters]

	// serializes read-modify-write edits
	mu sync.Mutex
}

// NewStore returns a store seeded with p.
func NewStore(p Parameters) *Store {
	s := &Store{}
	s.current.Store(&p)
	return s
}

// Current returns the latest snapshot.
func (s *Store) Current() Parameters {
	if p := s.current.Load(); p != nil {
		return *p
	}
	return Defaults()
}

// Set replaces the snapshot wholesale.
func (s *Store) Set(p Parameters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Store(&p)
}

// SetField edits one field, clamped to its range, and publishes the result.
func (s *Store) SetField(name string, value float64) (Parameters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.Current().Edit(name, value)
	if err != nil {
		return s.Current(), err
	}
	s.current.Store(&next)
	return next, nil
}

// Reset restores Defaults and returns them.
func (s *Store) Reset() Parameters {
	p := Defaults()
	s.Set(p)
	return p
}
