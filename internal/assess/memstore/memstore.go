// Package memstore provides an in-memory implementation of assess.Store.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/linnemanlabs/symcheck/internal/assess"
)

// Store holds assessments in memory. Suitable for dev/testing.
type Store struct {
	mu      sync.RWMutex
	results map[string]*assess.Assessment // assessment ID -> assessment
	order   []string                      // IDs in insertion order
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		results: make(map[string]*assess.Assessment),
	}
}

// Get retrieves an assessment by its ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*assess.Assessment, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.results[id]
	if !ok {
		return nil, false, nil
	}
	return a.Clone(), true, nil
}

// Put stores a copy of the assessment, replacing any with the same ID.
func (s *Store) Put(_ context.Context, a *assess.Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[a.ID]; !ok {
		s.order = append(s.order, a.ID)
	}
	s.results[a.ID] = a.Clone()
	return nil
}

// List returns up to limit assessments, newest first. Ties on CreatedAt keep
// the most recently inserted first.
func (s *Store) List(_ context.Context, limit int) ([]*assess.Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*assess.Assessment, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.results[s.order[i]].Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len returns the number of stored assessments.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}
