package store

import (
	"context"
	"sync"

	"buildwatch/src/contracts"
)

// MemoryStore is an in-memory implementation of Store.
// Useful for testing and when no database is configured.
type MemoryStore struct {
	mu          sync.RWMutex
	diagnostics []contracts.DiagnosticEvent
	transitions []contracts.TransitionEvent
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// RecordDiagnostic appends a diagnostic entry.
func (s *MemoryStore) RecordDiagnostic(ctx context.Context, event contracts.DiagnosticEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diagnostics = append(s.diagnostics, event)
	return nil
}

// RecentDiagnostics returns up to limit entries, newest first.
func (s *MemoryStore) RecentDiagnostics(ctx context.Context, limit int) ([]contracts.DiagnosticEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.diagnostics, limit), nil
}

// RecordTransition appends a transition.
func (s *MemoryStore) RecordTransition(ctx context.Context, event contracts.TransitionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions = append(s.transitions, event)
	return nil
}

// RecentTransitions returns up to limit transitions, newest first.
func (s *MemoryStore) RecentTransitions(ctx context.Context, limit int) ([]contracts.TransitionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.transitions, limit), nil
}

// Prune keeps the newest keep rows of each kind.
func (s *MemoryStore) Prune(ctx context.Context, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diagnostics = keepNewest(s.diagnostics, keep)
	s.transitions = keepNewest(s.transitions, keep)
	return nil
}

// Close is a no-op for in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

func newestFirst[T any](items []T, limit int) []T {
	if limit <= 0 || limit > len(items) {
		limit = len(items)
	}
	out := make([]T, 0, limit)
	for i := len(items) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, items[i])
	}
	return out
}

func keepNewest[T any](items []T, keep int) []T {
	if keep < 0 {
		keep = 0
	}
	if len(items) <= keep {
		return items
	}
	return append([]T(nil), items[len(items)-keep:]...)
}
