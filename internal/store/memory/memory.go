// Package memory provides an in-memory store.Repository used when no
// database is configured and as the fixture backend in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"paineluriel/backend/internal/domain"
	"paineluriel/backend/internal/store"
)

type Store struct {
	mu       sync.RWMutex
	attempts map[string]*domain.ChargeAttempt
}

func New() *Store {
	return &Store{attempts: make(map[string]*domain.ChargeAttempt)}
}

func (s *Store) CreateChargeAttempt(_ context.Context, attempt *domain.ChargeAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = now
	}
	attempt.UpdatedAt = now

	clone := *attempt
	s.attempts[attempt.ID] = &clone
	return nil
}

func (s *Store) UpdateChargeStatus(_ context.Context, id string, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempt, ok := s.attempts[id]
	if !ok {
		return store.ErrNotFound
	}
	attempt.Status = status
	attempt.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) FindChargeByExternalID(_ context.Context, externalID string) (*domain.ChargeAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, attempt := range s.attempts {
		if attempt.ExternalID == externalID {
			clone := *attempt
			return &clone, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListChargeAttempts(_ context.Context, limit int) ([]*domain.ChargeAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	attempts := make([]*domain.ChargeAttempt, 0, len(s.attempts))
	for _, attempt := range s.attempts {
		clone := *attempt
		attempts = append(attempts, &clone)
	}
	sort.Slice(attempts, func(i, j int) bool {
		return attempts[i].CreatedAt.After(attempts[j].CreatedAt)
	})
	if limit > 0 && len(attempts) > limit {
		attempts = attempts[:limit]
	}
	return attempts, nil
}
