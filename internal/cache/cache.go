package cache

import (
	"context"
	"sync"
	"time"

	"paineluriel/backend/internal/domain"
)

// CartStore holds live cart sessions. Carts are transient by design:
// losing the store only empties open carts, it never loses orders.
type CartStore interface {
	Get(ctx context.Context, id string) (*domain.Cart, bool, error)
	Set(ctx context.Context, id string, cart *domain.Cart, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

type memoryEntry struct {
	cart      domain.Cart
	expiresAt time.Time
}

type MemoryCartStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func NewMemoryCartStore() *MemoryCartStore {
	return &MemoryCartStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryCartStore) Get(_ context.Context, id string) (*domain.Cart, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, id)
		s.mu.Unlock()
		return nil, false, nil
	}
	cart := entry.cart
	return &cart, true, nil
}

func (s *MemoryCartStore) Set(_ context.Context, id string, cart *domain.Cart, ttl time.Duration) error {
	if cart == nil {
		return nil
	}
	entry := memoryEntry{cart: *cart}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	s.mu.Lock()
	s.entries[id] = entry
	s.mu.Unlock()
	return nil
}

func (s *MemoryCartStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}
