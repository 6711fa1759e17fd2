package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

type idemEntry struct {
	response  []byte
	hasResult bool
	expiresAt time.Time
}

// idempotencyStoreInMemory — потокобезопасная реализация IdempotencyStore
// для разработки и тестов. Просроченные записи удаляются лениво при чтении.
type idempotencyStoreInMemory struct {
	mu      sync.Mutex
	entries map[string]*idemEntry
	now     func() time.Time
}

var _ domain.IdempotencyStore = (*idempotencyStoreInMemory)(nil)

func NewIdempotencyStore() *idempotencyStoreInMemory {
	return &idempotencyStoreInMemory{
		entries: make(map[string]*idemEntry),
		now:     time.Now,
	}
}

func (s *idempotencyStoreInMemory) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[key]; ok && entry.expiresAt.After(s.now()) {
		return false, nil
	}
	s.entries[key] = &idemEntry{expiresAt: s.now().Add(ttl)}
	return true, nil
}

func (s *idempotencyStoreInMemory) Remember(_ context.Context, key string, response []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(response))
	copy(stored, response)
	s.entries[key] = &idemEntry{
		response:  stored,
		hasResult: true,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

func (s *idempotencyStoreInMemory) Recall(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || !entry.hasResult {
		return nil, false, nil
	}
	if !entry.expiresAt.After(s.now()) {
		delete(s.entries, key)
		return nil, false, nil
	}

	out := make([]byte, len(entry.response))
	copy(out, entry.response)
	return out, true, nil
}

func (s *idempotencyStoreInMemory) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[key]; ok && !entry.hasResult {
		delete(s.entries, key)
	}
	return nil
}
