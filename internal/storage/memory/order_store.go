package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// orderStoreInMemory — простая in-memory реализация OrderStore.
type orderStoreInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Order
}

// NewOrderStore возвращает in-memory хранилище заказов для локальной разработки и тестов.
func NewOrderStore() *orderStoreInMemory {
	return &orderStoreInMemory{
		items: make(map[string]domain.Order),
	}
}

// Create сохраняет заказ, проставляя идентификаторы и время создания.
func (s *orderStoreInMemory) Create(_ context.Context, customer domain.Customer, lines []domain.OrderLine) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	stored := make([]domain.OrderLine, len(lines))
	copy(stored, lines)
	for i := range stored {
		if stored[i].ID == "" {
			stored[i].ID = uuid.NewString()
		}
		if stored[i].CreatedAt.IsZero() {
			stored[i].CreatedAt = now
		}
	}

	order := domain.Order{
		ID:        uuid.NewString(),
		Customer:  customer,
		Lines:     stored,
		CreatedAt: now,
	}

	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	s.items[order.ID] = order
	return order, nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (s *orderStoreInMemory) Get(_ context.Context, id string) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

// ListByCustomer возвращает заказы покупателя, ограничивая выборку limit (если >0).
func (s *orderStoreInMemory) ListByCustomer(_ context.Context, customerID string, limit int) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Order, 0, len(s.items))
	for _, order := range s.items {
		if order.Customer.ID != customerID {
			continue
		}
		result = append(result, order)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// Count возвращает количество сохранённых заказов (используется в тестах).
func (s *orderStoreInMemory) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

var _ domain.OrderStore = (*orderStoreInMemory)(nil)
