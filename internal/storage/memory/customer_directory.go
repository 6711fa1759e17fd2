package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// customerDirectoryInMemory — простая in-memory реализация CustomerDirectory.
type customerDirectoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Customer
}

// NewCustomerDirectory возвращает in-memory справочник для локальной разработки и тестов.
func NewCustomerDirectory() *customerDirectoryInMemory {
	return &customerDirectoryInMemory{
		items: make(map[string]domain.Customer),
	}
}

// Seed добавляет покупателя в справочник (используется при старте и в тестах).
func (d *customerDirectoryInMemory) Seed(customer domain.Customer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items[customer.ID] = customer
}

// FindByID возвращает покупателя или ErrCustomerNotFound, если его нет.
func (d *customerDirectoryInMemory) FindByID(_ context.Context, id string) (domain.Customer, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	customer, ok := d.items[id]
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return customer, nil
}

var _ domain.CustomerDirectory = (*customerDirectoryInMemory)(nil)
