package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// productCatalogInMemory — in-memory реализация ProductCatalog с
// optimistic locking по версии товара.
type productCatalogInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Product
}

// NewProductCatalog возвращает in-memory каталог для локальной разработки и тестов.
func NewProductCatalog() *productCatalogInMemory {
	return &productCatalogInMemory{
		items: make(map[string]domain.Product),
	}
}

// Seed добавляет товар в каталог (используется при старте и в тестах).
func (c *productCatalogInMemory) Seed(product domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[product.ID] = product
}

// Snapshot возвращает копию товара (используется в тестах для проверки остатков).
func (c *productCatalogInMemory) Snapshot(id string) (domain.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	product, ok := c.items[id]
	return product, ok
}

// FindAllByID возвращает только существующие товары в детерминированном
// порядке (по идентификатору); отсутствующие идентификаторы молча опускаются.
func (c *productCatalogInMemory) FindAllByID(_ context.Context, ids []string) ([]domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]domain.Product, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if product, ok := c.items[id]; ok {
			result = append(result, product)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// UpdateQuantities применяет батч списаний атомарно: сначала проверяются все
// версии и новые значения, и только потом применяется весь батч. Частичное
// применение невозможно.
func (c *productCatalogInMemory) UpdateQuantities(_ context.Context, updates []domain.StockUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, upd := range updates {
		product, ok := c.items[upd.ProductID]
		if !ok {
			return domain.ErrProductsNotFound
		}
		if product.Version != upd.Version {
			return domain.ErrStockConflict
		}
		if upd.NewQuantity < 0 {
			return domain.ErrStockUpdateFailed
		}
	}

	now := time.Now().UTC()
	for _, upd := range updates {
		product := c.items[upd.ProductID]
		product.AvailableQty = upd.NewQuantity
		product.Version++
		product.UpdatedAt = now
		c.items[upd.ProductID] = product
	}

	return nil
}

var _ domain.ProductCatalog = (*productCatalogInMemory)(nil)
