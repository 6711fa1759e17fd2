package domain

import (
	"context"
	"time"
)

// CustomerDirectory резолвит идентификатор покупателя в запись справочника.
type CustomerDirectory interface {
	// FindByID возвращает покупателя или ErrCustomerNotFound, если его нет.
	FindByID(ctx context.Context, id string) (Customer, error)
}

// ProductCatalog описывает каталог товаров с конечными остатками.
type ProductCatalog interface {
	// FindAllByID возвращает только существующие товары; отсутствие товара
	// в результате означает, что его нет в каталоге.
	FindAllByID(ctx context.Context, ids []string) ([]Product, error)
	// UpdateQuantities применяет батч списаний как единое атомарное
	// изменение: либо весь батч, либо ничего. Несовпадение версии хотя бы
	// одного товара проваливает батч с ErrStockConflict.
	UpdateQuantities(ctx context.Context, updates []StockUpdate) error
}

// OrderStore сохраняет размещённые заказы.
type OrderStore interface {
	// Create персистит заказ (покупатель + позиции) и возвращает сохранённую
	// запись с проставленными идентификатором и временем создания.
	Create(ctx context.Context, customer Customer, lines []OrderLine) (Order, error)
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	Get(ctx context.Context, id string) (Order, error)
	// ListByCustomer возвращает заказы покупателя, новые первыми,
	// с опциональным ограничением на количество.
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]Order, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// IdempotencyStore защищает размещение заказа от повторной обработки
// одного и того же запроса по Idempotency-Key.
type IdempotencyStore interface {
	// TryLock атомарно захватывает ключ на время обработки; false означает,
	// что ключ уже занят или по нему есть сохранённый ответ.
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Remember сохраняет ответ на запрос для повторной выдачи.
	Remember(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Recall возвращает сохранённый ответ; второй результат false,
	// если по ключу ещё ничего не записано.
	Recall(ctx context.Context, key string) ([]byte, bool, error)
	// Release снимает lock, если обработка завершилась ошибкой и повтор
	// запроса допустим.
	Release(ctx context.Context, key string) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
