package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

type outboxEntry struct {
	msg       domain.OutboxMessage
	enqueued  time.Time
	delivered bool
	failed    bool
}

// outboxRepositoryInMemory хранит outbox-сообщения в порядке постановки.
// Слайс queue задаёт порядок публикации, byID — доступ по идентификатору.
type outboxRepositoryInMemory struct {
	mu    sync.Mutex
	queue []*outboxEntry
	byID  map[string]*outboxEntry
}

// NewOutboxRepository создаёт in-memory реализацию outbox.
func NewOutboxRepository() *outboxRepositoryInMemory {
	return &outboxRepositoryInMemory{byID: make(map[string]*outboxEntry)}
}

var _ domain.OutboxRepository = (*outboxRepositoryInMemory)(nil)

// Enqueue ставит сообщение в хвост очереди публикации.
func (r *outboxRepositoryInMemory) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	entry := &outboxEntry{msg: msg, enqueued: time.Now().UTC()}
	r.queue = append(r.queue, entry)
	r.byID[msg.ID] = entry
	return msg, nil
}

// PullPending возвращает до limit неопубликованных сообщений в порядке
// постановки.
func (r *outboxRepositoryInMemory) PullPending(limit int) ([]domain.OutboxMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}

	out := make([]domain.OutboxMessage, 0, limit)
	for _, entry := range r.queue {
		if entry.delivered || entry.failed {
			continue
		}
		out = append(out, entry.msg)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Stats возвращает размер backlog и время самой старой pending-записи.
func (r *outboxRepositoryInMemory) Stats() (domain.OutboxStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stats domain.OutboxStats
	for _, entry := range r.queue {
		if entry.delivered || entry.failed {
			continue
		}
		if stats.PendingCount == 0 {
			stats.OldestPendingAt = entry.enqueued
		}
		stats.PendingCount++
	}
	return stats, nil
}

func (r *outboxRepositoryInMemory) MarkSent(id string) error {
	return r.resolve(id, func(entry *outboxEntry) { entry.delivered = true })
}

func (r *outboxRepositoryInMemory) MarkFailed(id string) error {
	return r.resolve(id, func(entry *outboxEntry) { entry.failed = true })
}

func (r *outboxRepositoryInMemory) resolve(id string, apply func(*outboxEntry)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byID[id]
	if !ok {
		return domain.ErrOutboxPublish
	}
	apply(entry)
	return nil
}

// AllPending возвращает копию неопубликованных сообщений, используется в тестах.
func (r *outboxRepositoryInMemory) AllPending() []domain.OutboxMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.OutboxMessage, 0, len(r.queue))
	for _, entry := range r.queue {
		if entry.delivered || entry.failed {
			continue
		}
		out = append(out, entry.msg)
	}
	return out
}
