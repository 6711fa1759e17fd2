package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

const (
	lockKeyPrefix     = "checkout:idem:lock:"
	responseKeyPrefix = "checkout:idem:resp:"
)

// IdempotencyStore реализует защиту от повторного размещения заказа
// поверх Redis. Lock захватывается через SETNX, сохранённый ответ живёт
// с TTL, поэтому отдельный фоновой чистильщик не нужен.
type IdempotencyStore struct {
	rdb *redis.Client
}

var _ domain.IdempotencyStore = (*IdempotencyStore)(nil)

func NewIdempotencyStore(rdb *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb}
}

func (s *IdempotencyStore) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, lockKeyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire idempotency lock: %w", err)
	}
	return ok, nil
}

func (s *IdempotencyStore) Remember(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, responseKeyPrefix+key, response, ttl).Err(); err != nil {
		return fmt.Errorf("remember idempotent response: %w", err)
	}
	return nil
}

func (s *IdempotencyStore) Recall(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.rdb.Get(ctx, responseKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("recall idempotent response: %w", err)
	}
	return val, true, nil
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, lockKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("release idempotency lock: %w", err)
	}
	return nil
}
