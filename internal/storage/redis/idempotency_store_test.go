package redis

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Тест требует живой Redis и запускается только при заданном
// CHECKOUT_REDIS_TEST_ADDR, например localhost:6379.
func newTestStore(t *testing.T) *IdempotencyStore {
	t.Helper()

	addr := os.Getenv("CHECKOUT_REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("CHECKOUT_REDIS_TEST_ADDR is not set")
	}

	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis at %s is not reachable: %v", addr, err)
	}

	return NewIdempotencyStore(rdb)
}

func TestIdempotencyStore_LockLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := "lock-lifecycle-" + time.Now().Format("150405.000000")

	ok, err := store.TryLock(ctx, key, time.Minute)
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if !ok {
		t.Fatal("expected first TryLock to succeed")
	}

	ok, err = store.TryLock(ctx, key, time.Minute)
	if err != nil {
		t.Fatalf("second TryLock: %v", err)
	}
	if ok {
		t.Fatal("expected second TryLock to be rejected")
	}

	if err := store.Release(ctx, key); err != nil {
		t.Fatalf("Release: %v", err)
	}

	ok, err = store.TryLock(ctx, key, time.Minute)
	if err != nil {
		t.Fatalf("TryLock after release: %v", err)
	}
	if !ok {
		t.Fatal("expected TryLock to succeed after release")
	}
	_ = store.Release(ctx, key)
}

func TestIdempotencyStore_RememberRecall(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := "remember-recall-" + time.Now().Format("150405.000000")

	_, found, err := store.Recall(ctx, key)
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if found {
		t.Fatal("expected nothing to be recalled for a fresh key")
	}

	want := []byte(`{"order_id":"abc"}`)
	if err := store.Remember(ctx, key, want, time.Minute); err != nil {
		t.Fatalf("Remember: %v", err)
	}

	got, found, err := store.Recall(ctx, key)
	if err != nil {
		t.Fatalf("Recall after Remember: %v", err)
	}
	if !found {
		t.Fatal("expected the remembered response to be found")
	}
	if string(got) != string(want) {
		t.Fatalf("recalled response: got %s, want %s", got, want)
	}
}
