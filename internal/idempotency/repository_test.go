package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func record(key string, createdAt time.Time) *Record {
	body := []byte(`{"result":"ok"}`)
	return &Record{
		Key:          key,
		Wallet:       "wallet-1",
		Route:        "/api/purchase",
		StatusCode:   200,
		ContentType:  "application/json",
		Body:         body,
		ResponseHash: ComputeResponseHash(body),
		CreatedAt:    createdAt,
	}
}

func testRepository(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()

	if _, err := repo.Get(ctx, "missing"); err != ErrKeyNotFound {
		t.Fatalf("Get(missing) error = %v, want %v", err, ErrKeyNotFound)
	}

	rec := record("k1", time.Time{})
	if err := repo.Store(ctx, rec); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("Store() should set CreatedAt")
	}
	if err := repo.Store(ctx, record("k1", time.Time{})); err != ErrKeyExists {
		t.Errorf("Store(duplicate) error = %v, want %v", err, ErrKeyExists)
	}

	got, err := repo.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.StatusCode != 200 || string(got.Body) != `{"result":"ok"}` || got.Wallet != "wallet-1" {
		t.Errorf("Get() = %+v", got)
	}
	if !got.Intact() {
		t.Error("stored record should be intact")
	}
}

func TestInMemoryRepository(t *testing.T) {
	testRepository(t, NewInMemoryRepository())
}

func TestInMemoryRepository_Isolation(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	rec := record("k", time.Time{})
	if err := repo.Store(ctx, rec); err != nil {
		t.Fatal(err)
	}
	rec.Body[0] = 'X'

	got, _ := repo.Get(ctx, "k")
	got.Body[1] = 'Y'

	again, _ := repo.Get(ctx, "k")
	if string(again.Body) != `{"result":"ok"}` {
		t.Errorf("stored body was mutated: %s", again.Body)
	}
}

func TestInMemoryRepository_RejectsEmptyKey(t *testing.T) {
	if err := NewInMemoryRepository().Store(context.Background(), record("", time.Time{})); err != ErrInvalidKey {
		t.Errorf("Store(empty key) error = %v, want %v", err, ErrInvalidKey)
	}
}

func TestCleanupOldKeys(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	if err := repo.Store(ctx, record("old", time.Now().Add(-25*time.Hour))); err != nil {
		t.Fatal(err)
	}
	if err := repo.Store(ctx, record("recent", time.Now().Add(-time.Hour))); err != nil {
		t.Fatal(err)
	}

	deleted, err := CleanupOldKeys(ctx, repo, DefaultExpiry, nil)
	if err != nil {
		t.Fatalf("CleanupOldKeys() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if _, err := repo.Get(ctx, "old"); err != ErrKeyNotFound {
		t.Errorf("old key still present: %v", err)
	}
	if _, err := repo.Get(ctx, "recent"); err != nil {
		t.Errorf("recent key removed: %v", err)
	}
}

// TestRedisRepository requires a Redis instance on localhost:6379.
func TestRedisRepository(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping integration test")
	}
	defer client.Close()

	repo := NewRedisRepository(client, time.Minute)
	prefix := "test-" + time.Now().Format("150405.000000000") + "-"
	t.Cleanup(func() { client.Del(context.Background(), redisKeyPrefix+prefix+"k1") })

	rec := record(prefix+"k1", time.Time{})
	if err := repo.Store(context.Background(), rec); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if err := repo.Store(context.Background(), record(prefix+"k1", time.Time{})); err != ErrKeyExists {
		t.Errorf("Store(duplicate) error = %v, want %v", err, ErrKeyExists)
	}
	got, err := repo.Get(context.Background(), prefix+"k1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.Intact() || got.StatusCode != 200 {
		t.Errorf("Get() = %+v", got)
	}
}
