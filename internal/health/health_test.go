package health

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"
)

func TestRegistry_CheckAll(t *testing.T) {
	reg := NewRegistry(time.Second)
	reg.Register("rpc", CheckerFunc(func(context.Context) error { return errors.New("down") }))
	reg.Register("database", CheckerFunc(func(context.Context) error { return nil }))
	reg.Register("ignored", nil)

	results := reg.CheckAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Name != "database" || results[0].Err != nil {
		t.Errorf("results[0] = %+v", results[0])
	}
	if results[1].Name != "rpc" || results[1].Err == nil {
		t.Errorf("results[1] = %+v", results[1])
	}
	if names := reg.Names(); len(names) != 2 || names[0] != "database" {
		t.Errorf("Names() = %v", names)
	}
}

func TestRegistry_TimeoutBoundsSlowCheck(t *testing.T) {
	reg := NewRegistry(20 * time.Millisecond)
	reg.Register("slow", CheckerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	start := time.Now()
	results := reg.CheckAll(context.Background())
	if time.Since(start) > time.Second {
		t.Fatal("slow check was not bounded by the registry timeout")
	}
	if !errors.Is(results[0].Err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", results[0].Err)
	}
}

func TestDBChecker(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	checker := NewDBChecker(db)
	if err := checker.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() on open db = %v", err)
	}
	db.Close()
	if err := checker.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() on closed db should fail")
	}
}

func TestRedisChecker_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()
	if err := NewRedisChecker(client).HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() against a closed port should fail")
	}
}
