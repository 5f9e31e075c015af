package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/pixelclaim/internal/config"
	"github.com/onnwee/pixelclaim/internal/db"
	"github.com/onnwee/pixelclaim/internal/grid"
	"github.com/onnwee/pixelclaim/internal/gridcache"
	"github.com/onnwee/pixelclaim/internal/ownership"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Port:                 freePort(t),
		Env:                  "test",
		DatabaseDriver:       db.DriverSQLite,
		DatabaseURL:          ":memory:",
		JWTSecret:            strings.Repeat("s", 32),
		SolanaRPCURL:         "http://127.0.0.1:1",
		RPCRequestsPerSecond: 10,
		TokenMint:            "So11111111111111111111111111111111111111112",
		TokenDecimals:        6,
		PaymentPolicy:        "burn",
		VerifyMaxAttempts:    1,
		VerifyRetryDelayMS:   1,
		TracingExporter:      config.DefaultTracingExporter,
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func newTestApp(t *testing.T) *app {
	t.Helper()
	a, err := buildApp(context.Background(), testConfig(t), quietLogger())
	if err != nil {
		t.Fatalf("buildApp() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func TestBuildApp_ServesPublicRoutes(t *testing.T) {
	a := newTestApp(t)
	srv := httptest.NewServer(a.handler)
	defer srv.Close()

	tests := []struct {
		path string
		want int
	}{
		{"/health", http.StatusOK},
		{"/api/grid", http.StatusOK},
		{"/api/media", http.StatusOK},
		{"/api/link-buttons", http.StatusOK},
		{"/api/purchase", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatalf("GET %s: %v", tt.path, err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("GET %s = %d, want %d", tt.path, resp.StatusCode, tt.want)
			}
		})
	}
}

func TestBuildApp_MetricsExposeEveryPackage(t *testing.T) {
	a := newTestApp(t)
	srv := httptest.NewServer(a.handler)
	defer srv.Close()

	for _, job := range a.jobs {
		_ = a.runner.RunOnce(context.Background(), job)
	}
	// One request so the HTTP metrics have a sample.
	if resp, err := http.Get(srv.URL + "/api/grid"); err == nil {
		resp.Body.Close()
	}

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	for _, name := range []string{"go_goroutines", "background_jobs_total", "http_requests_total"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

func TestBuildApp_ReadyReportsChecks(t *testing.T) {
	a := newTestApp(t)
	srv := httptest.NewServer(a.handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ready")
	if err != nil {
		t.Fatalf("GET /ready: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Checks["database"] != "ok" {
		t.Errorf("database check = %q, want ok", body.Checks["database"])
	}
	// The RPC endpoint is unreachable, so readiness fails.
	if _, ok := body.Checks["solana_rpc"]; !ok {
		t.Error("missing solana_rpc check")
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestBuildApp_RejectsBadConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.DatabaseDriver = "mysql"
	if _, err := buildApp(context.Background(), cfg, quietLogger()); err == nil {
		t.Fatal("expected error for unsupported driver")
	}

	cfg = testConfig(t)
	cfg.PricePerUnit = "-5"
	if _, err := buildApp(context.Background(), cfg, quietLogger()); err == nil {
		t.Fatal("expected error for negative price")
	}
}

func TestReconcileGrid_PicksUpForeignAcquisitions(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(ctx, db.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conn.Close()
	if err := conn.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	store := ownership.NewSQLStore(conn)
	state := grid.NewState()
	cache := gridcache.New(gridcache.NewMemoryStore(), state, nil, quietLogger())
	reconcile := reconcileGrid(store, state, cache)

	if err := reconcile(ctx); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	before := state.Version()
	if err := reconcile(ctx); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if state.Version() != before {
		t.Errorf("unchanged store bumped version %d -> %d", before, state.Version())
	}

	if _, err := store.TryAcquire(ctx, grid.Coord{X: 3, Y: 4}, "wallet-b"); err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	if err := reconcile(ctx); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	cells := state.Cells()
	if len(cells) != 1 || cells[0].X != 3 || cells[0].Y != 4 || cells[0].Owner != "wallet-b" {
		t.Errorf("cells = %+v, want one cell at (3,4) owned by wallet-b", cells)
	}
}

// racingStore acquires a cell in memory while ListOwned runs, the way an
// in-flight purchase on this instance would.
type racingStore struct {
	ownership.Store
	during func()
}

func (s *racingStore) ListOwned(ctx context.Context) ([]grid.Cell, error) {
	cells, err := s.Store.ListOwned(ctx)
	if s.during != nil {
		s.during()
		s.during = nil
	}
	return cells, err
}

func TestReconcileGrid_KeepsConcurrentAcquisition(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(ctx, db.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conn.Close()
	if err := conn.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	sqlStore := ownership.NewSQLStore(conn)
	if _, err := sqlStore.TryAcquire(ctx, grid.Coord{X: 1, Y: 1}, "wallet-a"); err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	state := grid.NewState()
	cache := gridcache.New(gridcache.NewMemoryStore(), state, nil, quietLogger())
	store := &racingStore{Store: sqlStore, during: func() {
		state.ApplyAcquired("wallet-b", []grid.Coord{{X: 5, Y: 5}})
	}}
	reconcile := reconcileGrid(store, state, cache)

	if err := reconcile(ctx); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if got := state.Snapshot().WalletOf(grid.Coord{X: 5, Y: 5}); got != "wallet-b" {
		t.Errorf("owner of (5,5) = %q, want wallet-b", got)
	}

	// The next run sees an unchanged grid and loads the store.
	if err := reconcile(ctx); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if got := state.Snapshot().WalletOf(grid.Coord{X: 1, Y: 1}); got != "wallet-a" {
		t.Errorf("owner of (1,1) = %q, want wallet-a", got)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, quietLogger()) }()

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.Port))
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get("http://" + addr + "/health")
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("server never became reachable: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() error = %v", err)
		}
	case <-time.After(shutdownTimeout + 2*time.Second):
		t.Fatal("run() did not return after cancel")
	}
}
