// Package gridcache serves the encoded grid without re-encoding it on every
// request. Payloads are keyed by the owning process and its grid version, so a
// stale entry, or one written by another instance, is never returned.
package gridcache

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"lukechampine.com/blake3"

	"github.com/onnwee/pixelclaim/internal/grid"
)

// GridSource provides the current grid. *grid.State satisfies it.
type GridSource interface {
	Snapshot() *grid.Snapshot
}

// Cache builds and caches grid.EncodeCells payloads.
type Cache struct {
	store   Store
	grid    GridSource
	metrics *Metrics
	logger  *slog.Logger

	// instance scopes store keys to this process; grid versions are
	// per-process counters.
	instance string

	mu   sync.Mutex
	last uint64
}

// Payload is an encoded grid.
type Payload struct {
	Version uint64
	Data    []byte
	// ETag is a strong entity tag derived from Data.
	ETag string
}

// New creates a Cache over store.
func New(store Store, source GridSource, metrics *Metrics, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		store:    store,
		grid:     source,
		metrics:  metrics,
		logger:   logger,
		instance: uuid.NewString(),
	}
}

// Payload returns the encoded grid. Store failures are logged and the payload
// is built directly.
func (c *Cache) Payload(ctx context.Context) (Payload, error) {
	snap := c.grid.Snapshot()
	key := c.key(snap.Version)

	data, err := c.store.Get(ctx, key)
	if err == nil {
		c.metrics.observe(resultHit)
		return newPayload(snap.Version, data), nil
	}
	if !errors.Is(err, ErrMiss) {
		c.logger.WarnContext(ctx, "grid cache read failed", "version", snap.Version, "error", err)
	}
	c.metrics.observe(resultMiss)

	c.mu.Lock()
	defer c.mu.Unlock()

	data, err = grid.EncodeCells(snap.Version, snap.Cells())
	if err != nil {
		return Payload{}, err
	}
	if err := c.store.Set(ctx, key, data); err != nil {
		c.logger.WarnContext(ctx, "grid cache write failed", "version", snap.Version, "error", err)
		return newPayload(snap.Version, data), nil
	}
	if c.last != 0 && c.last < snap.Version {
		c.drop(ctx, c.last)
	}
	if snap.Version > c.last {
		c.last = snap.Version
	}
	return newPayload(snap.Version, data), nil
}

func newPayload(version uint64, data []byte) Payload {
	sum := blake3.Sum256(data)
	return Payload{Version: version, Data: data, ETag: `"` + hex.EncodeToString(sum[:16]) + `"`}
}

func (c *Cache) key(version uint64) string {
	return c.instance + ":" + strconv.FormatUint(version, 10)
}

// Invalidate drops the most recently cached payload.
func (c *Cache) Invalidate(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last != 0 {
		c.drop(ctx, c.last)
		c.last = 0
	}
}

// CellsAcquired invalidates the cache after an acquisition.
func (c *Cache) CellsAcquired(ctx context.Context, _ string, _ []grid.Coord) {
	c.Invalidate(ctx)
}

// CellsPainted invalidates the cache after a repaint.
func (c *Cache) CellsPainted(ctx context.Context, _ string, _ []grid.ColorChange) {
	c.Invalidate(ctx)
}

// CellsCleared invalidates the cache after a wallet's colors are reset.
func (c *Cache) CellsCleared(ctx context.Context, _ string) {
	c.Invalidate(ctx)
}

func (c *Cache) drop(ctx context.Context, version uint64) {
	if err := c.store.Delete(ctx, c.key(version)); err != nil {
		c.logger.WarnContext(ctx, "grid cache delete failed", "version", version, "error", err)
	}
	c.metrics.observe(resultEvicted)
}

const (
	resultHit     = "hit"
	resultMiss    = "miss"
	resultEvicted = "evicted"
)

// MetricLookups is the name of the cache lookup counter.
const MetricLookups = "grid_cache_lookups_total"

// Metrics contains Prometheus metrics for the grid cache.
type Metrics struct {
	lookups *prometheus.CounterVec
}

// NewMetrics creates and returns a new Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricLookups,
			Help: "Total number of grid cache operations by result",
		}, []string{"result"}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	return reg.Register(m.lookups)
}

func (m *Metrics) observe(result string) {
	if m != nil {
		m.lookups.WithLabelValues(result).Inc()
	}
}
