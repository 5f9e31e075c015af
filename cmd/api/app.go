package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/pixelclaim/internal/acquisition"
	"github.com/onnwee/pixelclaim/internal/api"
	"github.com/onnwee/pixelclaim/internal/auth"
	"github.com/onnwee/pixelclaim/internal/chain"
	"github.com/onnwee/pixelclaim/internal/config"
	"github.com/onnwee/pixelclaim/internal/db"
	"github.com/onnwee/pixelclaim/internal/grid"
	"github.com/onnwee/pixelclaim/internal/gridcache"
	"github.com/onnwee/pixelclaim/internal/health"
	"github.com/onnwee/pixelclaim/internal/idempotency"
	"github.com/onnwee/pixelclaim/internal/image"
	"github.com/onnwee/pixelclaim/internal/jobs"
	"github.com/onnwee/pixelclaim/internal/live"
	"github.com/onnwee/pixelclaim/internal/media"
	"github.com/onnwee/pixelclaim/internal/middleware"
	"github.com/onnwee/pixelclaim/internal/ownership"
	"github.com/onnwee/pixelclaim/internal/payment"
	"github.com/onnwee/pixelclaim/internal/tracing"
	"github.com/onnwee/pixelclaim/internal/upload"
)

const (
	serviceName           = "pixelclaim-api"
	healthCheckTimeout    = 2 * time.Second
	idempotencyCleanupInt = time.Hour
	rateLimitCleanupInt   = 5 * time.Minute
	gridReconcileInt      = time.Minute
)

// app is the wired server: its handler, the background jobs to start and the
// resources to release on shutdown.
type app struct {
	handler http.Handler
	state   *grid.State
	hub     *live.Hub
	jobs    []jobs.Job
	runner  *jobs.Runner
	closers []func(context.Context) error
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) error {
	a.hub.Close()
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *app) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// buildApp wires every component from cfg. On error, anything already opened
// is released.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (a *app, err error) {
	a = &app{}
	defer func() {
		if err != nil {
			if a.hub != nil {
				a.hub.Close()
			}
			for i := len(a.closers) - 1; i >= 0; i-- {
				_ = a.closers[i](context.Background())
			}
			a = nil
		}
	}()

	tracer, err := tracing.NewProvider(tracing.Config{
		ServiceName:  serviceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingEndpoint,
		SamplingRate: cfg.TracingSampleRate,
		InsecureMode: cfg.TracingInsecureMode,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	a.onClose(tracer.Shutdown)

	conn, err := db.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	a.onClose(func(context.Context) error { return conn.Close() })
	if conn.Driver == db.DriverSQLite {
		if err := conn.Bootstrap(ctx); err != nil {
			return nil, fmt.Errorf("bootstrap schema: %w", err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := middleware.NewMetrics()
	acquisitionMetrics := acquisition.NewMetrics()
	chainMetrics := chain.NewMetrics()
	paymentMetrics := payment.NewMetrics()
	liveMetrics := live.NewMetrics()
	cacheMetrics := gridcache.NewMetrics()
	jobMetrics := jobs.NewMetrics()
	for _, r := range []interface{ Register(prometheus.Registerer) error }{
		httpMetrics, acquisitionMetrics, chainMetrics, paymentMetrics, liveMetrics, cacheMetrics, jobMetrics,
	} {
		if err := r.Register(reg); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	store := ownership.NewSQLStore(conn)
	a.state = grid.NewState()
	owned, err := store.ListOwned(ctx)
	if err != nil {
		return nil, fmt.Errorf("load grid: %w", err)
	}
	a.state.Load(owned)
	logger.Info("grid loaded", "owned_cells", len(owned), "version", a.state.Version())

	checks := health.NewRegistry(healthCheckTimeout)
	checks.Register("database", health.NewDBChecker(conn.DB))

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		rdb = redis.NewClient(opts)
		a.onClose(func(context.Context) error { return rdb.Close() })
		checks.Register("redis", health.NewRedisChecker(rdb))
	}

	price, err := cfg.Price()
	if err != nil {
		return nil, err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	solana := chain.NewSolanaClient(cfg.SolanaRPCURL, cfg.RPCRequestsPerSecond)
	checks.Register("solana_rpc", solana)
	fetcher := chain.NewFetcher(solana, chain.FetcherConfig{
		MaxAttempts: cfg.VerifyMaxAttempts,
		RetryDelay:  cfg.VerifyRetryDelay(),
	}, chainMetrics, logger)
	verifier, err := payment.NewVerifier(fetcher, payment.Config{
		Mint:     cfg.TokenMint,
		Price:    price,
		Policy:   policy,
		Receiver: cfg.ReceiverWallet,
	}, paymentMetrics, logger)
	if err != nil {
		return nil, fmt.Errorf("payment verifier: %w", err)
	}

	a.hub = live.NewHub(a.state, liveMetrics, logger)

	var cacheStore gridcache.Store = gridcache.NewMemoryStore()
	if rdb != nil {
		cacheStore = gridcache.NewRedisStore(rdb, gridcache.DefaultTTL)
	}
	cache := gridcache.New(cacheStore, a.state, cacheMetrics, logger)

	coordinator := acquisition.NewCoordinator(store, verifier, acquisitionMetrics, logger,
		acquisition.ObserverFunc(func(_ context.Context, wallet string, cells []grid.Coord) {
			a.state.ApplyAcquired(wallet, cells)
		}),
		a.hub, cache)

	var blobs upload.BlobStore = upload.NewMemoryStore()
	if cfg.MediaStorageConfigured() {
		s3, err := upload.NewS3Store(upload.S3Config{
			BucketName:      cfg.R2BucketName,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			Endpoint:        cfg.R2Endpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("media storage: %w", err)
		}
		blobs = s3
		checks.Register("media_storage", s3)
	} else {
		logger.Warn("media storage not configured, keeping uploads in memory")
	}
	mediaService := media.NewService(media.Config{
		Repository: media.NewSQLRepository(conn),
		Blobs:      blobs,
		Sanitizer:  image.NewProcessor(image.DefaultConfig()),
		Grid:       a.state,
		Logger:     logger,
		OnChange: func(ctx context.Context) {
			cache.Invalidate(ctx)
			a.hub.PlacementsChanged(ctx)
		},
	})

	tokens := auth.NewJWTService(cfg.JWTSecret, auth.WithPreviousSecret(cfg.JWTSecretPrevious))
	authenticator := auth.NewAuthenticator(tokens)

	var limits middleware.RateLimitStore
	var replay idempotency.Repository
	a.runner = jobs.NewRunner(jobMetrics, logger)
	if rdb != nil {
		limits = middleware.NewRedisRateLimitStore(rdb, httpMetrics, logger)
		replay = idempotency.NewRedisRepository(rdb, idempotency.DefaultExpiry)
	} else {
		memLimits := middleware.NewInMemoryRateLimitStore()
		memReplay := idempotency.NewInMemoryRepository()
		limits, replay = memLimits, memReplay
		a.jobs = append(a.jobs,
			jobs.Job{
				Type:     jobs.JobTypeRateLimitCleanup,
				Interval: rateLimitCleanupInt,
				Run: func(context.Context) error {
					memLimits.Cleanup()
					return nil
				},
			},
			jobs.Job{
				Type:     jobs.JobTypeIdempotencyCleanup,
				Interval: idempotencyCleanupInt,
				Run: func(ctx context.Context) error {
					_, err := idempotency.CleanupOldKeys(ctx, memReplay, idempotency.DefaultExpiry, logger)
					return err
				},
			},
		)
	}
	a.jobs = append(a.jobs, jobs.Job{
		Type:     jobs.JobTypeGridReconcile,
		Interval: gridReconcileInt,
		Run:      reconcileGrid(store, a.state, cache),
	})

	cors := middleware.DefaultCORSConfig(cfg.CORSAllowedOrigins)
	routerCfg := api.RouterConfig{
		Logger:         logger,
		Metrics:        httpMetrics,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CORS:           cors,
		RateLimits:     limits,
		Idempotency:    replay,
		Authenticator:  authenticator,
		Health:         api.NewHealthHandlers(checks),
		Auth:           api.NewAuthHandlers(authenticator),
		Grid:           api.NewGridHandlers(a.state, cache, mediaService, a.hub, cors.OriginChecker()),
		Purchase:       api.NewPurchaseHandlers(coordinator, store),
		Paint:          api.NewPaintHandlers(store, a.state, a.hub, cache),
		Media:          api.NewMediaHandlers(mediaService),
	}
	if cfg.TracingEnabled {
		routerCfg.ServiceName = serviceName
	}
	a.handler = api.NewRouter(routerCfg)
	return a, nil
}

// reconcileGrid reloads the in-memory grid from the store so acquisitions
// made by other instances become visible. The cache is dropped only when the
// reload changed something. If the grid changed locally while the store was
// read, the run is skipped and the next one picks the change up.
func reconcileGrid(store ownership.Store, state *grid.State, cache *gridcache.Cache) jobs.Func {
	return func(ctx context.Context) error {
		version := state.Version()
		cells, err := store.ListOwned(ctx)
		if err != nil {
			return fmt.Errorf("list owned cells: %w", err)
		}
		if sameCells(state.Cells(), cells) {
			return nil
		}
		if !state.LoadIfVersion(version, cells) {
			return nil
		}
		cache.Invalidate(ctx)
		return nil
	}
}

func sameCells(a, b []grid.Cell) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[grid.Coord]grid.Cell, len(a))
	for _, c := range a {
		seen[grid.Coord{X: c.X, Y: c.Y}] = c
	}
	for _, c := range b {
		if got, ok := seen[grid.Coord{X: c.X, Y: c.Y}]; !ok || got != c {
			return false
		}
	}
	return true
}
