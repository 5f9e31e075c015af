package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/onnwee/pixelclaim/internal/idempotency"
	"github.com/onnwee/pixelclaim/internal/middleware"
)

// RouterConfig wires the HTTP surface.
type RouterConfig struct {
	Logger *slog.Logger
	// ServiceName enables OpenTelemetry request spans when set.
	ServiceName    string
	Metrics        *middleware.Metrics
	MetricsHandler http.Handler
	CORS           middleware.CORSConfig
	RateLimits     middleware.RateLimitStore
	// Idempotency enables Idempotency-Key replay on write routes when set.
	Idempotency   idempotency.Repository
	Authenticator middleware.Authenticator

	Health   *HealthHandlers
	Auth     *AuthHandlers
	Grid     *GridHandlers
	Purchase *PurchaseHandlers
	Paint    *PaintHandlers
	Media    *MediaHandlers
}

// NewRouter builds the chi router serving every pixelclaim route.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	store := cfg.RateLimits
	if store == nil {
		store = middleware.NewInMemoryRateLimitStore()
	}
	m := cfg.Metrics
	limit := func(config middleware.RateLimitConfig, key middleware.KeyFunc, endpoint string) func(http.Handler) http.Handler {
		return middleware.RateLimiter(store, config, key, endpoint, m)
	}
	replay := func(next http.Handler) http.Handler { return next }
	if cfg.Idempotency != nil {
		replay = middleware.Idempotency(cfg.Idempotency, logger)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(logger))
	r.Use(chimw.Recoverer)
	if cfg.ServiceName != "" {
		r.Use(middleware.Tracing(cfg.ServiceName))
	}
	if m != nil {
		r.Use(middleware.HTTPMetrics(m))
	}

	r.Get("/health", cfg.Health.Health)
	r.Get("/ready", cfg.Health.Ready)
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.CORS(cfg.CORS))
		r.Use(limit(middleware.DefaultGlobalLimit(), middleware.IPKeyFunc(), "global"))

		r.With(limit(middleware.DefaultAuthLimit(), middleware.IPKeyFunc(), "auth")).
			Post("/auth", cfg.Auth.Login)

		r.Get("/grid", cfg.Grid.Grid)
		r.Get("/grid/snapshot", cfg.Grid.Snapshot)
		r.Get("/grid/ws", cfg.Grid.Live)
		r.Get("/media", cfg.Media.ListMedia)
		r.Get("/media/{id}/file", cfg.Media.MediaFile)
		r.Get("/link-buttons", cfg.Media.ListLinkButtons)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(cfg.Authenticator))

			r.Get("/purchase", cfg.Purchase.ListPurchases)
			r.With(limit(middleware.DefaultPurchaseLimit(), middleware.UserKeyFunc(), "purchase"), replay).
				Post("/purchase", cfg.Purchase.Purchase)

			r.Group(func(r chi.Router) {
				r.Use(limit(middleware.DefaultPaintLimit(), middleware.UserKeyFunc(), "paint"))
				r.Post("/paint", cfg.Paint.Paint)
				r.Post("/paint/clear", cfg.Paint.Clear)
			})

			r.Group(func(r chi.Router) {
				r.Use(limit(middleware.DefaultMediaLimit(), middleware.UserKeyFunc(), "media"), replay)
				r.Post("/media", cfg.Media.UploadMedia)
				r.Delete("/media/{id}", cfg.Media.DeleteMedia)
				r.Post("/link-buttons", cfg.Media.CreateLinkButton)
				r.Delete("/link-buttons/{id}", cfg.Media.DeleteLinkButton)
			})
		})
	})

	return r
}
