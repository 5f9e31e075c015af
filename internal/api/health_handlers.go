package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/pixelclaim/internal/health"
)

// readyTimeout bounds the whole readiness probe.
const readyTimeout = 5 * time.Second

// HealthHandlers provides health and readiness check endpoints for Kubernetes probes.
type HealthHandlers struct {
	checks *health.Registry
	now    func() time.Time
}

// NewHealthHandlers creates health handlers backed by checks. checks may be
// nil when no external dependency is configured.
func NewHealthHandlers(checks *health.Registry) *HealthHandlers {
	if checks == nil {
		checks = health.NewRegistry(0)
	}
	return &HealthHandlers{checks: checks, now: time.Now}
}

// HealthResponse represents the JSON response for health checks.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Health handles GET /health (liveness probe). It never touches dependencies.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r.Context(), http.StatusOK, HealthResponse{
		Status:    "healthy",
		Checks:    map[string]string{"runtime": "ok"},
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready (readiness probe). It returns 503 when any
// registered dependency check fails.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	checks := map[string]string{"metrics": "ok"}
	healthy := true
	for _, res := range h.checks.CheckAll(ctx) {
		if res.Err != nil {
			checks[res.Name] = "error"
			healthy = false
			slog.WarnContext(ctx, "health check failed", "check", res.Name, "error", res.Err)
			continue
		}
		checks[res.Name] = "ok"
	}

	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	writeJSON(w, r.Context(), code, HealthResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
}
