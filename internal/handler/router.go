// Package handler exposes the import service over HTTP.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/ledgerline/importd/internal/infra/observability"
	"github.com/ledgerline/importd/internal/service"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(importSvc *service.ImportService, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(importSvc, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Post("/import", submitImportHandler(importSvc, logger))
		r.Get("/import/active", activeImportsHandler(importSvc, logger))
		r.Get("/import/metrics", importMetricsHandler(metrics))
		r.Get("/import/{jobId}", getImportJobHandler(importSvc, logger))
	})

	return r
}

type serviceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latency_ms"`
	LastChecked string `json:"last_checked"`
}

func healthzHandler(importSvc *service.ImportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []serviceHealth{
			{Name: "importd", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		// Listing active jobs exercises the KV backend end to end.
		start := time.Now()
		_, err := importSvc.ListActiveJobs(ctx, "health-check")
		latency := time.Since(start).Milliseconds()
		status := "healthy"
		if err != nil {
			logger.Warn("health check: job store unreachable", zap.Error(err))
			status = "degraded"
		}
		services = append(services, serviceHealth{
			Name: "job-store", Status: status, LatencyMs: latency, LastChecked: now,
		})

		overall := "healthy"
		code := http.StatusOK
		for _, s := range services {
			if s.Status != "healthy" {
				overall = "degraded"
				code = http.StatusServiceUnavailable
				break
			}
		}

		writeJSON(w, code, map[string]any{
			"status":   overall,
			"services": services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
