package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ledgerline/importd/internal/domain"
	"github.com/ledgerline/importd/internal/infra/observability"
	"github.com/ledgerline/importd/internal/service"
)

// ============================================================
// POST /v1/import
// ============================================================

type submitImportRequest struct {
	FileName             string `json:"fileName"`
	CSVContent           string `json:"csvContent"`
	DeduplicateThreshold *int   `json:"deduplicateThreshold,omitempty"`
	BatchSize            *int   `json:"batchSize,omitempty"`
	BatchDelay           *int   `json:"batchDelay,omitempty"`
	MaxRetries           *int   `json:"maxRetries,omitempty"`
	RetryDelay           *int   `json:"retryDelay,omitempty"`
	ValidateOnly         bool   `json:"validateOnly,omitempty"`
}

func submitImportHandler(svc *service.ImportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/import")
		defer span.End()

		userID := userIDFrom(r)
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "missing X-User-ID header")
			return
		}
		span.SetAttributes(attribute.String("user.id", userID))

		var req submitImportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		span.SetAttributes(attribute.String("import.file_name", req.FileName))

		handle, err := svc.Submit(ctx, service.SubmitRequest{
			UserID:               userID,
			FileName:             req.FileName,
			CSVContent:           req.CSVContent,
			DeduplicateThreshold: req.DeduplicateThreshold,
			BatchSize:            req.BatchSize,
			BatchDelayMs:         req.BatchDelay,
			MaxRetries:           req.MaxRetries,
			RetryDelayMs:         req.RetryDelay,
			ValidateOnly:         req.ValidateOnly,
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		// Re-submitting a file with a live job returns that job, not a new one.
		status := http.StatusCreated
		if handle.Status != domain.JobQueued {
			status = http.StatusOK
		}
		writeJSON(w, status, handle)
	}
}

// ============================================================
// GET /v1/import/active
// ============================================================

func activeImportsHandler(svc *service.ImportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/import/active")
		defer span.End()

		userID := userIDFrom(r)
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "missing X-User-ID header")
			return
		}

		jobs, err := svc.ListActiveJobs(ctx, userID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"jobs":  jobs,
			"count": len(jobs),
		})
	}
}

// ============================================================
// GET /v1/import/{jobId}
// ============================================================

func getImportJobHandler(svc *service.ImportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/import/{jobId}")
		defer span.End()

		jobID := chi.URLParam(r, "jobId")
		if jobID == "" {
			writeError(w, http.StatusBadRequest, "job id is required")
			return
		}
		span.SetAttributes(attribute.String("job.id", jobID))

		job, err := svc.GetJob(ctx, jobID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

// ============================================================
// GET /v1/import/metrics
// ============================================================

func importMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}
