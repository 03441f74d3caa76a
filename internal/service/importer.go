package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ledgerline/importd/internal/bank"
	"github.com/ledgerline/importd/internal/config"
	"github.com/ledgerline/importd/internal/domain"
	"github.com/ledgerline/importd/internal/infra/observability"
	"github.com/ledgerline/importd/internal/infra/resilience"
	"github.com/ledgerline/importd/internal/port"
)

var tracer = otel.Tracer("service")

// SubmitRequest is a CSV import submission. Option pointers distinguish
// "not provided" (use the configured default) from an explicit zero.
type SubmitRequest struct {
	UserID     string
	FileName   string
	CSVContent string

	DeduplicateThreshold *int
	BatchSize            *int
	BatchDelayMs         *int
	MaxRetries           *int
	RetryDelayMs         *int
	ValidateOnly         bool
}

// ImportService accepts import submissions, runs them asynchronously, and
// exposes job state. Submission is cheap and synchronous; all parsing and
// storage work happens in a background goroutine guarded by the bulkhead.
type ImportService struct {
	jobs      port.JobStore
	resolver  *AccountResolver
	processor *Processor
	bulkhead  *resilience.Bulkhead
	cfg       *config.Config
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// NewImportService wires the import pipeline together.
func NewImportService(
	jobs port.JobStore,
	resolver *AccountResolver,
	processor *Processor,
	bulkhead *resilience.Bulkhead,
	cfg *config.Config,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *ImportService {
	return &ImportService{
		jobs:      jobs,
		resolver:  resolver,
		processor: processor,
		bulkhead:  bulkhead,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
	}
}

// Submit validates the request, creates a queued job, and starts processing
// in the background. Submitting a file name that already has a live job for
// the same user returns the existing job's handle instead of starting a
// second run.
func (s *ImportService) Submit(ctx context.Context, req SubmitRequest) (*domain.JobHandle, error) {
	if req.UserID == "" {
		return nil, &domain.ErrValidation{Field: "userId", Message: "user id is required"}
	}
	if req.FileName == "" {
		return nil, &domain.ErrValidation{Field: "fileName", Message: "file name is required"}
	}
	if !strings.HasSuffix(strings.ToLower(req.FileName), ".csv") {
		return nil, &domain.ErrValidation{Field: "fileName", Message: "only .csv files are supported"}
	}
	if strings.TrimSpace(req.CSVContent) == "" {
		return nil, &domain.ErrValidation{Field: "csvContent", Message: "csv content is required"}
	}

	opts, err := s.normalizeOptions(req)
	if err != nil {
		return nil, err
	}

	if existing, err := s.findLiveJob(ctx, req.UserID, req.FileName); err != nil {
		return nil, err
	} else if existing != nil {
		s.logger.Info("duplicate submission for live job",
			zap.String("job_id", existing.JobID),
			zap.String("file_name", req.FileName),
		)
		return &domain.JobHandle{
			JobID:    existing.JobID,
			FileName: existing.FileName,
			Status:   existing.Status,
		}, nil
	}

	job := &domain.ImportJob{
		JobID:     uuid.NewString(),
		UserID:    req.UserID,
		FileName:  req.FileName,
		Status:    domain.JobQueued,
		StartTime: time.Now().UnixMilli(),
		Options:   opts,
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	s.logger.Info("import job queued",
		zap.String("job_id", job.JobID),
		zap.String("file_name", job.FileName),
		zap.String("user_id", job.UserID),
	)

	go s.runAsync(job, req.CSVContent)

	return &domain.JobHandle{
		JobID:    job.JobID,
		FileName: job.FileName,
		Status:   job.Status,
	}, nil
}

// GetJob returns one job record.
func (s *ImportService) GetJob(ctx context.Context, jobID string) (*domain.ImportJob, error) {
	return s.jobs.GetJob(ctx, jobID)
}

// ListActiveJobs returns the user's jobs still tracked in the active set.
func (s *ImportService) ListActiveJobs(ctx context.Context, userID string) ([]domain.ImportJob, error) {
	jobs, err := s.jobs.ListActiveJobs(ctx)
	if err != nil {
		return nil, err
	}
	mine := make([]domain.ImportJob, 0, len(jobs))
	for _, job := range jobs {
		if job.UserID == userID {
			mine = append(mine, job)
		}
	}
	return mine, nil
}

// normalizeOptions fills defaults and enforces ranges.
func (s *ImportService) normalizeOptions(req SubmitRequest) (domain.ImportOptions, error) {
	opts := domain.ImportOptions{
		BatchSize:            s.cfg.BatchSize,
		BatchDelayMs:         int(s.cfg.BatchDelay / time.Millisecond),
		MaxRetries:           s.cfg.MaxRetries,
		RetryDelayMs:         int(s.cfg.RetryDelay / time.Millisecond),
		DeduplicateThreshold: s.cfg.DedupeThresh,
		ValidateOnly:         req.ValidateOnly,
	}
	if req.BatchSize != nil {
		opts.BatchSize = *req.BatchSize
	}
	if req.BatchDelayMs != nil {
		opts.BatchDelayMs = *req.BatchDelayMs
	}
	if req.MaxRetries != nil {
		opts.MaxRetries = *req.MaxRetries
	}
	if req.RetryDelayMs != nil {
		opts.RetryDelayMs = *req.RetryDelayMs
	}
	if req.DeduplicateThreshold != nil {
		opts.DeduplicateThreshold = *req.DeduplicateThreshold
	}

	if opts.BatchSize < 1 || opts.BatchSize > 100 {
		return opts, &domain.ErrValidation{Field: "batchSize", Message: "must be between 1 and 100"}
	}
	if opts.BatchDelayMs < 100 || opts.BatchDelayMs > 1000 {
		return opts, &domain.ErrValidation{Field: "batchDelay", Message: "must be between 100 and 1000 milliseconds"}
	}
	if opts.DeduplicateThreshold < 0 || opts.DeduplicateThreshold > 100 {
		return opts, &domain.ErrValidation{Field: "deduplicateThreshold", Message: "must be between 0 and 100"}
	}
	if opts.MaxRetries < 1 {
		return opts, &domain.ErrValidation{Field: "maxRetries", Message: "must be at least 1"}
	}
	if opts.RetryDelayMs < 0 {
		return opts, &domain.ErrValidation{Field: "retryDelay", Message: "must not be negative"}
	}
	return opts, nil
}

func (s *ImportService) findLiveJob(ctx context.Context, userID, fileName string) (*domain.ImportJob, error) {
	jobs, err := s.jobs.ListActiveJobs(ctx)
	if err != nil {
		return nil, err
	}
	for i := range jobs {
		job := &jobs[i]
		if job.UserID == userID && job.FileName == fileName && !job.Status.Terminal() {
			return job, nil
		}
	}
	return nil, nil
}

// runAsync executes the job outside the request lifetime.
func (s *ImportService) runAsync(job *domain.ImportJob, csvContent string) {
	ctx := context.Background()
	if s.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.JobTimeout)
		defer cancel()
	}

	if err := s.bulkhead.Acquire(ctx); err != nil {
		s.failJob(context.WithoutCancel(ctx), job.JobID, &domain.ErrSetup{Stage: "admission", Err: err})
		return
	}
	defer s.bulkhead.Release()

	s.run(ctx, job, csvContent)
}

func (s *ImportService) run(ctx context.Context, job *domain.ImportJob, csvContent string) {
	ctx, span := tracer.Start(ctx, "import.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("job.id", job.JobID),
		attribute.String("import.file_name", job.FileName),
	)

	logger := s.logger.With(
		zap.String("job_id", job.JobID),
		zap.String("file_name", job.FileName),
	)

	rows, err := bank.ParseCSV(csvContent, job.UserID, logger)
	if err != nil {
		logger.Error("csv parse failed", zap.Error(err))
		s.failJob(ctx, job.JobID, err)
		return
	}
	total := len(rows)

	if _, err := s.jobs.UpdateJob(ctx, job.JobID, func(j *domain.ImportJob) {
		j.Status = domain.JobProcessing
		j.Stats.Total = total
	}); err != nil {
		logger.Error("failed to mark job processing", zap.Error(err))
		return
	}

	if job.Options.ValidateOnly {
		records := make([]*domain.Transaction, total)
		for i := range rows {
			tx := rows[i].Tx
			records[i] = &tx
		}
		summary, err := s.processor.DryRun(ctx, records)
		if err != nil {
			s.failJob(context.WithoutCancel(ctx), job.JobID, err)
			return
		}
		s.finishJob(ctx, job.JobID, summary)
		logger.Info("dry run complete",
			zap.Int("rows", total),
			zap.Int("would_create", summary.Created),
			zap.Int("duplicates", summary.Skipped),
		)
		return
	}

	accountIDs, err := s.resolver.Resolve(ctx, job.UserID, rows)
	if err != nil {
		logger.Error("account resolution failed", zap.Error(err))
		s.failJob(ctx, job.JobID, err)
		return
	}

	records := make([]*domain.Transaction, total)
	for i := range rows {
		tx := rows[i].Tx
		tx.AccountID = accountIDs[rows[i].AccountName]
		records[i] = &tx
	}

	summary, runErr := s.processor.Run(ctx,
		jobMeta{JobID: job.JobID, FileName: job.FileName},
		job.Options,
		records,
		func(u batchUpdate) {
			if _, err := s.jobs.UpdateJob(ctx, job.JobID, func(j *domain.ImportJob) {
				applyCounts(j, u)
			}); err != nil {
				logger.Warn("failed to persist batch progress", zap.Error(err))
			}
		},
	)
	if runErr != nil {
		logger.Warn("run stopped early", zap.Error(runErr))
		s.failJob(context.WithoutCancel(ctx), job.JobID, runErr)
		return
	}

	s.finishJob(ctx, job.JobID, summary)
	logger.Info("import complete",
		zap.Int("total", summary.Total),
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int("retried", summary.Retried),
		zap.Float64("tx_per_sec", summary.TransactionsPerSecond),
	)
}

func applyCounts(j *domain.ImportJob, u batchUpdate) {
	if u.Total > 0 {
		j.Stats.Progress = u.Processed * 100 / u.Total
	} else {
		j.Stats.Progress = 100
	}
	j.Stats.Total = u.Total
	j.Stats.Created = u.Created
	j.Stats.Updated = u.Updated
	j.Stats.Skipped = u.Skipped
	j.Stats.Merged = u.Merged
	j.Stats.Failed = u.Failed
}

func (s *ImportService) finishJob(ctx context.Context, jobID string, summary domain.RunSummary) {
	updated, err := s.jobs.UpdateJob(ctx, jobID, func(j *domain.ImportJob) {
		now := time.Now().UnixMilli()
		j.Status = domain.JobDone
		j.EndTime = now
		j.Stats.Progress = 100
		j.Stats.ProcessingTime = now - j.StartTime
		j.Stats.Total = summary.Total
		j.Stats.Created = summary.Created
		j.Stats.Updated = summary.Updated
		j.Stats.Skipped = summary.Skipped
		j.Stats.Merged = summary.Merged
		j.Stats.Failed = summary.Failed
	})
	if err != nil {
		s.logger.Error("failed to finalize job", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	s.metrics.ObserveJob(string(domain.JobDone),
		time.Duration(updated.Stats.ProcessingTime)*time.Millisecond)
}

func (s *ImportService) failJob(ctx context.Context, jobID string, cause error) {
	updated, err := s.jobs.UpdateJob(ctx, jobID, func(j *domain.ImportJob) {
		now := time.Now().UnixMilli()
		j.Status = domain.JobError
		j.Error = cause.Error()
		j.EndTime = now
		j.Stats.ProcessingTime = now - j.StartTime
	})
	if err != nil {
		s.logger.Error("failed to mark job errored", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	s.metrics.ObserveJob(string(domain.JobError),
		time.Duration(updated.Stats.ProcessingTime)*time.Millisecond)
}
