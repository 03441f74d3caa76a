package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ledgerline/importd/internal/domain"
	"github.com/ledgerline/importd/internal/infra/observability"
	"github.com/ledgerline/importd/internal/infra/resilience"
	"github.com/ledgerline/importd/internal/port"
)

// Processor drives the batch pipeline: records are processed in sequential
// batches with full concurrency inside each batch, a fixed delay between
// batches, and per-record retries. A record that exhausts its retries is
// counted as failed and the run continues; only context cancellation stops
// a run early.
type Processor struct {
	deduper   *Deduper
	publisher port.ProgressPublisher
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// NewProcessor creates a batch processor.
func NewProcessor(deduper *Deduper, publisher port.ProgressPublisher, logger *zap.Logger, metrics *observability.Metrics) *Processor {
	return &Processor{
		deduper:   deduper,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
	}
}

// jobMeta identifies the run to progress consumers and the batch callback.
type jobMeta struct {
	JobID    string
	FileName string
}

// batchUpdate is handed to the batch callback after every batch so the
// caller can persist intermediate stats.
type batchUpdate struct {
	Processed int
	Total     int
	Created   int
	Updated   int
	Skipped   int
	Merged    int
	Failed    int
	Retried   int
}

// Run processes records per the given options. onBatch, when non-nil, is
// invoked after each batch with cumulative counts. The returned summary is
// complete even when the error is non-nil (cancellation mid-run).
func (p *Processor) Run(ctx context.Context, meta jobMeta, opts domain.ImportOptions, records []*domain.Transaction, onBatch func(batchUpdate)) (domain.RunSummary, error) {
	start := time.Now()
	total := len(records)

	var (
		mu     sync.Mutex
		counts batchUpdate
	)
	counts.Total = total

	policy := resilience.RetryPolicy{
		MaxRetries: opts.MaxRetries,
		Delay:      time.Duration(opts.RetryDelayMs) * time.Millisecond,
	}
	batchSize := opts.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}
	batchDelay := time.Duration(opts.BatchDelayMs) * time.Millisecond

	var runErr error
	for offset := 0; offset < total; offset += batchSize {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		p.publishProgress(ctx, meta, counts, false)

		end := offset + batchSize
		if end > total {
			end = total
		}
		batch := records[offset:end]

		g, gctx := errgroup.WithContext(ctx)
		for _, record := range batch {
			record := record
			g.Go(func() error {
				p.processRecord(gctx, policy, record, &mu, &counts)
				return nil
			})
		}
		g.Wait()

		mu.Lock()
		counts.Processed = end
		snapshot := counts
		mu.Unlock()
		if onBatch != nil {
			onBatch(snapshot)
		}

		if end < total && batchDelay > 0 {
			select {
			case <-ctx.Done():
				runErr = ctx.Err()
			case <-time.After(batchDelay):
			}
			if runErr != nil {
				break
			}
		}
	}

	p.publishProgress(ctx, meta, counts, true)

	duration := time.Since(start)
	summary := domain.RunSummary{
		Total:    total,
		Created:  counts.Created,
		Updated:  counts.Updated,
		Skipped:  counts.Skipped,
		Merged:   counts.Merged,
		Failed:   counts.Failed,
		Retried:  counts.Retried,
		Duration: duration,
	}
	if secs := duration.Seconds(); secs > 0 {
		summary.TransactionsPerSecond = float64(counts.Processed) / secs
	}
	return summary, runErr
}

// DryRun classifies every record against the store without writing:
// would-create rows count as created, recognized duplicates as skipped. A
// row whose lookup fails counts as failed.
func (p *Processor) DryRun(ctx context.Context, records []*domain.Transaction) (domain.RunSummary, error) {
	start := time.Now()
	summary := domain.RunSummary{Total: len(records)}

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		result, err := p.deduper.Classify(ctx, record)
		if err != nil {
			summary.Failed++
			continue
		}
		if result.Issue == "" {
			summary.Created++
		} else {
			summary.Skipped++
			p.logger.Debug("dry run: duplicate row",
				zap.String("description", truncate(result.Description, 30)),
				zap.String("issue", result.Issue),
			)
		}
	}

	summary.Duration = time.Since(start)
	return summary, nil
}

// processRecord persists one record with retries and folds the outcome into
// the shared counts. Failures are logged, never propagated.
func (p *Processor) processRecord(ctx context.Context, policy resilience.RetryPolicy, record *domain.Transaction, mu *sync.Mutex, counts *batchUpdate) {
	var outcome domain.Outcome
	retries, err := resilience.Retry(ctx, policy, func() error {
		var upsertErr error
		outcome, upsertErr = p.deduper.Upsert(ctx, record)
		return upsertErr
	})

	mu.Lock()
	defer mu.Unlock()

	counts.Retried += retries
	p.metrics.AddRetries(retries)

	if err != nil {
		counts.Failed++
		p.metrics.IncrRecord(string(domain.OutcomeFailed))
		p.logger.Warn("record failed after retries",
			zap.Time("date", record.Date),
			zap.String("account_id", record.AccountID),
			zap.String("description", truncate(record.Description, 30)),
			zap.String("amount", record.Amount),
			zap.Int("retries", retries),
			zap.Error(err),
		)
		return
	}

	switch outcome {
	case domain.OutcomeCreated:
		counts.Created++
	case domain.OutcomeUpdated:
		counts.Updated++
	case domain.OutcomeSkipped:
		counts.Skipped++
	case domain.OutcomeMerged:
		counts.Merged++
	}
	p.metrics.IncrRecord(string(outcome))
}

// publishProgress emits one fire-and-forget event.
func (p *Processor) publishProgress(ctx context.Context, meta jobMeta, counts batchUpdate, done bool) {
	percentage := 100
	if counts.Total > 0 {
		percentage = counts.Processed * 100 / counts.Total
	}
	p.publisher.Publish(ctx, domain.ProgressEvent{
		JobID:      meta.JobID,
		FileName:   meta.FileName,
		Current:    counts.Processed,
		Total:      counts.Total,
		Percentage: percentage,
		Stats: domain.RunStats{
			Success: counts.Created + counts.Updated + counts.Skipped + counts.Merged,
			Failed:  counts.Failed,
			Retried: counts.Retried,
		},
		Done:      done,
		EmittedAt: time.Now().UTC(),
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
