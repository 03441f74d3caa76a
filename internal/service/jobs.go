package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ledgerline/importd/internal/domain"
	"github.com/ledgerline/importd/internal/infra/resilience"
	"github.com/ledgerline/importd/internal/port"
)

const (
	jobKeyPrefix  = "import:job:"
	activeJobsKey = "import:active-jobs"
)

// JobStore keeps job records in the KV backend as JSON with a TTL, plus a
// shared set of active job IDs. Terminal jobs linger in the set for a grace
// period so clients can observe the final state, then get swept lazily
// during listing.
type JobStore struct {
	kv     port.KV
	ttl    time.Duration
	grace  time.Duration
	logger *zap.Logger
}

// NewJobStore creates a job store over the given KV backend.
func NewJobStore(kv port.KV, ttl, grace time.Duration, logger *zap.Logger) *JobStore {
	return &JobStore{kv: kv, ttl: ttl, grace: grace, logger: logger}
}

func jobKey(jobID string) string {
	return jobKeyPrefix + jobID
}

// CreateJob persists a new job record and registers it in the active set.
func (s *JobStore) CreateJob(ctx context.Context, job *domain.ImportJob) error {
	if err := s.write(ctx, job); err != nil {
		return err
	}
	if err := s.kv.SAdd(ctx, activeJobsKey, job.JobID); err != nil {
		return fmt.Errorf("registering active job: %w", err)
	}
	return nil
}

// UpdateJob applies update to the stored record in a read-modify-write.
// Each job has a single writer (its processing goroutine), so no
// cross-process locking is needed.
func (s *JobStore) UpdateJob(ctx context.Context, jobID string, update func(*domain.ImportJob)) (*domain.ImportJob, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	update(job)
	if err := s.write(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// GetJob loads one job record. A missing or expired record is ErrNotFound.
// Read failures degrade to not-found as well: callers poll job state, and a
// flapping backend should look like an expired record, not an outage.
func (s *JobStore) GetJob(ctx context.Context, jobID string) (*domain.ImportJob, error) {
	raw, ok, err := s.kv.Get(ctx, jobKey(jobID))
	if err != nil {
		s.logger.Warn("job read failed", zap.String("job_id", jobID), zap.Error(err))
		return nil, &domain.ErrNotFound{Resource: "import job", ID: jobID}
	}
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "import job", ID: jobID}
	}

	var job domain.ImportJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("decoding job %s: %w", jobID, err)
	}
	return &job, nil
}

// ListActiveJobs returns the jobs currently in the active set and sweeps
// out entries whose record expired or that have been terminal longer than
// the grace period.
func (s *JobStore) ListActiveJobs(ctx context.Context) ([]domain.ImportJob, error) {
	ids, err := s.kv.SMembers(ctx, activeJobsKey)
	if err != nil {
		return nil, fmt.Errorf("listing active jobs: %w", err)
	}

	jobs := make([]domain.ImportJob, 0, len(ids))
	var stale []string
	for _, id := range ids {
		job, err := s.GetJob(ctx, id)
		if err != nil {
			// Record gone (expired TTL) or unreadable; drop from the set.
			stale = append(stale, id)
			continue
		}
		if job.Status.Terminal() && s.pastGrace(job) {
			stale = append(stale, id)
			continue
		}
		jobs = append(jobs, *job)
	}

	if len(stale) > 0 {
		if err := s.kv.SRem(ctx, activeJobsKey, stale...); err != nil {
			s.logger.Warn("failed to sweep stale jobs from active set",
				zap.Int("count", len(stale)),
				zap.Error(err))
		}
	}
	return jobs, nil
}

func (s *JobStore) pastGrace(job *domain.ImportJob) bool {
	ended := job.EndTime
	if ended == 0 {
		ended = job.StartTime
	}
	return time.Since(time.UnixMilli(ended)) > s.grace
}

// writePolicy covers transient KV hiccups on job-record writes.
var writePolicy = resilience.RetryPolicy{MaxRetries: 3, Delay: 100 * time.Millisecond}

func (s *JobStore) write(ctx context.Context, job *domain.ImportJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding job %s: %w", job.JobID, err)
	}
	_, err = resilience.Retry(ctx, writePolicy, func() error {
		return s.kv.Set(ctx, jobKey(job.JobID), string(payload), s.ttl)
	})
	if err != nil {
		return fmt.Errorf("storing job %s: %w", job.JobID, err)
	}
	return nil
}
