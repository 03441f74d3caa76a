// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/ledgerline/importd/internal/domain"
)

// AccountStore persists financial accounts.
// CreateAccounts is a single batched insert; an implementation must return
// *domain.ErrDuplicate wrapped in the error chain when a concurrent writer
// already created an account with the same (user, name), so the resolver
// can reload instead of failing the job.
type AccountStore interface {
	ListAccounts(ctx context.Context, userID string) ([]domain.Account, error)
	CreateAccounts(ctx context.Context, accounts []domain.Account) error
	FindAccountByName(ctx context.Context, userID, name string) (*domain.Account, error)
}

// TransactionStore persists transactions and supports the exact-key dedup
// lookup. FindByKey returns (nil, nil) when no match exists.
type TransactionStore interface {
	FindByKey(ctx context.Context, userID string, key domain.DedupKey) (*domain.Transaction, error)
	Create(ctx context.Context, tx *domain.Transaction) error
	Update(ctx context.Context, id string, fields map[string]any) error
}

// KV is the durable key-value store used for job bookkeeping. Assumed to be
// Redis but anything with get/set/expire/set-membership semantics works.
// Get returns ("", false, nil) for a missing key.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
}

// ProgressPublisher broadcasts progress events to a named channel.
// Fire-and-forget: implementations must never let a publish failure
// escalate into a job failure.
type ProgressPublisher interface {
	Publish(ctx context.Context, event domain.ProgressEvent)
}

// JobStore owns the lifecycle record of import jobs and the shared
// active-job set.
type JobStore interface {
	CreateJob(ctx context.Context, job *domain.ImportJob) error
	UpdateJob(ctx context.Context, jobID string, update func(*domain.ImportJob)) (*domain.ImportJob, error)
	GetJob(ctx context.Context, jobID string) (*domain.ImportJob, error)
	ListActiveJobs(ctx context.Context) ([]domain.ImportJob, error)
}
