// Package domain defines the core business entities for the import service.
// These models are independent of storage and transport and represent the
// canonical data structures used throughout the pipeline.
package domain

import "time"

// ============================================================
// Transactions
// ============================================================

// TransactionType classifies a transaction.
type TransactionType string

const (
	TransactionIncome     TransactionType = "income"
	TransactionExpense    TransactionType = "expense"
	TransactionCredit     TransactionType = "credit"
	TransactionDebit      TransactionType = "debit"
	TransactionTransfer   TransactionType = "transfer"
	TransactionInvestment TransactionType = "investment"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionIncome, TransactionExpense, TransactionCredit,
		TransactionDebit, TransactionTransfer, TransactionInvestment:
		return true
	}
	return false
}

// Transaction is the canonical post-adapter transaction record.
//
// Amount is a signed decimal string, never a binary float: the dedup key
// compares amounts as stored strings, and float rounding would make two
// imports of the same row diverge.
type Transaction struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId"`
	AccountID      string          `json:"accountId"`
	Type           TransactionType `json:"type"`
	Amount         string          `json:"amount"`
	Date           time.Time       `json:"date"`
	Description    string          `json:"description"`
	Category       string          `json:"category,omitempty"`
	ParentCategory string          `json:"parentCategory,omitempty"`
	AccountMask    string          `json:"accountMask,omitempty"`
	Note           string          `json:"note,omitempty"`
	Tags           string          `json:"tags,omitempty"`
	Excluded       bool            `json:"excluded"`
	Recurring      bool            `json:"recurring"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// DedupKey is the natural matching key for duplicate detection:
// (date, amount, type, accountMask). It is a lookup key, not a uniqueness
// constraint — duplicate rows are expected input.
type DedupKey struct {
	Date        time.Time
	Amount      string
	Type        TransactionType
	AccountMask string
}

// Key returns the transaction's dedup key.
func (t *Transaction) Key() DedupKey {
	return DedupKey{
		Date:        t.Date,
		Amount:      t.Amount,
		Type:        t.Type,
		AccountMask: t.AccountMask,
	}
}

// ============================================================
// Accounts
// ============================================================

// Account is a financial account owned by a user. Accounts referenced by an
// import that do not exist yet are created lazily with checking defaults.
type Account struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	Name          string    `json:"name"`
	Type          string    `json:"type"`
	Balance       string    `json:"balance"`
	InstitutionID string    `json:"institutionId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// DefaultAccountType is assigned to accounts created during an import.
const DefaultAccountType = "checking"

// ============================================================
// Import jobs
// ============================================================

// JobStatus is the lifecycle state of an import job.
// queued → processing → {done, error}; queued → error only when setup
// (CSV parse or account resolution) fails before any batch starts.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobDone       JobStatus = "done"
	JobError      JobStatus = "error"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == JobDone || s == JobError
}

// JobStats aggregates per-record outcomes for a job.
// Invariant: Created+Updated+Skipped+Merged+Failed == Total once the job is
// terminal.
type JobStats struct {
	Progress       int   `json:"progress"`
	ProcessingTime int64 `json:"processingTime"`
	Total          int   `json:"total"`
	Created        int   `json:"created"`
	Updated        int   `json:"updated"`
	Skipped        int   `json:"skipped"`
	Merged         int   `json:"merged"`
	Failed         int   `json:"failed"`
}

// ImportOptions echoes the processing configuration a job was submitted
// with. DeduplicateThreshold is accepted and recorded for API
// compatibility; matching is exact-key only.
type ImportOptions struct {
	BatchSize            int  `json:"batchSize"`
	BatchDelayMs         int  `json:"batchDelay"`
	MaxRetries           int  `json:"maxRetries"`
	RetryDelayMs         int  `json:"retryDelay"`
	DeduplicateThreshold int  `json:"deduplicateThreshold"`
	ValidateOnly         bool `json:"validateOnly,omitempty"`
}

// ImportJob is the durable record of one submitted CSV import.
// It is owned by the job store; the processor mutates it only through the
// store's update interface.
type ImportJob struct {
	JobID     string        `json:"jobId"`
	UserID    string        `json:"userId"`
	FileName  string        `json:"fileName"`
	Status    JobStatus     `json:"status"`
	Error     string        `json:"error,omitempty"`
	StartTime int64         `json:"startTime"`
	EndTime   int64         `json:"endTime,omitempty"`
	Options   ImportOptions `json:"options"`
	Stats     JobStats      `json:"stats"`
}

// JobHandle is what a submission returns to the caller.
type JobHandle struct {
	JobID    string    `json:"jobId"`
	FileName string    `json:"fileName"`
	Status   JobStatus `json:"status"`
}

// ============================================================
// Record outcomes & progress
// ============================================================

// Outcome tags the result of processing one record.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
	OutcomeMerged  Outcome = "merged"
	OutcomeFailed  Outcome = "failed"
)

// RunStats counts record outcomes over one processor run.
type RunStats struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Retried int `json:"retried"`
}

// ProgressEvent is the payload published to the progress channel before
// each batch and once on completion. Delivery is best effort; the job store
// record remains the authoritative state.
type ProgressEvent struct {
	JobID      string    `json:"jobId"`
	FileName   string    `json:"fileName"`
	Current    int       `json:"current"`
	Total      int       `json:"total"`
	Percentage int       `json:"percentage"`
	Stats      RunStats  `json:"stats"`
	Done       bool      `json:"done,omitempty"`
	EmittedAt  time.Time `json:"emittedAt"`
}

// RunSummary is the final accounting of a processor run.
type RunSummary struct {
	Total                 int
	Created               int
	Updated               int
	Skipped               int
	Merged                int
	Failed                int
	Retried               int
	Duration              time.Duration
	TransactionsPerSecond float64
}

// ValidationResult classifies one row of a dry-run import.
type ValidationResult struct {
	Valid       bool   `json:"valid"`
	Description string `json:"description,omitempty"`
	Issue       string `json:"issue,omitempty"`
}
