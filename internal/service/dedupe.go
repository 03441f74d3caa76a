package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/ledgerline/importd/internal/domain"
	"github.com/ledgerline/importd/internal/port"
)

// Deduper persists one candidate transaction with duplicate awareness.
// Matching is an exact-key lookup on (date, amount, type, account mask);
// when a match exists, only empty metadata fields on the stored row are
// filled from the candidate. Existing values are never overwritten.
type Deduper struct {
	txs    port.TransactionStore
	logger *zap.Logger
}

// NewDeduper creates a deduper over the given transaction store.
func NewDeduper(txs port.TransactionStore, logger *zap.Logger) *Deduper {
	return &Deduper{txs: txs, logger: logger}
}

// Upsert stores the candidate and reports what happened to it:
// created when no duplicate exists, updated when a duplicate had metadata
// gaps the candidate filled, skipped when the duplicate was already
// complete. Errors are storage errors; the caller owns retries.
func (d *Deduper) Upsert(ctx context.Context, candidate *domain.Transaction) (domain.Outcome, error) {
	existing, err := d.txs.FindByKey(ctx, candidate.UserID, candidate.Key())
	if err != nil {
		return domain.OutcomeFailed, err
	}

	if existing == nil {
		if err := d.txs.Create(ctx, candidate); err != nil {
			return domain.OutcomeFailed, err
		}
		return domain.OutcomeCreated, nil
	}

	fields := mergeFields(existing, candidate)
	if len(fields) == 0 {
		return domain.OutcomeSkipped, nil
	}

	if err := d.txs.Update(ctx, existing.ID, fields); err != nil {
		return domain.OutcomeFailed, err
	}
	d.logger.Debug("merged metadata into existing transaction",
		zap.String("transaction_id", existing.ID),
		zap.Int("fields", len(fields)),
	)
	return domain.OutcomeUpdated, nil
}

// Classify reports what Upsert would do with the candidate, without
// writing. Used by dry-run imports.
func (d *Deduper) Classify(ctx context.Context, candidate *domain.Transaction) (domain.ValidationResult, error) {
	existing, err := d.txs.FindByKey(ctx, candidate.UserID, candidate.Key())
	if err != nil {
		return domain.ValidationResult{}, err
	}
	if existing == nil {
		return domain.ValidationResult{Valid: true, Description: candidate.Description}, nil
	}
	return domain.ValidationResult{
		Valid:       true,
		Description: candidate.Description,
		Issue:       "duplicate of " + existing.ID,
	}, nil
}

// mergeFields returns the column updates that fill gaps on the stored row
// from the candidate. Only empty fields are eligible.
func mergeFields(existing, candidate *domain.Transaction) map[string]any {
	fields := make(map[string]any)
	if existing.Category == "" && candidate.Category != "" {
		fields["category"] = candidate.Category
	}
	if existing.ParentCategory == "" && candidate.ParentCategory != "" {
		fields["parent_category"] = candidate.ParentCategory
	}
	if existing.Note == "" && candidate.Note != "" {
		fields["note"] = candidate.Note
	}
	if existing.Tags == "" && candidate.Tags != "" {
		fields["tags"] = candidate.Tags
	}
	return fields
}
