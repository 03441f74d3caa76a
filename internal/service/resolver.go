// Package service implements the import pipeline: account resolution,
// dedup-aware persistence, batch processing, and job lifecycle management.
package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ledgerline/importd/internal/bank"
	"github.com/ledgerline/importd/internal/domain"
	"github.com/ledgerline/importd/internal/port"
)

// AccountResolver maps the account names referenced by an import to account
// IDs, creating missing accounts with checking defaults. Resolution happens
// once per job, before any batch starts; a failure here is setup-fatal.
type AccountResolver struct {
	accounts port.AccountStore
	logger   *zap.Logger
}

// NewAccountResolver creates a resolver over the given account store.
func NewAccountResolver(accounts port.AccountStore, logger *zap.Logger) *AccountResolver {
	return &AccountResolver{accounts: accounts, logger: logger}
}

// Resolve returns a name → account ID map covering every account name in
// rows. Missing accounts are created in one batched insert. A unique
// violation means a concurrent import created some of them first; that is
// not an error, the resolver reloads and fills the remaining gaps.
func (r *AccountResolver) Resolve(ctx context.Context, userID string, rows []bank.Converted) (map[string]string, error) {
	existing, err := r.accounts.ListAccounts(ctx, userID)
	if err != nil {
		return nil, &domain.ErrSetup{Stage: "account-resolution", Err: err}
	}

	byName := make(map[string]string, len(existing))
	for _, a := range existing {
		byName[a.Name] = a.ID
	}

	var missing []domain.Account
	seen := make(map[string]bool)
	for _, row := range rows {
		name := row.AccountName
		if name == "" || byName[name] != "" || seen[name] {
			continue
		}
		seen[name] = true
		missing = append(missing, domain.Account{
			ID:      uuid.NewString(),
			UserID:  userID,
			Name:    name,
			Type:    domain.DefaultAccountType,
			Balance: "0",
		})
	}
	if len(missing) == 0 {
		return byName, nil
	}

	r.logger.Info("creating missing accounts",
		zap.String("user_id", userID),
		zap.Int("count", len(missing)),
	)

	err = r.accounts.CreateAccounts(ctx, missing)
	var dup *domain.ErrDuplicate
	switch {
	case err == nil:
		for _, a := range missing {
			byName[a.Name] = a.ID
		}
	case errors.As(err, &dup):
		// Lost the race to a concurrent import. Reload and create any
		// stragglers individually.
		r.logger.Info("accounts created concurrently, reloading",
			zap.String("user_id", userID))
		if err := r.refill(ctx, userID, missing, byName); err != nil {
			return nil, err
		}
	default:
		return nil, &domain.ErrSetup{Stage: "account-resolution", Err: err}
	}
	return byName, nil
}

func (r *AccountResolver) refill(ctx context.Context, userID string, missing []domain.Account, byName map[string]string) error {
	refreshed, err := r.accounts.ListAccounts(ctx, userID)
	if err != nil {
		return &domain.ErrSetup{Stage: "account-resolution", Err: err}
	}
	for _, a := range refreshed {
		byName[a.Name] = a.ID
	}

	var dup *domain.ErrDuplicate
	for _, a := range missing {
		if byName[a.Name] != "" {
			continue
		}
		err := r.accounts.CreateAccounts(ctx, []domain.Account{a})
		switch {
		case err == nil:
			byName[a.Name] = a.ID
		case errors.As(err, &dup):
			found, ferr := r.accounts.FindAccountByName(ctx, userID, a.Name)
			if ferr != nil {
				return &domain.ErrSetup{Stage: "account-resolution", Err: ferr}
			}
			byName[a.Name] = found.ID
		default:
			return &domain.ErrSetup{Stage: "account-resolution", Err: err}
		}
	}
	return nil
}
