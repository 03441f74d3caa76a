package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ledgerline/importd/internal/domain"
)

// AccountStore is the Postgres-backed account repository.
type AccountStore struct {
	db *DB
}

// NewAccountStore creates an account store over the given database.
func NewAccountStore(db *DB) *AccountStore {
	return &AccountStore{db: db}
}

// ListAccounts returns all accounts owned by userID.
func (s *AccountStore) ListAccounts(ctx context.Context, userID string) ([]domain.Account, error) {
	result, err := s.db.execute(func() (any, error) {
		rows, err := s.db.pool.Query(ctx,
			`SELECT id, user_id, name, type, balance, COALESCE(institution_id, ''), created_at
			 FROM accounts WHERE user_id = $1`, userID)
		if err != nil {
			return nil, fmt.Errorf("listing accounts: %w", err)
		}
		defer rows.Close()

		var accounts []domain.Account
		for rows.Next() {
			var a domain.Account
			if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.Type, &a.Balance,
				&a.InstitutionID, &a.CreatedAt); err != nil {
				return nil, fmt.Errorf("scanning account: %w", err)
			}
			accounts = append(accounts, a)
		}
		return accounts, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Account), nil
}

// CreateAccounts inserts all accounts in one multi-row statement. A unique
// violation on (user_id, name) surfaces as *domain.ErrDuplicate so the
// caller can reload instead of failing.
func (s *AccountStore) CreateAccounts(ctx context.Context, accounts []domain.Account) error {
	if len(accounts) == 0 {
		return nil
	}

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString("INSERT INTO accounts (id, user_id, name, type, balance) VALUES ")
	for i, a := range accounts {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 5
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5)
		id := a.ID
		if id == "" {
			id = uuid.NewString()
		}
		balance := a.Balance
		if balance == "" {
			balance = "0"
		}
		args = append(args, id, a.UserID, a.Name, a.Type, balance)
	}

	_, err := s.db.execute(func() (any, error) {
		_, err := s.db.pool.Exec(ctx, sb.String(), args...)
		return nil, err
	})
	return err
}

// FindAccountByName looks up one account by owner and exact name.
func (s *AccountStore) FindAccountByName(ctx context.Context, userID, name string) (*domain.Account, error) {
	result, err := s.db.execute(func() (any, error) {
		var a domain.Account
		err := s.db.pool.QueryRow(ctx,
			`SELECT id, user_id, name, type, balance, COALESCE(institution_id, ''), created_at
			 FROM accounts WHERE user_id = $1 AND name = $2`, userID, name).
			Scan(&a.ID, &a.UserID, &a.Name, &a.Type, &a.Balance, &a.InstitutionID, &a.CreatedAt)
		if err == pgx.ErrNoRows {
			return nil, &domain.ErrNotFound{Resource: "account", ID: name}
		}
		if err != nil {
			return nil, fmt.Errorf("finding account by name: %w", err)
		}
		return &a, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.Account), nil
}
