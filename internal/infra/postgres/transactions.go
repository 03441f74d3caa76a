package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ledgerline/importd/internal/domain"
)

// TransactionStore is the Postgres-backed transaction repository.
type TransactionStore struct {
	db *DB
}

// NewTransactionStore creates a transaction store over the given database.
func NewTransactionStore(db *DB) *TransactionStore {
	return &TransactionStore{db: db}
}

const transactionColumns = `id, user_id, account_id, type, amount::text, date, description,
	COALESCE(category, ''), COALESCE(parent_category, ''), COALESCE(account_mask, ''),
	COALESCE(note, ''), COALESCE(tags, ''), excluded, recurring, created_at`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := row.Scan(&tx.ID, &tx.UserID, &tx.AccountID, &tx.Type, &tx.Amount, &tx.Date,
		&tx.Description, &tx.Category, &tx.ParentCategory, &tx.AccountMask,
		&tx.Note, &tx.Tags, &tx.Excluded, &tx.Recurring, &tx.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// FindByKey returns the first transaction matching the dedup key, or
// (nil, nil) when none exists. The mask predicate applies only when the
// candidate carries a mask.
func (s *TransactionStore) FindByKey(ctx context.Context, userID string, key domain.DedupKey) (*domain.Transaction, error) {
	result, err := s.db.execute(func() (any, error) {
		row := s.db.pool.QueryRow(ctx,
			`SELECT `+transactionColumns+`
			 FROM transactions
			 WHERE user_id = $1 AND date = $2 AND amount = $3::numeric AND type = $4
			   AND ($5 = '' OR account_mask = $5)
			 LIMIT 1`,
			userID, key.Date, key.Amount, key.Type, key.AccountMask)
		tx, err := scanTransaction(row)
		if err == pgx.ErrNoRows {
			return (*domain.Transaction)(nil), nil
		}
		if err != nil {
			return nil, fmt.Errorf("finding transaction by key: %w", err)
		}
		return tx, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.Transaction), nil
}

// Create inserts a transaction, assigning an ID when absent.
func (s *TransactionStore) Create(ctx context.Context, tx *domain.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	_, err := s.db.execute(func() (any, error) {
		_, err := s.db.pool.Exec(ctx,
			`INSERT INTO transactions
			   (id, user_id, account_id, type, amount, date, description,
			    category, parent_category, account_mask, note, tags, excluded, recurring)
			 VALUES ($1, $2, $3, $4, $5::numeric, $6, $7,
			         NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''),
			         NULLIF($11, ''), NULLIF($12, ''), $13, $14)`,
			tx.ID, tx.UserID, tx.AccountID, tx.Type, tx.Amount, tx.Date, tx.Description,
			tx.Category, tx.ParentCategory, tx.AccountMask, tx.Note, tx.Tags,
			tx.Excluded, tx.Recurring)
		return nil, err
	})
	return err
}

// allowed column names for Update; field maps come from the dedup merger.
var updatableColumns = map[string]bool{
	"category":        true,
	"parent_category": true,
	"note":            true,
	"tags":            true,
}

// Update applies the given field values to an existing transaction.
func (s *TransactionStore) Update(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	var (
		sets []string
		args []any
	)
	args = append(args, id)
	for column, value := range fields {
		if !updatableColumns[column] {
			return fmt.Errorf("refusing to update column %q", column)
		}
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	_, err := s.db.execute(func() (any, error) {
		tag, err := s.db.pool.Exec(ctx,
			fmt.Sprintf("UPDATE transactions SET %s WHERE id = $1", strings.Join(sets, ", ")),
			args...)
		if err != nil {
			return nil, fmt.Errorf("updating transaction: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, &domain.ErrNotFound{Resource: "transaction", ID: id}
		}
		return nil, nil
	})
	return err
}
