package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ledgerline/importd/internal/domain"
)

// AccountStore is an in-memory account repository. It enforces the same
// (user, name) uniqueness the Postgres schema does, so resolver race
// handling can be exercised without a database.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account // by ID
	byName   map[string]string         // userID+"\x00"+name -> ID
}

// NewAccountStore creates an empty in-memory account store.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts: make(map[string]domain.Account),
		byName:   make(map[string]string),
	}
}

func nameKey(userID, name string) string {
	return userID + "\x00" + name
}

// ListAccounts returns all accounts owned by userID.
func (s *AccountStore) ListAccounts(_ context.Context, userID string) ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Account
	for _, a := range s.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

// CreateAccounts inserts all accounts or none. A (user, name) collision
// returns *domain.ErrDuplicate, matching the unique-violation behavior of
// the Postgres store.
func (s *AccountStore) CreateAccounts(_ context.Context, accounts []domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range accounts {
		if _, exists := s.byName[nameKey(a.UserID, a.Name)]; exists {
			return &domain.ErrDuplicate{Key: a.Name}
		}
	}
	for _, a := range accounts {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		s.accounts[a.ID] = a
		s.byName[nameKey(a.UserID, a.Name)] = a.ID
	}
	return nil
}

// FindAccountByName looks up one account by owner and exact name.
func (s *AccountStore) FindAccountByName(_ context.Context, userID, name string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[nameKey(userID, name)]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: name}
	}
	a := s.accounts[id]
	return &a, nil
}

// TransactionStore is an in-memory transaction repository with the exact-key
// dedup lookup.
type TransactionStore struct {
	mu  sync.RWMutex
	txs map[string]domain.Transaction // by ID
}

// NewTransactionStore creates an empty in-memory transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{txs: make(map[string]domain.Transaction)}
}

// FindByKey returns the first transaction matching the dedup key, or
// (nil, nil) when none exists. The account mask participates only when the
// candidate has one, same as the SQL predicate.
func (s *TransactionStore) FindByKey(_ context.Context, userID string, key domain.DedupKey) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, tx := range s.txs {
		if tx.UserID != userID {
			continue
		}
		if !tx.Date.Equal(key.Date) || tx.Amount != key.Amount || tx.Type != key.Type {
			continue
		}
		if key.AccountMask != "" && tx.AccountMask != key.AccountMask {
			continue
		}
		t := tx
		return &t, nil
	}
	return nil, nil
}

// Create inserts a transaction, assigning an ID when absent.
func (s *TransactionStore) Create(_ context.Context, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	s.txs[tx.ID] = *tx
	return nil
}

// Update applies the given field values to an existing transaction.
func (s *TransactionStore) Update(_ context.Context, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[id]
	if !ok {
		return &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	for field, value := range fields {
		str, _ := value.(string)
		switch field {
		case "category":
			tx.Category = str
		case "parent_category":
			tx.ParentCategory = str
		case "note":
			tx.Note = str
		case "tags":
			tx.Tags = str
		}
	}
	s.txs[id] = tx
	return nil
}

// Get returns a stored transaction by ID. Test helper.
func (s *TransactionStore) Get(id string) (domain.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.txs[id]
	return tx, ok
}

// Len returns the number of stored transactions. Test helper.
func (s *TransactionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.txs)
}
