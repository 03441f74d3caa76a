package service

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/ledgerline/importd/internal/bank"
	"github.com/ledgerline/importd/internal/domain"
	"github.com/ledgerline/importd/internal/infra/memory"
)

func rowsFor(names ...string) []bank.Converted {
	rows := make([]bank.Converted, len(names))
	for i, n := range names {
		rows[i] = bank.Converted{AccountName: n}
	}
	return rows
}

func TestResolver_CreatesMissingAccounts(t *testing.T) {
	store := memory.NewAccountStore()
	r := NewAccountResolver(store, zap.NewNop())
	ctx := context.Background()

	ids, err := r.Resolve(ctx, "u1", rowsFor("Checking", "Savings", "Checking"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 resolved accounts, got %d", len(ids))
	}

	accounts, _ := store.ListAccounts(ctx, "u1")
	if len(accounts) != 2 {
		t.Errorf("expected 2 created accounts, got %d", len(accounts))
	}
	for _, a := range accounts {
		if a.Type != domain.DefaultAccountType {
			t.Errorf("expected default type, got %q", a.Type)
		}
		if ids[a.Name] != a.ID {
			t.Errorf("map id mismatch for %q", a.Name)
		}
	}
}

func TestResolver_ReusesExistingAccounts(t *testing.T) {
	store := memory.NewAccountStore()
	ctx := context.Background()
	seed := domain.Account{ID: "acc-1", UserID: "u1", Name: "Checking", Type: "checking"}
	if err := store.CreateAccounts(ctx, []domain.Account{seed}); err != nil {
		t.Fatalf("seeding failed: %v", err)
	}

	r := NewAccountResolver(store, zap.NewNop())
	ids, err := r.Resolve(ctx, "u1", rowsFor("Checking"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if ids["Checking"] != "acc-1" {
		t.Errorf("expected existing account id, got %q", ids["Checking"])
	}
}

func TestResolver_SkipsEmptyNames(t *testing.T) {
	store := memory.NewAccountStore()
	r := NewAccountResolver(store, zap.NewNop())

	ids, err := r.Resolve(context.Background(), "u1", rowsFor("", "Checking"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if _, ok := ids[""]; ok {
		t.Error("empty account name must not be resolved")
	}
	if ids["Checking"] == "" {
		t.Error("named account must be resolved")
	}
}

// racingAccountStore simulates a concurrent import winning the create race:
// the first batched insert fails with a duplicate error after another
// writer sneaks the accounts in.
type racingAccountStore struct {
	*memory.AccountStore
	raced bool
}

func (s *racingAccountStore) CreateAccounts(ctx context.Context, accounts []domain.Account) error {
	if !s.raced {
		s.raced = true
		concurrent := make([]domain.Account, len(accounts))
		for i, a := range accounts {
			a.ID = "concurrent-" + a.Name
			concurrent[i] = a
		}
		if err := s.AccountStore.CreateAccounts(ctx, concurrent); err != nil {
			return err
		}
		return &domain.ErrDuplicate{Key: accounts[0].Name}
	}
	return s.AccountStore.CreateAccounts(ctx, accounts)
}

func TestResolver_SurvivesCreateRace(t *testing.T) {
	store := &racingAccountStore{AccountStore: memory.NewAccountStore()}
	r := NewAccountResolver(store, zap.NewNop())

	ids, err := r.Resolve(context.Background(), "u1", rowsFor("Checking", "Savings"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if ids["Checking"] != "concurrent-Checking" {
		t.Errorf("expected the concurrently created id, got %q", ids["Checking"])
	}
	if ids["Savings"] != "concurrent-Savings" {
		t.Errorf("expected the concurrently created id, got %q", ids["Savings"])
	}
}
