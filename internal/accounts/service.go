// Package accounts looks up the chart of accounts and the bank accounts
// mapped onto it.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/bankrec/internal/apperr"
	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
)

// ChartPath is the chart-of-accounts file relative to a workspace root.
const ChartPath = "accounts/chart-of-accounts.csv"

// Service provides lookup over an organization's chart of accounts.
type Service struct {
	db  *store.DB
	log zerolog.Logger
}

// NewService creates a Service.
func NewService(db *store.DB, log zerolog.Logger) *Service {
	return &Service{db: db, log: log.With().Str("service", "accounts").Logger()}
}

// Lookup resolves an account on q, mapping a missing row to a NotFoundError.
// Use it from inside a store transaction.
func Lookup(ctx context.Context, q *store.Queries, orgID, accountID string) (model.Account, error) {
	a, err := q.GetAccount(ctx, orgID, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Account{}, apperr.NotFound("account", accountID)
	}
	return a, err
}

// LookupBankAccount resolves a bank account owned by orgID on q.
func LookupBankAccount(ctx context.Context, q *store.Queries, orgID, bankAccountID string) (model.BankAccount, error) {
	b, err := q.GetBankAccount(ctx, bankAccountID)
	if errors.Is(err, store.ErrNotFound) {
		return model.BankAccount{}, apperr.NotFound("bank account", bankAccountID)
	}
	if err != nil {
		return model.BankAccount{}, err
	}
	if err := apperr.CheckOwner("bank account", bankAccountID, b.OrgID, orgID); err != nil {
		return model.BankAccount{}, err
	}
	return b, nil
}

// Get returns an account by ID.
func (s *Service) Get(ctx context.Context, orgID, accountID string) (model.Account, error) {
	return Lookup(ctx, s.db.Queries(), orgID, accountID)
}

// Exists reports whether an account ID exists.
func (s *Service) Exists(ctx context.Context, orgID, accountID string) (bool, error) {
	_, err := s.Get(ctx, orgID, accountID)
	if apperr.Is(err, apperr.KindNotFound) {
		return false, nil
	}
	return err == nil, err
}

// List returns all accounts ordered by code.
func (s *Service) List(ctx context.Context, orgID string) ([]model.Account, error) {
	return s.db.Queries().ListAccounts(ctx, orgID)
}

// ByType returns all accounts of the given type.
func (s *Service) ByType(ctx context.Context, orgID string, accountType model.AccountType) ([]model.Account, error) {
	all, err := s.List(ctx, orgID)
	if err != nil {
		return nil, err
	}
	var result []model.Account
	for _, a := range all {
		if a.Type == accountType {
			result = append(result, a)
		}
	}
	return result, nil
}

// DisplayName returns "code name" for an account, or the bare code when the
// account is unknown.
func (s *Service) DisplayName(ctx context.Context, orgID, accountID string) string {
	a, err := s.Get(ctx, orgID, accountID)
	if err != nil {
		return accountID
	}
	return a.DisplayName()
}

// BankAccount returns a bank account owned by orgID.
func (s *Service) BankAccount(ctx context.Context, orgID, bankAccountID string) (model.BankAccount, error) {
	return LookupBankAccount(ctx, s.db.Queries(), orgID, bankAccountID)
}

// BankAccounts lists the organization's bank accounts.
func (s *Service) BankAccounts(ctx context.Context, orgID string) ([]model.BankAccount, error) {
	return s.db.Queries().ListBankAccounts(ctx, orgID)
}

// BankGLAccount returns the chart account a bank account posts to.
func (s *Service) BankGLAccount(ctx context.Context, orgID, bankAccountID string) (model.Account, error) {
	b, err := s.BankAccount(ctx, orgID, bankAccountID)
	if err != nil {
		return model.Account{}, err
	}
	return s.Get(ctx, orgID, b.GLAccountID)
}

// RegisterBankAccount creates a bank account, or leaves an existing one with
// the same id untouched. Its GL account must be in the chart.
func (s *Service) RegisterBankAccount(ctx context.Context, orgID string, b model.BankAccount) error {
	return s.db.WithTx(ctx, func(q *store.Queries) error {
		if _, err := Lookup(ctx, q, orgID, b.GLAccountID); err != nil {
			return err
		}
		existing, err := q.GetBankAccount(ctx, b.ID)
		if err == nil {
			return apperr.CheckOwner("bank account", b.ID, existing.OrgID, orgID)
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		b.OrgID = orgID
		return q.InsertBankAccount(ctx, b)
	})
}

// Seed upserts accounts into the organization's chart.
func (s *Service) Seed(ctx context.Context, orgID string, accts []model.Account) error {
	err := s.db.WithTx(ctx, func(q *store.Queries) error {
		for _, a := range accts {
			a.OrgID = orgID
			if err := q.UpsertAccount(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("org", orgID).Int("accounts", len(accts)).Msg("chart of accounts updated")
	return nil
}

// Import reads chart-of-accounts.csv under root and seeds it.
func (s *Service) Import(ctx context.Context, orgID, root string) (int, error) {
	path := filepath.Join(root, ChartPath)
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening chart of accounts: %w", err)
	}
	defer f.Close()

	accts, err := ReadAccounts(f)
	if err != nil {
		return 0, fmt.Errorf("reading chart of accounts: %w", err)
	}
	if err := s.Seed(ctx, orgID, accts); err != nil {
		return 0, err
	}
	return len(accts), nil
}

// Save writes the chart of accounts to accounts/chart-of-accounts.csv.
func (s *Service) Save(ctx context.Context, orgID, root string) error {
	accts, err := s.List(ctx, orgID)
	if err != nil {
		return err
	}

	path := filepath.Join(root, ChartPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating accounts dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating chart of accounts file: %w", err)
	}
	defer f.Close()

	if err := WriteAccounts(f, accts); err != nil {
		return fmt.Errorf("writing chart of accounts: %w", err)
	}
	return nil
}
