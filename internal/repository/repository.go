// Package repository defines the persistence contract of the ledger and an
// in-memory implementation of it.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simonkvalheim/fjord-ledger/internal/model"
)

// Querier is the set of queries and writes the ledger needs from storage.
// Every method returns the model's NotFound sentinel when a single-row lookup
// finds nothing.
type Querier interface {
	// Accounts
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccountByID(ctx context.Context, id uuid.UUID) (*model.Account, error)
	GetAccountByIBAN(ctx context.Context, iban string) (*model.Account, error)
	// LockAccount loads the account and holds an exclusive lock on it until
	// the surrounding transaction ends.
	LockAccount(ctx context.Context, id uuid.UUID) (*model.Account, error)
	ListAccountsByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Account, error)
	FindAccountByOwnerAndType(ctx context.Context, ownerID uuid.UUID, typeName string) (*model.Account, error)
	ListStandardAccounts(ctx context.Context) ([]model.Account, error)
	ListFixedTermAccounts(ctx context.Context) ([]model.Account, error)
	// ListFixedTermAccountsExpiringBy returns CD accounts whose expiration
	// date is on or before day.
	ListFixedTermAccountsExpiringBy(ctx context.Context, day time.Time) ([]model.Account, error)
	UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error
	// ConvertToStandard turns a fixed-term account into a standard account of
	// the given type, keeping its id and IBAN.
	ConvertToStandard(ctx context.Context, id uuid.UUID, accountType model.AccountType, balance decimal.Decimal) error

	// Reference data
	GetAccountTypeByName(ctx context.Context, name string) (*model.AccountType, error)
	ListAccountTypes(ctx context.Context) ([]model.AccountType, error)
	UpsertAccountType(ctx context.Context, t *model.AccountType) error
	GetLoanTypeByName(ctx context.Context, name string) (*model.LoanType, error)
	ListLoanTypes(ctx context.Context) ([]model.LoanType, error)
	UpsertLoanType(ctx context.Context, t *model.LoanType) error

	// Transactions
	CreateTransaction(ctx context.Context, rec *model.TransactionRecord) error
	QueryTransactions(ctx context.Context, filter model.TransactionFilter, loc *time.Location) ([]model.TransactionRecord, error)

	// Loans
	CreateLoan(ctx context.Context, loan *model.Loan) error
	GetLoanByID(ctx context.Context, id uuid.UUID) (*model.Loan, error)
	LockLoan(ctx context.Context, id uuid.UUID) (*model.Loan, error)
	ListLoans(ctx context.Context) ([]model.Loan, error)
	ListLoansByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Loan, error)
	// ListLoansInstallmentDueBy returns loans whose next installment date is
	// on or before day and that still have installments to charge.
	ListLoansInstallmentDueBy(ctx context.Context, day time.Time) ([]model.Loan, error)
	// ListLoansMaturedBy returns loans whose due date is on or before day.
	ListLoansMaturedBy(ctx context.Context, day time.Time) ([]model.Loan, error)
	UpdateLoan(ctx context.Context, loan *model.Loan) error
	DeleteLoan(ctx context.Context, id uuid.UUID) error

	// Users
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	LockUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	SetHasLoan(ctx context.Context, id uuid.UUID, hasLoan bool) error

	// ClaimJobRun records that (job, key) has run. It returns false when the
	// pair was already claimed by an earlier committed transaction.
	ClaimJobRun(ctx context.Context, job, key string, at time.Time) (bool, error)
}

// TxFunc is the body of a storage transaction
type TxFunc func(ctx context.Context, q Querier) error

// Store runs transactions against storage. Everything done through q inside
// fn commits atomically when fn returns nil and is discarded otherwise.
type Store interface {
	WithTx(ctx context.Context, fn TxFunc) error
}

// Get runs fn in a transaction and returns its result
func Get[T any](ctx context.Context, s Store, fn func(ctx context.Context, q Querier) (T, error)) (T, error) {
	var out T
	err := s.WithTx(ctx, func(ctx context.Context, q Querier) error {
		var err error
		out, err = fn(ctx, q)
		return err
	})
	return out, err
}
