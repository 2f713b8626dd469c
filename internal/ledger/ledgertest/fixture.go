// Package ledgertest builds a seeded in-memory ledger for tests.
package ledgertest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/simonkvalheim/fjord-ledger/internal/bootstrap"
	"github.com/simonkvalheim/fjord-ledger/internal/clock"
	"github.com/simonkvalheim/fjord-ledger/internal/ledger"
	"github.com/simonkvalheim/fjord-ledger/internal/model"
	"github.com/simonkvalheim/fjord-ledger/internal/repository"
)

// Now is the default fixture time
var Now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

// Fixture wires a ledger over a seeded MemoryStore. The clock reads Current,
// which tests may move.
type Fixture struct {
	Store    *repository.MemoryStore
	Clock    clock.Clock
	Current  time.Time
	Ledger   *ledger.Ledger
	Recorder *ledger.Recorder
	Service  *ledger.Service
	Logger   *zap.Logger
}

// New creates a Fixture at Now
func New(t *testing.T) *Fixture {
	t.Helper()
	f := &Fixture{
		Store:   repository.NewMemoryStore(),
		Current: Now,
		Logger:  zap.NewNop(),
	}
	f.Clock = clock.Func(func() time.Time { return f.Current })
	require.NoError(t, bootstrap.Initialize(context.Background(), f.Store, f.Logger))

	f.Ledger = ledger.New()
	f.Recorder = ledger.NewRecorder(f.Clock, time.UTC, nil, f.Logger)
	f.Service = ledger.NewService(f.Store, f.Ledger, f.Recorder, f.Clock, f.Logger)
	return f
}

// Admin is a principal with administrator rights
var Admin = model.Principal{Admin: true}

// User creates a user and returns its principal
func (f *Fixture) User(t *testing.T) model.Principal {
	t.Helper()
	id := uuid.New()
	err := f.Store.WithTx(context.Background(), func(ctx context.Context, q repository.Querier) error {
		return q.CreateUser(ctx, &model.User{
			ID:        id,
			Email:     id.String() + "@example.com",
			FullName:  "Test User",
			Role:      model.RoleUser,
			CreatedAt: f.Current,
		})
	})
	require.NoError(t, err)
	return model.Principal{UserID: id}
}

// Account opens a Checking account for owner holding balance
func (f *Fixture) Account(t *testing.T, owner model.Principal, balance string) *model.Account {
	t.Helper()
	var account *model.Account
	err := f.Store.WithTx(context.Background(), func(ctx context.Context, q repository.Querier) error {
		var err error
		account, err = ledger.OpenAccount(ctx, q, f.Clock, owner.UserID, model.AccountTypeChecking)
		if err != nil {
			return err
		}
		account.Balance = decimal.RequireFromString(balance)
		return q.UpdateBalance(ctx, account.ID, account.Balance)
	})
	require.NoError(t, err)
	return account
}

// Get reloads an account
func (f *Fixture) Get(t *testing.T, id uuid.UUID) *model.Account {
	t.Helper()
	account, err := f.Service.GetAccount(context.Background(), Admin, id)
	require.NoError(t, err)
	return account
}

// Balance returns the balance of an account at storage scale
func (f *Fixture) Balance(t *testing.T, id uuid.UUID) string {
	t.Helper()
	return f.Get(t, id).Balance.StringFixed(2)
}

// Transactions returns every record of an account, or none
func (f *Fixture) Transactions(t *testing.T, accountID uuid.UUID) []model.TransactionRecord {
	t.Helper()
	records, err := repository.Get(context.Background(), f.Store, func(ctx context.Context, q repository.Querier) ([]model.TransactionRecord, error) {
		return q.QueryTransactions(ctx, model.TransactionFilter{AccountID: &accountID}, time.UTC)
	})
	require.NoError(t, err)
	return records
}

// LoadUser reloads a user
func (f *Fixture) LoadUser(t *testing.T, id uuid.UUID) *model.User {
	t.Helper()
	user, err := repository.Get(context.Background(), f.Store, func(ctx context.Context, q repository.Querier) (*model.User, error) {
		return q.GetUserByID(ctx, id)
	})
	require.NoError(t, err)
	return user
}
