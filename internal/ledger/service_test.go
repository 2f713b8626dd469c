package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/simonkvalheim/fjord-ledger/internal/bootstrap"
	"github.com/simonkvalheim/fjord-ledger/internal/clock"
	"github.com/simonkvalheim/fjord-ledger/internal/model"
	"github.com/simonkvalheim/fjord-ledger/internal/repository"
)

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	store *repository.MemoryStore
	svc   *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := repository.NewMemoryStore()
	require.NoError(t, bootstrap.Initialize(context.Background(), store, zap.NewNop()))

	c := clock.Fixed(testNow)
	recorder := NewRecorder(c, time.UTC, nil, zap.NewNop())
	return &testEnv{
		store: store,
		svc:   NewService(store, New(), recorder, c, zap.NewNop()),
	}
}

func (e *testEnv) user(t *testing.T) model.Principal {
	t.Helper()
	id := uuid.New()
	err := e.store.WithTx(context.Background(), func(ctx context.Context, q repository.Querier) error {
		return q.CreateUser(ctx, &model.User{
			ID:       id,
			Email:    id.String() + "@example.com",
			FullName: "Test User",
			Role:     model.RoleUser,
		})
	})
	require.NoError(t, err)
	return model.Principal{UserID: id}
}

func (e *testEnv) fundedAccount(t *testing.T, owner model.Principal, amount string) *model.Account {
	t.Helper()
	ctx := context.Background()
	account, err := e.svc.CreateStandardAccount(ctx, owner.UserID)
	require.NoError(t, err)
	if amount == "0" {
		return account
	}
	res, err := e.svc.Deposit(ctx, owner, model.AccountOperationRequest{
		IBAN:   account.IBAN,
		Amount: decimal.RequireFromString(amount),
		Reason: "initial",
	})
	require.NoError(t, err)
	return res.Account
}

func (e *testEnv) balance(t *testing.T, id uuid.UUID) string {
	t.Helper()
	account, err := e.svc.GetAccount(context.Background(), model.Principal{Admin: true}, id)
	require.NoError(t, err)
	return account.Balance.StringFixed(2)
}

func TestCreateStandardAccount(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t)

	account, err := env.svc.CreateStandardAccount(context.Background(), owner.UserID)
	require.NoError(t, err)

	assert.True(t, ValidIBAN(account.IBAN))
	assert.Equal(t, model.AccountKindStandard, account.Kind)
	assert.Equal(t, model.AccountTypeChecking, account.Type.Name)
	assert.True(t, account.Balance.IsZero())

	_, err = env.svc.CreateStandardAccount(context.Background(), uuid.New())
	assert.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestDepositAndWithdraw(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.user(t)
	account := env.fundedAccount(t, owner, "100")

	res, err := env.svc.Withdraw(ctx, owner, model.AccountOperationRequest{
		IBAN:   account.IBAN,
		Amount: decimal.NewFromInt(50),
		Reason: "cash",
	})
	require.NoError(t, err)

	assert.Equal(t, "1.00", res.Fee.StringFixed(2))
	assert.Equal(t, "49.00", res.Account.Balance.StringFixed(2))
	assert.Equal(t, model.TransactionTypeWithdraw, res.Transaction.Type)
	assert.Equal(t, "50.00", res.Transaction.Amount.StringFixed(2))
	assert.Equal(t, "49.00", env.balance(t, account.ID))
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.user(t)
	account := env.fundedAccount(t, owner, "10")

	// 10 + fee 1 exceeds the balance
	_, err := env.svc.Withdraw(ctx, owner, model.AccountOperationRequest{
		IBAN:   account.IBAN,
		Amount: decimal.NewFromInt(10),
	})
	assert.ErrorIs(t, err, model.ErrInsufficientFunds)
	assert.Equal(t, model.KindInsufficientFunds, model.KindOf(err))
	assert.Equal(t, "10.00", env.balance(t, account.ID))

	filter := model.TransactionFilter{AccountID: &account.ID, Type: model.TransactionTypeWithdraw}
	_, err = env.svc.QueryTransactions(ctx, owner, filter)
	assert.ErrorIs(t, err, model.ErrNoRecords)
}

func TestLedgerPrimitives(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t)
	account := env.fundedAccount(t, owner, "10")
	l := New()

	tests := []struct {
		name    string
		op      func(ctx context.Context, q repository.Querier) error
		wantErr error
		balance string
	}{
		{
			name: "withdraw more than balance",
			op: func(ctx context.Context, q repository.Querier) error {
				_, _, err := l.Withdraw(ctx, q, account.ID, decimal.NewFromInt(20))
				return err
			},
			wantErr: model.ErrInsufficientFunds,
			balance: "10.00",
		},
		{
			name: "debit exact balance",
			op: func(ctx context.Context, q repository.Querier) error {
				_, err := l.Debit(ctx, q, account.ID, decimal.NewFromInt(10))
				return err
			},
			balance: "0.00",
		},
		{
			name: "debit empty account",
			op: func(ctx context.Context, q repository.Querier) error {
				_, err := l.Debit(ctx, q, account.ID, decimal.RequireFromString("0.01"))
				return err
			},
			wantErr: model.ErrInsufficientFunds,
			balance: "0.00",
		},
		{
			name: "deposit zero",
			op: func(ctx context.Context, q repository.Querier) error {
				_, err := l.Deposit(ctx, q, account.ID, decimal.Zero)
				return err
			},
			wantErr: model.ErrInvalidAmount,
			balance: "0.00",
		},
		{
			name: "deposit unknown account",
			op: func(ctx context.Context, q repository.Querier) error {
				_, err := l.Deposit(ctx, q, uuid.New(), decimal.NewFromInt(1))
				return err
			},
			wantErr: model.ErrAccountNotFound,
			balance: "0.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.store.WithTx(context.Background(), tt.op)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.balance, env.balance(t, account.ID))
		})
	}
}

func TestLedgerRejectsFixedTermAccount(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t)
	id := uuid.New()

	err := env.store.WithTx(context.Background(), func(ctx context.Context, q repository.Querier) error {
		cd, err := q.GetAccountTypeByName(ctx, model.AccountTypeCertificate)
		if err != nil {
			return err
		}
		return q.CreateAccount(ctx, &model.Account{
			ID:      id,
			IBAN:    "NO9386011117947",
			Balance: decimal.NewFromInt(1000),
			OwnerID: owner.UserID,
			Kind:    model.AccountKindFixedTerm,
			Type:    *cd,
			Term:    &model.FixedTerm{PeriodYears: 1},
		})
	})
	require.NoError(t, err)

	err = env.store.WithTx(context.Background(), func(ctx context.Context, q repository.Querier) error {
		_, err := New().Deposit(ctx, q, id, decimal.NewFromInt(10))
		return err
	})
	assert.ErrorIs(t, err, model.ErrAccountNotStandard)
}

func TestOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.user(t)
	stranger := env.user(t)
	account := env.fundedAccount(t, owner, "100")

	_, err := env.svc.Deposit(ctx, stranger, model.AccountOperationRequest{IBAN: account.IBAN, Amount: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, model.ErrNotAccountOwner)
	assert.Equal(t, model.KindUnauthorized, model.KindOf(err))

	_, err = env.svc.GetAccount(ctx, stranger, account.ID)
	assert.ErrorIs(t, err, model.ErrNotAccountOwner)

	_, err = env.svc.ListAccounts(ctx, stranger, owner.UserID)
	assert.ErrorIs(t, err, model.ErrNotAccountOwner)

	_, err = env.svc.GetAccountByIBAN(ctx, owner, account.IBAN)
	assert.ErrorIs(t, err, model.ErrAdminRequired)

	found, err := env.svc.GetAccountByIBAN(ctx, model.Principal{Admin: true}, account.IBAN)
	require.NoError(t, err)
	assert.Equal(t, account.ID, found.ID)

	accounts, err := env.svc.ListAccounts(ctx, owner, owner.UserID)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func TestQueryTransactions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.user(t)
	account := env.fundedAccount(t, owner, "100")

	day := func(s string) *time.Time {
		d, err := time.Parse(model.DateLayout, s)
		require.NoError(t, err)
		return &d
	}

	tests := []struct {
		name      string
		principal model.Principal
		filter    model.TransactionFilter
		want      int
		wantErr   error
	}{
		{
			name:      "own account",
			principal: owner,
			filter:    model.TransactionFilter{AccountID: &account.ID},
			want:      1,
		},
		{
			name:      "on the day",
			principal: owner,
			filter:    model.TransactionFilter{AccountID: &account.ID, On: day("2026-10-19")},
			want:      1,
		},
		{
			name:      "before the day",
			principal: owner,
			filter:    model.TransactionFilter{AccountID: &account.ID, Before: day("2026-10-19")},
			wantErr:   model.ErrNoRecords,
		},
		{
			name:      "after the previous day",
			principal: owner,
			filter:    model.TransactionFilter{AccountID: &account.ID, After: day("2026-10-18")},
			want:      1,
		},
		{
			name:      "on combined with before",
			principal: owner,
			filter:    model.TransactionFilter{AccountID: &account.ID, On: day("2026-10-19"), Before: day("2026-10-20")},
			wantErr:   model.ErrInvalidDateFilter,
		},
		{
			name:      "invalid filter without account id",
			principal: owner,
			filter:    model.TransactionFilter{On: day("2026-10-19"), Before: day("2026-10-20")},
			wantErr:   model.ErrInvalidDateFilter,
		},
		{
			name:      "invalid filter on foreign account",
			principal: model.Principal{UserID: uuid.New()},
			filter:    model.TransactionFilter{AccountID: &account.ID, Type: model.TransactionTypeDeposit, On: day("2026-10-19"), After: day("2026-10-18")},
			wantErr:   model.ErrInvalidDateFilter,
		},
		{
			name:      "user without account id",
			principal: owner,
			filter:    model.TransactionFilter{},
			wantErr:   model.ErrNotAccountOwner,
		},
		{
			name:      "user on foreign account",
			principal: model.Principal{UserID: uuid.New()},
			filter:    model.TransactionFilter{AccountID: &account.ID},
			wantErr:   model.ErrNotAccountOwner,
		},
		{
			name:      "admin without account id",
			principal: model.Principal{Admin: true},
			filter:    model.TransactionFilter{Type: model.TransactionTypeDeposit},
			want:      1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := env.svc.QueryTransactions(ctx, tt.principal, tt.filter)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, records, tt.want)
		})
	}
}

func TestEnsureStandardAccount(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t)

	var first, second *model.Account
	err := env.store.WithTx(context.Background(), func(ctx context.Context, q repository.Querier) error {
		var err error
		if first, err = env.svc.EnsureStandardAccount(ctx, q, owner.UserID); err != nil {
			return err
		}
		second, err = env.svc.EnsureStandardAccount(ctx, q, owner.UserID)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}
