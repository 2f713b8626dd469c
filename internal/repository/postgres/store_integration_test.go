//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"

	"github.com/simonkvalheim/fjord-ledger/internal/auth"
	"github.com/simonkvalheim/fjord-ledger/internal/bootstrap"
	"github.com/simonkvalheim/fjord-ledger/internal/clock"
	"github.com/simonkvalheim/fjord-ledger/internal/ledger"
	"github.com/simonkvalheim/fjord-ledger/internal/model"
	"github.com/simonkvalheim/fjord-ledger/internal/processor"
	"github.com/simonkvalheim/fjord-ledger/internal/repository"
	"github.com/simonkvalheim/fjord-ledger/internal/repository/postgres"
	"github.com/simonkvalheim/fjord-ledger/internal/scheduler"
)

var day = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

// startStore runs a migrated and seeded Postgres in a container
func startStore(t *testing.T) *postgres.Store {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("fjorddb"),
		tcpostgres.WithUsername("fjord"),
		tcpostgres.WithPassword("fjordpass"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := zap.NewNop()
	require.NoError(t, postgres.RunMigrations(logger, url))
	// A second run finds nothing to apply
	require.NoError(t, postgres.RunMigrations(logger, url))

	pool, err := postgres.Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := postgres.NewStore(pool)
	require.NoError(t, bootstrap.Initialize(ctx, store, logger))
	require.NoError(t, bootstrap.Initialize(ctx, store, logger))
	return store
}

func TestPostgresLedger(t *testing.T) {
	store := startStore(t)
	ctx := context.Background()
	logger := zap.NewNop()
	c := clock.Fixed(day)

	authSvc := auth.NewService(auth.DefaultConfig("integration-secret"), store, c, logger)
	user, err := authSvc.Register(ctx, model.RegisterRequest{Email: "kari@fjord.no", Password: "Passw0rdX", FullName: "Kari Nordmann"})
	require.NoError(t, err)
	_, err = authSvc.Register(ctx, model.RegisterRequest{Email: "KARI@fjord.no", Password: "Passw0rdX", FullName: "Kari Nordmann"})
	assert.ErrorIs(t, err, model.ErrEmailAlreadyExists)

	l := ledger.New()
	recorder := ledger.NewRecorder(c, time.UTC, nil, logger)
	accounts := ledger.NewService(store, l, recorder, c, logger)
	p := model.Principal{UserID: user.ID}

	from, err := accounts.CreateStandardAccount(ctx, user.ID)
	require.NoError(t, err)
	to, err := accounts.CreateStandardAccount(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, from.IBAN, to.IBAN)

	_, err = accounts.Deposit(ctx, p, model.AccountOperationRequest{IBAN: from.IBAN, Amount: decimal.RequireFromString("100")})
	require.NoError(t, err)

	transfers := processor.NewTransferProcessor(store, l, recorder, c, logger)
	_, err = transfers.Transfer(ctx, p, model.TransferRequest{FromIBAN: from.IBAN, ToIBAN: to.IBAN, Amount: decimal.RequireFromString("40")})
	require.NoError(t, err)

	_, err = transfers.Transfer(ctx, p, model.TransferRequest{FromIBAN: from.IBAN, ToIBAN: to.IBAN, Amount: decimal.RequireFromString("60")})
	assert.ErrorIs(t, err, model.ErrInsufficientFunds)

	got, err := accounts.GetAccount(ctx, p, from.ID)
	require.NoError(t, err)
	assert.Equal(t, "59.00", got.Balance.StringFixed(2))

	on := clock.Date(day)
	records, err := accounts.QueryTransactions(ctx, p, model.TransactionFilter{AccountID: &from.ID, On: &on})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	before := on
	_, err = accounts.QueryTransactions(ctx, p, model.TransactionFilter{AccountID: &from.ID, Before: &before})
	assert.ErrorIs(t, err, model.ErrNoRecords)

	jobs := scheduler.NewJobs(store, l, recorder, c, nil, logger)
	sched := scheduler.New(jobs.All(), scheduler.Options{Clock: c, Logger: logger})

	report, err := sched.RunJob(ctx, scheduler.JobMonthlyFee)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)

	report, err = sched.RunJob(ctx, scheduler.JobMonthlyFee)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Processed)
	assert.Equal(t, 2, report.Skipped)

	got, err = accounts.GetAccount(ctx, p, from.ID)
	require.NoError(t, err)
	assert.Equal(t, "56.50", got.Balance.StringFixed(2))
}

func TestPostgresRollback(t *testing.T) {
	store := startStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(ctx context.Context, q repository.Querier) error {
		claimed, err := q.ClaimJobRun(ctx, "monthly-fee", "2026-10/rollback", day)
		require.NoError(t, err)
		require.True(t, claimed)
		return model.ErrInsufficientFunds
	})
	require.ErrorIs(t, err, model.ErrInsufficientFunds)

	// The failed transaction released its claim
	err = store.WithTx(ctx, func(ctx context.Context, q repository.Querier) error {
		claimed, err := q.ClaimJobRun(ctx, "monthly-fee", "2026-10/rollback", day)
		if err != nil {
			return err
		}
		assert.True(t, claimed)
		return nil
	})
	require.NoError(t, err)
}
