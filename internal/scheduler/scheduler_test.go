package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonkvalheim/fjord-ledger/internal/cdaccount"
	"github.com/simonkvalheim/fjord-ledger/internal/ledger/ledgertest"
	"github.com/simonkvalheim/fjord-ledger/internal/loan"
	"github.com/simonkvalheim/fjord-ledger/internal/model"
	"github.com/simonkvalheim/fjord-ledger/internal/repository"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type testEnv struct {
	f     *ledgertest.Fixture
	sched *Scheduler
	loans *loan.Service
	cds   *cdaccount.Service
}

func newTestEnv(t *testing.T) *testEnv {
	f := ledgertest.New(t)
	jobs := NewJobs(f.Store, f.Ledger, f.Recorder, f.Clock, nil, f.Logger)
	return &testEnv{
		f:     f,
		sched: New(jobs.All(), Options{Clock: f.Clock, Logger: f.Logger}),
		loans: loan.NewService(f.Store, f.Service, f.Ledger, f.Recorder, f.Clock, f.Logger),
		cds:   cdaccount.NewService(f.Store, f.Ledger, f.Recorder, f.Clock, f.Logger),
	}
}

func (e *testEnv) run(t *testing.T, job string, today time.Time) Report {
	t.Helper()
	report, err := e.sched.RunJobOn(context.Background(), job, today)
	require.NoError(t, err)
	return report
}

func (e *testEnv) applyForLoan(t *testing.T, owner model.Principal, amount string, months int) *loan.ApplyResult {
	t.Helper()
	res, err := e.loans.ApplyForLoan(context.Background(), owner, model.LoanApplicationRequest{
		LoanCalculationRequest: model.LoanCalculationRequest{
			LoanType:     model.LoanTypeConsumer,
			Amount:       decimal.RequireFromString(amount),
			PeriodMonths: months,
		},
		Salary: decimal.NewFromInt(5000),
	})
	require.NoError(t, err)
	return res
}

func (e *testEnv) setBalance(t *testing.T, id uuid.UUID, balance string) {
	t.Helper()
	err := e.f.Store.WithTx(context.Background(), func(ctx context.Context, q repository.Querier) error {
		return q.UpdateBalance(ctx, id, decimal.RequireFromString(balance))
	})
	require.NoError(t, err)
}

func (e *testEnv) loan(t *testing.T, id uuid.UUID) *model.Loan {
	t.Helper()
	l, err := e.loans.Get(context.Background(), ledgertest.Admin, id)
	require.NoError(t, err)
	return l
}

func TestRunJobUnknown(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.sched.RunJob(context.Background(), "interest-accrual")
	assert.ErrorIs(t, err, model.ErrUnknownJob)
}

func TestEmptyPopulation(t *testing.T) {
	e := newTestEnv(t)

	for _, name := range JobNames {
		t.Run(name, func(t *testing.T) {
			report := e.run(t, name, day(2026, 10, 19))
			assert.True(t, report.OK())
			assert.Equal(t, 0, report.Selected)
			assert.Equal(t, name, report.Job)
		})
	}
}

func TestMonthlyFee(t *testing.T) {
	e := newTestEnv(t)
	owner := e.f.User(t)
	rich := e.f.Account(t, owner, "100")
	poor := e.f.Account(t, owner, "1")

	report := e.run(t, JobMonthlyFee, day(2026, 10, 19))
	assert.Equal(t, 2, report.Selected)
	assert.Equal(t, 1, report.Processed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, poor.ID, report.Failures[0].EntityID)
	assert.ErrorIs(t, report.Failures[0].Err, model.ErrInsufficientFunds)

	assert.Equal(t, "97.50", e.f.Balance(t, rich.ID))
	assert.Equal(t, "1.00", e.f.Balance(t, poor.ID))

	records := e.f.Transactions(t, rich.ID)
	require.Len(t, records, 1)
	assert.Equal(t, model.TransactionTypeMonthlyFee, records[0].Type)
	assert.Equal(t, model.ReasonMonthlyFee, records[0].Reason)
	assert.Equal(t, "2.50", records[0].Amount.StringFixed(2))
	assert.Empty(t, e.f.Transactions(t, poor.ID))

	// Same month: the charged account is skipped, the failed one is retried
	report = e.run(t, JobMonthlyFee, day(2026, 10, 31))
	assert.Equal(t, 0, report.Processed)
	assert.Equal(t, 1, report.Skipped)
	assert.Len(t, report.Failures, 1)
	assert.Equal(t, "97.50", e.f.Balance(t, rich.ID))

	e.setBalance(t, poor.ID, "10")
	report = e.run(t, JobMonthlyFee, day(2026, 10, 31))
	assert.True(t, report.OK())
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, "7.50", e.f.Balance(t, poor.ID))

	// Next month charges again
	report = e.run(t, JobMonthlyFee, day(2026, 11, 1))
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, "95.00", e.f.Balance(t, rich.ID))
	assert.Equal(t, "5.00", e.f.Balance(t, poor.ID))
}

func TestMonthlyFeeNotCarriedOver(t *testing.T) {
	e := newTestEnv(t)
	owner := e.f.User(t)
	account := e.f.Account(t, owner, "1")

	report := e.run(t, JobMonthlyFee, day(2026, 10, 1))
	require.Len(t, report.Failures, 1)
	assert.ErrorIs(t, report.Failures[0].Err, model.ErrInsufficientFunds)

	// Funded only after October ended: November charges its own fee only
	e.setBalance(t, account.ID, "10")
	report = e.run(t, JobMonthlyFee, day(2026, 11, 1))
	assert.True(t, report.OK())
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, "7.50", e.f.Balance(t, account.ID))
	assert.Len(t, e.f.Transactions(t, account.ID), 1)

	// October stays unclaimed, so a rerun dated in October would still charge it
	report = e.run(t, JobMonthlyFee, day(2026, 10, 31))
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, "5.00", e.f.Balance(t, account.ID))
}

func TestMonthlyFeeSkipsFixedTermAccounts(t *testing.T) {
	e := newTestEnv(t)
	owner := e.f.User(t)

	cd, err := e.cds.Create(context.Background(), owner, model.CreateFixedTermRequest{
		Amount:      decimal.NewFromInt(1000),
		PeriodYears: 2,
	})
	require.NoError(t, err)

	report := e.run(t, JobMonthlyFee, day(2026, 10, 19))
	assert.Equal(t, 0, report.Selected)
	assert.Equal(t, "1000.00", e.f.Balance(t, cd.ID))
}

func TestLoanInstallment(t *testing.T) {
	e := newTestEnv(t)
	owner := e.f.User(t)
	res := e.applyForLoan(t, owner, "20000", 120)
	accountID := res.Account.ID

	report := e.run(t, JobLoanInstallment, day(2026, 11, 18))
	assert.Equal(t, 0, report.Selected)

	report = e.run(t, JobLoanInstallment, day(2026, 11, 19))
	assert.True(t, report.OK())
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, "19779.92", e.f.Balance(t, accountID))

	l := e.loan(t, res.Loan.ID)
	assert.Equal(t, 1, l.InstallmentsCharged)
	assert.Equal(t, "19779.92", l.RemainingAmount.StringFixed(2))
	assert.True(t, day(2026, 12, 19).Equal(l.NextInstallmentDate))

	// Twice on the same day charges once
	report = e.run(t, JobLoanInstallment, day(2026, 11, 19))
	assert.Equal(t, 0, report.Processed)
	assert.Equal(t, "19779.92", e.f.Balance(t, accountID))

	records := e.f.Transactions(t, accountID)
	var payments int
	for _, r := range records {
		if r.Type == model.TransactionTypeLoanPayment {
			payments++
			assert.Equal(t, "220.08", r.Amount.StringFixed(2))
			assert.Equal(t, model.ReasonLoanPayment, r.Reason)
		}
	}
	assert.Equal(t, 1, payments)
}

func TestLoanInstallmentCatchUp(t *testing.T) {
	e := newTestEnv(t)
	owner := e.f.User(t)
	res := e.applyForLoan(t, owner, "20000", 120)

	report := e.run(t, JobLoanInstallment, day(2027, 1, 25))
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, "19339.76", e.f.Balance(t, res.Account.ID))

	l := e.loan(t, res.Loan.ID)
	assert.Equal(t, 3, l.InstallmentsCharged)
	assert.True(t, day(2027, 2, 19).Equal(l.NextInstallmentDate))

	report = e.run(t, JobLoanInstallment, day(2027, 1, 25))
	assert.Equal(t, 0, report.Selected)
}

func TestLoanInstallmentInsufficientFunds(t *testing.T) {
	e := newTestEnv(t)
	owner := e.f.User(t)
	res := e.applyForLoan(t, owner, "20000", 120)
	e.setBalance(t, res.Account.ID, "100")

	report := e.run(t, JobLoanInstallment, day(2026, 11, 19))
	require.Len(t, report.Failures, 1)
	assert.Equal(t, res.Loan.ID, report.Failures[0].EntityID)
	assert.ErrorIs(t, report.Failures[0].Err, model.ErrInsufficientFunds)
	assert.Equal(t, "100.00", e.f.Balance(t, res.Account.ID))
	assert.Equal(t, 0, e.loan(t, res.Loan.ID).InstallmentsCharged)

	// The failed installment was not claimed, so it is charged once funds arrive
	e.setBalance(t, res.Account.ID, "1000")
	report = e.run(t, JobLoanInstallment, day(2026, 11, 19))
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, "779.92", e.f.Balance(t, res.Account.ID))
}

func TestLoanLifecycle(t *testing.T) {
	e := newTestEnv(t)
	owner := e.f.User(t)
	account := e.f.Account(t, owner, "500")
	res := e.applyForLoan(t, owner, "1000", 12)
	require.Equal(t, account.ID, res.Account.ID)
	assert.Equal(t, "85.72", res.Loan.MonthlyPayment.StringFixed(2))

	due := day(2027, 10, 19)
	require.True(t, due.Equal(res.Loan.DueDate))

	// Payoff refuses a loan with missing installments
	report := e.run(t, JobLoanPayoff, due)
	require.Len(t, report.Failures, 1)
	assert.ErrorIs(t, report.Failures[0].Err, model.ErrLoanOutstanding)
	assert.True(t, e.f.LoadUser(t, owner.UserID).HasLoan)

	report = e.run(t, JobLoanInstallment, due)
	assert.Equal(t, 1, report.Processed)

	l := e.loan(t, res.Loan.ID)
	assert.Equal(t, 12, l.InstallmentsCharged)
	assert.True(t, l.RemainingAmount.IsZero())
	// 1500 - 12 * (85.72 + 5.50)
	assert.Equal(t, "405.36", e.f.Balance(t, account.ID))

	report = e.run(t, JobLoanPayoff, due)
	assert.True(t, report.OK())
	assert.Equal(t, 1, report.Processed)

	_, err := e.loans.Get(context.Background(), ledgertest.Admin, res.Loan.ID)
	assert.ErrorIs(t, err, model.ErrLoanNotFound)
	assert.False(t, e.f.LoadUser(t, owner.UserID).HasLoan)

	report = e.run(t, JobLoanPayoff, due)
	assert.Equal(t, 0, report.Selected)
}

func TestApplyInstallment(t *testing.T) {
	start := day(2026, 1, 31)
	tests := []struct {
		name          string
		charged       int
		remaining     string
		wantRemaining string
		wantNext      time.Time
	}{
		{name: "first", charged: 0, remaining: "1000", wantRemaining: "900", wantNext: day(2026, 3, 31)},
		{name: "short month", charged: 1, remaining: "900", wantRemaining: "800", wantNext: day(2026, 4, 30)},
		{name: "clamped at zero", charged: 5, remaining: "50", wantRemaining: "0", wantNext: day(2026, 8, 31)},
		{name: "last installment", charged: 11, remaining: "250", wantRemaining: "0", wantNext: day(2027, 2, 28)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &model.Loan{
				PeriodMonths:        12,
				InstallmentsCharged: tt.charged,
				RemainingAmount:     decimal.RequireFromString(tt.remaining),
				StartDate:           start,
			}
			applyInstallment(l, decimal.NewFromInt(100))
			if !l.RemainingAmount.Equal(decimal.RequireFromString(tt.wantRemaining)) {
				t.Errorf("RemainingAmount = %s, want %s", l.RemainingAmount, tt.wantRemaining)
			}
			if !l.NextInstallmentDate.Equal(tt.wantNext) {
				t.Errorf("NextInstallmentDate = %s, want %s", l.NextInstallmentDate, tt.wantNext)
			}
			if l.InstallmentsCharged != tt.charged+1 {
				t.Errorf("InstallmentsCharged = %d, want %d", l.InstallmentsCharged, tt.charged+1)
			}
		})
	}
}

func TestCDMaturity(t *testing.T) {
	e := newTestEnv(t)
	owner := e.f.User(t)

	cd, err := e.cds.Create(context.Background(), owner, model.CreateFixedTermRequest{
		Amount:      decimal.NewFromInt(1000),
		PeriodYears: 5,
	})
	require.NoError(t, err)

	report := e.run(t, JobCDMaturity, day(2031, 10, 18))
	assert.Equal(t, 0, report.Selected)

	report = e.run(t, JobCDMaturity, day(2031, 10, 19))
	assert.True(t, report.OK())
	assert.Equal(t, 1, report.Processed)

	account := e.f.Get(t, cd.ID)
	assert.False(t, account.IsFixedTerm())
	assert.Equal(t, model.AccountTypeChecking, account.Type.Name)
	assert.Equal(t, cd.IBAN, account.IBAN)
	assert.Equal(t, "1040.00", account.Balance.StringFixed(2))

	report = e.run(t, JobCDMaturity, day(2031, 10, 20))
	assert.Equal(t, 0, report.Selected)
}

func TestRunJobNeverOverlaps(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	slow := &jobFunc{name: "slow", run: func(ctx context.Context, today time.Time) Report {
		close(started)
		<-release
		return Report{Job: "slow", Day: today}
	}}
	sched := New([]Job{slow}, Options{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := sched.RunJob(context.Background(), "slow")
		assert.NoError(t, err)
	}()

	<-started
	_, err := sched.RunJob(context.Background(), "slow")
	assert.ErrorIs(t, err, model.ErrJobAlreadyRunning)

	close(release)
	wg.Wait()
}

type fakeLocker struct {
	acquired bool
	err      error
	released int
}

func (l *fakeLocker) Acquire(context.Context, string) (func(context.Context) error, bool, error) {
	if l.err != nil || !l.acquired {
		return nil, false, l.err
	}
	return func(context.Context) error {
		l.released++
		return nil
	}, true, nil
}

func TestRunJobLocker(t *testing.T) {
	noop := &jobFunc{name: "noop", run: func(_ context.Context, today time.Time) Report {
		return Report{Job: "noop", Day: today}
	}}
	lockErr := errors.New("redis unavailable")

	tests := []struct {
		name         string
		locker       *fakeLocker
		wantErr      error
		wantReleased int
	}{
		{name: "acquired", locker: &fakeLocker{acquired: true}, wantReleased: 1},
		{name: "held elsewhere", locker: &fakeLocker{}, wantErr: model.ErrJobAlreadyRunning},
		{name: "lock error", locker: &fakeLocker{err: lockErr}, wantErr: lockErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched := New([]Job{noop}, Options{Locker: tt.locker})
			_, err := sched.RunJob(context.Background(), "noop")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantReleased, tt.locker.released)
		})
	}
}

func TestStart(t *testing.T) {
	f := ledgertest.New(t)
	jobs := NewJobs(f.Store, f.Ledger, f.Recorder, f.Clock, nil, f.Logger).All()

	sched := New(jobs, Options{Clock: f.Clock, Schedule: DefaultSchedule})
	require.NoError(t, sched.Start(context.Background()))
	sched.Stop()

	bad := New(jobs, Options{Schedule: Schedule{CDMaturity: "every tuesday"}})
	assert.Error(t, bad.Start(context.Background()))
}

func TestRunOutcome(t *testing.T) {
	failure := newFailure(uuid.New(), model.ErrInsufficientFunds)
	tests := []struct {
		name   string
		report Report
		want   string
	}{
		{name: "clean", report: Report{Processed: 3}, want: "ok"},
		{name: "empty", report: Report{}, want: "ok"},
		{name: "some failed", report: Report{Processed: 1, Failures: []Failure{failure}}, want: "partial"},
		{name: "all failed", report: Report{Failures: []Failure{failure}}, want: "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := runOutcome(tt.report); got != tt.want {
				t.Errorf("runOutcome() = %s, want %s", got, tt.want)
			}
		})
	}
}
