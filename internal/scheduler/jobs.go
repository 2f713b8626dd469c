package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/simonkvalheim/fjord-ledger/internal/cdaccount"
	"github.com/simonkvalheim/fjord-ledger/internal/clock"
	"github.com/simonkvalheim/fjord-ledger/internal/ledger"
	"github.com/simonkvalheim/fjord-ledger/internal/model"
	"github.com/simonkvalheim/fjord-ledger/internal/observability"
	"github.com/simonkvalheim/fjord-ledger/internal/repository"
)

// Job names
const (
	JobCDMaturity      = "cd-maturity"
	JobMonthlyFee      = "monthly-fee"
	JobLoanInstallment = "loan-installment"
	JobLoanPayoff      = "loan-payoff"
)

// JobNames lists every job in the order a full catch-up should run them.
// Installments come before payoff so a final installment is charged before
// its loan is cleaned up.
var JobNames = []string{JobCDMaturity, JobMonthlyFee, JobLoanInstallment, JobLoanPayoff}

// Failure is one entity a job could not process
type Failure struct {
	EntityID uuid.UUID `json:"entity_id"`
	Message  string    `json:"error"`
	Err      error     `json:"-"`
}

func newFailure(id uuid.UUID, err error) Failure {
	return Failure{EntityID: id, Message: err.Error(), Err: err}
}

// Report summarizes one run of a job
type Report struct {
	Job       string        `json:"job"`
	Day       time.Time     `json:"day"`
	Selected  int           `json:"selected"`
	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped"`
	Failures  []Failure     `json:"failures,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// OK returns true when no entity failed
func (r Report) OK() bool {
	return len(r.Failures) == 0
}

// Job is one batch sweep. Run processes every entity due on or before
// today; one entity failing never stops the others.
type Job interface {
	Name() string
	Run(ctx context.Context, today time.Time) Report
}

// outcome of processing one entity
type outcome int

const (
	outcomeProcessed outcome = iota
	outcomeSkipped
)

// Jobs holds what the batch sweeps share
type Jobs struct {
	store    repository.Store
	ledger   *ledger.Ledger
	recorder *ledger.Recorder
	clock    clock.Clock
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewJobs creates the job set. A nil limiter disables pacing.
func NewJobs(store repository.Store, l *ledger.Ledger, recorder *ledger.Recorder, c clock.Clock, limiter *rate.Limiter, logger *zap.Logger) *Jobs {
	return &Jobs{
		store:    store,
		ledger:   l,
		recorder: recorder,
		clock:    c,
		limiter:  limiter,
		logger:   logger,
	}
}

// All returns the four jobs
func (j *Jobs) All() []Job {
	return []Job{
		&jobFunc{name: JobCDMaturity, run: j.cdMaturity},
		&jobFunc{name: JobMonthlyFee, run: j.monthlyFee},
		&jobFunc{name: JobLoanInstallment, run: j.loanInstallment},
		&jobFunc{name: JobLoanPayoff, run: j.loanPayoff},
	}
}

type jobFunc struct {
	name string
	run  func(ctx context.Context, today time.Time) Report
}

func (f *jobFunc) Name() string { return f.name }

func (f *jobFunc) Run(ctx context.Context, today time.Time) Report {
	return f.run(ctx, today)
}

// processFunc handles one entity inside its own transaction and returns the
// records it wrote
type processFunc func(ctx context.Context, q repository.Querier, id uuid.UUID) (outcome, []model.TransactionRecord, error)

// sweep selects ids in one read transaction and then processes each id in a
// transaction of its own
func (j *Jobs) sweep(ctx context.Context, job string, today time.Time, selectIDs func(ctx context.Context, q repository.Querier) ([]uuid.UUID, error), process processFunc) Report {
	start := time.Now()
	report := Report{Job: job, Day: today}
	logger := j.logger.With(zap.String("job", job), zap.Time("day", today))

	ids, err := repository.Get(ctx, j.store, selectIDs)
	if err != nil {
		logger.Error("failed to select entities", zap.Error(err))
		report.Failures = append(report.Failures, newFailure(uuid.Nil, err))
		report.Duration = time.Since(start)
		return report
	}
	report.Selected = len(ids)

	for _, id := range ids {
		if j.limiter != nil {
			if err := j.limiter.Wait(ctx); err != nil {
				report.Failures = append(report.Failures, newFailure(id, err))
				break
			}
		}

		var result outcome
		var records []model.TransactionRecord
		err := j.store.WithTx(ctx, func(ctx context.Context, q repository.Querier) error {
			var err error
			result, records, err = process(ctx, q, id)
			return err
		})

		switch {
		case err != nil:
			observability.BatchEntities.WithLabelValues(job, "failed").Inc()
			report.Failures = append(report.Failures, newFailure(id, err))
			logger.Warn("entity failed", zap.String("entity_id", id.String()), zap.Error(err))
		case result == outcomeSkipped:
			observability.BatchEntities.WithLabelValues(job, "skipped").Inc()
			report.Skipped++
			logger.Debug("entity skipped", zap.String("entity_id", id.String()))
		default:
			observability.BatchEntities.WithLabelValues(job, "processed").Inc()
			report.Processed++
			logger.Info("entity processed", zap.String("entity_id", id.String()))
			j.recorder.Publish(ctx, records...)
		}
	}

	report.Duration = time.Since(start)
	return report
}

func accountIDs(accounts []model.Account) []uuid.UUID {
	ids := make([]uuid.UUID, len(accounts))
	for i, a := range accounts {
		ids[i] = a.ID
	}
	return ids
}

func loanIDs(loans []model.Loan) []uuid.UUID {
	ids := make([]uuid.UUID, len(loans))
	for i, l := range loans {
		ids[i] = l.ID
	}
	return ids
}

// cdMaturity converts every fixed-term account expiring on or before today
func (j *Jobs) cdMaturity(ctx context.Context, today time.Time) Report {
	return j.sweep(ctx, JobCDMaturity, today,
		func(ctx context.Context, q repository.Querier) ([]uuid.UUID, error) {
			accounts, err := q.ListFixedTermAccountsExpiringBy(ctx, today)
			return accountIDs(accounts), err
		},
		func(ctx context.Context, q repository.Querier, id uuid.UUID) (outcome, []model.TransactionRecord, error) {
			_, converted, err := cdaccount.MaturityTransform(ctx, q, id, today)
			if err != nil {
				return 0, nil, err
			}
			if !converted {
				return outcomeSkipped, nil, nil
			}
			return outcomeProcessed, nil, nil
		})
}

// MonthlyFeeKey identifies the monthly fee of one account for one month
func MonthlyFeeKey(today time.Time, accountID uuid.UUID) string {
	return today.Format("2006-01") + "/" + accountID.String()
}

// monthlyFee charges every standard account its type's monthly fee, once
// per calendar month. A fee that fails stays unclaimed and is retried by any
// later run in the same month. Once the month ends it is waived: fees are
// never carried into the next month.
func (j *Jobs) monthlyFee(ctx context.Context, today time.Time) Report {
	return j.sweep(ctx, JobMonthlyFee, today,
		func(ctx context.Context, q repository.Querier) ([]uuid.UUID, error) {
			accounts, err := q.ListStandardAccounts(ctx)
			return accountIDs(accounts), err
		},
		func(ctx context.Context, q repository.Querier, id uuid.UUID) (outcome, []model.TransactionRecord, error) {
			claimed, err := q.ClaimJobRun(ctx, JobMonthlyFee, MonthlyFeeKey(today, id), j.clock.Now())
			if err != nil {
				return 0, nil, err
			}
			if !claimed {
				return outcomeSkipped, nil, nil
			}

			account, err := q.GetAccountByID(ctx, id)
			if err != nil {
				return 0, nil, err
			}
			fee := account.MonthlyFee()
			if !fee.IsPositive() {
				return outcomeSkipped, nil, nil
			}

			if _, err := j.ledger.Debit(ctx, q, id, fee); err != nil {
				return 0, nil, err
			}
			rec, err := j.recorder.Record(ctx, q, model.TransactionRecord{
				Amount:    fee,
				Reason:    model.ReasonMonthlyFee,
				Type:      model.TransactionTypeMonthlyFee,
				AccountID: id,
			})
			if err != nil {
				return 0, nil, err
			}
			return outcomeProcessed, []model.TransactionRecord{*rec}, nil
		})
}

// InstallmentKey identifies one installment of a loan
func InstallmentKey(loanID uuid.UUID, installment int) string {
	return fmt.Sprintf("%s/%d", loanID, installment)
}

// loanInstallment charges every installment of a loan whose date is on or
// before today. A loan that missed runs is caught up in one transaction, so
// a second run on the same day finds nothing due.
func (j *Jobs) loanInstallment(ctx context.Context, today time.Time) Report {
	return j.sweep(ctx, JobLoanInstallment, today,
		func(ctx context.Context, q repository.Querier) ([]uuid.UUID, error) {
			loans, err := q.ListLoansInstallmentDueBy(ctx, today)
			return loanIDs(loans), err
		},
		func(ctx context.Context, q repository.Querier, id uuid.UUID) (outcome, []model.TransactionRecord, error) {
			loan, err := q.LockLoan(ctx, id)
			if err != nil {
				return 0, nil, err
			}

			var records []model.TransactionRecord
			for !loan.FullyCharged() && !loan.NextInstallmentDate.After(today) {
				rec, charged, err := j.chargeInstallment(ctx, q, loan)
				if err != nil {
					return 0, nil, err
				}
				if !charged {
					break
				}
				records = append(records, *rec)
			}
			if len(records) == 0 {
				return outcomeSkipped, nil, nil
			}

			if err := q.UpdateLoan(ctx, loan); err != nil {
				return 0, nil, err
			}
			return outcomeProcessed, records, nil
		})
}

// chargeInstallment takes installment number charged+1 from the funded
// account and advances loan in memory. It reports false when that
// installment was already claimed.
func (j *Jobs) chargeInstallment(ctx context.Context, q repository.Querier, loan *model.Loan) (*model.TransactionRecord, bool, error) {
	n := loan.InstallmentsCharged + 1
	claimed, err := q.ClaimJobRun(ctx, JobLoanInstallment, InstallmentKey(loan.ID, n), j.clock.Now())
	if err != nil || !claimed {
		return nil, false, err
	}

	charge := loan.InstallmentCharge()
	if _, err := j.ledger.Debit(ctx, q, loan.AccountID, charge); err != nil {
		return nil, false, fmt.Errorf("installment %d of loan %s: %w", n, loan.ID, err)
	}
	rec, err := j.recorder.Record(ctx, q, model.TransactionRecord{
		Amount:    charge,
		Reason:    model.ReasonLoanPayment,
		Type:      model.TransactionTypeLoanPayment,
		AccountID: loan.AccountID,
	})
	if err != nil {
		return nil, false, err
	}

	applyInstallment(loan, charge)
	return rec, true, nil
}

// applyInstallment advances a loan past one charged installment. The
// remaining amount never increases and is zero after the last installment.
func applyInstallment(loan *model.Loan, charge decimal.Decimal) {
	loan.InstallmentsCharged++
	remaining := loan.RemainingAmount.Sub(charge)
	if remaining.IsNegative() || loan.FullyCharged() {
		remaining = decimal.Zero
	}
	loan.RemainingAmount = remaining
	loan.NextInstallmentDate = clock.AddMonths(loan.StartDate, loan.InstallmentsCharged+1)
}

// loanPayoff deletes every fully charged loan whose due date is on or before
// today and clears its owner's loan flag
func (j *Jobs) loanPayoff(ctx context.Context, today time.Time) Report {
	return j.sweep(ctx, JobLoanPayoff, today,
		func(ctx context.Context, q repository.Querier) ([]uuid.UUID, error) {
			loans, err := q.ListLoansMaturedBy(ctx, today)
			return loanIDs(loans), err
		},
		func(ctx context.Context, q repository.Querier, id uuid.UUID) (outcome, []model.TransactionRecord, error) {
			loan, err := q.LockLoan(ctx, id)
			if errors.Is(err, model.ErrLoanNotFound) {
				return outcomeSkipped, nil, nil
			}
			if err != nil {
				return 0, nil, err
			}
			if !loan.FullyCharged() {
				return 0, nil, fmt.Errorf("loan %s charged %d of %d installments: %w",
					loan.ID, loan.InstallmentsCharged, loan.PeriodMonths, model.ErrLoanOutstanding)
			}

			if err := q.DeleteLoan(ctx, loan.ID); err != nil {
				return 0, nil, err
			}
			if err := q.SetHasLoan(ctx, loan.OwnerID, false); err != nil {
				return 0, nil, err
			}
			return outcomeProcessed, nil, nil
		})
}
