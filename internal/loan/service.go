package loan

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/simonkvalheim/fjord-ledger/internal/clock"
	"github.com/simonkvalheim/fjord-ledger/internal/ledger"
	"github.com/simonkvalheim/fjord-ledger/internal/model"
	"github.com/simonkvalheim/fjord-ledger/internal/observability"
	"github.com/simonkvalheim/fjord-ledger/internal/repository"
)

// Service handles loan quotes and origination
type Service struct {
	store    repository.Store
	accounts *ledger.Service
	ledger   *ledger.Ledger
	recorder *ledger.Recorder
	clock    clock.Clock
	logger   *zap.Logger
}

// NewService creates a new Service
func NewService(store repository.Store, accounts *ledger.Service, l *ledger.Ledger, recorder *ledger.Recorder, c clock.Clock, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		accounts: accounts,
		ledger:   l,
		recorder: recorder,
		clock:    c,
		logger:   logger,
	}
}

// ApplyResult is a funded loan and the account it was paid into
type ApplyResult struct {
	Loan        *model.Loan              `json:"loan"`
	Account     *model.Account           `json:"account"`
	Transaction *model.TransactionRecord `json:"transaction"`
}

// Calculate prices a loan without side effects
func (s *Service) Calculate(ctx context.Context, req model.LoanCalculationRequest) (*model.LoanQuote, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	loanType, err := repository.Get(ctx, s.store, func(ctx context.Context, q repository.Querier) (*model.LoanType, error) {
		return q.GetLoanTypeByName(ctx, req.LoanType)
	})
	if err != nil {
		return nil, err
	}
	quote := Quote(*loanType, req.Amount, req.PeriodMonths)
	return &quote, nil
}

// ApplyForLoan originates a loan for the principal and funds it into their
// Checking account, opening one if needed. A user holds at most one loan.
func (s *Service) ApplyForLoan(ctx context.Context, p model.Principal, req model.LoanApplicationRequest) (*ApplyResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	result, err := repository.Get(ctx, s.store, func(ctx context.Context, q repository.Querier) (*ApplyResult, error) {
		user, err := q.LockUser(ctx, p.UserID)
		if err != nil {
			return nil, err
		}
		if user.HasLoan {
			return nil, model.ErrUserHasLoan
		}

		loanType, err := q.GetLoanTypeByName(ctx, req.LoanType)
		if err != nil {
			return nil, err
		}
		if err := CheckEligibility(Amortize(req.Amount, loanType.InterestRate, req.PeriodMonths), req.Salary); err != nil {
			return nil, err
		}
		quote := Quote(*loanType, req.Amount, req.PeriodMonths)

		account, err := s.accounts.EnsureStandardAccount(ctx, q, user.ID)
		if err != nil {
			return nil, err
		}
		if account, err = s.ledger.Deposit(ctx, q, account.ID, req.Amount); err != nil {
			return nil, err
		}
		rec, err := s.recorder.Record(ctx, q, model.TransactionRecord{
			Amount:    req.Amount,
			Reason:    model.ReasonLoanFunding,
			Type:      model.TransactionTypeDeposit,
			AccountID: account.ID,
		})
		if err != nil {
			return nil, err
		}

		start := clock.Today(s.clock)
		loan := &model.Loan{
			ID:                  uuid.New(),
			OwnerID:             user.ID,
			AccountID:           account.ID,
			Type:                *loanType,
			BeginningAmount:     req.Amount,
			RemainingAmount:     req.Amount,
			MonthlyPayment:      quote.MonthlyPayment,
			TotalAmountDue:      quote.TotalAmountDue,
			PeriodMonths:        req.PeriodMonths,
			InstallmentsCharged: 0,
			StartDate:           start,
			NextInstallmentDate: clock.AddMonths(start, 1),
			DueDate:             clock.AddMonths(start, req.PeriodMonths),
			Approved:            true,
			CreatedAt:           s.clock.Now(),
		}
		if err := q.CreateLoan(ctx, loan); err != nil {
			return nil, err
		}
		if err := q.SetHasLoan(ctx, user.ID, true); err != nil {
			return nil, err
		}

		return &ApplyResult{Loan: loan, Account: account, Transaction: rec}, nil
	})
	observability.ObserveOperation("loan_apply", err)
	if err != nil {
		return nil, err
	}

	s.logger.Info("loan originated",
		zap.String("loan_id", result.Loan.ID.String()),
		zap.String("owner_id", result.Loan.OwnerID.String()),
		zap.String("amount", result.Loan.BeginningAmount.StringFixed(2)),
		zap.Int("period_months", result.Loan.PeriodMonths))
	s.recorder.Publish(ctx, *result.Transaction)
	return result, nil
}

// Get returns a loan the principal may access
func (s *Service) Get(ctx context.Context, p model.Principal, id uuid.UUID) (*model.Loan, error) {
	return repository.Get(ctx, s.store, func(ctx context.Context, q repository.Querier) (*model.Loan, error) {
		loan, err := q.GetLoanByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !p.CanAccess(loan.OwnerID) {
			return nil, model.ErrNotLoanOwner
		}
		return loan, nil
	})
}

// List returns every loan. Admin only.
func (s *Service) List(ctx context.Context, p model.Principal) ([]model.Loan, error) {
	if !p.Admin {
		return nil, model.ErrAdminRequired
	}
	return repository.Get(ctx, s.store, func(ctx context.Context, q repository.Querier) ([]model.Loan, error) {
		return q.ListLoans(ctx)
	})
}

// ListByOwner returns the loans of ownerID
func (s *Service) ListByOwner(ctx context.Context, p model.Principal, ownerID uuid.UUID) ([]model.Loan, error) {
	if !p.CanAccess(ownerID) {
		return nil, model.ErrNotLoanOwner
	}
	return repository.Get(ctx, s.store, func(ctx context.Context, q repository.Querier) ([]model.Loan, error) {
		return q.ListLoansByOwner(ctx, ownerID)
	})
}

// ListLoanTypes returns the reference loan types
func (s *Service) ListLoanTypes(ctx context.Context) ([]model.LoanType, error) {
	return repository.Get(ctx, s.store, func(ctx context.Context, q repository.Querier) ([]model.LoanType, error) {
		return q.ListLoanTypes(ctx)
	})
}
