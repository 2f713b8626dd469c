// Package cdaccount manages fixed-term (certificate of deposit) accounts
// from opening through maturity or early withdrawal.
package cdaccount

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/simonkvalheim/fjord-ledger/internal/clock"
	"github.com/simonkvalheim/fjord-ledger/internal/ledger"
	"github.com/simonkvalheim/fjord-ledger/internal/model"
	"github.com/simonkvalheim/fjord-ledger/internal/money"
	"github.com/simonkvalheim/fjord-ledger/internal/observability"
	"github.com/simonkvalheim/fjord-ledger/internal/repository"
)

var (
	// InterestPerYear is the interest in percentage points earned per locked year
	InterestPerYear = decimal.RequireFromString("0.8")
	// EarlyWithdrawalPenalty is deducted when an account is broken before maturity
	EarlyWithdrawalPenalty = decimal.NewFromInt(50)
)

// Service handles fixed-term account operations
type Service struct {
	store    repository.Store
	ledger   *ledger.Ledger
	recorder *ledger.Recorder
	clock    clock.Clock
	logger   *zap.Logger
}

// NewService creates a new Service
func NewService(store repository.Store, l *ledger.Ledger, recorder *ledger.Recorder, c clock.Clock, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		ledger:   l,
		recorder: recorder,
		clock:    c,
		logger:   logger,
	}
}

// Interest returns the interest points for a lock period
func Interest(periodYears int) decimal.Decimal {
	return decimal.NewFromInt(int64(periodYears)).Mul(InterestPerYear)
}

// ProjectedPayout returns amount × (1 + interest/100) at payout scale
func ProjectedPayout(amount, interest decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(money.Percent(interest))
	return amount.Mul(factor).Round(money.PayoutScale)
}

// EarlyWithdrawalResult describes a broken fixed-term account
type EarlyWithdrawalResult struct {
	Account    *model.Account           `json:"account"`
	Penalty    *model.TransactionRecord `json:"penalty"`
	Withdrawal *model.TransactionRecord `json:"withdrawal,omitempty"`
	Fee        decimal.Decimal          `json:"fee"`
}

// Create opens a fixed-term account for the principal holding req.Amount.
// The payout is computed once here and never recomputed.
func (s *Service) Create(ctx context.Context, p model.Principal, req model.CreateFixedTermRequest) (*model.Account, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var opening *model.TransactionRecord
	account, err := repository.Get(ctx, s.store, func(ctx context.Context, q repository.Querier) (*model.Account, error) {
		if _, err := q.GetUserByID(ctx, p.UserID); err != nil {
			return nil, err
		}
		accountType, err := q.GetAccountTypeByName(ctx, model.AccountTypeCertificate)
		if err != nil {
			return nil, err
		}
		iban, err := ledger.NewIBAN(ctx, q)
		if err != nil {
			return nil, err
		}

		interest := Interest(req.PeriodYears)
		account := &model.Account{
			ID:      uuid.New(),
			IBAN:    iban,
			Balance: req.Amount,
			OwnerID: p.UserID,
			Kind:    model.AccountKindFixedTerm,
			Type:    *accountType,
			Term: &model.FixedTerm{
				PeriodYears:     req.PeriodYears,
				Interest:        interest,
				ExpirationDate:  clock.AddYears(clock.Today(s.clock), req.PeriodYears),
				ProjectedPayout: ProjectedPayout(req.Amount, interest),
			},
			CreatedAt: s.clock.Now(),
		}
		if err := q.CreateAccount(ctx, account); err != nil {
			return nil, err
		}

		opening, err = s.recorder.Record(ctx, q, model.TransactionRecord{
			Amount:    req.Amount,
			Reason:    model.ReasonFixedTermOpen,
			Type:      model.TransactionTypeDeposit,
			AccountID: account.ID,
		})
		if err != nil {
			return nil, err
		}
		return account, nil
	})
	observability.ObserveOperation("cd_create", err)
	if err != nil {
		return nil, err
	}

	s.logger.Info("fixed-term account created",
		zap.String("account_id", account.ID.String()),
		zap.Int("period_years", account.Term.PeriodYears),
		zap.String("projected_payout", account.Term.ProjectedPayout.String()))
	s.recorder.Publish(ctx, *opening)
	return account, nil
}

// MaturityTransform converts an expired fixed-term account into a standard
// Checking account holding its projected payout. The account keeps its id
// and IBAN. It runs inside the caller's transaction and reports false when
// the account is no longer fixed-term or has not expired by today.
func MaturityTransform(ctx context.Context, q repository.Querier, accountID uuid.UUID, today time.Time) (*model.Account, bool, error) {
	account, err := q.LockAccount(ctx, accountID)
	if err != nil {
		return nil, false, err
	}
	if !account.IsFixedTerm() || account.Term.ExpirationDate.After(today) {
		return account, false, nil
	}

	checking, err := q.GetAccountTypeByName(ctx, model.AccountTypeChecking)
	if err != nil {
		return nil, false, err
	}

	payout := money.Round(account.Term.ProjectedPayout)
	if err := q.ConvertToStandard(ctx, account.ID, *checking, payout); err != nil {
		return nil, false, err
	}

	account.Kind = model.AccountKindStandard
	account.Type = *checking
	account.Term = nil
	account.Balance = payout
	return account, true, nil
}

// EarlyWithdraw breaks a fixed-term account before maturity. The penalty is
// taken from the locked balance, the account becomes a standard Checking
// account, and req.Amount is then withdrawn with the Checking fee. A zero
// amount only converts. Nothing changes unless every step succeeds.
func (s *Service) EarlyWithdraw(ctx context.Context, p model.Principal, accountID uuid.UUID, req model.EarlyWithdrawalRequest) (*EarlyWithdrawalResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	result, err := repository.Get(ctx, s.store, func(ctx context.Context, q repository.Querier) (*EarlyWithdrawalResult, error) {
		account, err := q.LockAccount(ctx, accountID)
		if err != nil {
			return nil, err
		}
		if !p.CanAccess(account.OwnerID) {
			return nil, model.ErrNotAccountOwner
		}
		if !account.IsFixedTerm() {
			return nil, model.ErrAccountNotFixed
		}
		if EarlyWithdrawalPenalty.GreaterThan(account.Balance) {
			return nil, model.ErrInsufficientFunds
		}

		checking, err := q.GetAccountTypeByName(ctx, model.AccountTypeChecking)
		if err != nil {
			return nil, err
		}
		remaining := account.Balance.Sub(EarlyWithdrawalPenalty)
		if err := q.ConvertToStandard(ctx, account.ID, *checking, remaining); err != nil {
			return nil, err
		}

		penalty, err := s.recorder.Record(ctx, q, model.TransactionRecord{
			Amount:    EarlyWithdrawalPenalty,
			Reason:    model.ReasonEarlyPenalty,
			Type:      model.TransactionTypeEarlyPenalty,
			AccountID: account.ID,
		})
		if err != nil {
			return nil, err
		}

		res := &EarlyWithdrawalResult{Penalty: penalty, Fee: decimal.Zero}
		if req.Amount.IsZero() {
			res.Account, err = q.GetAccountByID(ctx, account.ID)
			if err != nil {
				return nil, err
			}
			return res, nil
		}

		res.Account, res.Fee, err = s.ledger.Withdraw(ctx, q, account.ID, req.Amount)
		if err != nil {
			return nil, err
		}
		res.Withdrawal, err = s.recorder.Record(ctx, q, model.TransactionRecord{
			Amount:    req.Amount,
			Reason:    req.Reason,
			Type:      model.TransactionTypeWithdraw,
			AccountID: account.ID,
		})
		if err != nil {
			return nil, err
		}
		return res, nil
	})
	observability.ObserveOperation("cd_early_withdraw", err)
	if err != nil {
		return nil, err
	}

	s.logger.Info("fixed-term account withdrawn early",
		zap.String("account_id", accountID.String()),
		zap.String("withdrawn", req.Amount.StringFixed(2)))

	published := []model.TransactionRecord{*result.Penalty}
	if result.Withdrawal != nil {
		published = append(published, *result.Withdrawal)
	}
	s.recorder.Publish(ctx, published...)
	return result, nil
}

// Get returns a fixed-term account the principal may access
func (s *Service) Get(ctx context.Context, p model.Principal, accountID uuid.UUID) (*model.Account, error) {
	return repository.Get(ctx, s.store, func(ctx context.Context, q repository.Querier) (*model.Account, error) {
		account, err := q.GetAccountByID(ctx, accountID)
		if err != nil {
			return nil, err
		}
		if !p.CanAccess(account.OwnerID) {
			return nil, model.ErrNotAccountOwner
		}
		if !account.IsFixedTerm() {
			return nil, model.ErrAccountNotFixed
		}
		return account, nil
	})
}

// ListByOwner returns the fixed-term accounts of ownerID
func (s *Service) ListByOwner(ctx context.Context, p model.Principal, ownerID uuid.UUID) ([]model.Account, error) {
	if !p.CanAccess(ownerID) {
		return nil, model.ErrNotAccountOwner
	}
	return repository.Get(ctx, s.store, func(ctx context.Context, q repository.Querier) ([]model.Account, error) {
		accounts, err := q.ListAccountsByOwner(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		fixed := accounts[:0]
		for _, a := range accounts {
			if a.IsFixedTerm() {
				fixed = append(fixed, a)
			}
		}
		return fixed, nil
	})
}

// List returns every fixed-term account. Admin only.
func (s *Service) List(ctx context.Context, p model.Principal) ([]model.Account, error) {
	if !p.Admin {
		return nil, model.ErrAdminRequired
	}
	return repository.Get(ctx, s.store, func(ctx context.Context, q repository.Querier) ([]model.Account, error) {
		return q.ListFixedTermAccounts(ctx)
	})
}
