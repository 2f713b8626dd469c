package ledger

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/simonkvalheim/fjord-ledger/internal/clock"
	"github.com/simonkvalheim/fjord-ledger/internal/model"
	"github.com/simonkvalheim/fjord-ledger/internal/observability"
	"github.com/simonkvalheim/fjord-ledger/internal/repository"
)

// Service exposes account operations to callers. Each method owns its
// storage transaction and publishes the records it wrote after commit.
type Service struct {
	store    repository.Store
	ledger   *Ledger
	recorder *Recorder
	clock    clock.Clock
	logger   *zap.Logger
}

// NewService creates a new Service
func NewService(store repository.Store, l *Ledger, recorder *Recorder, c clock.Clock, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		ledger:   l,
		recorder: recorder,
		clock:    c,
		logger:   logger,
	}
}

// OperationResult is returned by deposits and withdrawals
type OperationResult struct {
	Account     *model.Account           `json:"account"`
	Transaction *model.TransactionRecord `json:"transaction"`
	Fee         decimal.Decimal          `json:"fee"`
}

// OpenAccount creates an empty standard account of the named type
func OpenAccount(ctx context.Context, q repository.Querier, c clock.Clock, ownerID uuid.UUID, typeName string) (*model.Account, error) {
	accountType, err := q.GetAccountTypeByName(ctx, typeName)
	if err != nil {
		return nil, err
	}

	iban, err := NewIBAN(ctx, q)
	if err != nil {
		return nil, err
	}

	account := &model.Account{
		ID:        uuid.New(),
		IBAN:      iban,
		Balance:   decimal.Zero,
		OwnerID:   ownerID,
		Kind:      model.AccountKindStandard,
		Type:      *accountType,
		CreatedAt: c.Now(),
	}
	if err := q.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// EnsureStandardAccount returns the owner's Checking account, opening one
// when the owner has none
func (s *Service) EnsureStandardAccount(ctx context.Context, q repository.Querier, ownerID uuid.UUID) (*model.Account, error) {
	account, err := q.FindAccountByOwnerAndType(ctx, ownerID, model.AccountTypeChecking)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, model.ErrAccountNotFound) {
		return nil, err
	}
	return OpenAccount(ctx, q, s.clock, ownerID, model.AccountTypeChecking)
}

// CreateStandardAccount opens a new Checking account for the owner
func (s *Service) CreateStandardAccount(ctx context.Context, ownerID uuid.UUID) (*model.Account, error) {
	account, err := repository.Get(ctx, s.store, func(ctx context.Context, q repository.Querier) (*model.Account, error) {
		if _, err := q.GetUserByID(ctx, ownerID); err != nil {
			return nil, err
		}
		return OpenAccount(ctx, q, s.clock, ownerID, model.AccountTypeChecking)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("account created",
		zap.String("account_id", account.ID.String()),
		zap.String("owner_id", ownerID.String()))
	return account, nil
}

// Deposit credits the account identified by req.IBAN
func (s *Service) Deposit(ctx context.Context, p model.Principal, req model.AccountOperationRequest) (*OperationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	result, err := repository.Get(ctx, s.store, func(ctx context.Context, q repository.Querier) (*OperationResult, error) {
		account, err := ResolveOwned(ctx, q, p, req.IBAN)
		if err != nil {
			return nil, err
		}

		account, err = s.ledger.Deposit(ctx, q, account.ID, req.Amount)
		if err != nil {
			return nil, err
		}

		rec, err := s.recorder.Record(ctx, q, model.TransactionRecord{
			Amount:    req.Amount,
			Reason:    req.Reason,
			Type:      model.TransactionTypeDeposit,
			AccountID: account.ID,
		})
		if err != nil {
			return nil, err
		}
		return &OperationResult{Account: account, Transaction: rec, Fee: decimal.Zero}, nil
	})
	observability.ObserveOperation("deposit", err)
	if err != nil {
		return nil, err
	}

	s.recorder.Publish(ctx, *result.Transaction)
	return result, nil
}

// Withdraw debits req.Amount plus the account type's transaction fee
func (s *Service) Withdraw(ctx context.Context, p model.Principal, req model.AccountOperationRequest) (*OperationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	result, err := repository.Get(ctx, s.store, func(ctx context.Context, q repository.Querier) (*OperationResult, error) {
		account, err := ResolveOwned(ctx, q, p, req.IBAN)
		if err != nil {
			return nil, err
		}

		account, fee, err := s.ledger.Withdraw(ctx, q, account.ID, req.Amount)
		if err != nil {
			return nil, err
		}

		rec, err := s.recorder.Record(ctx, q, model.TransactionRecord{
			Amount:    req.Amount,
			Reason:    req.Reason,
			Type:      model.TransactionTypeWithdraw,
			AccountID: account.ID,
		})
		if err != nil {
			return nil, err
		}
		return &OperationResult{Account: account, Transaction: rec, Fee: fee}, nil
	})
	observability.ObserveOperation("withdraw", err)
	if err != nil {
		return nil, err
	}

	s.recorder.Publish(ctx, *result.Transaction)
	return result, nil
}

// GetAccount returns an account the principal may access
func (s *Service) GetAccount(ctx context.Context, p model.Principal, id uuid.UUID) (*model.Account, error) {
	return repository.Get(ctx, s.store, func(ctx context.Context, q repository.Querier) (*model.Account, error) {
		account, err := q.GetAccountByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !p.CanAccess(account.OwnerID) {
			return nil, model.ErrNotAccountOwner
		}
		return account, nil
	})
}

// GetAccountByIBAN returns any account by IBAN. Admin only.
func (s *Service) GetAccountByIBAN(ctx context.Context, p model.Principal, iban string) (*model.Account, error) {
	if !p.Admin {
		return nil, model.ErrAdminRequired
	}
	return repository.Get(ctx, s.store, func(ctx context.Context, q repository.Querier) (*model.Account, error) {
		return q.GetAccountByIBAN(ctx, NormalizeIBAN(iban))
	})
}

// ListAccounts returns the accounts of ownerID
func (s *Service) ListAccounts(ctx context.Context, p model.Principal, ownerID uuid.UUID) ([]model.Account, error) {
	if !p.CanAccess(ownerID) {
		return nil, model.ErrNotAccountOwner
	}
	return repository.Get(ctx, s.store, func(ctx context.Context, q repository.Querier) ([]model.Account, error) {
		return q.ListAccountsByOwner(ctx, ownerID)
	})
}

// ListAccountTypes returns the reference account types
func (s *Service) ListAccountTypes(ctx context.Context) ([]model.AccountType, error) {
	return repository.Get(ctx, s.store, func(ctx context.Context, q repository.Querier) ([]model.AccountType, error) {
		return q.ListAccountTypes(ctx)
	})
}

// QueryTransactions returns the records matching filter. A non-admin must
// name an account id they own.
func (s *Service) QueryTransactions(ctx context.Context, p model.Principal, filter model.TransactionFilter) ([]model.TransactionRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return repository.Get(ctx, s.store, func(ctx context.Context, q repository.Querier) ([]model.TransactionRecord, error) {
		if !p.Admin {
			if filter.AccountID == nil {
				return nil, model.ErrNotAccountOwner
			}
			account, err := q.GetAccountByID(ctx, *filter.AccountID)
			if err != nil {
				return nil, err
			}
			if !account.OwnedBy(p.UserID) {
				return nil, model.ErrNotAccountOwner
			}
		}
		return s.recorder.Query(ctx, q, filter)
	})
}

// ResolveOwned resolves an IBAN to an account the principal may operate on
func ResolveOwned(ctx context.Context, q repository.Querier, p model.Principal, iban string) (*model.Account, error) {
	account, err := q.GetAccountByIBAN(ctx, NormalizeIBAN(iban))
	if err != nil {
		return nil, err
	}
	if !p.CanAccess(account.OwnerID) {
		return nil, model.ErrNotAccountOwner
	}
	return account, nil
}

// NormalizeIBAN strips spaces and upper-cases an IBAN
func NormalizeIBAN(iban string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(iban), " ", ""))
}
