// Package ledger owns account balances: the deposit and withdrawal
// primitives, the transaction recorder, and the account-facing service.
package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simonkvalheim/fjord-ledger/internal/model"
	"github.com/simonkvalheim/fjord-ledger/internal/repository"
)

// Ledger applies balance mutations. Every primitive locks the account row
// through the Querier first, so the check and the write happen under the
// same lock and are committed with the caller's transaction.
type Ledger struct{}

// New creates a Ledger
func New() *Ledger {
	return &Ledger{}
}

// Deposit increases the balance of a standard account by amount. No fee applies.
func (l *Ledger) Deposit(ctx context.Context, q repository.Querier, accountID uuid.UUID, amount decimal.Decimal) (*model.Account, error) {
	if !amount.IsPositive() {
		return nil, model.ErrInvalidAmount
	}

	account, err := l.lockStandard(ctx, q, accountID)
	if err != nil {
		return nil, err
	}

	account.Balance = account.Balance.Add(amount)
	if err := q.UpdateBalance(ctx, account.ID, account.Balance); err != nil {
		return nil, err
	}
	return account, nil
}

// Withdraw takes amount plus the account type's transaction fee. It fails
// with ErrInsufficientFunds, without touching the balance, when the total
// exceeds the balance. The fee charged is returned.
func (l *Ledger) Withdraw(ctx context.Context, q repository.Querier, accountID uuid.UUID, amount decimal.Decimal) (*model.Account, decimal.Decimal, error) {
	if !amount.IsPositive() {
		return nil, decimal.Zero, model.ErrInvalidAmount
	}

	account, err := l.lockStandard(ctx, q, accountID)
	if err != nil {
		return nil, decimal.Zero, err
	}

	fee := account.TransactionFee()
	if err := l.take(ctx, q, account, amount.Add(fee)); err != nil {
		return nil, decimal.Zero, err
	}
	return account, fee, nil
}

// Debit takes amount without a transaction fee, with the same
// insufficient-funds rule as Withdraw. Used for fees and loan installments.
func (l *Ledger) Debit(ctx context.Context, q repository.Querier, accountID uuid.UUID, amount decimal.Decimal) (*model.Account, error) {
	if amount.IsNegative() {
		return nil, model.ErrInvalidAmount
	}

	account, err := l.lockStandard(ctx, q, accountID)
	if err != nil {
		return nil, err
	}

	if err := l.take(ctx, q, account, amount); err != nil {
		return nil, err
	}
	return account, nil
}

func (l *Ledger) lockStandard(ctx context.Context, q repository.Querier, accountID uuid.UUID) (*model.Account, error) {
	account, err := q.LockAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.IsFixedTerm() {
		return nil, model.ErrAccountNotStandard
	}
	return account, nil
}

func (l *Ledger) take(ctx context.Context, q repository.Querier, account *model.Account, total decimal.Decimal) error {
	if total.GreaterThan(account.Balance) {
		return model.ErrInsufficientFunds
	}
	account.Balance = account.Balance.Sub(total)
	return q.UpdateBalance(ctx, account.ID, account.Balance)
}
