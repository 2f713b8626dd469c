// Package bootstrap seeds the reference data the ledger cannot run without.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/simonkvalheim/fjord-ledger/internal/model"
	"github.com/simonkvalheim/fjord-ledger/internal/repository"
)

// AccountTypes are the account types seeded on startup
var AccountTypes = []model.AccountType{
	{
		Name:           model.AccountTypeChecking,
		TransactionFee: decimal.RequireFromString("1.00"),
		MonthlyFee:     decimal.RequireFromString("2.50"),
	},
	{
		Name:           model.AccountTypeCertificate,
		TransactionFee: decimal.Zero,
		MonthlyFee:     decimal.Zero,
	},
}

// LoanTypes are the loan types seeded on startup
var LoanTypes = []model.LoanType{
	{
		Name:             model.LoanTypeConsumer,
		ConsiderationFee: decimal.RequireFromString("250"),
		InterestRate:     decimal.RequireFromString("5.25"),
		MonthlyFee:       decimal.RequireFromString("5.50"),
	},
	{
		Name:             model.LoanTypeMortgage,
		ConsiderationFee: decimal.RequireFromString("500"),
		InterestRate:     decimal.RequireFromString("3.20"),
		MonthlyFee:       decimal.RequireFromString("10.00"),
	},
}

// Initialize ensures all reference types exist. Types already present are
// left as they are.
// This should be called on startup after the store is ready
func Initialize(ctx context.Context, store repository.Store, logger *zap.Logger) error {
	return store.WithTx(ctx, func(ctx context.Context, q repository.Querier) error {
		for _, t := range AccountTypes {
			if err := ensureAccountType(ctx, q, t, logger); err != nil {
				return fmt.Errorf("failed to ensure account type %q: %w", t.Name, err)
			}
		}
		for _, t := range LoanTypes {
			if err := ensureLoanType(ctx, q, t, logger); err != nil {
				return fmt.Errorf("failed to ensure loan type %q: %w", t.Name, err)
			}
		}
		return nil
	})
}

func ensureAccountType(ctx context.Context, q repository.Querier, t model.AccountType, logger *zap.Logger) error {
	_, err := q.GetAccountTypeByName(ctx, t.Name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, model.ErrAccountTypeNotFound) {
		return err
	}

	t.ID = uuid.New()
	if err := q.UpsertAccountType(ctx, &t); err != nil {
		return err
	}
	logger.Info("seeded account type", zap.String("name", t.Name))
	return nil
}

func ensureLoanType(ctx context.Context, q repository.Querier, t model.LoanType, logger *zap.Logger) error {
	_, err := q.GetLoanTypeByName(ctx, t.Name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, model.ErrLoanTypeNotFound) {
		return err
	}

	t.ID = uuid.New()
	if err := q.UpsertLoanType(ctx, &t); err != nil {
		return err
	}
	logger.Info("seeded loan type", zap.String("name", t.Name))
	return nil
}
