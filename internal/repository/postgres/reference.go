package postgres

import (
	"context"
	"fmt"

	"github.com/simonkvalheim/fjord-ledger/internal/model"
)

// GetAccountTypeByName retrieves an account type by name
func (q *queries) GetAccountTypeByName(ctx context.Context, name string) (*model.AccountType, error) {
	t := &model.AccountType{}
	err := q.db.QueryRow(ctx, `
		SELECT id, name, transaction_fee, monthly_fee
		FROM account_types
		WHERE name = $1
	`, name).Scan(&t.ID, &t.Name, &t.TransactionFee, &t.MonthlyFee)
	if err != nil {
		return nil, notFound(err, model.ErrAccountTypeNotFound, "account type")
	}
	return t, nil
}

// ListAccountTypes retrieves all account types
func (q *queries) ListAccountTypes(ctx context.Context) ([]model.AccountType, error) {
	rows, err := q.db.Query(ctx, `SELECT id, name, transaction_fee, monthly_fee FROM account_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list account types: %w", err)
	}
	defer rows.Close()

	var types []model.AccountType
	for rows.Next() {
		var t model.AccountType
		if err := rows.Scan(&t.ID, &t.Name, &t.TransactionFee, &t.MonthlyFee); err != nil {
			return nil, fmt.Errorf("failed to scan account type: %w", err)
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

// UpsertAccountType inserts the type or updates the fees of an existing type
// with the same name. t.ID is set to the stored id.
func (q *queries) UpsertAccountType(ctx context.Context, t *model.AccountType) error {
	err := q.db.QueryRow(ctx, `
		INSERT INTO account_types (id, name, transaction_fee, monthly_fee)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE
		SET transaction_fee = EXCLUDED.transaction_fee, monthly_fee = EXCLUDED.monthly_fee
		RETURNING id
	`, t.ID, t.Name, t.TransactionFee, t.MonthlyFee).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert account type: %w", err)
	}
	return nil
}

// GetLoanTypeByName retrieves a loan type by name
func (q *queries) GetLoanTypeByName(ctx context.Context, name string) (*model.LoanType, error) {
	t := &model.LoanType{}
	err := q.db.QueryRow(ctx, `
		SELECT id, name, consideration_fee, interest_rate, monthly_fee
		FROM loan_types
		WHERE name = $1
	`, name).Scan(&t.ID, &t.Name, &t.ConsiderationFee, &t.InterestRate, &t.MonthlyFee)
	if err != nil {
		return nil, notFound(err, model.ErrLoanTypeNotFound, "loan type")
	}
	return t, nil
}

// ListLoanTypes retrieves all loan types
func (q *queries) ListLoanTypes(ctx context.Context) ([]model.LoanType, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, name, consideration_fee, interest_rate, monthly_fee
		FROM loan_types
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list loan types: %w", err)
	}
	defer rows.Close()

	var types []model.LoanType
	for rows.Next() {
		var t model.LoanType
		if err := rows.Scan(&t.ID, &t.Name, &t.ConsiderationFee, &t.InterestRate, &t.MonthlyFee); err != nil {
			return nil, fmt.Errorf("failed to scan loan type: %w", err)
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

// UpsertLoanType inserts the type or updates an existing type with the same name
func (q *queries) UpsertLoanType(ctx context.Context, t *model.LoanType) error {
	err := q.db.QueryRow(ctx, `
		INSERT INTO loan_types (id, name, consideration_fee, interest_rate, monthly_fee)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE
		SET consideration_fee = EXCLUDED.consideration_fee,
		    interest_rate = EXCLUDED.interest_rate,
		    monthly_fee = EXCLUDED.monthly_fee
		RETURNING id
	`, t.ID, t.Name, t.ConsiderationFee, t.InterestRate, t.MonthlyFee).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert loan type: %w", err)
	}
	return nil
}
