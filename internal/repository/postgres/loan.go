package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/simonkvalheim/fjord-ledger/internal/model"
)

const loanSelect = `
	SELECT l.id, l.owner_id, l.account_id, l.beginning_amount, l.remaining_amount,
	       l.monthly_payment, l.total_amount_due, l.period_months, l.installments_charged,
	       l.start_date, l.next_installment_date, l.due_date, l.approved, l.created_at,
	       t.id, t.name, t.consideration_fee, t.interest_rate, t.monthly_fee
	FROM loans l
	JOIN loan_types t ON t.id = l.loan_type_id
`

func scanLoan(row pgx.Row) (*model.Loan, error) {
	l := &model.Loan{}
	err := row.Scan(
		&l.ID,
		&l.OwnerID,
		&l.AccountID,
		&l.BeginningAmount,
		&l.RemainingAmount,
		&l.MonthlyPayment,
		&l.TotalAmountDue,
		&l.PeriodMonths,
		&l.InstallmentsCharged,
		&l.StartDate,
		&l.NextInstallmentDate,
		&l.DueDate,
		&l.Approved,
		&l.CreatedAt,
		&l.Type.ID,
		&l.Type.Name,
		&l.Type.ConsiderationFee,
		&l.Type.InterestRate,
		&l.Type.MonthlyFee,
	)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (q *queries) listLoans(ctx context.Context, where string, args ...any) ([]model.Loan, error) {
	rows, err := q.db.Query(ctx, loanSelect+where+" ORDER BY l.created_at, l.id", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	defer rows.Close()

	var loans []model.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		loans = append(loans, *l)
	}
	return loans, rows.Err()
}

// CreateLoan inserts a new loan
func (q *queries) CreateLoan(ctx context.Context, l *model.Loan) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO loans (
			id, owner_id, account_id, loan_type_id, beginning_amount, remaining_amount,
			monthly_payment, total_amount_due, period_months, installments_charged,
			start_date, next_installment_date, due_date, approved, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		l.ID,
		l.OwnerID,
		l.AccountID,
		l.Type.ID,
		l.BeginningAmount,
		l.RemainingAmount,
		l.MonthlyPayment,
		l.TotalAmountDue,
		l.PeriodMonths,
		l.InstallmentsCharged,
		l.StartDate,
		l.NextInstallmentDate,
		l.DueDate,
		l.Approved,
		l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	return nil
}

// GetLoanByID retrieves a loan by its ID
func (q *queries) GetLoanByID(ctx context.Context, id uuid.UUID) (*model.Loan, error) {
	l, err := scanLoan(q.db.QueryRow(ctx, loanSelect+"WHERE l.id = $1", id))
	if err != nil {
		return nil, notFound(err, model.ErrLoanNotFound, "loan")
	}
	return l, nil
}

// LockLoan selects the loan row FOR UPDATE
func (q *queries) LockLoan(ctx context.Context, id uuid.UUID) (*model.Loan, error) {
	l, err := scanLoan(q.db.QueryRow(ctx, loanSelect+"WHERE l.id = $1 FOR UPDATE OF l", id))
	if err != nil {
		return nil, notFound(err, model.ErrLoanNotFound, "loan")
	}
	return l, nil
}

// ListLoans retrieves every loan
func (q *queries) ListLoans(ctx context.Context) ([]model.Loan, error) {
	return q.listLoans(ctx, "")
}

// ListLoansByOwner retrieves the loans of a user
func (q *queries) ListLoansByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Loan, error) {
	return q.listLoans(ctx, "WHERE l.owner_id = $1", ownerID)
}

// ListLoansInstallmentDueBy retrieves loans with an installment due on or before day
func (q *queries) ListLoansInstallmentDueBy(ctx context.Context, day time.Time) ([]model.Loan, error) {
	return q.listLoans(ctx, "WHERE l.next_installment_date <= $1 AND l.installments_charged < l.period_months", day)
}

// ListLoansMaturedBy retrieves loans whose due date is on or before day
func (q *queries) ListLoansMaturedBy(ctx context.Context, day time.Time) ([]model.Loan, error) {
	return q.listLoans(ctx, "WHERE l.due_date <= $1", day)
}

// UpdateLoan stores the mutable installment state of a loan
func (q *queries) UpdateLoan(ctx context.Context, l *model.Loan) error {
	result, err := q.db.Exec(ctx, `
		UPDATE loans
		SET remaining_amount = $1, installments_charged = $2, next_installment_date = $3
		WHERE id = $4
	`, l.RemainingAmount, l.InstallmentsCharged, l.NextInstallmentDate, l.ID)
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}
	if result.RowsAffected() == 0 {
		return model.ErrLoanNotFound
	}
	return nil
}

// DeleteLoan removes a loan
func (q *queries) DeleteLoan(ctx context.Context, id uuid.UUID) error {
	result, err := q.db.Exec(ctx, `DELETE FROM loans WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete loan: %w", err)
	}
	if result.RowsAffected() == 0 {
		return model.ErrLoanNotFound
	}
	return nil
}
