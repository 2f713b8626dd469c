package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/simonkvalheim/fjord-ledger/internal/model"
)

const accountColumns = `
	a.id, a.iban, a.balance, a.owner_id, a.kind, a.created_at,
	t.id, t.name, t.transaction_fee, t.monthly_fee,
	f.period_years, f.interest, f.expiration_date, f.projected_payout
`

const accountFrom = `
	FROM accounts a
	JOIN account_types t ON t.id = a.account_type_id
	LEFT JOIN fixed_term_accounts f ON f.account_id = a.id
`

// scanAccount reads one row selected with accountColumns
func scanAccount(row pgx.Row) (*model.Account, error) {
	account := &model.Account{}
	var (
		periodYears *int
		interest    decimal.NullDecimal
		expiration  *time.Time
		payout      decimal.NullDecimal
	)

	err := row.Scan(
		&account.ID,
		&account.IBAN,
		&account.Balance,
		&account.OwnerID,
		&account.Kind,
		&account.CreatedAt,
		&account.Type.ID,
		&account.Type.Name,
		&account.Type.TransactionFee,
		&account.Type.MonthlyFee,
		&periodYears,
		&interest,
		&expiration,
		&payout,
	)
	if err != nil {
		return nil, err
	}

	if account.Kind == model.AccountKindFixedTerm && periodYears != nil && expiration != nil {
		account.Term = &model.FixedTerm{
			PeriodYears:     *periodYears,
			Interest:        interest.Decimal,
			ExpirationDate:  *expiration,
			ProjectedPayout: payout.Decimal,
		}
	}

	return account, nil
}

func (q *queries) listAccounts(ctx context.Context, where string, args ...any) ([]model.Account, error) {
	rows, err := q.db.Query(ctx, "SELECT "+accountColumns+accountFrom+where+" ORDER BY a.created_at, a.id", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *account)
	}

	return accounts, rows.Err()
}

// CreateAccount inserts an account and, for CD accounts, its term row
func (q *queries) CreateAccount(ctx context.Context, account *model.Account) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO accounts (id, iban, balance, owner_id, account_type_id, kind, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		account.ID,
		account.IBAN,
		account.Balance,
		account.OwnerID,
		account.Type.ID,
		account.Kind,
		account.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrDuplicateIBAN
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	if account.Term == nil {
		return nil
	}

	_, err = q.db.Exec(ctx, `
		INSERT INTO fixed_term_accounts (account_id, period_years, interest, expiration_date, projected_payout)
		VALUES ($1, $2, $3, $4, $5)
	`,
		account.ID,
		account.Term.PeriodYears,
		account.Term.Interest,
		account.Term.ExpirationDate,
		account.Term.ProjectedPayout,
	)
	if err != nil {
		return fmt.Errorf("failed to create fixed-term account: %w", err)
	}

	return nil
}

// GetAccountByID retrieves an account by its ID
func (q *queries) GetAccountByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	account, err := scanAccount(q.db.QueryRow(ctx, "SELECT "+accountColumns+accountFrom+"WHERE a.id = $1", id))
	if err != nil {
		return nil, notFound(err, model.ErrAccountNotFound, "account")
	}
	return account, nil
}

// GetAccountByIBAN retrieves an account by its IBAN
func (q *queries) GetAccountByIBAN(ctx context.Context, iban string) (*model.Account, error) {
	account, err := scanAccount(q.db.QueryRow(ctx, "SELECT "+accountColumns+accountFrom+"WHERE a.iban = $1", iban))
	if err != nil {
		return nil, notFound(err, model.ErrAccountNotFound, "account")
	}
	return account, nil
}

// LockAccount selects the account row FOR UPDATE
func (q *queries) LockAccount(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	account, err := scanAccount(q.db.QueryRow(ctx, "SELECT "+accountColumns+accountFrom+"WHERE a.id = $1 FOR UPDATE OF a", id))
	if err != nil {
		return nil, notFound(err, model.ErrAccountNotFound, "account")
	}
	return account, nil
}

// ListAccountsByOwner retrieves every account of a user
func (q *queries) ListAccountsByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Account, error) {
	return q.listAccounts(ctx, "WHERE a.owner_id = $1", ownerID)
}

// FindAccountByOwnerAndType returns the oldest account of a user with the given type
func (q *queries) FindAccountByOwnerAndType(ctx context.Context, ownerID uuid.UUID, typeName string) (*model.Account, error) {
	row := q.db.QueryRow(ctx,
		"SELECT "+accountColumns+accountFrom+"WHERE a.owner_id = $1 AND t.name = $2 ORDER BY a.created_at, a.id LIMIT 1",
		ownerID, typeName)
	account, err := scanAccount(row)
	if err != nil {
		return nil, notFound(err, model.ErrAccountNotFound, "account")
	}
	return account, nil
}

// ListStandardAccounts retrieves every standard account
func (q *queries) ListStandardAccounts(ctx context.Context) ([]model.Account, error) {
	return q.listAccounts(ctx, "WHERE a.kind = $1", model.AccountKindStandard)
}

// ListFixedTermAccounts retrieves every CD account
func (q *queries) ListFixedTermAccounts(ctx context.Context) ([]model.Account, error) {
	return q.listAccounts(ctx, "WHERE a.kind = $1", model.AccountKindFixedTerm)
}

// ListFixedTermAccountsExpiringBy retrieves CD accounts expiring on or before day
func (q *queries) ListFixedTermAccountsExpiringBy(ctx context.Context, day time.Time) ([]model.Account, error) {
	return q.listAccounts(ctx, "WHERE a.kind = $1 AND f.expiration_date <= $2", model.AccountKindFixedTerm, day)
}

// UpdateBalance sets the balance of an account
func (q *queries) UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error {
	result, err := q.db.Exec(ctx, `UPDATE accounts SET balance = $1 WHERE id = $2`, balance, id)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	if result.RowsAffected() == 0 {
		return model.ErrAccountNotFound
	}
	return nil
}

// ConvertToStandard drops the term row and retypes the account
func (q *queries) ConvertToStandard(ctx context.Context, id uuid.UUID, accountType model.AccountType, balance decimal.Decimal) error {
	result, err := q.db.Exec(ctx, `
		UPDATE accounts
		SET kind = $1, account_type_id = $2, balance = $3
		WHERE id = $4 AND kind = $5
	`,
		model.AccountKindStandard,
		accountType.ID,
		balance,
		id,
		model.AccountKindFixedTerm,
	)
	if err != nil {
		return fmt.Errorf("failed to convert account: %w", err)
	}
	if result.RowsAffected() == 0 {
		return model.ErrAccountNotFound
	}

	if _, err := q.db.Exec(ctx, `DELETE FROM fixed_term_accounts WHERE account_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete fixed-term row: %w", err)
	}
	return nil
}
