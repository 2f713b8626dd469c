package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/simonkvalheim/fjord-ledger/internal/model"
)

// CreateTransaction appends a transaction record
func (q *queries) CreateTransaction(ctx context.Context, rec *model.TransactionRecord) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO transactions (id, correlation_id, amount, reason, type, account_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		rec.ID,
		rec.CorrelationID,
		rec.Amount,
		rec.Reason,
		rec.Type,
		rec.AccountID,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// QueryTransactions retrieves records matching the filter, oldest first
func (q *queries) QueryTransactions(ctx context.Context, filter model.TransactionFilter, loc *time.Location) ([]model.TransactionRecord, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.AccountID != nil {
		add("account_id = $%d", *filter.AccountID)
	}
	if filter.Type != "" {
		add("type = $%d", filter.Type)
	}
	lower, upper := filter.Bounds(loc)
	if !lower.IsZero() {
		add("created_at >= $%d", lower)
	}
	if !upper.IsZero() {
		add("created_at < $%d", upper)
	}

	query := `SELECT id, correlation_id, amount, reason, type, account_id, created_at FROM transactions`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var records []model.TransactionRecord
	for rows.Next() {
		var rec model.TransactionRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.CorrelationID,
			&rec.Amount,
			&rec.Reason,
			&rec.Type,
			&rec.AccountID,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}
