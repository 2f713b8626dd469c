package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/simonkvalheim/fjord-ledger/internal/model"
)

const userSelect = `SELECT id, email, password_hash, full_name, role, has_loan, created_at FROM users `

func (q *queries) getUser(ctx context.Context, where string, arg any) (*model.User, error) {
	u := &model.User{}
	err := q.db.QueryRow(ctx, userSelect+where, arg).Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FullName,
		&u.Role,
		&u.HasLoan,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err, model.ErrUserNotFound, "user")
	}
	return u, nil
}

// CreateUser inserts a new user
func (q *queries) CreateUser(ctx context.Context, u *model.User) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, full_name, role, has_loan, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, u.ID, u.Email, u.PasswordHash, u.FullName, u.Role, u.HasLoan, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrEmailAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by ID
func (q *queries) GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return q.getUser(ctx, "WHERE id = $1", id)
}

// GetUserByEmail retrieves a user by email (case-insensitive)
func (q *queries) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return q.getUser(ctx, "WHERE lower(email) = lower($1)", email)
}

// LockUser selects the user row FOR UPDATE
func (q *queries) LockUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return q.getUser(ctx, "WHERE id = $1 FOR UPDATE", id)
}

// SetHasLoan updates the open-loan flag of a user
func (q *queries) SetHasLoan(ctx context.Context, id uuid.UUID, hasLoan bool) error {
	result, err := q.db.Exec(ctx, `UPDATE users SET has_loan = $1 WHERE id = $2`, hasLoan, id)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}
