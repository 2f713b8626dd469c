package model

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Role is the authorization level of a user
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is an account holder. HasLoan is set while the user holds an open
// loan and is only changed by loan origination and payoff.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	Role         Role      `json:"role"`
	HasLoan      bool      `json:"has_loan"`
	CreatedAt    time.Time `json:"created_at"`
}

// Principal identifies the caller of a ledger operation
type Principal struct {
	UserID uuid.UUID
	Admin  bool
}

// CanAccess returns true if the principal may act on a resource owned by ownerID
func (p Principal) CanAccess(ownerID uuid.UUID) bool {
	return p.Admin || p.UserID == ownerID
}

// RegisterRequest is the payload for registration
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// Validate checks if the registration request is valid
func (r RegisterRequest) Validate() error {
	if !isValidEmail(r.Email) {
		return ErrInvalidEmail
	}
	if len(r.Password) < 8 {
		return ErrPasswordTooShort
	}
	if !isStrongPassword(r.Password) {
		return ErrPasswordTooWeak
	}
	if strings.TrimSpace(r.FullName) == "" {
		return ErrNameRequired
	}
	return nil
}

// isValidEmail checks for a local part and a dotted domain
func isValidEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	if at < 1 || at >= len(email)-1 {
		return false
	}
	return strings.Contains(email[at+1:], ".")
}

// isStrongPassword requires at least one uppercase, one lowercase and one digit
func isStrongPassword(password string) bool {
	var hasUpper, hasLower, hasDigit bool
	for _, c := range password {
		switch {
		case unicode.IsUpper(c):
			hasUpper = true
		case unicode.IsLower(c):
			hasLower = true
		case unicode.IsDigit(c):
			hasDigit = true
		}
	}
	return hasUpper && hasLower && hasDigit
}

// LoginRequest is the payload for authentication
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks if the login request has required fields
func (r LoginRequest) Validate() error {
	if r.Email == "" {
		return ErrInvalidEmail
	}
	if r.Password == "" {
		return ErrPasswordRequired
	}
	return nil
}
