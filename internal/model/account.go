package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simonkvalheim/fjord-ledger/internal/money"
)

// Reference account type names
const (
	AccountTypeChecking    = "Checking"
	AccountTypeCertificate = "Certification of deposit"
)

// Limits applied to client requests
var (
	MinTransactionAmount = decimal.NewFromInt(10)
	MinFixedTermAmount   = decimal.NewFromInt(500)
)

const (
	MinFixedTermYears = 1
	MaxFixedTermYears = 10
)

// AccountType is immutable reference data describing the fees of an account
type AccountType struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	TransactionFee decimal.Decimal `json:"transaction_fee"`
	MonthlyFee     decimal.Decimal `json:"monthly_fee"`
}

// AccountKind tags the variant of an account
type AccountKind string

const (
	AccountKindStandard  AccountKind = "standard"
	AccountKindFixedTerm AccountKind = "fixed_term"
)

// FixedTerm carries the maturity data of a fixed-term (CD) account.
// ProjectedPayout is fixed at creation and never recomputed.
type FixedTerm struct {
	PeriodYears     int             `json:"period_years"`
	Interest        decimal.Decimal `json:"interest"`
	ExpirationDate  time.Time       `json:"expiration_date"`
	ProjectedPayout decimal.Decimal `json:"projected_payout"`
}

// Account is a bank account holding a balance.
// Term is set only when Kind is AccountKindFixedTerm.
type Account struct {
	ID        uuid.UUID       `json:"id"`
	IBAN      string          `json:"iban"`
	Balance   decimal.Decimal `json:"balance"`
	OwnerID   uuid.UUID       `json:"owner_id"`
	Kind      AccountKind     `json:"kind"`
	Type      AccountType     `json:"account_type"`
	Term      *FixedTerm      `json:"term,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// IsFixedTerm returns true for CD accounts
func (a *Account) IsFixedTerm() bool {
	return a.Kind == AccountKindFixedTerm
}

// OwnedBy returns true if the account belongs to the user
func (a *Account) OwnedBy(userID uuid.UUID) bool {
	return a.OwnerID == userID
}

// TransactionFee returns the per-transaction fee of the account's type
func (a *Account) TransactionFee() decimal.Decimal {
	return a.Type.TransactionFee
}

// MonthlyFee returns the monthly maintenance fee of the account's type
func (a *Account) MonthlyFee() decimal.Decimal {
	return a.Type.MonthlyFee
}

// validateTransactionAmount checks a client-supplied amount against a minimum
func validateTransactionAmount(amount, minimum decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !money.FitsStorageScale(amount) {
		return ErrAmountPrecision
	}
	if amount.LessThan(minimum) {
		return ErrAmountBelowMinimum
	}
	return nil
}

// AccountOperationRequest is the payload for deposits and withdrawals
type AccountOperationRequest struct {
	IBAN   string          `json:"iban"`
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

// Validate checks if the request is valid
func (r AccountOperationRequest) Validate() error {
	if strings.TrimSpace(r.IBAN) == "" {
		return ErrInvalidIBAN
	}
	return validateTransactionAmount(r.Amount, MinTransactionAmount)
}

// CreateFixedTermRequest is the payload for opening a CD account
type CreateFixedTermRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	PeriodYears int             `json:"period_years"`
}

// Validate checks if the request is valid
func (r CreateFixedTermRequest) Validate() error {
	if r.PeriodYears < MinFixedTermYears || r.PeriodYears > MaxFixedTermYears {
		return ErrInvalidPeriodYears
	}
	return validateTransactionAmount(r.Amount, MinFixedTermAmount)
}

// EarlyWithdrawalRequest is the payload for breaking a CD account early.
// A zero amount converts the account without withdrawing.
type EarlyWithdrawalRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

// Validate checks if the request is valid
func (r EarlyWithdrawalRequest) Validate() error {
	if r.Amount.IsZero() {
		return nil
	}
	return validateTransactionAmount(r.Amount, MinTransactionAmount)
}
